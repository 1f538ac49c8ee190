package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestCosineSimilarityIdentical(t *testing.T) {
	v := []float32{0.5, 0.3, 0.8}

	sim, err := CosineSimilarity(v, v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("identical vectors should score 1.0, got %f", sim)
	}
}

func TestCosineSimilarityOrthogonal(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(sim) > 1e-9 {
		t.Errorf("orthogonal vectors should score 0, got %f", sim)
	}
}

func TestCosineSimilarityOpposite(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 2}, []float32{-1, -2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(sim+1.0) > 1e-9 {
		t.Errorf("opposite vectors should score -1, got %f", sim)
	}
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	if _, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}); err == nil {
		t.Error("expected error for mismatched dimensions")
	}
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	if _, err := CosineSimilarity([]float32{0, 0}, []float32{1, 2}); err == nil {
		t.Error("expected error for zero-magnitude vector")
	}
}

func TestNewEngineNoneProvider(t *testing.T) {
	engine, err := NewEngine(Config{Provider: "none"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine != nil {
		t.Error("provider 'none' should yield a nil engine")
	}
}

func TestNewEngineUnknownProvider(t *testing.T) {
	if _, err := NewEngine(Config{Provider: "openai"}); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Prompt != "add a pricing section" {
			t.Errorf("unexpected prompt %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	engine := NewOllamaEngine(srv.URL, "nomic-embed-text")
	vec, err := engine.Embed(context.Background(), "add a pricing section")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(vec))
	}
	if engine.Dimensions() != 3 {
		t.Errorf("dimensions not learned from first call, got %d", engine.Dimensions())
	}
}

func TestOllamaEmbedConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float64{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	engine := NewOllamaEngine(srv.URL, "nomic-embed-text")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Embed(context.Background(), "concurrent"); err != nil {
				t.Errorf("embed: %v", err)
			}
			engine.Dimensions()
		}()
	}
	wg.Wait()

	if engine.Dimensions() != 3 {
		t.Errorf("dimensions = %d, want 3", engine.Dimensions())
	}
}

func TestOllamaEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	engine := NewOllamaEngine(srv.URL, "missing-model")
	if _, err := engine.Embed(context.Background(), "hello"); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestOllamaEmbedEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{})
	}))
	defer srv.Close()

	engine := NewOllamaEngine(srv.URL, "nomic-embed-text")
	if _, err := engine.Embed(context.Background(), "hello"); err == nil {
		t.Error("expected error for empty embedding")
	}
}
