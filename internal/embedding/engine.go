// Package embedding provides vector embedding generation for outcome
// similarity search. Failures at this boundary are never fatal to the
// calling operation.
package embedding

import (
	"context"
	"fmt"
	"math"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Dimensions returns the dimensionality of produced embeddings.
	Dimensions() int
	// Name returns the engine name for logging.
	Name() string
}

// Config holds embedding engine configuration.
type Config struct {
	// Provider selects the backend: "ollama" or "none".
	Provider string `mapstructure:"provider"`
	// Endpoint is the Ollama server URL.
	Endpoint string `mapstructure:"endpoint"`
	// Model is the embedding model name.
	Model string `mapstructure:"model"`
}

// DefaultConfig returns sensible defaults: a local Ollama server.
func DefaultConfig() Config {
	return Config{
		Provider: "ollama",
		Endpoint: "http://localhost:11434",
		Model:    "nomic-embed-text",
	}
}

// NewEngine creates an embedding engine from configuration. Provider
// "none" disables embeddings; retrieval then relies on keyword fallback.
func NewEngine(cfg Config) (Engine, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "ollama":
		return NewOllamaEngine(cfg.Endpoint, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'none')", cfg.Provider)
	}
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical direction.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector dimension mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty vectors")
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, fmt.Errorf("zero-magnitude vector")
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
