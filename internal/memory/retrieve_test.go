package memory

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sitewright/sitewright/pkg/models"
)

// fakeEngine returns a fixed vector per text prefix, or an error.
type fakeEngine struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeEngine) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	for prefix, vec := range f.vectors {
		if strings.HasPrefix(text, prefix) {
			return vec, nil
		}
	}
	return []float32{0, 0, 1}, nil
}

func (f *fakeEngine) Dimensions() int { return 3 }
func (f *fakeEngine) Name() string    { return "fake" }

func TestRetrieveSimilarVectorPath(t *testing.T) {
	store := testStore(t)
	engine := &fakeEngine{vectors: map[string][]float32{
		"change navbar": {1, 0, 0},
	}}

	near := sampleOutcome("proj", "navbar restyle", models.OutcomeSuccess)
	far := sampleOutcome("proj", "database migration", models.OutcomeSuccess)
	for _, o := range []*models.TaskOutcome{near, far} {
		if err := store.SaveOutcome(o); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	store.UpdateEmbedding(near.ID, []float32{0.9, 0.1, 0})
	store.UpdateEmbedding(far.ID, []float32{0, 1, 0})

	r := NewRetriever(store, engine)
	got, err := r.RetrieveSimilar(context.Background(), "proj", "change navbar color",
		RetrieveOptions{Limit: 5, Threshold: 0.5})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 similar outcome, got %d", len(got))
	}
	if got[0].ID != near.ID {
		t.Errorf("wrong outcome returned")
	}
	if got[0].Similarity < 0.5 {
		t.Errorf("similarity not annotated: %f", got[0].Similarity)
	}
}

func TestRetrieveSimilarFallsBackOnEmbedFailure(t *testing.T) {
	store := testStore(t)
	engine := &fakeEngine{err: errors.New("ollama down")}

	outcome := sampleOutcome("proj", "restyle navbar colors", models.OutcomeSuccess)
	if err := store.SaveOutcome(outcome); err != nil {
		t.Fatalf("save: %v", err)
	}

	r := NewRetriever(store, engine)
	got, err := r.RetrieveSimilar(context.Background(), "proj", "update navbar colors",
		RetrieveOptions{Limit: 5, Threshold: 0.3})
	if err != nil {
		t.Fatalf("fallback retrieval should not error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("keyword fallback should find the outcome, got %d", len(got))
	}
}

func TestRetrieveSimilarFallsBackOnEmptyVectorResult(t *testing.T) {
	store := testStore(t)
	engine := &fakeEngine{vectors: map[string][]float32{
		"update": {1, 0, 0},
	}}

	// The outcome was never embedded, so the vector path succeeds with
	// zero hits. Keyword overlap must still find it.
	outcome := sampleOutcome("proj", "restyle navbar colors", models.OutcomeSuccess)
	if err := store.SaveOutcome(outcome); err != nil {
		t.Fatalf("save: %v", err)
	}

	r := NewRetriever(store, engine)
	got, err := r.RetrieveSimilar(context.Background(), "proj", "update navbar colors",
		RetrieveOptions{Limit: 5, Threshold: 0.3})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("empty vector result should fall back to keywords, got %d", len(got))
	}
}

func TestRetrieveSimilarNilEngineUsesKeywords(t *testing.T) {
	store := testStore(t)

	outcome := sampleOutcome("proj", "improve pricing table spacing", models.OutcomeSuccess)
	if err := store.SaveOutcome(outcome); err != nil {
		t.Fatalf("save: %v", err)
	}

	r := NewRetriever(store, nil)
	got, err := r.RetrieveSimilar(context.Background(), "proj", "adjust pricing table",
		RetrieveOptions{Limit: 5, Threshold: 0.3})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("expected keyword match with nil engine, got %d", len(got))
	}
}

func TestExtractKeywords(t *testing.T) {
	got := ExtractKeywords("Please make the Navbar sticky and the navbar darker")

	want := map[string]bool{"navbar": true, "sticky": true, "darker": true}
	if len(got) != len(want) {
		t.Fatalf("expected %d keywords, got %v", len(want), got)
	}
	for _, kw := range got {
		if !want[kw] {
			t.Errorf("unexpected keyword %q", kw)
		}
	}
}

func TestExtractKeywordsShortAndStopWordsDropped(t *testing.T) {
	if got := ExtractKeywords("the and a of to is"); len(got) != 0 {
		t.Errorf("expected no keywords, got %v", got)
	}
}

func TestFormatForPromptDecayAndCutoff(t *testing.T) {
	now := time.Now()
	outcomes := []*models.TaskOutcome{
		{TaskSummary: "fresh task", Strategy: "delegate", Outcome: models.OutcomeSuccess,
			Similarity: 0.9, CreatedAt: now.Add(-24 * time.Hour)},
		{TaskSummary: "stale task", Strategy: "delegate", Outcome: models.OutcomeSuccess,
			Similarity: 0.9, CreatedAt: now.Add(-400 * 24 * time.Hour)},
		{TaskSummary: "decayed below threshold", Strategy: "delegate", Outcome: models.OutcomeSuccess,
			Similarity: 0.35, CreatedAt: now.Add(-20 * 7 * 24 * time.Hour)},
	}

	opts := RetrieveOptions{Limit: 5, Threshold: 0.3, DecayRate: 0.05, MaxAgeDays: 180}
	text := FormatForPrompt(outcomes, now, opts)

	if !strings.Contains(text, "fresh task") {
		t.Error("fresh outcome missing from prompt block")
	}
	if strings.Contains(text, "stale task") {
		t.Error("outcome past the age cutoff should be dropped")
	}
	if strings.Contains(text, "decayed below threshold") {
		t.Error("outcome whose decayed score falls below threshold should be dropped")
	}
}

func TestFormatForPromptRankedOrder(t *testing.T) {
	now := time.Now()
	outcomes := []*models.TaskOutcome{
		{TaskSummary: "weaker match", Similarity: 0.5, CreatedAt: now},
		{TaskSummary: "stronger match", Similarity: 0.9, CreatedAt: now},
	}

	text := FormatForPrompt(outcomes, now, RetrieveOptions{Limit: 5, Threshold: 0.3, DecayRate: 0.05})

	stronger := strings.Index(text, "stronger match")
	weaker := strings.Index(text, "weaker match")
	if stronger < 0 || weaker < 0 || stronger > weaker {
		t.Errorf("expected stronger match ranked first:\n%s", text)
	}
	if !strings.HasPrefix(strings.TrimSpace(strings.SplitN(text, "\n", 2)[1]), "1.") {
		t.Errorf("expected numbered ranking:\n%s", text)
	}
}

func TestFormatForPromptEmpty(t *testing.T) {
	if got := FormatForPrompt(nil, time.Now(), DefaultRetrieveOptions()); got != "" {
		t.Errorf("expected empty block, got %q", got)
	}
}
