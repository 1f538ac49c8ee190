package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sitewright/sitewright/internal/embedding"
	"github.com/sitewright/sitewright/pkg/models"
)

// RetrieveOptions controls similarity retrieval and prompt formatting.
type RetrieveOptions struct {
	// Limit caps the number of returned outcomes.
	Limit int
	// Threshold is the minimum similarity an outcome must score.
	Threshold float64
	// DecayRate is the per-week relevance decay applied at formatting time.
	DecayRate float64
	// MaxAgeDays drops outcomes older than this at formatting time.
	// 0 disables the cutoff.
	MaxAgeDays int
}

// DefaultRetrieveOptions returns the standard retrieval tuning.
func DefaultRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{
		Limit:      5,
		Threshold:  0.3,
		DecayRate:  0.05,
		MaxAgeDays: 180,
	}
}

// Retriever finds past outcomes similar to a query. Vector search is
// primary; keyword overlap is the fallback when no engine is available,
// the query cannot be embedded, or no embedded outcome scores above the
// threshold.
type Retriever struct {
	store  *Store
	engine embedding.Engine
}

// NewRetriever creates a retriever over the given store and engine. The
// engine may be nil; retrieval then always uses keyword fallback.
func NewRetriever(store *Store, engine embedding.Engine) *Retriever {
	return &Retriever{store: store, engine: engine}
}

// RetrieveSimilar returns outcomes similar to the query, most similar
// first, each annotated with its similarity score.
func (r *Retriever) RetrieveSimilar(ctx context.Context, projectID, query string, opts RetrieveOptions) ([]*models.TaskOutcome, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultRetrieveOptions().Limit
	}

	if r.engine != nil {
		outcomes, err := r.vectorSearch(ctx, projectID, query, opts)
		if err == nil && len(outcomes) > 0 {
			return outcomes, nil
		}
		// Embedding trouble or an empty vector index never ends retrieval;
		// fall through to keywords.
	}

	outcomes, err := r.store.SearchKeyword(projectID, query, opts.Threshold)
	if err != nil {
		return nil, err
	}
	sortBySimilarity(outcomes)
	return truncate(outcomes, opts.Limit), nil
}

func (r *Retriever) vectorSearch(ctx context.Context, projectID, query string, opts RetrieveOptions) ([]*models.TaskOutcome, error) {
	queryVec, err := r.engine.Embed(ctx, query)
	if err != nil {
		return nil, models.NewWorkerError(models.ErrEmbedding, "", err)
	}

	candidates, err := r.store.ListEmbedded(projectID)
	if err != nil {
		return nil, err
	}

	var matched []*models.TaskOutcome
	for _, o := range candidates {
		sim, err := embedding.CosineSimilarity(queryVec, o.Embedding)
		if err != nil {
			continue
		}
		if sim >= opts.Threshold {
			o.Similarity = sim
			matched = append(matched, o)
		}
	}
	sortBySimilarity(matched)
	return truncate(matched, opts.Limit), nil
}

// FormatForPrompt renders retrieved outcomes as a ranked context block for
// specialist prompts. Each similarity is decayed by age, the threshold is
// re-applied to the decayed score, and outcomes past the age cutoff are
// dropped. Returns "" when nothing survives.
func FormatForPrompt(outcomes []*models.TaskOutcome, now time.Time, opts RetrieveOptions) string {
	type scored struct {
		outcome *models.TaskOutcome
		score   float64
	}

	var kept []scored
	for _, o := range outcomes {
		age := now.Sub(o.CreatedAt)
		if opts.MaxAgeDays > 0 && age > time.Duration(opts.MaxAgeDays)*24*time.Hour {
			continue
		}
		weeks := age.Hours() / (24 * 7)
		score := o.Similarity * decayFactor(opts.DecayRate, weeks)
		if score < opts.Threshold {
			continue
		}
		kept = append(kept, scored{outcome: o, score: score})
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].score > kept[j].score
	})
	if opts.Limit > 0 && len(kept) > opts.Limit {
		kept = kept[:opts.Limit]
	}
	if len(kept) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Relevant past tasks, most similar first:\n")
	for i, s := range kept {
		o := s.outcome
		fmt.Fprintf(&sb, "%d. [%.2f] %s (strategy: %s, outcome: %s", i+1, s.score,
			o.TaskSummary, o.Strategy, o.Outcome)
		if len(o.FilesChanged) > 0 {
			fmt.Fprintf(&sb, ", files: %s", strings.Join(o.FilesChanged, ", "))
		}
		sb.WriteString(")\n")
	}
	return sb.String()
}

// decayFactor is (1 - rate)^weeks, clamped so a bad rate cannot produce a
// negative factor.
func decayFactor(rate, weeks float64) float64 {
	base := 1 - rate
	if base <= 0 {
		return 0
	}
	if weeks <= 0 {
		return 1
	}
	return math.Pow(base, weeks)
}

func sortBySimilarity(outcomes []*models.TaskOutcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].Similarity > outcomes[j].Similarity
	})
}

func truncate(outcomes []*models.TaskOutcome, limit int) []*models.TaskOutcome {
	if limit > 0 && len(outcomes) > limit {
		return outcomes[:limit]
	}
	return outcomes
}
