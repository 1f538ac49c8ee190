package models

import "time"

// OutcomeStatus classifies how a task execution ended.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates the task completed and was approved.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomePartial indicates some changes were applied but the task was
	// not fully satisfied.
	OutcomePartial OutcomeStatus = "partial"
	// OutcomeFailure indicates the task produced no applied changes.
	OutcomeFailure OutcomeStatus = "failure"
)

// Valid returns true if the status is a known value.
func (s OutcomeStatus) Valid() bool {
	switch s {
	case OutcomeSuccess, OutcomePartial, OutcomeFailure:
		return true
	default:
		return false
	}
}

// MaxSummaryLen caps stored task summaries.
const MaxSummaryLen = 500

// TaskOutcome is the durable record of one task execution. It is written
// once on task completion and optionally amended later with a backfilled
// embedding.
type TaskOutcome struct {
	// ID is the unique identifier for this outcome.
	ID string `json:"id"`
	// ProjectID scopes the outcome to one project.
	ProjectID string `json:"project_id"`
	// TaskSummary is the capped instruction summary (see MaxSummaryLen).
	TaskSummary string `json:"task_summary"`
	// Strategy records the coordinator's routing decision for the task.
	Strategy string `json:"strategy"`
	// Outcome classifies the execution result.
	Outcome OutcomeStatus `json:"outcome"`
	// FilesChanged lists the names of files whose changes were applied.
	FilesChanged []string `json:"files_changed,omitempty"`
	// ToolSequence records the ordered specialist tags invoked.
	ToolSequence []string `json:"tool_sequence,omitempty"`
	// IterationCount is the number of specialist rounds the task took.
	IterationCount int `json:"iteration_count"`
	// TokenUsage is the total tokens consumed across the task.
	TokenUsage int64 `json:"token_usage"`
	// Embedding is the summary embedding, backfilled asynchronously.
	Embedding []float32 `json:"-"`
	// Similarity is the retrieval-time similarity to the query. It is
	// derived, never stored.
	Similarity float64 `json:"similarity,omitempty"`
	// CreatedAt is when the outcome was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// CapSummary truncates a summary to MaxSummaryLen runes.
func CapSummary(summary string) string {
	runes := []rune(summary)
	if len(runes) <= MaxSummaryLen {
		return summary
	}
	return string(runes[:MaxSummaryLen])
}
