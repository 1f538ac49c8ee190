package models

// ChangeStatus represents the review state of a proposed change.
type ChangeStatus string

const (
	// ChangeStatusProposed indicates the change is awaiting conflict
	// resolution and review.
	ChangeStatusProposed ChangeStatus = "proposed"
	// ChangeStatusApproved indicates the change passed the review gate.
	ChangeStatusApproved ChangeStatus = "approved"
	// ChangeStatusRejected indicates the change lost conflict resolution.
	// Rejected changes are excluded from the apply pipeline.
	ChangeStatusRejected ChangeStatus = "rejected"
)

// Patch is a single ordered search/replace instruction. Search must be an
// exact substring of the content it is applied to.
type Patch struct {
	// Search is the exact text to locate in the current content.
	Search string `json:"search"`
	// Replace is the text substituted for the first occurrence of Search.
	Replace string `json:"replace"`
}

// DefaultChangeConfidence is assumed for changes the producing specialist
// did not score.
const DefaultChangeConfidence = 0.8

// LowConfidence is the confidence assigned to a change whose patch list
// contained at least one unmatched search string.
const LowConfidence = 0.3

// CodeChange is one proposed edit to a single file.
//
// Invariant: when Patches is non-empty, ProposedContent must equal the
// result of reconciling OriginalContent with Patches in order.
type CodeChange struct {
	// ID is the unique identifier for this change.
	ID string `json:"id"`
	// FileID identifies the target file.
	FileID string `json:"file_id"`
	// FileName is the target file name; conflicts are grouped by it.
	FileName string `json:"file_name"`
	// OriginalContent is the file body the change was computed against.
	OriginalContent string `json:"original_content"`
	// ProposedContent is the full replacement body.
	ProposedContent string `json:"proposed_content"`
	// Patches is the optional ordered search/replace list that produced
	// ProposedContent from OriginalContent.
	Patches []Patch `json:"patches,omitempty"`
	// Reasoning explains why the specialist made this edit.
	Reasoning string `json:"reasoning,omitempty"`
	// Agent is the tag of the specialist that produced the change.
	Agent string `json:"agent"`
	// Confidence is the specialist's self-assessed confidence in [0,1].
	Confidence float64 `json:"confidence"`
	// Status tracks the change through conflict resolution and review.
	Status ChangeStatus `json:"status"`
}

// ScoredConfidence returns the change confidence, substituting the default
// for unscored changes.
func (c CodeChange) ScoredConfidence() float64 {
	if c.Confidence <= 0 {
		return DefaultChangeConfidence
	}
	return c.Confidence
}

// AggregateConfidence returns the mean confidence across a set of changes,
// defaulting each unscored change to DefaultChangeConfidence. Returns the
// default for an empty set.
func AggregateConfidence(changes []CodeChange) float64 {
	if len(changes) == 0 {
		return DefaultChangeConfidence
	}
	sum := 0.0
	for _, c := range changes {
		sum += c.ScoredConfidence()
	}
	return sum / float64(len(changes))
}

// Delegation is a sub-task assignment from the coordinator to a specialist.
// Delegations are only emitted for agent tags with at least one bound
// file-type match in the task context.
type Delegation struct {
	// Agent is the specialist tag the sub-task is routed to.
	Agent string `json:"agent"`
	// Task is the scoped instruction text for the specialist.
	Task string `json:"task"`
	// Files lists the names of files the delegation covers.
	Files []string `json:"files"`
}
