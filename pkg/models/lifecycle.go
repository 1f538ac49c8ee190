package models

// SpecialistState represents the per-invocation state of a specialist.
type SpecialistState string

const (
	// SpecialistQueued indicates the specialist has not started.
	SpecialistQueued SpecialistState = "queued"
	// SpecialistRunning indicates the specialist is actively working.
	SpecialistRunning SpecialistState = "running"
	// SpecialistCompleted indicates the specialist finished with at least
	// one proposed change.
	SpecialistCompleted SpecialistState = "completed"
	// SpecialistCompletedNoChanges indicates the specialist finished
	// cleanly but proposed nothing.
	SpecialistCompletedNoChanges SpecialistState = "completed_no_changes"
	// SpecialistFailed indicates a parse or tool error.
	SpecialistFailed SpecialistState = "failed"
)

// Valid returns true if the state is a known value.
func (s SpecialistState) Valid() bool {
	switch s {
	case SpecialistQueued, SpecialistRunning, SpecialistCompleted,
		SpecialistCompletedNoChanges, SpecialistFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for states a specialist cannot leave within
// a single invocation.
func (s SpecialistState) Terminal() bool {
	switch s {
	case SpecialistCompleted, SpecialistCompletedNoChanges, SpecialistFailed:
		return true
	default:
		return false
	}
}

// SpecialistLifecycleRecord tracks one specialist's state across a task.
// Records live for a single coordinator round and feed the reaction engine;
// they are never persisted beyond the task.
type SpecialistLifecycleRecord struct {
	// Agent is the specialist tag.
	Agent string `json:"agent"`
	// State is the current lifecycle state.
	State SpecialistState `json:"state"`
	// Retries is the number of retries for this (agent, task) pair.
	// It is monotonically non-decreasing within a round.
	Retries int `json:"retries"`
	// LastError is the most recent failure reason, if any.
	LastError string `json:"last_error,omitempty"`
}
