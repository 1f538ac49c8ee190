// Package lifecycle tracks specialist terminal states across one
// coordinator round and applies declarative retry/escalation rules.
package lifecycle

import (
	"sync"

	"github.com/sitewright/sitewright/pkg/models"
)

// Tracker holds per-specialist lifecycle records for a single round.
// Records are ephemeral: they feed the reaction engine and are discarded
// with the round.
type Tracker struct {
	// records maps agent tag to its lifecycle record.
	records map[string]*models.SpecialistLifecycleRecord
	// mu protects records.
	mu sync.RWMutex
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]*models.SpecialistLifecycleRecord),
	}
}

// Enqueue registers an agent in the queued state. Re-enqueueing an agent
// for a retry preserves its retry count.
func (t *Tracker) Enqueue(agent string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[agent]; ok {
		rec.State = models.SpecialistQueued
		return
	}
	t.records[agent] = &models.SpecialistLifecycleRecord{
		Agent: agent,
		State: models.SpecialistQueued,
	}
}

// MarkRunning transitions an agent to the running state.
func (t *Tracker) MarkRunning(agent string) {
	t.setState(agent, models.SpecialistRunning, "")
}

// MarkCompleted records a terminal state based on the number of changes
// the specialist produced.
func (t *Tracker) MarkCompleted(agent string, changeCount int) {
	if changeCount > 0 {
		t.setState(agent, models.SpecialistCompleted, "")
		return
	}
	t.setState(agent, models.SpecialistCompletedNoChanges, "")
}

// MarkFailed records the failed terminal state with a reason.
func (t *Tracker) MarkFailed(agent string, reason string) {
	t.setState(agent, models.SpecialistFailed, reason)
}

// IncrementRetry bumps the retry counter for an agent. Retries are
// monotonically non-decreasing within a round.
func (t *Tracker) IncrementRetry(agent string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.ensure(agent)
	rec.Retries++
	return rec.Retries
}

// Record returns a copy of the record for an agent, and whether it exists.
func (t *Tracker) Record(agent string) (models.SpecialistLifecycleRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.records[agent]
	if !ok {
		return models.SpecialistLifecycleRecord{}, false
	}
	return *rec, true
}

// Records returns a snapshot of all records.
func (t *Tracker) Records() []models.SpecialistLifecycleRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]models.SpecialistLifecycleRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, *rec)
	}
	return out
}

// AllTerminal reports whether every tracked agent reached a terminal state.
func (t *Tracker) AllTerminal() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, rec := range t.records {
		if !rec.State.Terminal() {
			return false
		}
	}
	return true
}

// setState transitions an agent's state, creating the record if needed.
func (t *Tracker) setState(agent string, state models.SpecialistState, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := t.ensure(agent)
	rec.State = state
	if reason != "" {
		rec.LastError = reason
	}
}

// ensure returns the record for an agent, creating it if absent.
// Must be called with the lock held.
func (t *Tracker) ensure(agent string) *models.SpecialistLifecycleRecord {
	rec, ok := t.records[agent]
	if !ok {
		rec = &models.SpecialistLifecycleRecord{Agent: agent, State: models.SpecialistQueued}
		t.records[agent] = rec
	}
	return rec
}

// TriggerFor maps a terminal state to its reaction trigger. The second
// return is false for states that raise no trigger.
func TriggerFor(state models.SpecialistState) (models.ReactionTrigger, bool) {
	switch state {
	case models.SpecialistFailed:
		return models.TriggerSpecialistFailed, true
	case models.SpecialistCompletedNoChanges:
		return models.TriggerSpecialistNoChanges, true
	default:
		return "", false
	}
}
