package lifecycle

import (
	"testing"

	"github.com/sitewright/sitewright/pkg/models"
)

func TestTrackerStateMachine(t *testing.T) {
	tr := NewTracker()

	tr.Enqueue("templates")
	rec, ok := tr.Record("templates")
	if !ok || rec.State != models.SpecialistQueued {
		t.Fatalf("expected queued record, got %+v", rec)
	}

	tr.MarkRunning("templates")
	rec, _ = tr.Record("templates")
	if rec.State != models.SpecialistRunning {
		t.Errorf("expected running, got %s", rec.State)
	}

	tr.MarkCompleted("templates", 2)
	rec, _ = tr.Record("templates")
	if rec.State != models.SpecialistCompleted {
		t.Errorf("expected completed, got %s", rec.State)
	}
}

func TestTrackerZeroChangesIsDistinctTerminalState(t *testing.T) {
	tr := NewTracker()
	tr.Enqueue("styles")
	tr.MarkRunning("styles")
	tr.MarkCompleted("styles", 0)

	rec, _ := tr.Record("styles")
	if rec.State != models.SpecialistCompletedNoChanges {
		t.Errorf("expected completed_no_changes, got %s", rec.State)
	}
}

func TestTrackerFailureKeepsReason(t *testing.T) {
	tr := NewTracker()
	tr.Enqueue("scripts")
	tr.MarkFailed("scripts", "response was not valid JSON")

	rec, _ := tr.Record("scripts")
	if rec.State != models.SpecialistFailed {
		t.Errorf("expected failed, got %s", rec.State)
	}
	if rec.LastError != "response was not valid JSON" {
		t.Errorf("expected failure reason preserved, got %q", rec.LastError)
	}
}

func TestTrackerRetriesMonotonic(t *testing.T) {
	tr := NewTracker()
	tr.Enqueue("config")

	if n := tr.IncrementRetry("config"); n != 1 {
		t.Errorf("expected retry count 1, got %d", n)
	}
	if n := tr.IncrementRetry("config"); n != 2 {
		t.Errorf("expected retry count 2, got %d", n)
	}

	// Re-enqueueing for a retry must not reset the counter.
	tr.Enqueue("config")
	rec, _ := tr.Record("config")
	if rec.Retries != 2 {
		t.Errorf("expected retries preserved across enqueue, got %d", rec.Retries)
	}
}

func TestTrackerAllTerminal(t *testing.T) {
	tr := NewTracker()
	tr.Enqueue("templates")
	tr.Enqueue("styles")

	if tr.AllTerminal() {
		t.Error("queued agents are not terminal")
	}

	tr.MarkCompleted("templates", 1)
	if tr.AllTerminal() {
		t.Error("one agent still queued")
	}

	tr.MarkFailed("styles", "boom")
	if !tr.AllTerminal() {
		t.Error("expected all agents terminal")
	}
}

func TestTriggerFor(t *testing.T) {
	tests := []struct {
		state   models.SpecialistState
		trigger models.ReactionTrigger
		raised  bool
	}{
		{models.SpecialistFailed, models.TriggerSpecialistFailed, true},
		{models.SpecialistCompletedNoChanges, models.TriggerSpecialistNoChanges, true},
		{models.SpecialistCompleted, "", false},
		{models.SpecialistRunning, "", false},
	}

	for _, tc := range tests {
		trigger, raised := TriggerFor(tc.state)
		if raised != tc.raised || trigger != tc.trigger {
			t.Errorf("TriggerFor(%s) = (%s, %v), want (%s, %v)",
				tc.state, trigger, raised, tc.trigger, tc.raised)
		}
	}
}
