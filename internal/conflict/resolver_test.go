package conflict

import (
	"testing"

	"github.com/sitewright/sitewright/pkg/models"
)

func change(id, file, agent string) models.CodeChange {
	return models.CodeChange{
		ID:       id,
		FileName: file,
		Agent:    agent,
		Status:   models.ChangeStatusProposed,
	}
}

func TestDetectNoConflicts(t *testing.T) {
	changes := []models.CodeChange{
		change("c1", "hero.hbs", "templates"),
		change("c2", "style.css", "styles"),
	}

	if got := Detect(changes); len(got) != 0 {
		t.Errorf("expected no conflicts, got %d", len(got))
	}
}

func TestDetectGroupsByFileName(t *testing.T) {
	changes := []models.CodeChange{
		change("c1", "hero-section.hbs", "templates"),
		change("c2", "style.css", "styles"),
		change("c3", "hero-section.hbs", "scripts"),
		change("c4", "style.css", "templates"),
		change("c5", "footer.hbs", "templates"),
	}

	conflicts := Detect(changes)

	if len(conflicts) != 2 {
		t.Fatalf("expected 2 conflict groups, got %d", len(conflicts))
	}
	if conflicts[0].FileName != "hero-section.hbs" {
		t.Errorf("expected first conflict on hero-section.hbs, got %s", conflicts[0].FileName)
	}
	if len(conflicts[0].Changes) != 2 {
		t.Errorf("expected group size 2, got %d", len(conflicts[0].Changes))
	}
	if conflicts[0].SelectedID != "c1" {
		t.Errorf("default selection should be first-submitted, got %s", conflicts[0].SelectedID)
	}
}

func TestResolveAllKeepsFirstSubmitted(t *testing.T) {
	changes := []models.CodeChange{
		change("c1", "hero-section.hbs", "templates"),
		change("c2", "hero-section.hbs", "styles"),
	}

	res := ResolveAll(changes)

	if len(res.Accepted) != 1 || res.Accepted[0].ID != "c1" {
		t.Fatalf("expected c1 accepted, got %+v", res.Accepted)
	}
	if len(res.Rejected) != 1 || res.Rejected[0].ID != "c2" {
		t.Fatalf("expected c2 rejected, got %+v", res.Rejected)
	}
	if res.Rejected[0].Status != models.ChangeStatusRejected {
		t.Errorf("rejected change should be marked rejected, got %s", res.Rejected[0].Status)
	}
}

func TestResolveAllOneAcceptedPerFile(t *testing.T) {
	changes := []models.CodeChange{
		change("c1", "a.hbs", "templates"),
		change("c2", "a.hbs", "styles"),
		change("c3", "a.hbs", "scripts"),
		change("c4", "b.css", "styles"),
		change("c5", "b.css", "templates"),
		change("c6", "c.js", "scripts"),
	}

	res := ResolveAll(changes)

	perFile := make(map[string]int)
	for _, c := range res.Accepted {
		perFile[c.FileName]++
	}
	for file, n := range perFile {
		if n != 1 {
			t.Errorf("file %s has %d accepted changes, want exactly 1", file, n)
		}
	}
	if len(res.Accepted) != 3 {
		t.Errorf("expected 3 accepted changes, got %d", len(res.Accepted))
	}
	if len(res.Rejected) != 3 {
		t.Errorf("expected 3 rejected changes, got %d", len(res.Rejected))
	}
}

func TestResolveExplicitSelection(t *testing.T) {
	changes := []models.CodeChange{
		change("c1", "hero.hbs", "templates"),
		change("c2", "hero.hbs", "styles"),
	}

	res := Resolve(changes, map[string]string{"hero.hbs": "c2"})

	if len(res.Accepted) != 1 || res.Accepted[0].ID != "c2" {
		t.Fatalf("expected explicit winner c2, got %+v", res.Accepted)
	}
	if res.Rejected[0].ID != "c1" {
		t.Errorf("expected c1 rejected, got %s", res.Rejected[0].ID)
	}
}

func TestResolveUnknownSelectionFallsBackToFirst(t *testing.T) {
	changes := []models.CodeChange{
		change("c1", "hero.hbs", "templates"),
		change("c2", "hero.hbs", "styles"),
	}

	res := Resolve(changes, map[string]string{"hero.hbs": "nope"})

	if res.Accepted[0].ID != "c1" {
		t.Errorf("invalid selection should fall back to first-submitted, got %s", res.Accepted[0].ID)
	}
}

func TestResolveLeavesNonConflictingUntouched(t *testing.T) {
	changes := []models.CodeChange{
		change("c1", "solo.css", "styles"),
		change("c2", "hero.hbs", "templates"),
		change("c3", "hero.hbs", "styles"),
	}

	res := ResolveAll(changes)

	if len(res.Accepted) != 2 {
		t.Fatalf("expected 2 accepted, got %d", len(res.Accepted))
	}
	if res.Accepted[0].ID != "c1" || res.Accepted[0].Status != models.ChangeStatusProposed {
		t.Errorf("non-conflicting change should survive untouched, got %+v", res.Accepted[0])
	}
}
