package patch

import (
	"testing"

	"github.com/sitewright/sitewright/pkg/models"
)

func TestReconcileEmptyPatchListIsIdentity(t *testing.T) {
	original := "<div class=\"hero\">\n  <h1>Welcome</h1>\n</div>"

	result := Reconcile(original, nil)

	if result.Content != original {
		t.Errorf("expected identity, got %q", result.Content)
	}
	if !result.Clean() {
		t.Error("identity reconciliation should be clean")
	}
}

func TestReconcileAppliesInOrder(t *testing.T) {
	original := "aaa bbb ccc"
	patches := []models.Patch{
		{Search: "bbb", Replace: "BBB"},
		{Search: "BBB ccc", Replace: "done"},
	}

	result := Reconcile(original, patches)

	if result.Content != "aaa done" {
		t.Errorf("expected %q, got %q", "aaa done", result.Content)
	}
	if result.Applied != 2 {
		t.Errorf("expected 2 applied patches, got %d", result.Applied)
	}
}

func TestReconcileReplacesFirstOccurrenceOnly(t *testing.T) {
	result := Reconcile("x x x", []models.Patch{{Search: "x", Replace: "y"}})

	if result.Content != "y x x" {
		t.Errorf("expected first occurrence replaced, got %q", result.Content)
	}
}

func TestReconcileSkipsMissingSearch(t *testing.T) {
	original := "<h1>Title</h1>"
	patches := []models.Patch{
		{Search: "<h2>", Replace: "<h3>"},
		{Search: "Title", Replace: "Headline"},
	}

	result := Reconcile(original, patches)

	if result.Content != "<h1>Headline</h1>" {
		t.Errorf("later patches should still apply, got %q", result.Content)
	}
	if len(result.Skipped) != 1 || result.Skipped[0] != 0 {
		t.Errorf("expected patch 0 skipped, got %v", result.Skipped)
	}
}

func TestReconcileAllMissingReturnsOriginal(t *testing.T) {
	original := "body { color: red; }"
	patches := []models.Patch{
		{Search: "blue", Replace: "green"},
		{Search: "margin", Replace: "padding"},
	}

	result := Reconcile(original, patches)

	if result.Content != original {
		t.Errorf("expected original unchanged, got %q", result.Content)
	}
	if result.Clean() {
		t.Error("expected skipped patches to be reported")
	}
}

func TestNormalizeRecomputesProposedContent(t *testing.T) {
	change := models.CodeChange{
		FileName:        "hero.hbs",
		OriginalContent: "<h1>Old</h1>",
		ProposedContent: "stale",
		Patches:         []models.Patch{{Search: "Old", Replace: "New"}},
		Confidence:      0.9,
	}

	normalized := Normalize(change)

	if normalized.ProposedContent != "<h1>New</h1>" {
		t.Errorf("expected reconciled content, got %q", normalized.ProposedContent)
	}
	if normalized.Confidence != 0.9 {
		t.Errorf("clean reconciliation should keep confidence, got %f", normalized.Confidence)
	}
}

func TestNormalizeFlagsLowConfidenceOnMismatch(t *testing.T) {
	change := models.CodeChange{
		FileName:        "hero.hbs",
		OriginalContent: "<h1>Old</h1>",
		Patches:         []models.Patch{{Search: "missing", Replace: "x"}},
		Confidence:      0.9,
	}

	normalized := Normalize(change)

	if normalized.ProposedContent != change.OriginalContent {
		t.Errorf("zero matching patches should return original content, got %q", normalized.ProposedContent)
	}
	if normalized.Confidence != models.LowConfidence {
		t.Errorf("expected confidence clamped to %f, got %f", models.LowConfidence, normalized.Confidence)
	}
}

func TestNormalizeWithoutPatchesUntouched(t *testing.T) {
	change := models.CodeChange{
		FileName:        "style.css",
		OriginalContent: "a",
		ProposedContent: "b",
		Confidence:      0.7,
	}

	if got := Normalize(change); got.ProposedContent != "b" || got.Confidence != 0.7 {
		t.Errorf("full-content change should pass through, got %+v", got)
	}
}
