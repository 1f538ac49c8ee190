// Package patch reconstructs full file bodies from ordered search/replace
// instructions.
package patch

import (
	"strings"

	"github.com/sitewright/sitewright/pkg/models"
)

// Result is the outcome of reconciling one patch list.
type Result struct {
	// Content is the reconstructed file body.
	Content string
	// Applied is the number of patches that matched and were applied.
	Applied int
	// Skipped lists the indexes of patches whose search text was not
	// found at application time.
	Skipped []int
}

// Clean returns true when every patch applied.
func (r Result) Clean() bool {
	return len(r.Skipped) == 0
}

// Reconcile applies patches to original in list order. Each patch's search
// text must match an exact substring of the current content at application
// time; only the first occurrence is replaced. A patch whose search text is
// not found is skipped, never aborting the rest of the list.
//
// Reconcile(x, nil) returns x unchanged.
func Reconcile(original string, patches []models.Patch) Result {
	content := original
	result := Result{}

	for i, p := range patches {
		if !strings.Contains(content, p.Search) {
			result.Skipped = append(result.Skipped, i)
			continue
		}
		content = strings.Replace(content, p.Search, p.Replace, 1)
		result.Applied++
	}

	result.Content = content
	return result
}

// Normalize enforces the change invariant: when patches are present the
// proposed content must equal the reconciliation of the original content.
// Changes with skipped patches are clamped to low confidence rather than
// discarded.
func Normalize(change models.CodeChange) models.CodeChange {
	if len(change.Patches) == 0 {
		return change
	}

	result := Reconcile(change.OriginalContent, change.Patches)
	change.ProposedContent = result.Content
	if !result.Clean() && change.Confidence > models.LowConfidence {
		change.Confidence = models.LowConfidence
	}
	return change
}
