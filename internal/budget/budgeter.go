// Package budget fits a set of project files into a token ceiling.
// Files are never dropped: content that does not fit is truncated in
// tiers, down to a length-only stub in the worst case.
package budget

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sitewright/sitewright/pkg/models"
)

// charsPerToken is the estimation heuristic: roughly four characters of
// source text per model token.
const charsPerToken = 4

// Smart truncation keeps the head and tail of a file and replaces the
// middle with a marker. Ratios are of total line count, capped.
const (
	headRatio    = 0.40
	headLineCap  = 50
	tailRatio    = 0.15
	tailLineCap  = 20
)

// EstimateTokens estimates the token cost of a string.
func EstimateTokens(s string) int {
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// Options configures a single budgeting pass.
type Options struct {
	// Ceiling is the token budget for the whole file set.
	Ceiling int
	// PriorityIDs contains file IDs that are included before all others.
	PriorityIDs map[string]bool
}

// Fit returns the input files shrunk to fit the token ceiling. The output
// always has the same length and order as the input; only content changes.
//
// Files are considered priority-first, then ascending by size, which favors
// fitting many small files over one large one. Stub files pass through
// untouched. Fit is idempotent: running it on its own output changes nothing.
func Fit(files []models.FileContext, opts Options) []models.FileContext {
	out := make([]models.FileContext, len(files))
	copy(out, files)

	order := make([]int, len(files))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		pa := opts.PriorityIDs[files[ia].FileID]
		pb := opts.PriorityIDs[files[ib].FileID]
		if pa != pb {
			return pa
		}
		return len(files[ia].Content) < len(files[ib].Content)
	})

	remaining := opts.Ceiling
	for _, idx := range order {
		f := files[idx]

		// Stubs are already minimal: pass through free of charge. Charging
		// them would break idempotence once several large files collapse
		// to stubs.
		if f.IsStub() {
			continue
		}

		cost := EstimateTokens(f.Content)
		if cost <= remaining {
			remaining -= cost
			continue
		}

		fitted := shrinkToFit(f.Content, remaining)
		out[idx].Content = fitted
		if !out[idx].IsStub() {
			remaining -= EstimateTokens(fitted)
		}
	}

	return out
}

// shrinkToFit applies the truncation tiers to content until the result
// costs at most budget tokens:
//
//  1. smart truncation (head + tail with a middle marker)
//  2. head-only with a trailing marker
//  3. a pure length stub
func shrinkToFit(content string, budget int) string {
	if budget > 0 {
		smart := smartTruncate(content)
		if EstimateTokens(smart) <= budget {
			return smart
		}
		if head, ok := headTruncate(content, budget); ok {
			return head
		}
	}
	return models.StubContent(len(content))
}

// smartTruncate keeps the first ~40% of lines (cap 50) and the last ~15%
// (cap 20), replacing the middle with a truncation marker.
func smartTruncate(content string) string {
	lines := strings.Split(content, "\n")

	head := int(float64(len(lines)) * headRatio)
	if head > headLineCap {
		head = headLineCap
	}
	tail := int(float64(len(lines)) * tailRatio)
	if tail > tailLineCap {
		tail = tailLineCap
	}
	if head == 0 {
		head = 1
	}
	if head+tail >= len(lines) {
		return content
	}

	omitted := len(lines) - head - tail
	parts := make([]string, 0, head+tail+1)
	parts = append(parts, lines[:head]...)
	parts = append(parts, truncationMarker(omitted))
	parts = append(parts, lines[len(lines)-tail:]...)
	return strings.Join(parts, "\n")
}

// headTruncate keeps as many leading lines as fit the budget, followed by
// a truncation marker. Returns false when not even one line fits.
func headTruncate(content string, budget int) (string, bool) {
	lines := strings.Split(content, "\n")
	budgetChars := budget * charsPerToken

	kept := 0
	used := 0
	for _, line := range lines {
		lineCost := len(line) + 1
		if used+lineCost > budgetChars-40 { // reserve room for the marker
			break
		}
		used += lineCost
		kept++
	}
	if kept == 0 {
		return "", false
	}
	if kept >= len(lines) {
		return content, true
	}

	omitted := len(lines) - kept
	return strings.Join(lines[:kept], "\n") + "\n" + truncationMarker(omitted), true
}

// truncationMarker renders the marker that replaces omitted lines.
func truncationMarker(omitted int) string {
	return fmt.Sprintf("... %d lines truncated ...", omitted)
}
