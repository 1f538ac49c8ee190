package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/sitewright/sitewright/internal/llm"
	"github.com/sitewright/sitewright/pkg/models"
)

// Review is the gate's verdict over a set of proposed changes.
type Review struct {
	// Approved is true when no error-severity issue was found.
	Approved bool
	// Issues holds every finding, structural and reviewer, in file order.
	Issues []Issue
	// Summary is the reviewer's overall assessment, if one ran.
	Summary string
}

// ErrorCount returns the number of error-severity issues.
func (r Review) ErrorCount() int {
	n := 0
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Gate runs structural checks and an optional LLM reviewer over proposed
// changes before they are applied.
type Gate struct {
	completer llm.Completer
}

// NewGate creates a review gate. completer may be nil, in which case only
// structural checks run.
func NewGate(completer llm.Completer) *Gate {
	return &Gate{completer: completer}
}

// reviewerResponse is the wire shape the LLM reviewer must produce.
type reviewerResponse struct {
	Summary string  `json:"summary"`
	Issues  []Issue `json:"issues"`
}

const reviewerSystemPrompt = `You review proposed edits to a website's
source files. Look for broken references between files, accessibility
regressions, and changes that contradict the task. Do not restyle or
rewrite; only report problems.

Respond with a single JSON object:
{
  "summary": "one or two sentences on the overall quality",
  "issues": [
    {"file_name": "...", "severity": "error|warning|info", "message": "..."}
  ]
}
Use severity "error" only for problems that would break the site or
contradict the task. Return an empty issues array if the changes look good.`

// Run evaluates changes against the task's files. Structural findings are
// always included; reviewer findings are merged when a completer is
// configured and responds. A reviewer outage degrades the gate to
// structural checks only, it never blocks approval by itself.
func (g *Gate) Run(ctx context.Context, task models.Task, changes []models.CodeChange) Review {
	var review Review

	for _, change := range changes {
		review.Issues = append(review.Issues, StructuralCheck(change, task.Files, changes)...)
	}

	if g.completer != nil && len(changes) > 0 {
		summary, issues, err := g.reviewWithModel(ctx, task, changes)
		if err != nil {
			review.Issues = append(review.Issues, Issue{
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("reviewer unavailable, structural checks only: %v", err),
				Source:   "reviewer",
			})
		} else {
			review.Summary = summary
			review.Issues = append(review.Issues, issues...)
		}
	}

	review.Approved = review.ErrorCount() == 0
	return review
}

func (g *Gate) reviewWithModel(ctx context.Context, task models.Task, changes []models.CodeChange) (string, []Issue, error) {
	resp, err := g.completer.Complete(ctx, reviewerSystemPrompt, buildReviewPrompt(task, changes))
	if err != nil {
		return "", nil, err
	}

	decoded, err := llm.Decode[reviewerResponse](resp)
	if err != nil {
		return "", nil, err
	}

	issues := make([]Issue, 0, len(decoded.Issues))
	for _, issue := range decoded.Issues {
		issue.Source = "reviewer"
		switch issue.Severity {
		case SeverityError, SeverityWarning, SeverityInfo:
		default:
			issue.Severity = SeverityWarning
		}
		issues = append(issues, issue)
	}
	return decoded.Summary, issues, nil
}

func buildReviewPrompt(task models.Task, changes []models.CodeChange) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Task\n%s\n\n## Proposed changes\n", task.Instruction)
	for _, c := range changes {
		fmt.Fprintf(&sb, "\n### %s (by %s, confidence %.2f)\n", c.FileName, c.Agent, c.Confidence)
		if c.Reasoning != "" {
			fmt.Fprintf(&sb, "Reasoning: %s\n", c.Reasoning)
		}
		fmt.Fprintf(&sb, "```\n%s\n```\n", c.ProposedContent)
	}
	return sb.String()
}
