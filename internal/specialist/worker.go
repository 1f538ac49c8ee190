package specialist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/sitewright/sitewright/internal/llm"
	"github.com/sitewright/sitewright/internal/patch"
	"github.com/sitewright/sitewright/pkg/models"
)

// Worker executes one specialist's portion of a task. A worker is cheap
// to construct; the coordinator builds one per specialist per round.
type Worker struct {
	cap       Capability
	completer llm.Completer
}

// NewWorker creates a worker for the given capability.
func NewWorker(cap Capability, completer llm.Completer) *Worker {
	return &Worker{cap: cap, completer: completer}
}

// Result is the outcome of a single worker invocation.
type Result struct {
	// Agent is the specialist that produced this result.
	Agent string
	// Analysis is the model's explanation of its approach.
	Analysis string
	// Changes are the proposed edits, one per touched file.
	Changes []models.CodeChange
	// SkippedFiles lists file names the model tried to edit outside its
	// domain or outside the task's file set. Dropped, never applied.
	SkippedFiles []string
}

// response is the wire shape every specialist must produce.
type response struct {
	Analysis string `json:"analysis"`
	Changes  []struct {
		FileName   string         `json:"file_name"`
		Reasoning  string         `json:"reasoning"`
		Patches    []models.Patch `json:"patches"`
		Confidence float64        `json:"confidence"`
	} `json:"changes"`
}

// correctiveInstruction is appended when the first response fails to
// decode. One re-ask only; a second failure is surfaced as PARSE_ERROR.
const correctiveInstruction = `Your previous response was not valid JSON.
Respond again with only the JSON object, no prose and no code fences.`

// Execute runs the specialist against the task's files of its own domain.
// extraInstruction carries reaction-engine guidance (narrowed scope or an
// injected hint) and may be empty.
func (w *Worker) Execute(ctx context.Context, task models.Task, extraInstruction string) (Result, error) {
	result := Result{Agent: w.cap.Name()}

	bound := w.bindFiles(task.Files)
	if len(bound) == 0 {
		return result, nil
	}

	user := w.buildPrompt(task, bound, extraInstruction)

	resp, err := w.complete(ctx, user)
	if err != nil {
		return result, err
	}

	decoded, err := llm.Decode[response](resp)
	if err != nil && models.KindOf(err) == models.ErrParse {
		resp, err = w.complete(ctx, user+"\n\n"+correctiveInstruction)
		if err != nil {
			return result, err
		}
		decoded, err = llm.Decode[response](resp)
	}
	if err != nil {
		return result, models.NewWorkerError(models.ErrParse, w.cap.Name(), err)
	}

	result.Analysis = decoded.Analysis

	byName := make(map[string]models.FileContext, len(bound))
	for _, f := range bound {
		byName[f.FileName] = f
	}

	for _, c := range decoded.Changes {
		file, ok := byName[c.FileName]
		if !ok {
			result.SkippedFiles = append(result.SkippedFiles, c.FileName)
			continue
		}

		confidence := c.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = models.DefaultChangeConfidence
		}

		change := models.CodeChange{
			ID:              uuid.New().String(),
			FileID:          file.FileID,
			FileName:        file.FileName,
			OriginalContent: file.Content,
			Patches:         c.Patches,
			Reasoning:       c.Reasoning,
			Agent:           w.cap.Name(),
			Confidence:      confidence,
			Status:          models.ChangeStatusProposed,
		}
		change = patch.Normalize(change)

		if change.ProposedContent == change.OriginalContent {
			continue
		}
		result.Changes = append(result.Changes, change)
	}

	return result, nil
}

func (w *Worker) complete(ctx context.Context, user string) (string, error) {
	resp, err := w.completer.Complete(ctx, w.cap.SystemPrompt(), user)
	if err != nil {
		kind := models.ErrTool
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			kind = models.ErrTimeout
		}
		return "", models.NewWorkerError(kind, w.cap.Name(), err)
	}
	return resp, nil
}

// bindFiles keeps only files whose type belongs to this specialist's
// domain. Stubbed files are passed through so the model knows they exist
// but cannot edit what it cannot see.
func (w *Worker) bindFiles(files []models.FileContext) []models.FileContext {
	tags := make(map[string]bool, len(w.cap.DomainTags()))
	for _, t := range w.cap.DomainTags() {
		tags[strings.ToLower(t)] = true
	}

	var bound []models.FileContext
	for _, f := range files {
		if tags[strings.ToLower(f.FileType)] {
			bound = append(bound, f)
		}
	}
	return bound
}

func (w *Worker) buildPrompt(task models.Task, bound []models.FileContext, extraInstruction string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Task\n%s\n", task.Instruction)
	if extraInstruction != "" {
		fmt.Fprintf(&sb, "\n## Additional guidance\n%s\n", extraInstruction)
	}

	if len(task.Preferences) > 0 {
		sb.WriteString("\n## User preferences\n")
		keys := make([]string, 0, len(task.Preferences))
		for k := range task.Preferences {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %s\n", k, task.Preferences[k])
		}
	}

	writeContext := func(title, body string) {
		if body != "" {
			fmt.Fprintf(&sb, "\n## %s\n%s\n", title, body)
		}
	}
	writeContext("Design context", task.DesignContext)
	writeContext("DOM context", task.DOMContext)
	writeContext("Dependency context", task.DependencyContext)
	writeContext("Similar past tasks", task.MemoryContext)

	sb.WriteString("\n## Files\n")
	for _, f := range bound {
		fmt.Fprintf(&sb, "\n### %s (%s)\n```%s\n%s\n```\n",
			f.FileName, f.FileType, f.FileType, f.Content)
	}

	return sb.String()
}
