package specialist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sitewright/sitewright/pkg/models"
)

// fakeCompleter returns canned responses in order and records prompts.
type fakeCompleter struct {
	responses []string
	err       error
	prompts   []string
}

func (f *fakeCompleter) Complete(_ context.Context, _, user string) (string, error) {
	f.prompts = append(f.prompts, user)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", fmt.Errorf("no responses left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func stylesWorker(completer *fakeCompleter) *Worker {
	reg := NewRegistry()
	cap, ok := reg.Lookup("styles")
	if !ok {
		panic("styles capability missing")
	}
	return NewWorker(cap, completer)
}

func stylesTask() models.Task {
	return models.Task{
		Instruction: "make the hero heading larger",
		Files: []models.FileContext{
			{FileID: "f1", FileName: "main.css", FileType: "css",
				Content: ".hero h1 { font-size: 2rem; }"},
			{FileID: "f2", FileName: "index.html", FileType: "html",
				Content: "<h1>Hi</h1>"},
		},
	}
}

func TestExecuteProposesNormalizedChange(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		`{"analysis": "bump the heading size", "changes": [
			{"file_name": "main.css", "reasoning": "larger hero",
			 "patches": [{"search": "font-size: 2rem;", "replace": "font-size: 3rem;"}],
			 "confidence": 0.9}
		]}`,
	}}
	w := stylesWorker(completer)

	result, err := w.Execute(context.Background(), stylesTask(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(result.Changes))
	}

	change := result.Changes[0]
	if change.ProposedContent != ".hero h1 { font-size: 3rem; }" {
		t.Errorf("proposed content not reconciled from patches: %q", change.ProposedContent)
	}
	if change.Agent != "styles" {
		t.Errorf("change should carry the specialist name, got %q", change.Agent)
	}
	if change.Confidence != 0.9 {
		t.Errorf("expected model confidence 0.9, got %f", change.Confidence)
	}
	if change.Status != models.ChangeStatusProposed {
		t.Errorf("expected proposed status, got %s", change.Status)
	}
}

func TestExecuteDefaultsConfidence(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		`{"analysis": "ok", "changes": [
			{"file_name": "main.css", "reasoning": "r",
			 "patches": [{"search": "2rem", "replace": "3rem"}]}
		]}`,
	}}
	w := stylesWorker(completer)

	result, err := w.Execute(context.Background(), stylesTask(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Changes[0].Confidence != models.DefaultChangeConfidence {
		t.Errorf("missing confidence should default to %f, got %f",
			models.DefaultChangeConfidence, result.Changes[0].Confidence)
	}
}

func TestExecuteBindsOnlyDomainFiles(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		`{"analysis": "no changes", "changes": []}`,
	}}
	w := stylesWorker(completer)

	_, err := w.Execute(context.Background(), stylesTask(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(completer.prompts) != 1 {
		t.Fatalf("expected 1 prompt, got %d", len(completer.prompts))
	}
	if strings.Contains(completer.prompts[0], "index.html") {
		t.Error("html file leaked into the styles specialist's prompt")
	}
	if !strings.Contains(completer.prompts[0], "main.css") {
		t.Error("bound css file missing from the prompt")
	}
}

func TestExecuteDropsOutOfDomainEdits(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		`{"analysis": "overreach", "changes": [
			{"file_name": "index.html", "reasoning": "r",
			 "patches": [{"search": "Hi", "replace": "Hello"}]}
		]}`,
	}}
	w := stylesWorker(completer)

	result, err := w.Execute(context.Background(), stylesTask(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Changes) != 0 {
		t.Errorf("out-of-domain edit should be dropped, got %+v", result.Changes)
	}
	if len(result.SkippedFiles) != 1 || result.SkippedFiles[0] != "index.html" {
		t.Errorf("dropped edit should be flagged, got %v", result.SkippedFiles)
	}
}

func TestExecuteNoBoundFilesIsNoOp(t *testing.T) {
	completer := &fakeCompleter{}
	w := stylesWorker(completer)

	task := models.Task{
		Instruction: "tweak markup",
		Files: []models.FileContext{
			{FileID: "f1", FileName: "index.html", FileType: "html", Content: "<p>x</p>"},
		},
	}

	result, err := w.Execute(context.Background(), task, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Changes) != 0 || len(completer.prompts) != 0 {
		t.Error("worker with no bound files should not call the model")
	}
}

func TestExecuteRetriesOnceOnParseFailure(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		"Sorry, I cannot answer in JSON right now.",
		`{"analysis": "second try", "changes": []}`,
	}}
	w := stylesWorker(completer)

	result, err := w.Execute(context.Background(), stylesTask(), "")
	if err != nil {
		t.Fatalf("unexpected error after corrective re-ask: %v", err)
	}
	if result.Analysis != "second try" {
		t.Errorf("expected second response used, got %q", result.Analysis)
	}
	if len(completer.prompts) != 2 {
		t.Fatalf("expected 2 prompts, got %d", len(completer.prompts))
	}
	if !strings.Contains(completer.prompts[1], "not valid JSON") {
		t.Error("re-ask prompt should carry the corrective instruction")
	}
}

func TestExecuteParseErrorAfterRetry(t *testing.T) {
	completer := &fakeCompleter{responses: []string{"prose", "more prose"}}
	w := stylesWorker(completer)

	_, err := w.Execute(context.Background(), stylesTask(), "")
	if err == nil {
		t.Fatal("expected error after two unparseable responses")
	}
	if models.KindOf(err) != models.ErrParse {
		t.Errorf("expected PARSE_ERROR, got %v", err)
	}
}

func TestExecuteToolError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	w := stylesWorker(completer)

	_, err := w.Execute(context.Background(), stylesTask(), "")
	if models.KindOf(err) != models.ErrTool {
		t.Errorf("expected TOOL_ERROR, got %v", err)
	}
}

func TestExecuteTimeoutError(t *testing.T) {
	completer := &fakeCompleter{err: context.DeadlineExceeded}
	w := stylesWorker(completer)

	_, err := w.Execute(context.Background(), stylesTask(), "")
	if models.KindOf(err) != models.ErrTimeout {
		t.Errorf("expected TIMEOUT, got %v", err)
	}
}

func TestExecuteExtraInstructionInPrompt(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		`{"analysis": "ok", "changes": []}`,
	}}
	w := stylesWorker(completer)

	_, err := w.Execute(context.Background(), stylesTask(), "only touch the hero selector")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(completer.prompts[0], "only touch the hero selector") {
		t.Error("extra instruction missing from the prompt")
	}
}

func TestExecuteDropsIdentityChanges(t *testing.T) {
	// A change whose patches all miss reconciles back to the original
	// content; proposing it would be noise.
	completer := &fakeCompleter{responses: []string{
		`{"analysis": "ok", "changes": [
			{"file_name": "main.css", "reasoning": "r",
			 "patches": [{"search": "no such text", "replace": "x"}]}
		]}`,
	}}
	w := stylesWorker(completer)

	result, err := w.Execute(context.Background(), stylesTask(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Changes) != 0 {
		t.Errorf("identity change should be dropped, got %+v", result.Changes)
	}
}

func TestRegistryForFileType(t *testing.T) {
	reg := NewRegistry()

	cases := map[string]string{
		"html": "templates",
		"hbs":  "templates",
		"js":   "scripts",
		"ts":   "scripts",
		"css":  "styles",
		"scss": "styles",
		"json": "config",
		"yaml": "config",
	}
	for tag, want := range cases {
		cap, ok := reg.ForFileType(tag)
		if !ok || cap.Name() != want {
			t.Errorf("file type %s should map to %s", tag, want)
		}
	}

	if _, ok := reg.ForFileType("exe"); ok {
		t.Error("unknown file type should not resolve")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	names := NewRegistry().Names()
	want := []string{"config", "scripts", "styles", "templates"}
	if len(names) != len(want) {
		t.Fatalf("expected %d specialists, got %v", len(want), names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
			break
		}
	}
}
