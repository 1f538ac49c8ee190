package llm

import (
	"testing"

	"github.com/sitewright/sitewright/pkg/models"
)

type changeSet struct {
	Analysis string `json:"analysis"`
	Changes  []struct {
		FileName string `json:"file_name"`
		Content  string `json:"content"`
	} `json:"changes"`
}

func TestDecodeStrictJSON(t *testing.T) {
	raw := `{"analysis": "restyle the hero", "changes": [{"file_name": "hero.css", "content": "a"}]}`

	out, err := Decode[changeSet](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Analysis != "restyle the hero" || len(out.Changes) != 1 {
		t.Errorf("unexpected decode result: %+v", out)
	}
}

func TestDecodeJSONInsideCodeFence(t *testing.T) {
	raw := "Here is my plan:\n```json\n{\"analysis\": \"ok\", \"changes\": []}\n```\nLet me know."

	out, err := Decode[changeSet](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Analysis != "ok" {
		t.Errorf("expected analysis decoded from fenced JSON, got %q", out.Analysis)
	}
}

func TestDecodeJSONWrappedInProse(t *testing.T) {
	raw := `I updated the stylesheet. {"analysis": "done", "changes": []} Anything else?`

	out, err := Decode[changeSet](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Analysis != "done" {
		t.Errorf("expected prose-wrapped JSON decoded, got %+v", out)
	}
}

func TestDecodeBracesInsideStrings(t *testing.T) {
	raw := `result: {"analysis": "set content to \"{{title}}\" and keep } literal", "changes": []}`

	out, err := Decode[changeSet](raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Analysis == "" {
		t.Error("expected analysis with embedded braces decoded")
	}
}

func TestDecodeFailureIsParseError(t *testing.T) {
	_, err := Decode[changeSet]("I could not produce a structured answer.")
	if err == nil {
		t.Fatal("expected error for non-JSON response")
	}
	if models.KindOf(err) != models.ErrParse {
		t.Errorf("expected PARSE_ERROR, got %v", err)
	}
}

func TestDecodeMismatchedShapeIsParseError(t *testing.T) {
	_, err := Decode[changeSet](`text {"analysis": 42} text`)
	if err == nil {
		t.Fatal("expected error for mismatched shape")
	}
	if models.KindOf(err) != models.ErrParse {
		t.Errorf("expected PARSE_ERROR, got %v", err)
	}
}

func TestExtractJSONArray(t *testing.T) {
	raw := `the list is [1, 2, 3] as requested`

	got, ok := ExtractJSON(raw)
	if !ok || got != "[1, 2, 3]" {
		t.Errorf("expected array extracted, got %q (%v)", got, ok)
	}
}

func TestExtractJSONUnbalanced(t *testing.T) {
	if _, ok := ExtractJSON(`{"analysis": "never closed`); ok {
		t.Error("expected extraction to fail on unbalanced JSON")
	}
}

func TestExtractJSONNoneFound(t *testing.T) {
	if _, ok := ExtractJSON("plain prose only"); ok {
		t.Error("expected extraction to fail with no JSON present")
	}
}
