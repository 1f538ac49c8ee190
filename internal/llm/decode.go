package llm

import (
	"encoding/json"
	"fmt"

	"github.com/sitewright/sitewright/pkg/models"
)

// Decode parses structured model output in two stages. Stage one assumes
// the whole response is strict JSON. Stage two extracts the first balanced
// JSON value from free text (models often wrap JSON in prose or code
// fences) and parses that. Callers never branch on provider identity: any
// worker may receive either response shape.
//
// Failure of both stages yields a PARSE_ERROR, which is recoverable by
// re-asking with a corrective instruction.
func Decode[T any](raw string) (T, error) {
	var out T

	if err := json.Unmarshal([]byte(raw), &out); err == nil {
		return out, nil
	}

	extracted, ok := ExtractJSON(raw)
	if !ok {
		return out, models.NewWorkerError(models.ErrParse, "",
			fmt.Errorf("no JSON value found in %d-char response", len(raw)))
	}
	if err := json.Unmarshal([]byte(extracted), &out); err != nil {
		return out, models.NewWorkerError(models.ErrParse, "",
			fmt.Errorf("extracted JSON did not match expected shape: %w", err))
	}
	return out, nil
}

// ExtractJSON returns the first balanced JSON object or array embedded in
// free text, honoring string literals and escapes during brace matching.
func ExtractJSON(raw string) (string, bool) {
	start := -1
	var open, close byte
	for i := 0; i < len(raw); i++ {
		if raw[i] == '{' || raw[i] == '[' {
			start = i
			open = raw[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}

	return "", false
}
