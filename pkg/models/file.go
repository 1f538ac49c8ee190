package models

import (
	"fmt"
	"strings"
)

// FileContext carries one project file into a task invocation.
// It is request-scoped: built per invocation and discarded afterwards.
type FileContext struct {
	// FileID is the unique identifier for this file.
	FileID string `json:"file_id"`
	// FileName is the display name, including extension (e.g. "hero-section.hbs").
	FileName string `json:"file_name"`
	// FileType is the lowercase extension without the dot (e.g. "hbs", "css").
	FileType string `json:"file_type"`
	// Content is the file body. It may be a stub placeholder (see IsStub).
	Content string `json:"content"`
	// Path is the optional project-relative path.
	Path string `json:"path,omitempty"`
}

// IsStub reports whether the content is a bracket-delimited placeholder
// rather than loaded file content. Stub files are named but not loaded;
// the budgeter passes them through at minimal cost.
func (f FileContext) IsStub() bool {
	trimmed := strings.TrimSpace(f.Content)
	return strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]")
}

// StubContent builds the length-only stub used when a file is squeezed
// out of the context budget entirely.
func StubContent(originalLen int) string {
	return fmt.Sprintf("[%d chars — over budget]", originalLen)
}

// Extension returns the lowercase extension of a file name without the dot,
// or "" if the name has none.
func Extension(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 || idx == len(fileName)-1 {
		return ""
	}
	return strings.ToLower(fileName[idx+1:])
}
