package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures inside the orchestration pipeline.
type ErrorKind string

const (
	// ErrParse indicates malformed structured output from a model.
	// Recoverable via retry with a corrective instruction.
	ErrParse ErrorKind = "PARSE_ERROR"
	// ErrTool indicates a specialist-side file operation failure.
	ErrTool ErrorKind = "TOOL_ERROR"
	// ErrTimeout indicates a specialist exceeded its deadline. It drives
	// the specialist.stalled trigger.
	ErrTimeout ErrorKind = "TIMEOUT"
	// ErrEmbedding indicates an embedding call failed. Never fatal to the
	// calling operation; logged only.
	ErrEmbedding ErrorKind = "EMBEDDING_FAILURE"
	// ErrPatchMismatch indicates a patch's search text was not found.
	// The patch is skipped and the owning change marked low-confidence.
	ErrPatchMismatch ErrorKind = "PATCH_MISMATCH"
)

// WorkerError is a classified error raised inside a specialist or the
// coordinator. Raw errors never cross the specialist boundary: they resolve
// to a lifecycle terminal state first and then flow through the reaction
// engine as decisions.
type WorkerError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// Agent is the specialist tag the error originated from, if any.
	Agent string
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *WorkerError) Error() string {
	if e.Agent != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Agent, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying cause.
func (e *WorkerError) Unwrap() error {
	return e.Err
}

// NewWorkerError wraps err with a kind and originating agent tag.
func NewWorkerError(kind ErrorKind, agent string, err error) *WorkerError {
	return &WorkerError{Kind: kind, Agent: agent, Err: err}
}

// KindOf returns the ErrorKind of err if it wraps a WorkerError, or "" otherwise.
func KindOf(err error) ErrorKind {
	var we *WorkerError
	if errors.As(err, &we) {
		return we.Kind
	}
	return ""
}
