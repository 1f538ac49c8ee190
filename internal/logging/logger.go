// Package logging provides the file-based session logger used across the
// coordinator pipeline.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SessionLogger writes timestamped, tag-prefixed lines to a session log
// file. Safe for concurrent use; a zero-value or nil logger is a no-op.
type SessionLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewSessionLogger creates a logger writing to the specified path. An
// empty path returns a no-op logger. Parent directories are created.
func NewSessionLogger(logPath string) (*SessionLogger, error) {
	if logPath == "" {
		return &SessionLogger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	logger := &SessionLogger{file: f}
	logger.Log("session", "=== Session started at %s ===", time.Now().Format(time.RFC3339))
	return logger, nil
}

// NewSessionLoggerForProject creates a logger under the project's
// .sitewright/logs directory, falling back to a no-op logger on error.
func NewSessionLoggerForProject(projectRoot string) *SessionLogger {
	logPath := filepath.Join(projectRoot, ".sitewright", "logs", "session.log")
	logger, err := NewSessionLogger(logPath)
	if err != nil {
		return &SessionLogger{}
	}
	return logger
}

// NopLogger returns a no-op logger for testing or when logging is disabled.
func NopLogger() *SessionLogger {
	return &SessionLogger{}
}

// Log writes a timestamped message under a component tag, e.g.
// "coordinator" or "memory".
func (l *SessionLogger) Log(tag, format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(l.file, "[%s] [%s] %s\n", timestamp, tag, msg)
	l.file.Sync()
}

// Close closes the underlying file.
func (l *SessionLogger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.file.Close()
	l.file = nil
	return err
}
