// Package memory provides SQLite-backed storage and retrieval of task
// outcomes, so past work can inform future routing and prompts. Writes
// are synchronous; embedding generation happens in a background backfill
// queue and is always best-effort.
package memory

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sitewright/sitewright/pkg/models"
)

// Store provides SQLite-backed storage for task outcomes and user
// preferences.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// DefaultDBPath returns the path to the per-user outcome database.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "sitewright", "outcomes.db")
}

// NewStore opens (creating if needed) the outcome database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL lets the backfill worker read while the coordinator writes.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: conn, dbPath: dbPath}
	if err := store.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM memory_schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return err
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Outcomes},
		{2, migrationV2DeadLetters},
		{3, migrationV3Preferences},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.Exec("INSERT INTO memory_schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

const migrationV1Outcomes = `
CREATE TABLE IF NOT EXISTS outcomes (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	task_summary TEXT NOT NULL,
	strategy TEXT NOT NULL,
	outcome TEXT NOT NULL,
	files_changed TEXT NOT NULL DEFAULT '[]',
	tool_sequence TEXT NOT NULL DEFAULT '[]',
	iteration_count INTEGER NOT NULL DEFAULT 0,
	token_usage INTEGER NOT NULL DEFAULT 0,
	embedding BLOB,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_outcomes_project ON outcomes(project_id);
CREATE INDEX IF NOT EXISTS idx_outcomes_created ON outcomes(created_at);
`

const migrationV2DeadLetters = `
CREATE TABLE IF NOT EXISTS embedding_dead_letters (
	outcome_id TEXT PRIMARY KEY,
	attempts INTEGER NOT NULL,
	last_error TEXT NOT NULL,
	failed_at DATETIME NOT NULL
);
`

const migrationV3Preferences = `
CREATE TABLE IF NOT EXISTS preferences (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	category TEXT NOT NULL,
	preference TEXT NOT NULL,
	confidence REAL NOT NULL,
	observed_count INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL,
	UNIQUE(project_id, category, preference)
);
`

// SaveOutcome stores an outcome synchronously. The summary is capped and
// an ID and timestamp are assigned if missing. The embedding column stays
// null until the backfill worker fills it.
func (s *Store) SaveOutcome(outcome *models.TaskOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if outcome.ID == "" {
		outcome.ID = uuid.New().String()
	}
	if outcome.CreatedAt.IsZero() {
		outcome.CreatedAt = time.Now()
	}
	outcome.TaskSummary = models.CapSummary(outcome.TaskSummary)

	files, err := json.Marshal(outcome.FilesChanged)
	if err != nil {
		return fmt.Errorf("marshal files changed: %w", err)
	}
	tools, err := json.Marshal(outcome.ToolSequence)
	if err != nil {
		return fmt.Errorf("marshal tool sequence: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO outcomes (id, project_id, task_summary, strategy, outcome,
			files_changed, tool_sequence, iteration_count, token_usage, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.ID, outcome.ProjectID, outcome.TaskSummary, outcome.Strategy,
		string(outcome.Outcome), string(files), string(tools),
		outcome.IterationCount, outcome.TokenUsage,
		encodeEmbedding(outcome.Embedding), formatTime(outcome.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// GetOutcome retrieves an outcome by ID. Returns sql.ErrNoRows if absent.
func (s *Store) GetOutcome(id string) (*models.TaskOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(selectOutcomeColumns+" FROM outcomes WHERE id = ?", id)
	return scanOutcome(row)
}

// ListOutcomes returns outcomes for a project, newest first.
func (s *Store) ListOutcomes(projectID string, limit int) ([]*models.TaskOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(selectOutcomeColumns+`
		FROM outcomes WHERE project_id = ?
		ORDER BY created_at DESC LIMIT ?`, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list outcomes: %w", err)
	}
	defer rows.Close()
	return scanOutcomeRows(rows)
}

// ListEmbedded returns a project's outcomes that already carry an
// embedding vector.
func (s *Store) ListEmbedded(projectID string) ([]*models.TaskOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(selectOutcomeColumns+`
		FROM outcomes WHERE project_id = ? AND embedding IS NOT NULL`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list embedded outcomes: %w", err)
	}
	defer rows.Close()
	return scanOutcomeRows(rows)
}

// UpdateEmbedding fills the embedding column for an existing outcome.
func (s *Store) UpdateEmbedding(id string, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("UPDATE outcomes SET embedding = ? WHERE id = ?",
		encodeEmbedding(embedding), id)
	if err != nil {
		return fmt.Errorf("update embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("outcome %s not found", id)
	}
	return nil
}

// SearchKeyword scores a project's successful outcomes by keyword overlap
// with the query. Score is matched keywords over total keywords; results
// below minScore are dropped.
func (s *Store) SearchKeyword(projectID, query string, minScore float64) ([]*models.TaskOutcome, error) {
	keywords := ExtractKeywords(query)
	if len(keywords) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	rows, err := s.db.Query(selectOutcomeColumns+`
		FROM outcomes WHERE project_id = ? AND outcome = ?`,
		projectID, string(models.OutcomeSuccess))
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("search outcomes: %w", err)
	}
	outcomes, err := scanOutcomeRows(rows)
	rows.Close()
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	var matched []*models.TaskOutcome
	for _, o := range outcomes {
		score := keywordScore(o.TaskSummary, keywords)
		if score >= minScore && score > 0 {
			o.Similarity = score
			matched = append(matched, o)
		}
	}
	return matched, nil
}

// RecordDeadLetter records an outcome whose embedding backfill gave up.
func (s *Store) RecordDeadLetter(outcomeID string, attempts int, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO embedding_dead_letters (outcome_id, attempts, last_error, failed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(outcome_id) DO UPDATE SET
			attempts = excluded.attempts,
			last_error = excluded.last_error,
			failed_at = excluded.failed_at`,
		outcomeID, attempts, lastErr, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record dead letter: %w", err)
	}
	return nil
}

// DeadLetterIDs returns outcome IDs parked in the dead-letter table.
func (s *Store) DeadLetterIDs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT outcome_id FROM embedding_dead_letters ORDER BY failed_at")
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ClearDeadLetter removes an outcome from the dead-letter table, typically
// before re-enqueueing it.
func (s *Store) ClearDeadLetter(outcomeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM embedding_dead_letters WHERE outcome_id = ?", outcomeID)
	return err
}

const selectOutcomeColumns = `SELECT id, project_id, task_summary, strategy, outcome,
	files_changed, tool_sequence, iteration_count, token_usage, embedding, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (*models.TaskOutcome, error) {
	var (
		o         models.TaskOutcome
		outcome   string
		files     string
		tools     string
		embedding []byte
		createdAt string
	)
	err := row.Scan(&o.ID, &o.ProjectID, &o.TaskSummary, &o.Strategy, &outcome,
		&files, &tools, &o.IterationCount, &o.TokenUsage, &embedding, &createdAt)
	if err != nil {
		return nil, err
	}

	o.Outcome = models.OutcomeStatus(outcome)
	if err := json.Unmarshal([]byte(files), &o.FilesChanged); err != nil {
		return nil, fmt.Errorf("unmarshal files changed: %w", err)
	}
	if err := json.Unmarshal([]byte(tools), &o.ToolSequence); err != nil {
		return nil, fmt.Errorf("unmarshal tool sequence: %w", err)
	}
	o.Embedding = decodeEmbedding(embedding)
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	return &o, nil
}

func scanOutcomeRows(rows *sql.Rows) ([]*models.TaskOutcome, error) {
	var outcomes []*models.TaskOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// encodeEmbedding packs a vector as little-endian float32 bytes. A nil or
// empty vector stores as NULL.
func encodeEmbedding(vec []float32) []byte {
	if len(vec) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
