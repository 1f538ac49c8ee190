package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Preference is a durable user preference observed across tasks, e.g.
// "prefers rem units over px" in category "styling".
type Preference struct {
	ID            string
	ProjectID     string
	Category      string
	Preference    string
	Confidence    float64
	ObservedCount int
	UpdatedAt     time.Time
}

const (
	// initialPreferenceConfidence is the confidence on first observation.
	initialPreferenceConfidence = 0.5
	// reinforcementStep moves confidence a fraction of the remaining gap
	// toward 1.0 on each repeat observation.
	reinforcementStep = 0.2
)

// ObservePreference records a preference observation. A new preference
// starts at the initial confidence; a repeat observation reinforces it,
// asymptotically approaching 1.0.
func (s *Store) ObservePreference(projectID, category, preference string) (*Preference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	var p Preference
	row := s.db.QueryRow(`
		SELECT id, confidence, observed_count FROM preferences
		WHERE project_id = ? AND category = ? AND preference = ?`,
		projectID, category, preference)
	err := row.Scan(&p.ID, &p.Confidence, &p.ObservedCount)

	switch {
	case err == sql.ErrNoRows:
		p = Preference{
			ID:            uuid.New().String(),
			ProjectID:     projectID,
			Category:      category,
			Preference:    preference,
			Confidence:    initialPreferenceConfidence,
			ObservedCount: 1,
			UpdatedAt:     now,
		}
		_, err = s.db.Exec(`
			INSERT INTO preferences (id, project_id, category, preference, confidence, observed_count, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ProjectID, p.Category, p.Preference, p.Confidence, p.ObservedCount, formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("insert preference: %w", err)
		}
		return &p, nil

	case err != nil:
		return nil, fmt.Errorf("lookup preference: %w", err)
	}

	p.ProjectID = projectID
	p.Category = category
	p.Preference = preference
	p.Confidence += (1 - p.Confidence) * reinforcementStep
	p.ObservedCount++
	p.UpdatedAt = now

	_, err = s.db.Exec(`
		UPDATE preferences SET confidence = ?, observed_count = ?, updated_at = ?
		WHERE id = ?`,
		p.Confidence, p.ObservedCount, formatTime(now), p.ID)
	if err != nil {
		return nil, fmt.Errorf("reinforce preference: %w", err)
	}
	return &p, nil
}

// ListPreferences returns a project's preferences, strongest first.
func (s *Store) ListPreferences(projectID string) ([]*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, project_id, category, preference, confidence, observed_count, updated_at
		FROM preferences WHERE project_id = ?
		ORDER BY confidence DESC, observed_count DESC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*Preference
	for rows.Next() {
		var (
			p         Preference
			updatedAt string
		)
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Category, &p.Preference,
			&p.Confidence, &p.ObservedCount, &updatedAt); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, fmt.Errorf("parse updated_at: %w", err)
		}
		prefs = append(prefs, &p)
	}
	return prefs, rows.Err()
}
