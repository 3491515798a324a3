package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a project row does not exist.
var ErrNotFound = errors.New("project not found")

// DatabaseOperations wraps a connection with the engine's queries.
type DatabaseOperations struct {
	db *sql.DB
}

// NewDatabaseOperations creates operations against the given connection.
func NewDatabaseOperations(db *sql.DB) *DatabaseOperations {
	return &DatabaseOperations{db: db}
}

// UpsertProject writes a project row, replacing any previous snapshot.
func (ops *DatabaseOperations) UpsertProject(rec *ProjectRecord) error {
	_, err := ops.db.Exec(`
		INSERT INTO projects (id, step, snapshot, created_at, last_activity_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			step = excluded.step,
			snapshot = excluded.snapshot,
			last_activity_at = excluded.last_activity_at,
			completed_at = excluded.completed_at,
			updated_at = CURRENT_TIMESTAMP`,
		rec.ID, rec.Step, rec.Snapshot, rec.CreatedAt, rec.LastActivityAt, rec.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert project %s: %w", rec.ID, err)
	}
	return nil
}

// GetProject loads one project row.
func (ops *DatabaseOperations) GetProject(id string) (*ProjectRecord, error) {
	rec := &ProjectRecord{}
	var completedAt sql.NullTime

	err := ops.db.QueryRow(`
		SELECT id, step, snapshot, created_at, last_activity_at, completed_at
		FROM projects WHERE id = ?`, id).
		Scan(&rec.ID, &rec.Step, &rec.Snapshot, &rec.CreatedAt, &rec.LastActivityAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project %s: %w", id, err)
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}
	return rec, nil
}

// ListActiveProjects returns every project whose step is not terminal.
// Used at boot to resume drivers after a restart.
func (ops *DatabaseOperations) ListActiveProjects() ([]*ProjectRecord, error) {
	rows, err := ops.db.Query(`
		SELECT id, step, snapshot, created_at, last_activity_at, completed_at
		FROM projects
		WHERE step NOT IN ('ABANDONED', 'CANCELLED')
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*ProjectRecord
	for rows.Next() {
		rec := &ProjectRecord{}
		var completedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Step, &rec.Snapshot, &rec.CreatedAt, &rec.LastActivityAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		if completedAt.Valid {
			rec.CompletedAt = &completedAt.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteProject removes a project row and its journal entries. Called
// after purge so terminal projects leave no local residue.
func (ops *DatabaseOperations) DeleteProject(id string) error {
	if _, err := ops.db.Exec(`DELETE FROM signal_journal WHERE project_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete journal for %s: %w", id, err)
	}
	if _, err := ops.db.Exec(`DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

// AppendSignal records one accepted signal in arrival order.
func (ops *DatabaseOperations) AppendSignal(projectID, signalID, signalType, payload string, receivedAt time.Time) error {
	_, err := ops.db.Exec(`
		INSERT INTO signal_journal (project_id, signal_id, signal_type, payload, received_at)
		VALUES (?, ?, ?, ?, ?)`,
		projectID, signalID, signalType, payload, receivedAt)
	if err != nil {
		return fmt.Errorf("failed to journal signal %s: %w", signalID, err)
	}
	return nil
}

// GetJournal returns a project's signals in arrival order.
func (ops *DatabaseOperations) GetJournal(projectID string) ([]*JournalEntry, error) {
	rows, err := ops.db.Query(`
		SELECT seq, project_id, signal_id, signal_type, payload, received_at
		FROM signal_journal WHERE project_id = ? ORDER BY seq`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal for %s: %w", projectID, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*JournalEntry
	for rows.Next() {
		entry := &JournalEntry{}
		var payload sql.NullString
		if err := rows.Scan(&entry.Seq, &entry.ProjectID, &entry.SignalID, &entry.SignalType, &payload, &entry.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		entry.Payload = payload.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
