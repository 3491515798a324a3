package persistence

import (
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id               TEXT PRIMARY KEY,
	step             TEXT NOT NULL,
	snapshot         TEXT NOT NULL,
	created_at       TIMESTAMP NOT NULL,
	last_activity_at TIMESTAMP NOT NULL,
	completed_at     TIMESTAMP,
	updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_projects_step ON projects(step);

CREATE TABLE IF NOT EXISTS signal_journal (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id  TEXT NOT NULL,
	signal_id   TEXT NOT NULL,
	signal_type TEXT NOT NULL,
	payload     TEXT,
	received_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_project ON signal_journal(project_id, seq);
`

// initializeSchema creates all tables and indexes if they don't exist.
// Statements are idempotent, so re-running on an existing database is
// safe.
func initializeSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
