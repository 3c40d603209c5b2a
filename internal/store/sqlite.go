// Package store provides SQLite-backed persistence for workflow runs.
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// schemaV1 defines the initial database schema.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
	ticket_id        TEXT PRIMARY KEY,
	current_stage    TEXT NOT NULL DEFAULT 'INTAKE',
	status           TEXT NOT NULL DEFAULT 'running',
	abort_reason     TEXT NOT NULL DEFAULT '',
	cancel_requested INTEGER NOT NULL DEFAULT 0,
	state_version    INTEGER NOT NULL DEFAULT 1,
	last_event_seq   INTEGER NOT NULL DEFAULT 0,
	context_json     TEXT NOT NULL DEFAULT '{}',
	updated_at_unix  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS workflow_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id    TEXT NOT NULL,
	seq_no       INTEGER NOT NULL,
	stage        TEXT NOT NULL,
	event_type   TEXT NOT NULL,
	payload_json TEXT NOT NULL DEFAULT '{}',
	created_at   INTEGER NOT NULL,
	UNIQUE(ticket_id, seq_no)
);
CREATE INDEX IF NOT EXISTS idx_events_ticket_seq ON workflow_events(ticket_id, seq_no);

CREATE TABLE IF NOT EXISTS context_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ticket_id     TEXT NOT NULL,
	stage         TEXT NOT NULL,
	snapshot_json TEXT NOT NULL DEFAULT '{}',
	checksum      TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_ticket_stage ON context_snapshots(ticket_id, stage);

CREATE TABLE IF NOT EXISTS audit_records (
	id            TEXT PRIMARY KEY,
	ticket_id     TEXT NOT NULL,
	category      TEXT NOT NULL,
	actor         TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	request_json  TEXT NOT NULL DEFAULT '{}',
	decision_json TEXT NOT NULL DEFAULT '{}',
	severity      TEXT NOT NULL DEFAULT 'info',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_ticket ON audit_records(ticket_id);
`

// NewDB opens a SQLite database at the given path with recommended pragmas
// and runs the V1 schema migration.
func NewDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Limit connections to 1 for SQLite (WAL allows concurrent reads but single writer).
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	_, err := db.ExecContext(context.Background(), schemaV1)
	return err
}
