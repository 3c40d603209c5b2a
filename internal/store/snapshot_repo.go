package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// SnapshotRepo handles persistence for ContextSnapshot records.
type SnapshotRepo struct{}

// Checksum returns the hex SHA-256 of a snapshot body.
func Checksum(snapshotJSON string) string {
	sum := sha256.Sum256([]byte(snapshotJSON))
	return hex.EncodeToString(sum[:])
}

// SaveTx inserts a context snapshot within an existing transaction,
// computing its checksum.
func (r *SnapshotRepo) SaveTx(ctx context.Context, tx *sql.Tx, snap domain.ContextSnapshot) error {
	if snap.Checksum == "" {
		snap.Checksum = Checksum(snap.SnapshotJSON)
	}

	const q = `INSERT INTO context_snapshots (ticket_id, stage, snapshot_json, checksum, created_at)
VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		snap.TicketID,
		string(snap.Stage),
		snap.SnapshotJSON,
		snap.Checksum,
		snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetLatest returns the most recent snapshot for a ticket, verifying its
// checksum. Returns nil if no snapshot exists.
func (r *SnapshotRepo) GetLatest(ctx context.Context, db *sql.DB, ticketID string) (*domain.ContextSnapshot, error) {
	const q = `SELECT id, ticket_id, stage, snapshot_json, checksum, created_at
FROM context_snapshots
WHERE ticket_id = ?
ORDER BY id DESC
LIMIT 1`

	row := db.QueryRowContext(ctx, q, ticketID)

	var s domain.ContextSnapshot
	var stage string
	err := row.Scan(&s.ID, &s.TicketID, &stage, &s.SnapshotJSON, &s.Checksum, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	s.Stage = domain.Stage(stage)

	if s.Checksum != "" && s.Checksum != Checksum(s.SnapshotJSON) {
		return nil, domain.ErrSnapshotCorrupt
	}
	return &s, nil
}

// ListByTicket returns all snapshots for a ticket in insertion order.
func (r *SnapshotRepo) ListByTicket(ctx context.Context, db *sql.DB, ticketID string) ([]domain.ContextSnapshot, error) {
	const q = `SELECT id, ticket_id, stage, snapshot_json, checksum, created_at
FROM context_snapshots
WHERE ticket_id = ?
ORDER BY id ASC`

	rows, err := db.QueryContext(ctx, q, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []domain.ContextSnapshot
	for rows.Next() {
		var s domain.ContextSnapshot
		var stage string
		if err := rows.Scan(&s.ID, &s.TicketID, &stage, &s.SnapshotJSON, &s.Checksum, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Stage = domain.Stage(stage)
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}
