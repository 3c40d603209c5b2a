package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// RunRepo handles persistence for RunState records. The run context travels
// with the row as JSON so a suspended run can be resumed from storage alone.
type RunRepo struct{}

// CreateTx inserts a new run within an existing transaction.
func (r *RunRepo) CreateTx(ctx context.Context, tx *sql.Tx, state domain.RunState) error {
	ctxJSON, err := json.Marshal(state.Context)
	if err != nil {
		return fmt.Errorf("marshal run context: %w", err)
	}

	const q = `INSERT INTO runs (ticket_id, current_stage, status, abort_reason, cancel_requested, state_version, last_event_seq, context_json, updated_at_unix)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		state.TicketID,
		string(state.CurrentStage),
		string(state.Status),
		state.AbortReason,
		boolToInt(state.CancelRequested),
		state.StateVersion,
		state.LastEventSeq,
		string(ctxJSON),
		state.UpdatedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateStateTx updates a run within a transaction using optimistic locking.
// The update only succeeds if the current state_version matches the expected version.
func (r *RunRepo) UpdateStateTx(ctx context.Context, tx *sql.Tx, state domain.RunState) error {
	ctxJSON, err := json.Marshal(state.Context)
	if err != nil {
		return fmt.Errorf("marshal run context: %w", err)
	}

	const q = `UPDATE runs SET
		current_stage = ?,
		status = ?,
		abort_reason = ?,
		cancel_requested = ?,
		state_version = state_version + 1,
		last_event_seq = ?,
		context_json = ?,
		updated_at_unix = ?
	WHERE ticket_id = ? AND state_version = ?`

	res, err := tx.ExecContext(ctx, q,
		string(state.CurrentStage),
		string(state.Status),
		state.AbortReason,
		boolToInt(state.CancelRequested),
		state.LastEventSeq,
		string(ctxJSON),
		state.UpdatedAtUnix,
		state.TicketID,
		state.StateVersion,
	)
	if err != nil {
		return fmt.Errorf("update run state: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrOptimisticLock
	}
	return nil
}

// RequestCancel marks a run for cancellation. The flag is honored by the
// orchestrator at the next stage boundary.
func (r *RunRepo) RequestCancel(ctx context.Context, db *sql.DB, ticketID string) error {
	const q = `UPDATE runs SET cancel_requested = 1 WHERE ticket_id = ? AND status IN ('running', 'suspended')`
	res, err := db.ExecContext(ctx, q, ticketID)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

// GetByID retrieves a run by ticket ID.
func (r *RunRepo) GetByID(ctx context.Context, db *sql.DB, ticketID string) (*domain.RunState, error) {
	const q = `SELECT ticket_id, current_stage, status, abort_reason, cancel_requested, state_version, last_event_seq, context_json, updated_at_unix
FROM runs WHERE ticket_id = ?`

	row := db.QueryRowContext(ctx, q, ticketID)

	var s domain.RunState
	var stage, status, ctxJSON string
	var cancel int
	err := row.Scan(&s.TicketID, &stage, &status, &s.AbortReason, &cancel,
		&s.StateVersion, &s.LastEventSeq, &ctxJSON, &s.UpdatedAtUnix)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	if err := json.Unmarshal([]byte(ctxJSON), &s.Context); err != nil {
		return nil, fmt.Errorf("unmarshal run context: %w", err)
	}
	s.CurrentStage = domain.Stage(stage)
	s.Status = domain.RunStatus(status)
	s.CancelRequested = cancel != 0
	return &s, nil
}

// ListByStatus returns the ticket IDs of runs in the given status, ordered
// by last update.
func (r *RunRepo) ListByStatus(ctx context.Context, db *sql.DB, status domain.RunStatus) ([]string, error) {
	const q = `SELECT ticket_id FROM runs WHERE status = ? ORDER BY updated_at_unix ASC`

	rows, err := db.QueryContext(ctx, q, string(status))
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
