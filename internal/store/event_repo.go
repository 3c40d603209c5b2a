package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// EventRepo handles persistence for WorkflowEvent records.
type EventRepo struct{}

// AppendTx inserts a workflow event within an existing transaction.
func (r *EventRepo) AppendTx(ctx context.Context, tx *sql.Tx, event domain.WorkflowEvent) error {
	const q = `INSERT INTO workflow_events (ticket_id, seq_no, stage, event_type, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		event.TicketID,
		event.SeqNo,
		string(event.Stage),
		event.EventType,
		event.PayloadJSON,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListByTicket returns events for a ticket with sequence numbers greater than
// sinceSeq, ordered by sequence number ascending.
func (r *EventRepo) ListByTicket(ctx context.Context, db *sql.DB, ticketID string, sinceSeq int64) ([]domain.WorkflowEvent, error) {
	const q = `SELECT id, ticket_id, seq_no, stage, event_type, payload_json, created_at
FROM workflow_events
WHERE ticket_id = ? AND seq_no > ?
ORDER BY seq_no ASC`

	rows, err := db.QueryContext(ctx, q, ticketID, sinceSeq)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.WorkflowEvent
	for rows.Next() {
		var e domain.WorkflowEvent
		var stage string
		if err := rows.Scan(&e.ID, &e.TicketID, &e.SeqNo, &stage, &e.EventType, &e.PayloadJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Stage = domain.Stage(stage)
		events = append(events, e)
	}
	return events, rows.Err()
}
