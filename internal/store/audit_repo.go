package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/anthropics/ticketflow-engine/internal/domain"
)

// AuditRepo handles persistence for AuditRecord entries.
type AuditRepo struct{}

// Record inserts an audit record.
func (r *AuditRepo) Record(ctx context.Context, db *sql.DB, rec domain.AuditRecord) error {
	const q = `INSERT INTO audit_records (id, ticket_id, category, actor, action, request_json, decision_json, severity, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, q,
		rec.ID,
		rec.TicketID,
		rec.Category,
		rec.Actor,
		rec.Action,
		rec.RequestJSON,
		rec.DecisionJSON,
		rec.Severity,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

// ListByTicket returns all audit records for a ticket, ordered by creation time.
func (r *AuditRepo) ListByTicket(ctx context.Context, db *sql.DB, ticketID string) ([]domain.AuditRecord, error) {
	const q = `SELECT id, ticket_id, category, actor, action, request_json, decision_json, severity, created_at
FROM audit_records
WHERE ticket_id = ?
ORDER BY created_at ASC, id ASC`

	rows, err := db.QueryContext(ctx, q, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var a domain.AuditRecord
		if err := rows.Scan(&a.ID, &a.TicketID, &a.Category, &a.Actor, &a.Action,
			&a.RequestJSON, &a.DecisionJSON, &a.Severity, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		records = append(records, a)
	}
	return records, rows.Err()
}
