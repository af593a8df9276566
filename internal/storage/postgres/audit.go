package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/models"
)

func (q *queries) AppendAudit(ctx context.Context, e *models.AuditLogEntry) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO audit_log (id, transaction_id, action, actor_user_id, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, e.ID, e.TransactionID, e.Action, e.ActorUserID, e.Details,
	).Scan(&e.CreatedAt)
	return mapErr(err)
}

func (q *queries) ListAuditByTransaction(ctx context.Context, txID uuid.UUID, limit int) ([]models.AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.db.Query(ctx, `
		SELECT id, transaction_id, action, actor_user_id, details, created_at
		FROM audit_log WHERE transaction_id = $1
		ORDER BY created_at DESC LIMIT $2
	`, txID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var entries []models.AuditLogEntry
	for rows.Next() {
		var e models.AuditLogEntry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Action, &e.ActorUserID, &e.Details, &e.CreatedAt); err != nil {
			return nil, mapErr(err)
		}
		entries = append(entries, e)
	}
	return entries, mapErr(rows.Err())
}
