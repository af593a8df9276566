package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
)

func (q *queries) CreateWebhookRecord(ctx context.Context, r *models.PaymentWebhookRecord) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO payment_webhook_records (id, transaction_id, event_type, charge_id, payload, processed)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING created_at
	`, r.ID, r.TransactionID, r.EventType, r.ChargeID, string(r.Payload), r.Processed,
	).Scan(&r.CreatedAt)
	return mapErr(err)
}

func (q *queries) MarkWebhookProcessed(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `UPDATE payment_webhook_records SET processed = true WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (q *queries) CountWebhookEvents(ctx context.Context, chargeID, eventType string) (int, error) {
	var n int
	err := q.db.QueryRow(ctx, `
		SELECT count(*) FROM payment_webhook_records WHERE charge_id = $1 AND event_type = $2
	`, chargeID, eventType).Scan(&n)
	return n, mapErr(err)
}
