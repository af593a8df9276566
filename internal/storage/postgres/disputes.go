package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
)

const disputeColumns = `
	id, transaction_id, opened_by_id, status, description,
	arbitrator_id, evidence,
	ruling, resolution_notes, resolved_by_id, resolved_at, created_at
`

func (q *queries) CreateDispute(ctx context.Context, d *models.DisputeCase) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO dispute_cases (id, transaction_id, opened_by_id, status, description, evidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, d.ID, d.TransactionID, d.OpenedByID, d.Status, d.Description, d.Evidence,
	).Scan(&d.CreatedAt)
	return mapErr(err)
}

func (q *queries) GetDispute(ctx context.Context, id uuid.UUID) (*models.DisputeCase, error) {
	d, err := scanDispute(q.db.QueryRow(ctx, `SELECT `+disputeColumns+` FROM dispute_cases WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return d, nil
}

func (q *queries) GetDisputeByTransaction(ctx context.Context, txID uuid.UUID) (*models.DisputeCase, error) {
	d, err := scanDispute(q.db.QueryRow(ctx, `SELECT `+disputeColumns+` FROM dispute_cases WHERE transaction_id = $1`, txID))
	if err != nil {
		return nil, mapErr(err)
	}
	return d, nil
}

func (q *queries) UpdateDispute(ctx context.Context, d *models.DisputeCase) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE dispute_cases SET
			status = $1, arbitrator_id = $2, evidence = $3,
			ruling = $4, resolution_notes = $5, resolved_by_id = $6, resolved_at = $7
		WHERE id = $8
	`, d.Status, d.ArbitratorID, d.Evidence,
		d.Ruling, d.ResolutionNotes, d.ResolvedByID, d.ResolvedAt, d.ID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanDispute(row pgx.Row) (*models.DisputeCase, error) {
	var d models.DisputeCase
	var ruling *string
	err := row.Scan(&d.ID, &d.TransactionID, &d.OpenedByID, &d.Status, &d.Description,
		&d.ArbitratorID, &d.Evidence,
		&ruling, &d.ResolutionNotes, &d.ResolvedByID, &d.ResolvedAt, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ruling != nil {
		r := models.Ruling(*ruling)
		d.Ruling = &r
	}
	return &d, nil
}
