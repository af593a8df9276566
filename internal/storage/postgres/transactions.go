package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
)

const txColumns = `
	id, buyer_id, seller_id, listing_id,
	amount::text, currency, usd_equivalent::text,
	status,
	payment_charge_id, payment_charge_url, payment_address, payment_tx_hash,
	created_at, funded_at, transfer_deadline, completed_at, notes
`

func (q *queries) CreateTransaction(ctx context.Context, t *models.EscrowTransaction) error {
	var usd *string
	if t.USDEquivalent != nil {
		s := t.USDEquivalent.String()
		usd = &s
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO escrow_transactions
			(id, buyer_id, seller_id, listing_id, amount, currency, usd_equivalent, status, transfer_deadline, notes)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric, $8, $9, $10)
		RETURNING created_at
	`, t.ID, t.BuyerID, t.SellerID, t.ListingID, t.Amount.String(), t.Currency, usd, t.Status, t.TransferDeadline, t.Notes,
	).Scan(&t.CreatedAt)
	return mapErr(err)
}

func (q *queries) GetTransaction(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	return q.getTransaction(ctx, id, false)
}

func (q *queries) GetTransactionForUpdate(ctx context.Context, id uuid.UUID) (*models.EscrowTransaction, error) {
	return q.getTransaction(ctx, id, true)
}

func (q *queries) getTransaction(ctx context.Context, id uuid.UUID, forUpdate bool) (*models.EscrowTransaction, error) {
	query := `SELECT ` + txColumns + ` FROM escrow_transactions WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTransaction(q.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return t, nil
}

func (q *queries) UpdateTransaction(ctx context.Context, t *models.EscrowTransaction) error {
	var usd *string
	if t.USDEquivalent != nil {
		s := t.USDEquivalent.String()
		usd = &s
	}
	tag, err := q.db.Exec(ctx, `
		UPDATE escrow_transactions SET
			status = $1,
			payment_charge_id = $2, payment_charge_url = $3,
			payment_address = $4, payment_tx_hash = $5,
			funded_at = $6, completed_at = $7, notes = $8,
			usd_equivalent = $9::numeric,
			updated_at = now()
		WHERE id = $10
	`, t.Status, t.PaymentChargeID, t.PaymentChargeURL,
		t.PaymentAddress, t.PaymentTxHash,
		t.FundedAt, t.CompletedAt, t.Notes, usd, t.ID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (q *queries) ListTransactions(ctx context.Context, f storage.TxFilter) ([]models.EscrowTransaction, error) {
	query := `SELECT ` + txColumns + ` FROM escrow_transactions`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.UserID != nil {
		where = append(where, fmt.Sprintf("(buyer_id = $%d OR seller_id = $%d)", argIdx, argIdx))
		args = append(args, *f.UserID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if len(f.StatusIn) > 0 {
		where = append(where, fmt.Sprintf("status = ANY($%d)", argIdx))
		args = append(args, f.StatusIn)
		argIdx++
	}
	if f.DeadlineBefore != nil {
		where = append(where, fmt.Sprintf("transfer_deadline < $%d", argIdx))
		args = append(args, *f.DeadlineBefore)
		argIdx++
	}
	if f.CreatedBefore != nil {
		where = append(where, fmt.Sprintf("created_at < $%d", argIdx))
		args = append(args, *f.CreatedBefore)
		argIdx++
	}

	if len(where) > 0 {
		query += " WHERE "
		for i, w := range where {
			if i > 0 {
				query += " AND "
			}
			query += w
		}
	}

	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var txs []models.EscrowTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		txs = append(txs, *t)
	}
	return txs, mapErr(rows.Err())
}

func scanTransaction(row pgx.Row) (*models.EscrowTransaction, error) {
	var t models.EscrowTransaction
	var amount string
	var usd *string
	err := row.Scan(&t.ID, &t.BuyerID, &t.SellerID, &t.ListingID,
		&amount, &t.Currency, &usd,
		&t.Status,
		&t.PaymentChargeID, &t.PaymentChargeURL, &t.PaymentAddress, &t.PaymentTxHash,
		&t.CreatedAt, &t.FundedAt, &t.TransferDeadline, &t.CompletedAt, &t.Notes)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("bad amount %q: %w", amount, err)
	}
	if usd != nil {
		d, err := decimal.NewFromString(*usd)
		if err != nil {
			return nil, fmt.Errorf("bad usd_equivalent %q: %w", *usd, err)
		}
		t.USDEquivalent = &d
	}
	return &t, nil
}
