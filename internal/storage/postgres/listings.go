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

const listingColumns = `
	id, seller_id, group_id, group_username, group_title, group_description,
	member_count, price_usd::text, category, status,
	admin_list_snapshot, bot_is_admin, last_verified_at,
	created_at, updated_at, expires_at
`

func (q *queries) CreateListing(ctx context.Context, l *models.GroupListing) error {
	err := q.db.QueryRow(ctx, `
		INSERT INTO group_listings
			(id, seller_id, group_id, group_username, group_title, group_description,
			 member_count, price_usd, category, status, admin_list_snapshot, bot_is_admin, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`, l.ID, l.SellerID, l.GroupID, l.GroupUsername, l.GroupTitle, l.GroupDescription,
		l.MemberCount, l.PriceUSD.String(), l.Category, l.Status, l.AdminListSnapshot, l.BotIsAdmin, l.ExpiresAt,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	return mapErr(err)
}

func (q *queries) GetListing(ctx context.Context, id uuid.UUID) (*models.GroupListing, error) {
	l, err := scanListing(q.db.QueryRow(ctx, `SELECT `+listingColumns+` FROM group_listings WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return l, nil
}

func (q *queries) ListListings(ctx context.Context, f storage.ListingFilter) ([]models.GroupListing, error) {
	query := `SELECT ` + listingColumns + ` FROM group_listings`
	args := []any{}
	argIdx := 1
	where := []string{}

	if f.SellerID != nil {
		where = append(where, fmt.Sprintf("seller_id = $%d", argIdx))
		args = append(args, *f.SellerID)
		argIdx++
	}
	if f.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *f.Status)
		argIdx++
	}
	if f.Category != nil {
		where = append(where, fmt.Sprintf("category = $%d", argIdx))
		args = append(args, *f.Category)
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

	var listings []models.GroupListing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		listings = append(listings, *l)
	}
	return listings, mapErr(rows.Err())
}

func (q *queries) UpdateListing(ctx context.Context, l *models.GroupListing) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE group_listings SET
			group_title = $1, group_description = $2, member_count = $3,
			price_usd = $4::numeric, category = $5, status = $6,
			admin_list_snapshot = $7, bot_is_admin = $8, last_verified_at = $9,
			expires_at = $10, updated_at = now()
		WHERE id = $11
	`, l.GroupTitle, l.GroupDescription, l.MemberCount,
		l.PriceUSD.String(), l.Category, l.Status,
		l.AdminListSnapshot, l.BotIsAdmin, l.LastVerifiedAt, l.ExpiresAt, l.ID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (q *queries) UpdateListingStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := q.db.Exec(ctx, `UPDATE group_listings SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanListing(row pgx.Row) (*models.GroupListing, error) {
	var l models.GroupListing
	var price string
	err := row.Scan(&l.ID, &l.SellerID, &l.GroupID, &l.GroupUsername, &l.GroupTitle, &l.GroupDescription,
		&l.MemberCount, &price, &l.Category, &l.Status,
		&l.AdminListSnapshot, &l.BotIsAdmin, &l.LastVerifiedAt,
		&l.CreatedAt, &l.UpdatedAt, &l.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if l.PriceUSD, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("bad price_usd %q: %w", price, err)
	}
	return &l, nil
}
