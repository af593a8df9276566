package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/models"
)

func (q *queries) UpsertUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := q.db.QueryRow(ctx, `
		INSERT INTO users (id, telegram_user_id, username, first_name, last_name, is_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_user_id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			last_active_at = now()
		RETURNING id, is_verified, created_at, last_active_at
	`, u.ID, u.TelegramUserID, u.Username, u.FirstName, u.LastName, u.IsVerified,
	).Scan(&u.ID, &u.IsVerified, &u.CreatedAt, &u.LastActiveAt)
	return mapErr(err)
}

func (q *queries) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := q.db.QueryRow(ctx, `
		SELECT id, telegram_user_id, username, first_name, last_name, is_verified, created_at, last_active_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.TelegramUserID, &u.Username, &u.FirstName, &u.LastName, &u.IsVerified, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (q *queries) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	err := q.db.QueryRow(ctx, `
		SELECT id, telegram_user_id, username, first_name, last_name, is_verified, created_at, last_active_at
		FROM users WHERE telegram_user_id = $1
	`, telegramID).Scan(&u.ID, &u.TelegramUserID, &u.Username, &u.FirstName, &u.LastName, &u.IsVerified, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}
