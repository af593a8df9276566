package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trustlink/backend/internal/storage"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx, so every query
// method works inside and outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type queries struct {
	db DBTX
}

// Store is the Postgres-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
	queries
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: queries{db: pool}}
}

// InTx runs fn in a single database transaction. ForUpdate reads issued by
// fn hold their row locks until commit or rollback.
func (s *Store) InTx(ctx context.Context, fn func(q storage.Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapErr(err)
	}
	if err := fn(&queries{db: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapErr(err)
	}
	return nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization failure, deadlock
			return storage.ErrConflict
		case "23505": // unique violation
			return storage.ErrConflict
		}
	}
	return err
}
