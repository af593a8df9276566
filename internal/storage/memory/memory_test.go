package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
)

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	tx := &models.EscrowTransaction{
		ID:     uuid.New(),
		Status: models.TxStatusPending,
	}
	require.NoError(t, store.CreateTransaction(ctx, tx))

	boom := errors.New("boom")
	err := store.InTx(ctx, func(q storage.Queries) error {
		cur, err := q.GetTransactionForUpdate(ctx, tx.ID)
		if err != nil {
			return err
		}
		cur.Status = models.TxStatusFunded
		if err := q.UpdateTransaction(ctx, cur); err != nil {
			return err
		}
		if err := q.AppendAudit(ctx, &models.AuditLogEntry{
			ID:            uuid.New(),
			TransactionID: tx.ID,
			Action:        models.AuditPaymentReceived,
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Neither the status change nor the audit entry survived.
	cur, err := store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.Equal(t, models.TxStatusPending, cur.Status)

	audit, err := store.ListAuditByTransaction(ctx, tx.ID, 10)
	require.NoError(t, err)
	require.Empty(t, audit)
}

func TestDisputeUniquePerTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	txID := uuid.New()
	first := &models.DisputeCase{ID: uuid.New(), TransactionID: txID, Status: models.DisputeStatusOpen}
	require.NoError(t, store.CreateDispute(ctx, first))

	second := &models.DisputeCase{ID: uuid.New(), TransactionID: txID, Status: models.DisputeStatusOpen}
	require.ErrorIs(t, store.CreateDispute(ctx, second), storage.ErrConflict)
}

func TestUpsertUserKeyedByTelegramID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	name := "alice"
	u := &models.User{TelegramUserID: 42, Username: &name}
	require.NoError(t, store.UpsertUser(ctx, u))
	firstID := u.ID

	renamed := "alice_new"
	again := &models.User{TelegramUserID: 42, Username: &renamed}
	require.NoError(t, store.UpsertUser(ctx, again))
	require.Equal(t, firstID, again.ID)

	got, err := store.GetUserByTelegramID(ctx, 42)
	require.NoError(t, err)
	require.Equal(t, "alice_new", *got.Username)
}
