package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
)

func newDisputeEnv(t *testing.T) (*escrowEnv, *DisputeService) {
	t.Helper()
	env := newEscrowEnv(t)
	return env, NewDisputeService(env.store, env.escrow, nil, env.escrow.log)
}

// disputedTx funds an escrow and opens a buyer dispute on it.
func disputedTx(t *testing.T, env *escrowEnv) (*models.EscrowTransaction, *models.DisputeCase) {
	t.Helper()
	ctx := context.Background()
	tx := env.createTx(t)
	env.fundTx(t, tx.ID)
	d, err := env.escrow.OpenDispute(ctx, tx.ID, env.buyer.ID, "group not as described")
	require.NoError(t, err)
	cur, err := env.store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	return cur, d
}

func TestDisputeAssignAndRequestRuling(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	ctx := context.Background()
	_, d := disputedTx(t, env)

	arbitrator := uuid.New()
	applied, err := disputes.Assign(ctx, d.ID, arbitrator)
	require.NoError(t, err)
	require.True(t, applied)

	got, err := disputes.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusInvestigating, got.Status)
	require.Equal(t, arbitrator, *got.ArbitratorID)

	// Assigning twice is a no-op.
	applied, err = disputes.Assign(ctx, d.ID, uuid.New())
	require.NoError(t, err)
	require.False(t, applied)

	applied, err = disputes.RequestRuling(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, applied)

	got, err = disputes.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusAwaitingRuling, got.Status)
}

func TestDisputeEvidence(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	ctx := context.Background()
	_, d := disputedTx(t, env)

	var verr *models.ValidationError
	err := disputes.SubmitEvidence(ctx, d.ID, env.buyer.ID, nil)
	require.ErrorAs(t, err, &verr)

	err = disputes.SubmitEvidence(ctx, d.ID, uuid.New(), map[string]any{"screenshot": "https://..."})
	require.ErrorAs(t, err, &verr)

	require.NoError(t, disputes.SubmitEvidence(ctx, d.ID, env.buyer.ID, map[string]any{"screenshot": "https://..."}))
	require.NoError(t, disputes.SubmitEvidence(ctx, d.ID, env.seller.ID, map[string]any{"screenshot": "https://..."}))

	got, err := disputes.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, got.Evidence, 2)

	// Once a ruling is awaited the record is frozen.
	_, err = disputes.RequestRuling(ctx, d.ID)
	require.NoError(t, err)
	err = disputes.SubmitEvidence(ctx, d.ID, env.buyer.ID, map[string]any{"late": true})
	require.ErrorAs(t, err, &verr)
}

func TestResolveFavorSeller(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	ctx := context.Background()
	tx, d := disputedTx(t, env)
	arbitrator := uuid.New()

	applied, err := disputes.Resolve(ctx, d.ID, arbitrator, models.RulingFavorSeller, "buyer claim unfounded", nil)
	require.NoError(t, err)
	require.True(t, applied)

	require.Equal(t, models.TxStatusCompleted, env.status(t, tx.ID))

	got, err := disputes.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusResolved, got.Status)
	require.Equal(t, models.RulingFavorSeller, *got.Ruling)
	require.Equal(t, arbitrator, *got.ResolvedByID)
	require.NotNil(t, got.ResolvedAt)

	listing, err := env.store.GetListing(ctx, env.listing.ID)
	require.NoError(t, err)
	require.Equal(t, models.ListingStatusSold, listing.Status)
}

func TestResolveFavorBuyer(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	ctx := context.Background()
	tx, d := disputedTx(t, env)

	applied, err := disputes.Resolve(ctx, d.ID, uuid.New(), models.RulingFavorBuyer, "seller never transferred", nil)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, models.TxStatusRefunded, env.status(t, tx.ID))
}

func TestResolvePartialRefund(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	ctx := context.Background()
	tx, d := disputedTx(t, env)
	arbitrator := uuid.New()

	var verr *models.ValidationError

	// No split at all.
	_, err := disputes.Resolve(ctx, d.ID, arbitrator, models.RulingPartialRefund, "", nil)
	require.ErrorAs(t, err, &verr)

	// Split does not sum to the escrowed amount.
	_, err = disputes.Resolve(ctx, d.ID, arbitrator, models.RulingPartialRefund, "", &RefundSplit{
		Buyer:  decimal.RequireFromString("100.00"),
		Seller: decimal.RequireFromString("100.00"),
	})
	require.ErrorAs(t, err, &verr)

	// Negative side.
	_, err = disputes.Resolve(ctx, d.ID, arbitrator, models.RulingPartialRefund, "", &RefundSplit{
		Buyer:  decimal.RequireFromString("300.00"),
		Seller: decimal.RequireFromString("-50.00"),
	})
	require.ErrorAs(t, err, &verr)

	// Failed attempts leave the dispute open.
	got, err := disputes.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusOpen, got.Status)
	require.Equal(t, models.TxStatusDisputed, env.status(t, tx.ID))

	applied, err := disputes.Resolve(ctx, d.ID, arbitrator, models.RulingPartialRefund, "half fault each", &RefundSplit{
		Buyer:  decimal.RequireFromString("125.00"),
		Seller: decimal.RequireFromString("125.00"),
	})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, models.TxStatusRefunded, env.status(t, tx.ID))
}

func TestResolveNoActionResumesFlow(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	ctx := context.Background()

	// Funded transaction resumes its transfer window.
	tx, d := disputedTx(t, env)
	applied, err := disputes.Resolve(ctx, d.ID, uuid.New(), models.RulingNoAction, "dispute unfounded", nil)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, models.TxStatusAwaitingTransfer, env.status(t, tx.ID))

	// Unfunded transaction resumes waiting for payment.
	tx2 := env.createTx(t)
	d2, err := env.escrow.OpenDispute(ctx, tx2.ID, env.buyer.ID, "cold feet")
	require.NoError(t, err)
	applied, err = disputes.Resolve(ctx, d2.ID, uuid.New(), models.RulingNoAction, "", nil)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, models.TxStatusPending, env.status(t, tx2.ID))
}

func TestResolveStaleIsNoOp(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	ctx := context.Background()
	tx, d := disputedTx(t, env)

	applied, err := disputes.Resolve(ctx, d.ID, uuid.New(), models.RulingFavorBuyer, "", nil)
	require.NoError(t, err)
	require.True(t, applied)

	// A second arbitrator's stale decision changes nothing.
	applied, err = disputes.Resolve(ctx, d.ID, uuid.New(), models.RulingFavorSeller, "", nil)
	require.NoError(t, err)
	require.False(t, applied)

	require.Equal(t, models.TxStatusRefunded, env.status(t, tx.ID))
	got, err := disputes.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.RulingFavorBuyer, *got.Ruling)
}

func TestResolveRollsBackOnImpossibleMovement(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	ctx := context.Background()
	tx, d := disputedTx(t, env)

	// Force the transaction terminal behind the dispute's back.
	require.NoError(t, env.store.InTx(ctx, func(q storage.Queries) error {
		cur, err := q.GetTransactionForUpdate(ctx, tx.ID)
		if err != nil {
			return err
		}
		cur.Status = models.TxStatusCompleted
		return q.UpdateTransaction(ctx, cur)
	}))

	var verr *models.ValidationError
	_, err := disputes.Resolve(ctx, d.ID, uuid.New(), models.RulingFavorBuyer, "", nil)
	require.ErrorAs(t, err, &verr)

	// The whole unit rolled back: the dispute is still unresolved.
	got, err := disputes.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusOpen, got.Status)
	require.Nil(t, got.Ruling)
	require.Nil(t, got.ResolvedAt)
}

func TestResolveUnknownRuling(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	_, d := disputedTx(t, env)

	var verr *models.ValidationError
	_, err := disputes.Resolve(context.Background(), d.ID, uuid.New(), models.Ruling("COIN_FLIP"), "", nil)
	require.ErrorAs(t, err, &verr)
}

func TestDisputeClose(t *testing.T) {
	env, disputes := newDisputeEnv(t)
	ctx := context.Background()
	_, d := disputedTx(t, env)

	// Cannot close before resolution.
	applied, err := disputes.Close(ctx, d.ID)
	require.NoError(t, err)
	require.False(t, applied)

	_, err = disputes.Resolve(ctx, d.ID, uuid.New(), models.RulingFavorBuyer, "", nil)
	require.NoError(t, err)

	applied, err = disputes.Close(ctx, d.ID)
	require.NoError(t, err)
	require.True(t, applied)

	got, err := disputes.Get(ctx, d.ID)
	require.NoError(t, err)
	require.Equal(t, models.DisputeStatusClosed, got.Status)
}
