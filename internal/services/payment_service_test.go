package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/trustlink/backend/internal/models"
)

const testWebhookSecret = "whsec_test"

func newPaymentEnv(t *testing.T) (*escrowEnv, *PaymentService) {
	t.Helper()
	env := newEscrowEnv(t)
	return env, NewPaymentService(env.store, env.escrow, testWebhookSecret, env.escrow.log)
}

func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func confirmedPayload(txID uuid.UUID, chargeID string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": {
			"id": "evt-1",
			"type": "charge:confirmed",
			"data": {
				"id": %q,
				"code": "CODE",
				"metadata": {"transaction_id": %q},
				"payments": [{"transaction_id": "0xabc123"}]
			}
		}
	}`, chargeID, txID))
}

func eventPayload(txID uuid.UUID, eventType string) []byte {
	return []byte(fmt.Sprintf(`{
		"event": {
			"type": %q,
			"data": {
				"id": "CHARGE-1",
				"metadata": {"transaction_id": %q}
			}
		}
	}`, eventType, txID))
}

func TestVerifySignature(t *testing.T) {
	_, payments := newPaymentEnv(t)
	body := []byte(`{"event":{}}`)

	require.True(t, payments.VerifySignature(body, signBody(testWebhookSecret, body)))
	require.False(t, payments.VerifySignature(body, signBody("wrong secret", body)))
	require.False(t, payments.VerifySignature(body, ""))
	require.False(t, payments.VerifySignature([]byte("tampered"), signBody(testWebhookSecret, body)))

	// No configured secret fails closed.
	unconfigured := NewPaymentService(nil, nil, "", payments.log)
	require.False(t, unconfigured.VerifySignature(body, signBody("", body)))
}

func TestIngestConfirmedFundsEscrow(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	result, err := payments.Ingest(ctx, confirmedPayload(tx.ID, "CHARGE-1"))
	require.NoError(t, err)
	require.True(t, result.Applied)
	require.Equal(t, tx.ID, result.TransactionID)

	// Gate passed, transfer window running, tx hash captured.
	require.Equal(t, models.TxStatusAwaitingTransfer, env.status(t, tx.ID))
	cur, err := env.store.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	require.NotNil(t, cur.PaymentTxHash)
	require.Equal(t, "0xabc123", *cur.PaymentTxHash)

	n, err := payments.RetryCount(ctx, "CHARGE-1", models.WebhookChargeConfirmed)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestIngestDuplicateDelivery(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)
	payload := confirmedPayload(tx.ID, "CHARGE-1")

	first, err := payments.Ingest(ctx, payload)
	require.NoError(t, err)
	require.True(t, first.Applied)

	// The provider redelivers. Acknowledged, recorded, state untouched.
	second, err := payments.Ingest(ctx, payload)
	require.NoError(t, err)
	require.False(t, second.Applied)
	require.Equal(t, models.TxStatusAwaitingTransfer, env.status(t, tx.ID))

	n, err := payments.RetryCount(ctx, "CHARGE-1", models.WebhookChargeConfirmed)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestIngestFailedChargeLeavesPending(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	result, err := payments.Ingest(ctx, eventPayload(tx.ID, models.WebhookChargeFailed))
	require.NoError(t, err)
	require.False(t, result.Applied)
	require.Equal(t, models.TxStatusPending, env.status(t, tx.ID))

	n, err := payments.RetryCount(ctx, "CHARGE-1", models.WebhookChargeFailed)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// The buyer hears about the failed charge and can retry.
	msgs := env.notifier.messages(buyerTgID)
	require.Len(t, msgs, 1)
	require.Contains(t, msgs[0], "payment failed")
}

func TestIngestProgressEventsNotifyBuyer(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	for _, eventType := range []string{models.WebhookChargePending, models.WebhookChargeDelayed} {
		result, err := payments.Ingest(ctx, eventPayload(tx.ID, eventType))
		require.NoError(t, err)
		require.False(t, result.Applied)
	}

	// Still PENDING, but the buyer got a notice for each event.
	require.Equal(t, models.TxStatusPending, env.status(t, tx.ID))
	require.Len(t, env.notifier.messages(buyerTgID), 2)
}

func TestIngestUnknownEventTypeRecorded(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	result, err := payments.Ingest(ctx, eventPayload(tx.ID, "charge:something_new"))
	require.NoError(t, err)
	require.False(t, result.Applied)
	require.Equal(t, models.TxStatusPending, env.status(t, tx.ID))

	n, err := payments.RetryCount(ctx, "CHARGE-1", "charge:something_new")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestIngestRejectsBadPayloads(t *testing.T) {
	env, payments := newPaymentEnv(t)
	ctx := context.Background()
	tx := env.createTx(t)

	var verr *models.ValidationError

	_, err := payments.Ingest(ctx, []byte(`not json`))
	require.ErrorAs(t, err, &verr)

	_, err = payments.Ingest(ctx, []byte(`{"event":{"data":{"metadata":{"transaction_id":"`+tx.ID.String()+`"}}}}`))
	require.ErrorAs(t, err, &verr, "missing event type")

	_, err = payments.Ingest(ctx, []byte(`{"event":{"type":"charge:confirmed","data":{}}}`))
	require.ErrorAs(t, err, &verr, "missing transaction reference")

	_, err = payments.Ingest(ctx, []byte(`{"event":{"type":"charge:confirmed","data":{"metadata":{"transaction_id":"not-a-uuid"}}}}`))
	require.ErrorAs(t, err, &verr)

	require.Equal(t, models.TxStatusPending, env.status(t, tx.ID))
}

func TestIngestUnknownTransaction(t *testing.T) {
	_, payments := newPaymentEnv(t)

	_, err := payments.Ingest(context.Background(), confirmedPayload(uuid.New(), "CHARGE-X"))
	require.ErrorIs(t, err, ErrUnknownTransaction)
}
