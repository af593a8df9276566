package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
	"go.uber.org/zap"
)

// ErrUnknownTransaction means a verified webhook references a
// transaction this system has never issued a charge for.
var ErrUnknownTransaction = errors.New("payment: unknown transaction")

// PaymentService ingests provider webhooks. Signature verification runs
// over the raw request bytes before any parsing; a verified payload is
// always persisted verbatim, whether or not it changes state.
type PaymentService struct {
	store  storage.Store
	escrow *EscrowService
	secret string
	log    *zap.Logger
}

func NewPaymentService(store storage.Store, escrow *EscrowService, webhookSecret string, log *zap.Logger) *PaymentService {
	return &PaymentService{store: store, escrow: escrow, secret: webhookSecret, log: log}
}

// VerifySignature checks the HMAC-SHA256 hex signature of the raw body.
// Fails closed when no secret is configured.
func (s *PaymentService) VerifySignature(payload []byte, signature string) bool {
	if s.secret == "" || signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// webhookEnvelope is the provider's event wrapper.
type webhookEnvelope struct {
	Event struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			ID       string            `json:"id"`
			Code     string            `json:"code"`
			Metadata map[string]string `json:"metadata"`
			Payments []struct {
				TransactionID string `json:"transaction_id"`
			} `json:"payments"`
		} `json:"data"`
	} `json:"event"`
}

// IngestResult reports what a webhook did.
type IngestResult struct {
	TransactionID uuid.UUID
	EventType     string
	Applied       bool // true when the event funded the escrow and the gate let it proceed
}

// Ingest processes one verified webhook payload. Confirmation events
// drive the funding flow; every other known or unknown event type is
// recorded and acknowledged so the provider stops retrying.
func (s *PaymentService) Ingest(ctx context.Context, payload []byte) (*IngestResult, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, models.NewValidationError("payload", "malformed webhook payload")
	}
	eventType := env.Event.Type
	if eventType == "" {
		return nil, models.NewValidationError("event.type", "missing event type")
	}

	rawTxID := env.Event.Data.Metadata["transaction_id"]
	if rawTxID == "" {
		return nil, models.NewValidationError("metadata.transaction_id", "missing transaction reference")
	}
	txID, err := uuid.Parse(rawTxID)
	if err != nil {
		return nil, models.NewValidationError("metadata.transaction_id", "not a valid transaction id")
	}

	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTransaction, txID)
		}
		return nil, err
	}

	record := &models.PaymentWebhookRecord{
		ID:            uuid.New(),
		TransactionID: txID,
		EventType:     eventType,
		ChargeID:      env.Event.Data.ID,
		Payload:       payload,
	}
	result := &IngestResult{TransactionID: txID, EventType: eventType}

	switch eventType {
	case models.WebhookChargeConfirmed, models.WebhookChargeResolved:
		var txHash *string
		if len(env.Event.Data.Payments) > 0 && env.Event.Data.Payments[0].TransactionID != "" {
			h := env.Event.Data.Payments[0].TransactionID
			txHash = &h
		}
		applied, err := s.escrow.Fund(ctx, txID, FundParams{
			ChargeID: env.Event.Data.ID,
			TxHash:   txHash,
			Webhook:  record,
		})
		if err != nil {
			return nil, err
		}
		result.Applied = applied
	case models.WebhookChargeFailed:
		// A failed charge leaves the escrow PENDING until the payment
		// window lapses; the buyer may retry with a fresh payment.
		if err := s.store.CreateWebhookRecord(ctx, record); err != nil {
			return nil, err
		}
		s.log.Info("charge failed",
			zap.String("transaction_id", txID.String()),
			zap.String("charge_id", record.ChargeID),
		)
		s.notifyBuyer(ctx, tx, "Your escrow payment failed. The order is still open, you can retry the payment.")
	case models.WebhookChargePending:
		if err := s.store.CreateWebhookRecord(ctx, record); err != nil {
			return nil, err
		}
		s.notifyBuyer(ctx, tx, "Your payment was detected and is waiting for network confirmation.")
	case models.WebhookChargeDelayed:
		if err := s.store.CreateWebhookRecord(ctx, record); err != nil {
			return nil, err
		}
		s.notifyBuyer(ctx, tx, "Your payment is confirming slower than usual. No action needed, we will update you.")
	default:
		// Anything the provider adds later: store and acknowledge.
		if err := s.store.CreateWebhookRecord(ctx, record); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// notifyBuyer sends a payment notice after the webhook record is
// committed, through the escrow service's bot collaborator.
func (s *PaymentService) notifyBuyer(ctx context.Context, t *models.EscrowTransaction, text string) {
	if s.escrow == nil {
		return
	}
	buyer, err := s.store.GetUser(ctx, t.BuyerID)
	if err != nil {
		return
	}
	s.escrow.notify(ctx, buyer.TelegramUserID, text)
}

// RetryCount reports how many times the provider has delivered a given
// charge/event pair. Useful for support tooling and tests.
func (s *PaymentService) RetryCount(ctx context.Context, chargeID, eventType string) (int, error) {
	return s.store.CountWebhookEvents(ctx, chargeID, eventType)
}
