package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/config"
	"github.com/trustlink/backend/internal/events"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
	"go.uber.org/zap"
)

// ChargeCreator creates hosted payment charges with the provider.
// *ChargeClient implements it; Create tolerates a nil creator so tests
// and manual-settlement deployments can run without a provider account.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error)
}

// ChargeCanceller is implemented by providers that support voiding an
// unpaid charge. Cancelling the escrow cancels the charge best-effort.
type ChargeCanceller interface {
	CancelCharge(ctx context.Context, chargeID string) error
}

// Notifier delivers user-facing messages through the bot collaborator.
// *BotClient implements it; sends are fire-and-forget after commit.
type Notifier interface {
	SendNotification(ctx context.Context, telegramUserID int64, text string) error
}

// EscrowService owns every transition of an escrow transaction. All
// state checks, mutations and audit writes for one operation happen in
// a single storage unit; a wrong-state request is a benign no-op
// (applied=false), bad input is a *models.ValidationError.
type EscrowService struct {
	store     storage.Store
	verifier  *VerificationService
	charges   ChargeCreator
	bot       Notifier
	publisher events.Publisher
	cfg       *config.Config
	log       *zap.Logger
}

func NewEscrowService(
	store storage.Store,
	verifier *VerificationService,
	charges ChargeCreator,
	bot Notifier,
	publisher events.Publisher,
	cfg *config.Config,
	log *zap.Logger,
) *EscrowService {
	return &EscrowService{
		store:     store,
		verifier:  verifier,
		charges:   charges,
		bot:       bot,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// transition moves t to a new status inside the caller's storage unit,
// writing the audit entry in the same unit. Invalid transitions are
// no-ops: webhook retries and stale callbacks arrive every day and must
// not poison the state machine.
func (s *EscrowService) transition(ctx context.Context, q storage.Queries, t *models.EscrowTransaction, newStatus string, actorID *uuid.UUID, action string, details map[string]any) (bool, error) {
	if !models.IsValidTxTransition(t.Status, newStatus) {
		return false, nil
	}
	oldStatus := t.Status
	t.Status = newStatus
	if err := q.UpdateTransaction(ctx, t); err != nil {
		return false, err
	}

	if details == nil {
		details = map[string]any{}
	}
	details["old_status"] = oldStatus
	details["new_status"] = newStatus
	err := q.AppendAudit(ctx, &models.AuditLogEntry{
		ID:            uuid.New(),
		TransactionID: t.ID,
		Action:        action,
		ActorUserID:   actorID,
		Details:       details,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *EscrowService) publishStatus(ctx context.Context, t *models.EscrowTransaction, oldStatus string) {
	if s.publisher == nil {
		return
	}
	_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
		Type: events.EventEscrowStatusChanged,
		Payload: map[string]any{
			"transaction_id": t.ID.String(),
			"old_status":     oldStatus,
			"new_status":     t.Status,
		},
	})
}

func (s *EscrowService) notify(ctx context.Context, telegramUserID int64, text string) {
	if s.bot == nil || telegramUserID == 0 {
		return
	}
	_ = s.bot.SendNotification(ctx, telegramUserID, text)
}

// Create opens a PENDING escrow for an active listing and, when a
// payment provider is configured, attaches a hosted charge the buyer
// can pay.
func (s *EscrowService) Create(ctx context.Context, buyerID, listingID uuid.UUID, currency string) (*models.EscrowTransaction, error) {
	if !models.IsValidCurrency(currency) {
		return nil, models.NewValidationError("currency", fmt.Sprintf("unsupported currency %q", currency))
	}

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.ListingStatusActive {
		return nil, models.NewValidationError("listing_id", "listing is not active")
	}
	if listing.IsExpired(time.Now()) {
		return nil, models.NewValidationError("listing_id", "listing has expired")
	}
	if listing.SellerID == buyerID {
		return nil, models.NewValidationError("buyer_id", "cannot buy your own listing")
	}

	usd := listing.PriceUSD
	deadline := time.Now().Add(s.transferWindow())
	t := &models.EscrowTransaction{
		ID:               uuid.New(),
		BuyerID:          buyerID,
		SellerID:         listing.SellerID,
		ListingID:        listing.ID,
		Amount:           listing.PriceUSD,
		Currency:         currency,
		USDEquivalent:    &usd,
		Status:           models.TxStatusPending,
		TransferDeadline: &deadline,
	}

	if s.charges != nil {
		charge, err := s.charges.CreateCharge(ctx, CreateChargeRequest{
			Name:        listing.GroupTitle,
			Description: fmt.Sprintf("Escrow purchase of Telegram group %q", listing.GroupTitle),
			AmountUSD:   listing.PriceUSD,
			Metadata:    map[string]string{"transaction_id": t.ID.String()},
		})
		if err != nil {
			return nil, fmt.Errorf("create payment charge: %w", err)
		}
		t.PaymentChargeID = &charge.ID
		t.PaymentChargeURL = &charge.HostedURL
		if addr, ok := charge.Addresses[currency]; ok {
			t.PaymentAddress = &addr
		}
	}

	err = s.store.InTx(ctx, func(q storage.Queries) error {
		if err := q.CreateTransaction(ctx, t); err != nil {
			return err
		}
		return q.AppendAudit(ctx, &models.AuditLogEntry{
			ID:            uuid.New(),
			TransactionID: t.ID,
			Action:        models.AuditEscrowCreated,
			ActorUserID:   &buyerID,
			Details: map[string]any{
				"listing_id": listing.ID.String(),
				"amount":     t.Amount.String(),
				"currency":   currency,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("escrow created",
		zap.String("transaction_id", t.ID.String()),
		zap.String("listing_id", listing.ID.String()),
		zap.String("amount", t.Amount.String()),
	)
	return t, nil
}

// FundParams carries a verified payment confirmation into the state
// machine. Webhook, when set, is persisted in the same unit as the
// status change.
type FundParams struct {
	ChargeID string
	TxHash   *string
	Webhook  *models.PaymentWebhookRecord
}

// Fund applies a payment confirmation. The flow deliberately drops the
// row lock while the ownership probe runs:
//
//  1. lock the row, record the webhook, move PENDING -> FUNDED, commit;
//  2. run the seller-side verification gate with no lock held;
//  3. re-lock, re-check the status is still FUNDED, then apply the gate
//     outcome (AWAITING_TRANSFER or DISPUTED).
//
// A transaction that is not PENDING makes step 1 a no-op: the webhook
// is still recorded for the retry trail, nothing else changes.
//
// Returns true only when the confirmation funded the transaction and
// the gate did not dispute it; a gate failure returns false so the
// caller drops the confirmation instead of retrying.
func (s *EscrowService) Fund(ctx context.Context, txID uuid.UUID, p FundParams) (bool, error) {
	var (
		t       *models.EscrowTransaction
		applied bool
	)
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		applied = false
		var err error
		t, err = q.GetTransactionForUpdate(ctx, txID)
		if err != nil {
			return err
		}

		if t.PaymentChargeID != nil && p.ChargeID != "" && *t.PaymentChargeID != p.ChargeID {
			return models.NewValidationError("charge_id", "charge does not belong to this transaction")
		}

		if t.Status != models.TxStatusPending {
			// Duplicate or out-of-order confirmation. Keep the payload.
			if p.Webhook != nil {
				return q.CreateWebhookRecord(ctx, p.Webhook)
			}
			return nil
		}

		now := time.Now()
		t.FundedAt = &now
		if t.TransferDeadline == nil {
			// Rows created before the deadline moved to create().
			deadline := t.CreatedAt.Add(s.transferWindow())
			t.TransferDeadline = &deadline
		}
		if t.PaymentChargeID == nil && p.ChargeID != "" {
			t.PaymentChargeID = &p.ChargeID
		}
		if p.TxHash != nil {
			t.PaymentTxHash = p.TxHash
		}

		if p.Webhook != nil {
			p.Webhook.Processed = true
			if err := q.CreateWebhookRecord(ctx, p.Webhook); err != nil {
				return err
			}
		}

		ok, err := s.transition(ctx, q, t, models.TxStatusFunded, nil, models.AuditPaymentReceived, map[string]any{
			"charge_id": p.ChargeID,
		})
		if err != nil {
			return err
		}
		applied = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	if !applied {
		s.log.Info("fund ignored, transaction not pending",
			zap.String("transaction_id", txID.String()),
			zap.String("status", t.Status),
		)
		return false, nil
	}
	s.publishStatus(ctx, t, models.TxStatusPending)
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type: events.EventPaymentReceived,
			Payload: map[string]any{
				"transaction_id": t.ID.String(),
				"charge_id":      p.ChargeID,
			},
		})
	}

	if err := s.runSellerGate(ctx, t); err != nil {
		// Funds are safe in FUNDED; the gate can be re-run.
		s.log.Error("seller gate failed to run", zap.String("transaction_id", t.ID.String()), zap.Error(err))
	}
	if t.Status == models.TxStatusDisputed {
		// The gate disputed the trade. The confirmation was not applied
		// to the happy path and the caller must not retry it.
		return false, nil
	}
	return true, nil
}

// runSellerGate probes seller ownership with no lock held, then
// re-locks and applies the outcome if the transaction is still FUNDED.
func (s *EscrowService) runSellerGate(ctx context.Context, t *models.EscrowTransaction) error {
	listing, err := s.store.GetListing(ctx, t.ListingID)
	if err != nil {
		return err
	}
	seller, err := s.store.GetUser(ctx, t.SellerID)
	if err != nil {
		return err
	}

	result, err := s.verifier.VerifySellerOwnership(ctx, t, listing, seller.TelegramUserID)
	if err != nil {
		return err
	}

	var oldStatus string
	var moved bool
	err = s.store.InTx(ctx, func(q storage.Queries) error {
		moved = false
		cur, err := q.GetTransactionForUpdate(ctx, t.ID)
		if err != nil {
			return err
		}
		if cur.Status != models.TxStatusFunded {
			// Someone else moved it while the probe ran.
			return nil
		}
		oldStatus = cur.Status

		switch result.Result {
		case models.VerificationPassed:
			moved, err = s.transition(ctx, q, cur, models.TxStatusAwaitingTransfer, nil, models.AuditTransferStarted, map[string]any{
				"transfer_deadline": cur.TransferDeadline,
			})
			if err != nil {
				return err
			}
		case models.VerificationFailed:
			moved, err = s.transition(ctx, q, cur, models.TxStatusDisputed, nil, models.AuditDisputeOpened, map[string]any{
				"failure_reasons": result.FailureReasons,
			})
			if err != nil {
				return err
			}
			if moved {
				// A case may already exist: a NO_ACTION ruling resumed
				// this transaction once before. Reuse it rather than
				// tripping the one-case-per-transaction constraint.
				_, derr := q.GetDisputeByTransaction(ctx, cur.ID)
				if errors.Is(derr, storage.ErrNotFound) {
					derr = q.CreateDispute(ctx, &models.DisputeCase{
						ID:            uuid.New(),
						TransactionID: cur.ID,
						OpenedByID:    cur.BuyerID,
						Status:        models.DisputeStatusOpen,
						Description:   "seller ownership verification failed: " + strings.Join(result.FailureReasons, "; "),
						Evidence:      map[string]any{"verification": result.FailureReasons},
					})
				}
				if derr != nil {
					return derr
				}
			}
		default:
			// MANUAL_REVIEW keeps the transaction in FUNDED for a human.
			s.log.Warn("seller gate needs manual review",
				zap.String("transaction_id", cur.ID.String()),
				zap.Strings("reasons", result.FailureReasons),
			)
		}
		*t = *cur
		return nil
	})
	if err != nil {
		return err
	}
	if moved {
		s.publishStatus(ctx, t, oldStatus)
		seller, serr := s.store.GetUser(ctx, t.SellerID)
		if serr == nil && t.Status == models.TxStatusAwaitingTransfer {
			s.notify(ctx, seller.TelegramUserID,
				fmt.Sprintf("Escrow funded. Transfer the group before %s to receive payment.", t.TransferDeadline.Format(time.RFC1123)))
		}
	}
	return nil
}

// MarkTransferred is the seller declaring the group handed over. It
// moves AWAITING_TRANSFER -> VERIFYING and immediately runs the
// buyer-side gate; the worker also re-runs the gate for transactions
// left in VERIFYING.
func (s *EscrowService) MarkTransferred(ctx context.Context, txID, actorID uuid.UUID) (bool, error) {
	var t *models.EscrowTransaction
	var applied bool
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		applied = false
		var err error
		t, err = q.GetTransactionForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if t.SellerID != actorID {
			return models.NewValidationError("actor", "only the seller can mark the group transferred")
		}
		applied, err = s.transition(ctx, q, t, models.TxStatusVerifying, &actorID, models.AuditOwnershipChanged, nil)
		return err
	})
	if err != nil || !applied {
		return false, err
	}
	s.publishStatus(ctx, t, models.TxStatusAwaitingTransfer)

	if err := s.FinalizeTransfer(ctx, txID); err != nil {
		s.log.Error("post-transfer gate failed to run", zap.String("transaction_id", txID.String()), zap.Error(err))
	}
	return true, nil
}

// FinalizeTransfer runs the buyer-side gate on a VERIFYING transaction
// and applies the outcome: release on pass, dispute on fail. Same
// lock-probe-relock shape as funding.
func (s *EscrowService) FinalizeTransfer(ctx context.Context, txID uuid.UUID) error {
	t, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	if t.Status != models.TxStatusVerifying {
		return nil
	}
	listing, err := s.store.GetListing(ctx, t.ListingID)
	if err != nil {
		return err
	}
	buyer, err := s.store.GetUser(ctx, t.BuyerID)
	if err != nil {
		return err
	}

	result, err := s.verifier.VerifyTransferred(ctx, t, listing, buyer.TelegramUserID)
	if err != nil {
		return err
	}

	var oldStatus string
	var moved bool
	err = s.store.InTx(ctx, func(q storage.Queries) error {
		moved = false
		cur, err := q.GetTransactionForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if cur.Status != models.TxStatusVerifying {
			return nil
		}
		oldStatus = cur.Status

		switch result.Result {
		case models.VerificationPassed:
			if err := q.AppendAudit(ctx, &models.AuditLogEntry{
				ID:            uuid.New(),
				TransactionID: cur.ID,
				Action:        models.AuditVerificationPassed,
				Details:       map[string]any{"result": result.Result},
			}); err != nil {
				return err
			}
			moved, err = s.completeLocked(ctx, q, cur, nil)
			if err != nil {
				return err
			}
		case models.VerificationFailed:
			if err := q.AppendAudit(ctx, &models.AuditLogEntry{
				ID:            uuid.New(),
				TransactionID: cur.ID,
				Action:        models.AuditVerificationFailed,
				Details:       map[string]any{"failure_reasons": result.FailureReasons},
			}); err != nil {
				return err
			}
			moved, err = s.transition(ctx, q, cur, models.TxStatusDisputed, nil, models.AuditDisputeOpened, map[string]any{
				"failure_reasons": result.FailureReasons,
			})
			if err != nil {
				return err
			}
			if moved {
				_, derr := q.GetDisputeByTransaction(ctx, cur.ID)
				if errors.Is(derr, storage.ErrNotFound) {
					derr = q.CreateDispute(ctx, &models.DisputeCase{
						ID:            uuid.New(),
						TransactionID: cur.ID,
						OpenedByID:    cur.BuyerID,
						Status:        models.DisputeStatusOpen,
						Description:   "post-transfer verification failed: " + strings.Join(result.FailureReasons, "; "),
						Evidence:      map[string]any{"verification": result.FailureReasons},
					})
				}
				if derr != nil {
					return derr
				}
			}
		default:
			s.log.Warn("post-transfer gate needs manual review",
				zap.String("transaction_id", cur.ID.String()),
				zap.Strings("reasons", result.FailureReasons),
			)
		}
		*t = *cur
		return nil
	})
	if err != nil {
		return err
	}
	if moved {
		s.publishStatus(ctx, t, oldStatus)
		if t.Status == models.TxStatusCompleted {
			seller, serr := s.store.GetUser(ctx, t.SellerID)
			if serr == nil {
				s.notify(ctx, seller.TelegramUserID, "Group transfer verified. Funds released.")
			}
		}
	}
	return nil
}

// completeLocked releases funds inside the caller's unit: COMPLETED,
// FUNDS_RELEASED audit, listing marked SOLD.
func (s *EscrowService) completeLocked(ctx context.Context, q storage.Queries, t *models.EscrowTransaction, actorID *uuid.UUID) (bool, error) {
	now := time.Now()
	t.CompletedAt = &now
	ok, err := s.transition(ctx, q, t, models.TxStatusCompleted, actorID, models.AuditFundsReleased, map[string]any{
		"amount":   t.Amount.String(),
		"currency": t.Currency,
	})
	if err != nil || !ok {
		return ok, err
	}
	if err := q.UpdateListingStatus(ctx, t.ListingID, models.ListingStatusSold); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	return true, nil
}

// Complete releases held funds manually (admin action or a ruling).
func (s *EscrowService) Complete(ctx context.Context, txID uuid.UUID, actorID *uuid.UUID) (bool, error) {
	var t *models.EscrowTransaction
	var applied bool
	var oldStatus string
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		applied = false
		var err error
		t, err = q.GetTransactionForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		oldStatus = t.Status
		applied, err = s.completeLocked(ctx, q, t, actorID)
		return err
	})
	if err != nil || !applied {
		return false, err
	}
	s.publishStatus(ctx, t, oldStatus)
	return true, nil
}

// Refund returns held funds to the buyer.
func (s *EscrowService) Refund(ctx context.Context, txID uuid.UUID, actorID *uuid.UUID, reason string) (bool, error) {
	var t *models.EscrowTransaction
	var applied bool
	var oldStatus string
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		applied = false
		var err error
		t, err = q.GetTransactionForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		oldStatus = t.Status
		applied, err = s.transition(ctx, q, t, models.TxStatusRefunded, actorID, models.AuditFundsRefunded, map[string]any{
			"reason": reason,
		})
		return err
	})
	if err != nil || !applied {
		return false, err
	}
	s.publishStatus(ctx, t, oldStatus)
	buyer, berr := s.store.GetUser(ctx, t.BuyerID)
	if berr == nil {
		s.notify(ctx, buyer.TelegramUserID, "Your escrow payment was refunded: "+reason)
	}
	return true, nil
}

// Cancel voids an unfunded escrow. Only PENDING can be cancelled.
func (s *EscrowService) Cancel(ctx context.Context, txID uuid.UUID, actorID *uuid.UUID, reason string) (bool, error) {
	var t *models.EscrowTransaction
	var applied bool
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		applied = false
		var err error
		t, err = q.GetTransactionForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if t.Status != models.TxStatusPending {
			return nil
		}
		applied, err = s.transition(ctx, q, t, models.TxStatusCancelled, actorID, models.AuditEscrowCancelled, map[string]any{
			"reason": reason,
		})
		return err
	})
	if err != nil || !applied {
		return false, err
	}
	s.publishStatus(ctx, t, models.TxStatusPending)
	if cc, ok := s.charges.(ChargeCanceller); ok && t.PaymentChargeID != nil {
		if cerr := cc.CancelCharge(ctx, *t.PaymentChargeID); cerr != nil {
			s.log.Warn("charge cancel failed", zap.String("transaction_id", t.ID.String()), zap.Error(cerr))
		}
	}
	return true, nil
}

// OpenDispute freezes a transaction and opens a case. At most one case
// per transaction: a duplicate open returns the existing case untouched.
func (s *EscrowService) OpenDispute(ctx context.Context, txID, openedBy uuid.UUID, description string) (*models.DisputeCase, error) {
	if description == "" {
		return nil, models.NewValidationError("description", "description is required")
	}

	var d *models.DisputeCase
	var oldStatus string
	var moved bool
	var t *models.EscrowTransaction
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		moved = false
		var err error
		t, err = q.GetTransactionForUpdate(ctx, txID)
		if err != nil {
			return err
		}
		if t.BuyerID != openedBy && t.SellerID != openedBy {
			return models.NewValidationError("opened_by", "only a party to the transaction can open a dispute")
		}
		if models.IsTerminalTxStatus(t.Status) {
			return models.NewValidationError("status", "transaction is already final")
		}

		existing, err := q.GetDisputeByTransaction(ctx, txID)
		if err == nil {
			d = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		oldStatus = t.Status
		moved, err = s.transition(ctx, q, t, models.TxStatusDisputed, &openedBy, models.AuditDisputeOpened, map[string]any{
			"description": description,
		})
		if err != nil {
			return err
		}
		if !moved {
			return models.NewValidationError("status", "transaction cannot be disputed in status "+t.Status)
		}

		d = &models.DisputeCase{
			ID:            uuid.New(),
			TransactionID: txID,
			OpenedByID:    openedBy,
			Status:        models.DisputeStatusOpen,
			Description:   description,
		}
		return q.CreateDispute(ctx, d)
	})
	if err != nil {
		return nil, err
	}
	if moved {
		s.publishStatus(ctx, t, oldStatus)
		if s.publisher != nil {
			_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
				Type: events.EventDisputeOpened,
				Payload: map[string]any{
					"transaction_id": txID.String(),
					"dispute_id":     d.ID.String(),
				},
			})
		}
	}
	return d, nil
}

// StatusView is the full projection of one escrow transaction.
type StatusView struct {
	Transaction  *models.EscrowTransaction  `json:"transaction"`
	Dispute      *models.DisputeCase        `json:"dispute,omitempty"`
	Verification *models.VerificationResult `json:"verification,omitempty"`
	Audit        []models.AuditLogEntry     `json:"audit"`
}

func (s *EscrowService) Status(ctx context.Context, txID uuid.UUID) (*StatusView, error) {
	t, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{Transaction: t}

	if d, err := s.store.GetDisputeByTransaction(ctx, txID); err == nil {
		view.Dispute = d
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if v, err := s.store.GetVerificationResult(ctx, txID); err == nil {
		view.Verification = v
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	audit, err := s.store.ListAuditByTransaction(ctx, txID, 50)
	if err != nil {
		return nil, err
	}
	view.Audit = audit
	return view, nil
}

func (s *EscrowService) Get(ctx context.Context, txID uuid.UUID) (*models.EscrowTransaction, error) {
	return s.store.GetTransaction(ctx, txID)
}

func (s *EscrowService) List(ctx context.Context, f storage.TxFilter) ([]models.EscrowTransaction, error) {
	return s.store.ListTransactions(ctx, f)
}

// ExpireSweep cancels stale PENDING escrows and refunds funded ones
// whose transfer window lapsed. Called by the worker on a ticker.
func (s *EscrowService) ExpireSweep(ctx context.Context) error {
	now := time.Now()

	pendingCutoff := now.Add(-s.pendingTimeout())
	stalePending := models.TxStatusPending
	pending, err := s.store.ListTransactions(ctx, storage.TxFilter{
		Status:        &stalePending,
		CreatedBefore: &pendingCutoff,
		Limit:         100,
	})
	if err != nil {
		return err
	}
	for _, t := range pending {
		if _, err := s.Cancel(ctx, t.ID, nil, "payment window expired"); err != nil {
			s.log.Error("expiry cancel failed", zap.String("transaction_id", t.ID.String()), zap.Error(err))
		}
	}

	overdue, err := s.store.ListTransactions(ctx, storage.TxFilter{
		StatusIn:       []string{models.TxStatusAwaitingTransfer},
		DeadlineBefore: &now,
		Limit:          100,
	})
	if err != nil {
		return err
	}
	for _, t := range overdue {
		if _, err := s.Refund(ctx, t.ID, nil, "transfer window expired"); err != nil {
			s.log.Error("expiry refund failed", zap.String("transaction_id", t.ID.String()), zap.Error(err))
		}
	}
	return nil
}

// VerifySweep re-runs the buyer-side gate for transactions stuck in
// VERIFYING, e.g. after a probe outage.
func (s *EscrowService) VerifySweep(ctx context.Context) error {
	verifying := models.TxStatusVerifying
	txs, err := s.store.ListTransactions(ctx, storage.TxFilter{Status: &verifying, Limit: 100})
	if err != nil {
		return err
	}
	for _, t := range txs {
		if err := s.FinalizeTransfer(ctx, t.ID); err != nil {
			s.log.Error("verify sweep failed", zap.String("transaction_id", t.ID.String()), zap.Error(err))
		}
	}
	return nil
}

// ReverifyFunding re-runs the seller-side gate for a FUNDED
// transaction, the operator path out of a manual-review hold. Returns
// true when the re-run moved the transaction.
func (s *EscrowService) ReverifyFunding(ctx context.Context, txID uuid.UUID) (bool, error) {
	t, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return false, err
	}
	if t.Status != models.TxStatusFunded {
		return false, nil
	}
	if err := s.runSellerGate(ctx, t); err != nil {
		return false, err
	}
	return t.Status != models.TxStatusFunded, nil
}

// MonitorTransfers watches AWAITING_TRANSFER transactions for a
// completed handover the seller never reported: when the bot sees the
// buyer as the group owner, the transaction advances to VERIFYING and
// the buyer-side gate runs.
func (s *EscrowService) MonitorTransfers(ctx context.Context) error {
	txs, err := s.store.ListTransactions(ctx, storage.TxFilter{
		StatusIn: []string{models.TxStatusAwaitingTransfer},
		Limit:    100,
	})
	if err != nil {
		return err
	}
	for _, t := range txs {
		listing, err := s.store.GetListing(ctx, t.ListingID)
		if err != nil {
			continue
		}
		buyer, err := s.store.GetUser(ctx, t.BuyerID)
		if err != nil {
			continue
		}
		owns, err := s.verifier.probe.CheckOwnership(ctx, listing.GroupID, buyer.TelegramUserID)
		if err != nil || !owns.IsOwner {
			continue
		}

		var moved bool
		err = s.store.InTx(ctx, func(q storage.Queries) error {
			cur, err := q.GetTransactionForUpdate(ctx, t.ID)
			if err != nil {
				return err
			}
			moved, err = s.transition(ctx, q, cur, models.TxStatusVerifying, nil, models.AuditOwnershipChanged, map[string]any{
				"detected_by": "transfer monitor",
			})
			return err
		})
		if err != nil {
			s.log.Error("transfer monitor failed", zap.String("transaction_id", t.ID.String()), zap.Error(err))
			continue
		}
		if !moved {
			continue
		}
		cur := t
		cur.Status = models.TxStatusVerifying
		s.publishStatus(ctx, &cur, models.TxStatusAwaitingTransfer)
		if err := s.FinalizeTransfer(ctx, t.ID); err != nil {
			s.log.Error("transfer monitor gate failed", zap.String("transaction_id", t.ID.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *EscrowService) transferWindow() time.Duration {
	if s.cfg != nil && s.cfg.TransferWindow > 0 {
		return s.cfg.TransferWindow
	}
	return 7 * 24 * time.Hour
}

func (s *EscrowService) pendingTimeout() time.Duration {
	if s.cfg != nil && s.cfg.PendingTimeout > 0 {
		return s.cfg.PendingTimeout
	}
	return 24 * time.Hour
}
