package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trustlink/backend/internal/events"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
	"go.uber.org/zap"
)

// DisputeService runs the arbitration workflow on top of the escrow
// state machine. Resolving a dispute and moving the underlying
// transaction happen in one storage unit: if the funds movement cannot
// be applied, the dispute stays unresolved.
type DisputeService struct {
	store     storage.Store
	escrow    *EscrowService
	publisher events.Publisher
	log       *zap.Logger
}

func NewDisputeService(store storage.Store, escrow *EscrowService, publisher events.Publisher, log *zap.Logger) *DisputeService {
	return &DisputeService{store: store, escrow: escrow, publisher: publisher, log: log}
}

func (s *DisputeService) Get(ctx context.Context, id uuid.UUID) (*models.DisputeCase, error) {
	return s.store.GetDispute(ctx, id)
}

func (s *DisputeService) GetByTransaction(ctx context.Context, txID uuid.UUID) (*models.DisputeCase, error) {
	return s.store.GetDisputeByTransaction(ctx, txID)
}

// Assign puts an arbitrator on the case and starts the investigation.
func (s *DisputeService) Assign(ctx context.Context, disputeID, arbitratorID uuid.UUID) (bool, error) {
	var applied bool
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		applied = false
		d, err := q.GetDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if !models.IsValidDisputeTransition(d.Status, models.DisputeStatusInvestigating) {
			return nil
		}
		d.Status = models.DisputeStatusInvestigating
		d.ArbitratorID = &arbitratorID
		if err := q.UpdateDispute(ctx, d); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// SubmitEvidence merges new evidence into the case. Accepted while the
// case is OPEN or INVESTIGATING; once a ruling is awaited the record is
// frozen for the arbitrator.
func (s *DisputeService) SubmitEvidence(ctx context.Context, disputeID, actorID uuid.UUID, evidence map[string]any) error {
	if len(evidence) == 0 {
		return models.NewValidationError("evidence", "evidence is empty")
	}
	return s.store.InTx(ctx, func(q storage.Queries) error {
		d, err := q.GetDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if d.Status != models.DisputeStatusOpen && d.Status != models.DisputeStatusInvestigating {
			return models.NewValidationError("status", "dispute no longer accepts evidence")
		}
		t, err := q.GetTransaction(ctx, d.TransactionID)
		if err != nil {
			return err
		}
		if actorID != t.BuyerID && actorID != t.SellerID && (d.ArbitratorID == nil || *d.ArbitratorID != actorID) {
			return models.NewValidationError("actor", "not a party to this dispute")
		}

		if d.Evidence == nil {
			d.Evidence = map[string]any{}
		}
		for k, v := range evidence {
			d.Evidence[fmt.Sprintf("%s:%s", actorID, k)] = v
		}
		return q.UpdateDispute(ctx, d)
	})
}

// RequestRuling closes the evidence window.
func (s *DisputeService) RequestRuling(ctx context.Context, disputeID uuid.UUID) (bool, error) {
	var applied bool
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		applied = false
		d, err := q.GetDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if !models.IsValidDisputeTransition(d.Status, models.DisputeStatusAwaitingRuling) {
			return nil
		}
		d.Status = models.DisputeStatusAwaitingRuling
		if err := q.UpdateDispute(ctx, d); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}

// RefundSplit is the explicit division of held funds for a
// PARTIAL_REFUND ruling. Both sides must be stated and must sum to the
// escrowed amount; the engine never invents a split.
type RefundSplit struct {
	Buyer  decimal.Decimal `json:"buyer"`
	Seller decimal.Decimal `json:"seller"`
}

// Resolve applies a binding ruling. The dispute update, the transaction
// movement and the audit entries commit together; a ruling whose funds
// movement is impossible leaves the dispute awaiting a new ruling. A
// resolve against an already-resolved case is a stale duplicate and a
// no-op.
func (s *DisputeService) Resolve(ctx context.Context, disputeID, resolvedBy uuid.UUID, ruling models.Ruling, notes string, split *RefundSplit) (bool, error) {
	if !ruling.Valid() {
		return false, models.NewValidationError("ruling", fmt.Sprintf("unknown ruling %q", ruling))
	}
	if ruling == models.RulingPartialRefund && split == nil {
		return false, models.NewValidationError("split", "PARTIAL_REFUND requires an explicit split")
	}

	var (
		d         *models.DisputeCase
		t         *models.EscrowTransaction
		oldStatus string
		applied   bool
	)
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		applied = false
		var err error
		d, err = q.GetDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if d.Status == models.DisputeStatusResolved || d.Status == models.DisputeStatusClosed {
			return nil
		}
		if !models.IsValidDisputeTransition(d.Status, models.DisputeStatusResolved) {
			return nil
		}

		t, err = q.GetTransactionForUpdate(ctx, d.TransactionID)
		if err != nil {
			return err
		}
		oldStatus = t.Status

		if split != nil {
			if split.Buyer.IsNegative() || split.Seller.IsNegative() {
				return models.NewValidationError("split", "split amounts must be non-negative")
			}
			if !split.Buyer.Add(split.Seller).Equal(t.Amount) {
				return models.NewValidationError("split",
					fmt.Sprintf("split %s + %s does not equal escrowed amount %s",
						split.Buyer, split.Seller, t.Amount))
			}
		}

		moved, err := s.applyRuling(ctx, q, t, ruling, &resolvedBy, split)
		if err != nil {
			return err
		}
		if !moved {
			return models.NewValidationError("status",
				fmt.Sprintf("ruling %s cannot be applied to transaction in status %s", ruling, t.Status))
		}

		now := time.Now()
		d.Status = models.DisputeStatusResolved
		d.Ruling = &ruling
		d.ResolutionNotes = notes
		d.ResolvedByID = &resolvedBy
		d.ResolvedAt = &now
		if err := q.UpdateDispute(ctx, d); err != nil {
			return err
		}

		details := map[string]any{"ruling": string(ruling), "dispute_id": d.ID.String()}
		if split != nil {
			details["refund_buyer"] = split.Buyer.String()
			details["refund_seller"] = split.Seller.String()
		}
		if err := q.AppendAudit(ctx, &models.AuditLogEntry{
			ID:            uuid.New(),
			TransactionID: t.ID,
			Action:        models.AuditDisputeResolved,
			ActorUserID:   &resolvedBy,
			Details:       details,
		}); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil || !applied {
		return false, err
	}

	s.escrow.publishStatus(ctx, t, oldStatus)
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, events.StreamEscrow, events.Event{
			Type: events.EventDisputeResolved,
			Payload: map[string]any{
				"transaction_id": t.ID.String(),
				"dispute_id":     d.ID.String(),
				"ruling":         string(ruling),
			},
		})
	}
	s.log.Info("dispute resolved",
		zap.String("dispute_id", d.ID.String()),
		zap.String("ruling", string(ruling)),
	)
	return true, nil
}

func (s *DisputeService) applyRuling(ctx context.Context, q storage.Queries, t *models.EscrowTransaction, ruling models.Ruling, actorID *uuid.UUID, split *RefundSplit) (bool, error) {
	switch ruling {
	case models.RulingFavorSeller:
		return s.escrow.completeLocked(ctx, q, t, actorID)
	case models.RulingFavorBuyer:
		return s.escrow.transition(ctx, q, t, models.TxStatusRefunded, actorID, models.AuditFundsRefunded, map[string]any{
			"reason": "dispute ruled in favor of buyer",
		})
	case models.RulingPartialRefund:
		return s.escrow.transition(ctx, q, t, models.TxStatusRefunded, actorID, models.AuditFundsRefunded, map[string]any{
			"reason":        "partial refund ruling",
			"refund_buyer":  split.Buyer.String(),
			"refund_seller": split.Seller.String(),
		})
	case models.RulingNoAction:
		// The dispute was unfounded; put the transaction back where it
		// was in the flow.
		resume := models.TxStatusPending
		if t.FundedAt != nil {
			resume = models.TxStatusAwaitingTransfer
		}
		return s.escrow.transition(ctx, q, t, resume, actorID, models.AuditDisputeResolved, map[string]any{
			"reason": "no action ruling, flow resumed",
		})
	}
	return false, models.NewValidationError("ruling", fmt.Sprintf("unknown ruling %q", ruling))
}

// Close archives a resolved case. Bookkeeping only: the transaction was
// already moved by Resolve.
func (s *DisputeService) Close(ctx context.Context, disputeID uuid.UUID) (bool, error) {
	var applied bool
	err := s.store.InTx(ctx, func(q storage.Queries) error {
		applied = false
		d, err := q.GetDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if !models.IsValidDisputeTransition(d.Status, models.DisputeStatusClosed) {
			return nil
		}
		d.Status = models.DisputeStatusClosed
		if err := q.UpdateDispute(ctx, d); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
