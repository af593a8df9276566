package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions. Closed set: every state-affecting event maps to exactly
// one of these tags.
const (
	AuditEscrowCreated      = "ESCROW_CREATED"
	AuditEscrowCancelled    = "ESCROW_CANCELLED"
	AuditPaymentReceived    = "PAYMENT_RECEIVED"
	AuditTransferStarted    = "TRANSFER_STARTED"
	AuditOwnershipChanged   = "OWNERSHIP_CHANGED"
	AuditVerificationPassed = "VERIFICATION_PASSED"
	AuditVerificationFailed = "VERIFICATION_FAILED"
	AuditFundsReleased      = "FUNDS_RELEASED"
	AuditFundsRefunded      = "FUNDS_REFUNDED"
	AuditDisputeOpened      = "DISPUTE_OPENED"
	AuditDisputeResolved    = "DISPUTE_RESOLVED"
)

// AuditLogEntry is append-only and immutable once written. It is the
// ground truth for what happened to a transaction and when.
type AuditLogEntry struct {
	ID            uuid.UUID      `json:"id"`
	TransactionID uuid.UUID      `json:"transaction_id"`
	Action        string         `json:"action"`
	ActorUserID   *uuid.UUID     `json:"actor_user_id,omitempty"` // nil = system
	Details       map[string]any `json:"details,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
