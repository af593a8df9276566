package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment provider event types. Unknown types are accepted and ignored.
const (
	WebhookChargeConfirmed = "charge:confirmed"
	WebhookChargeResolved  = "charge:resolved"
	WebhookChargeFailed    = "charge:failed"
	WebhookChargePending   = "charge:pending"
	WebhookChargeDelayed   = "charge:delayed"
)

// PaymentWebhookRecord stores a verified provider payload verbatim.
// Only the Processed flag ever changes after insert.
type PaymentWebhookRecord struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	EventType     string    `json:"event_type"`
	ChargeID      string    `json:"charge_id,omitempty"`
	Payload       []byte    `json:"payload"`
	Processed     bool      `json:"processed"`
	CreatedAt     time.Time `json:"created_at"`
}
