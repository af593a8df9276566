package events

import "context"

// Event types
const (
	EventEscrowStatusChanged = "escrow_status_changed"
	EventPaymentReceived     = "payment_received"
	EventDisputeOpened       = "dispute_opened"
	EventDisputeResolved     = "dispute_resolved"
)

// StreamEscrow carries every lifecycle event; the WS hub and the worker
// both subscribe to it.
const StreamEscrow = "events:escrow"

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
