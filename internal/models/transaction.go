package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Escrow transaction statuses
const (
	TxStatusPending          = "PENDING"
	TxStatusFunded           = "FUNDED"
	TxStatusAwaitingTransfer = "AWAITING_TRANSFER"
	TxStatusVerifying        = "VERIFYING"
	TxStatusCompleted        = "COMPLETED"
	TxStatusRefunded         = "REFUNDED"
	TxStatusDisputed         = "DISPUTED"
	TxStatusCancelled        = "CANCELLED"
)

// Supported currencies
const (
	CurrencyUSDT = "USDT"
	CurrencyETH  = "ETH"
	CurrencyBTC  = "BTC"
)

func IsValidCurrency(c string) bool {
	switch c {
	case CurrencyUSDT, CurrencyETH, CurrencyBTC:
		return true
	}
	return false
}

// Valid state transitions: from -> []to. Webhook retries and stale
// callbacks make invalid transitions an everyday event, so callers treat
// them as no-ops rather than errors.
var ValidTxTransitions = map[string][]string{
	TxStatusPending:          {TxStatusFunded, TxStatusDisputed, TxStatusCancelled, TxStatusRefunded},
	TxStatusFunded:           {TxStatusAwaitingTransfer, TxStatusDisputed, TxStatusRefunded},
	TxStatusAwaitingTransfer: {TxStatusVerifying, TxStatusCompleted, TxStatusDisputed, TxStatusRefunded},
	TxStatusVerifying:        {TxStatusCompleted, TxStatusDisputed, TxStatusRefunded},
	TxStatusDisputed:         {TxStatusCompleted, TxStatusRefunded, TxStatusAwaitingTransfer, TxStatusPending},
	TxStatusCompleted:        {},
	TxStatusRefunded:         {},
	TxStatusCancelled:        {},
}

func IsValidTxTransition(from, to string) bool {
	allowed, ok := ValidTxTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalTxStatus reports whether no further transitions are possible.
func IsTerminalTxStatus(status string) bool {
	allowed, ok := ValidTxTransitions[status]
	return ok && len(allowed) == 0
}

// EscrowTransaction is the record of one buyer-seller trade mediated by
// held funds. Mutated only through the escrow service; never deleted.
type EscrowTransaction struct {
	ID        uuid.UUID `json:"id"`
	BuyerID   uuid.UUID `json:"buyer_id"`
	SellerID  uuid.UUID `json:"seller_id"`
	ListingID uuid.UUID `json:"listing_id"`

	Amount        decimal.Decimal  `json:"amount"`
	Currency      string           `json:"currency"`
	USDEquivalent *decimal.Decimal `json:"usd_equivalent,omitempty"`

	Status string `json:"status"`

	// Provider payment linkage, immutable once set.
	PaymentChargeID  *string `json:"payment_charge_id,omitempty"`
	PaymentChargeURL *string `json:"payment_charge_url,omitempty"`
	PaymentAddress   *string `json:"payment_address,omitempty"`
	PaymentTxHash    *string `json:"payment_tx_hash,omitempty"`

	CreatedAt        time.Time  `json:"created_at"`
	FundedAt         *time.Time `json:"funded_at,omitempty"`
	TransferDeadline *time.Time `json:"transfer_deadline,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`

	Notes string `json:"notes,omitempty"`
}

func (t *EscrowTransaction) IsExpired(now time.Time) bool {
	return t.TransferDeadline != nil && now.After(*t.TransferDeadline)
}

// AppendNote keeps operator notes append-oriented.
func (t *EscrowTransaction) AppendNote(note string) {
	if t.Notes == "" {
		t.Notes = note
		return
	}
	t.Notes = t.Notes + "\n" + note
}

// ValidationError marks caller input the state machine refuses to act on.
// It is terminal: the caller must fix the input, never retry as-is.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}
