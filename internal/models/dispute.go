package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute case statuses
const (
	DisputeStatusOpen           = "OPEN"
	DisputeStatusInvestigating  = "INVESTIGATING"
	DisputeStatusAwaitingRuling = "AWAITING_RULING"
	DisputeStatusResolved       = "RESOLVED"
	DisputeStatusClosed         = "CLOSED"
)

// Valid dispute transitions: from -> []to. Resolve may also be applied
// straight from OPEN or INVESTIGATING — an arbitrator is not forced
// through every intermediate stage.
var ValidDisputeTransitions = map[string][]string{
	DisputeStatusOpen:           {DisputeStatusInvestigating, DisputeStatusAwaitingRuling, DisputeStatusResolved},
	DisputeStatusInvestigating:  {DisputeStatusAwaitingRuling, DisputeStatusResolved},
	DisputeStatusAwaitingRuling: {DisputeStatusResolved},
	DisputeStatusResolved:       {DisputeStatusClosed, DisputeStatusAwaitingRuling},
	DisputeStatusClosed:         {},
}

func IsValidDisputeTransition(from, to string) bool {
	allowed, ok := ValidDisputeTransitions[from]
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

// Ruling is the binding decision applied to a resolved dispute. Closed set:
// adding a ruling kind is a compile-time decision, every switch over it
// must stay exhaustive.
type Ruling string

const (
	RulingFavorSeller   Ruling = "FAVOR_SELLER"
	RulingFavorBuyer    Ruling = "FAVOR_BUYER"
	RulingPartialRefund Ruling = "PARTIAL_REFUND"
	RulingNoAction      Ruling = "NO_ACTION"
)

func (r Ruling) Valid() bool {
	switch r {
	case RulingFavorSeller, RulingFavorBuyer, RulingPartialRefund, RulingNoAction:
		return true
	}
	return false
}

// DisputeCase formally contests a transaction's progress. At most one per
// transaction; opening one forces the transaction into DISPUTED.
type DisputeCase struct {
	ID            uuid.UUID `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	OpenedByID    uuid.UUID `json:"opened_by_id"`
	Status        string    `json:"status"`
	Description   string    `json:"description"`

	ArbitratorID *uuid.UUID     `json:"arbitrator_id,omitempty"`
	Evidence     map[string]any `json:"evidence,omitempty"`

	// Resolution fields, nil until status = RESOLVED, immutable after.
	Ruling          *Ruling    `json:"ruling,omitempty"`
	ResolutionNotes string     `json:"resolution_notes,omitempty"`
	ResolvedByID    *uuid.UUID `json:"resolved_by_id,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
