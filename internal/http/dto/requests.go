package dto

type AuthTelegramRequest struct {
	InitData string `json:"init_data"`
}

type CreateListingRequest struct {
	GroupID     int64  `json:"group_id"`
	PriceUSD    string `json:"price_usd"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

type UpdateListingRequest struct {
	PriceUSD    *string `json:"price_usd,omitempty"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
}

type CreateEscrowRequest struct {
	ListingID string `json:"listing_id"`
	Currency  string `json:"currency"`
}

type CancelEscrowRequest struct {
	Reason string `json:"reason,omitempty"`
}

type RefundEscrowRequest struct {
	Reason string `json:"reason"`
}

type OpenDisputeRequest struct {
	Description string `json:"description"`
}

type AssignDisputeRequest struct {
	ArbitratorID string `json:"arbitrator_id"`
}

type SubmitEvidenceRequest struct {
	Evidence map[string]any `json:"evidence"`
}

type ResolveDisputeRequest struct {
	Ruling       string `json:"ruling"`
	Notes        string `json:"notes,omitempty"`
	RefundBuyer  string `json:"refund_buyer,omitempty"`  // PARTIAL_REFUND only
	RefundSeller string `json:"refund_seller,omitempty"` // PARTIAL_REFUND only
}
