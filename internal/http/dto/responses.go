package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type PaymentInfoResponse struct {
	TransactionID string  `json:"transaction_id"`
	ChargeID      *string `json:"charge_id,omitempty"`
	HostedURL     *string `json:"hosted_url,omitempty"`
	Address       *string `json:"address,omitempty"`
	Amount        string  `json:"amount"`
	Currency      string  `json:"currency"`
	Status        string  `json:"status"`
}

type WebhookAckResponse struct {
	OK      bool `json:"ok"`
	Applied bool `json:"applied"`
}
