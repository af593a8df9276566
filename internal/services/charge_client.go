package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ChargeClient talks to the hosted-checkout payment provider.
type ChargeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewChargeClient(baseURL, apiKey string, log *zap.Logger) *ChargeClient {
	return &ChargeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type CreateChargeRequest struct {
	Name        string
	Description string
	AmountUSD   decimal.Decimal
	Metadata    map[string]string
}

// Charge is the provider's view of a hosted payment.
type Charge struct {
	ID        string            `json:"id"`
	Code      string            `json:"code"`
	HostedURL string            `json:"hosted_url"`
	Addresses map[string]string `json:"addresses"`
	ExpiresAt time.Time         `json:"expires_at"`
}

func (c *ChargeClient) CreateCharge(ctx context.Context, req CreateChargeRequest) (*Charge, error) {
	body, err := json.Marshal(map[string]any{
		"name":         req.Name,
		"description":  req.Description,
		"pricing_type": "fixed_price",
		"local_price": map[string]string{
			"amount":   req.AmountUSD.StringFixed(2),
			"currency": "USD",
		},
		"metadata": req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-CC-Api-Key", c.apiKey)
	httpReq.Header.Set("X-CC-Version", "2018-03-22")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment provider unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payment provider returned %d: %s", resp.StatusCode, string(b))
	}

	var wrapper struct {
		Data Charge `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapper); err != nil {
		return nil, err
	}
	if wrapper.Data.ID == "" {
		return nil, fmt.Errorf("payment provider returned charge without id")
	}
	return &wrapper.Data, nil
}

func (c *ChargeClient) CancelCharge(ctx context.Context, chargeID string) error {
	url := fmt.Sprintf("%s/charges/%s/cancel", c.baseURL, chargeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-CC-Api-Key", c.apiKey)
	req.Header.Set("X-CC-Version", "2018-03-22")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		c.log.Warn("charge cancel failed",
			zap.String("charge_id", chargeID),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(b)),
		)
	}
	return nil
}
