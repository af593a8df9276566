package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/trustlink/backend/internal/http/dto"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/services"
	"github.com/trustlink/backend/internal/storage/memory"
	"go.uber.org/zap"
)

const webhookTestSecret = "whsec_handler_test"

// staticProber always reports the configured owner; enough to drive the
// post-funding gate in webhook tests.
type staticProber struct {
	ownerID int64
	title   string
	members int
}

func (p *staticProber) GetGroupInfo(ctx context.Context, groupID int64) (*services.GroupInfo, error) {
	return &services.GroupInfo{
		GroupID:     groupID,
		Title:       p.title,
		MemberCount: p.members,
		OwnerID:     p.ownerID,
		AdminIDs:    []int64{p.ownerID},
		BotIsAdmin:  true,
	}, nil
}

func (p *staticProber) CheckOwnership(ctx context.Context, groupID, telegramUserID int64) (*services.CheckOwnershipResult, error) {
	return &services.CheckOwnershipResult{IsOwner: telegramUserID == p.ownerID, IsAdmin: telegramUserID == p.ownerID}, nil
}

func newWebhookTestApp(t *testing.T) (*fiber.App, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	log := zap.NewNop()

	buyer := &models.User{TelegramUserID: 11}
	seller := &models.User{TelegramUserID: 22}
	require.NoError(t, store.UpsertUser(ctx, buyer))
	require.NoError(t, store.UpsertUser(ctx, seller))

	expires := time.Now().Add(24 * time.Hour)
	listing := &models.GroupListing{
		ID:          uuid.New(),
		SellerID:    seller.ID,
		GroupID:     -100500,
		GroupTitle:  "Handler Test Group",
		MemberCount: 100,
		PriceUSD:    decimal.RequireFromString("10.00"),
		Category:    models.CategoryTech,
		Status:      models.ListingStatusActive,
		BotIsAdmin:  true,
		ExpiresAt:   &expires,
	}
	require.NoError(t, store.CreateListing(ctx, listing))

	probe := &staticProber{ownerID: seller.TelegramUserID, title: listing.GroupTitle, members: listing.MemberCount}
	verifier := services.NewVerificationService(store, probe, log)
	escrow := services.NewEscrowService(store, verifier, nil, nil, nil, nil, log)
	payments := services.NewPaymentService(store, escrow, webhookTestSecret, log)

	tx, err := escrow.Create(ctx, buyer.ID, listing.ID, models.CurrencyUSDT)
	require.NoError(t, err)

	app := fiber.New()
	h := NewWebhookHandler(payments, log)
	app.Post("/api/v1/webhooks/payment", h.HandlePaymentWebhook)
	return app, tx.ID
}

func signWebhook(body []byte) string {
	mac := hmac.New(sha256.New, []byte(webhookTestSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(t *testing.T, app *fiber.App, body []byte, signature string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(SignatureHeader, signature)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func confirmedBody(txID uuid.UUID) []byte {
	return []byte(fmt.Sprintf(`{"event":{"type":"charge:confirmed","data":{"id":"CH-1","metadata":{"transaction_id":%q}}}}`, txID))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	app, txID := newWebhookTestApp(t)
	body := confirmedBody(txID)

	resp := postWebhook(t, app, body, "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = postWebhook(t, app, body, "deadbeef")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Signature of a different body.
	resp = postWebhook(t, app, body, signWebhook([]byte("other")))
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWebhookAcceptsConfirmation(t *testing.T) {
	app, txID := newWebhookTestApp(t)
	body := confirmedBody(txID)

	resp := postWebhook(t, app, body, signWebhook(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ack dto.WebhookAckResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	require.True(t, ack.OK)
	require.True(t, ack.Applied)

	// Redelivery: still 200, no longer applied.
	resp = postWebhook(t, app, body, signWebhook(body))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	require.True(t, ack.OK)
	require.False(t, ack.Applied)
}

func TestWebhookBadPayload(t *testing.T) {
	app, _ := newWebhookTestApp(t)

	body := []byte(`{"event":{"data":{}}}`)
	resp := postWebhook(t, app, body, signWebhook(body))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookUnknownTransaction(t *testing.T) {
	app, _ := newWebhookTestApp(t)

	body := confirmedBody(uuid.New())
	resp := postWebhook(t, app, body, signWebhook(body))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
