package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/trustlink/backend/internal/http/dto"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/services"
	"go.uber.org/zap"
)

// SignatureHeader carries the provider's HMAC of the raw request body.
const SignatureHeader = "X-CC-Webhook-Signature"

type WebhookHandler struct {
	payments *services.PaymentService
	log      *zap.Logger
}

func NewWebhookHandler(payments *services.PaymentService, log *zap.Logger) *WebhookHandler {
	return &WebhookHandler{payments: payments, log: log}
}

// HandlePaymentWebhook is the provider-facing ingestion endpoint. The
// response code is the retry contract: 401 for a bad signature, 400 for
// a payload that will never parse, 404 for an unknown transaction, 200
// for anything handled — including benign no-ops — so the provider
// stops redelivering.
func (h *WebhookHandler) HandlePaymentWebhook(c *fiber.Ctx) error {
	body := c.Body()

	if !h.payments.VerifySignature(body, c.Get(SignatureHeader)) {
		h.log.Warn("webhook signature rejected", zap.String("ip", c.IP()))
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid signature"})
	}

	result, err := h.payments.Ingest(c.Context(), body)
	if err != nil {
		var verr *models.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: verr.Error()})
		case errors.Is(err, services.ErrUnknownTransaction):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "unknown transaction"})
		default:
			h.log.Error("webhook ingestion failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
		}
	}

	return c.JSON(dto.WebhookAckResponse{OK: true, Applied: result.Applied})
}
