package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/trustlink/backend/internal/http/dto"
	"github.com/trustlink/backend/internal/middleware"
	"github.com/trustlink/backend/internal/services"
	"github.com/trustlink/backend/internal/storage"
	"go.uber.org/zap"
)

type EscrowHandler struct {
	escrow *services.EscrowService
	log    *zap.Logger
}

func NewEscrowHandler(escrow *services.EscrowService, log *zap.Logger) *EscrowHandler {
	return &EscrowHandler{escrow: escrow, log: log}
}

func (h *EscrowHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateEscrowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing_id"})
	}

	buyerID := middleware.GetUserID(c)
	t, err := h.escrow.Create(c.Context(), buyerID, listingID, req.Currency)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: t})
}

func (h *EscrowHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}
	t, err := h.escrow.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: t})
}

// Status returns the full projection: transaction, dispute,
// verification result and recent audit trail.
func (h *EscrowHandler) Status(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}
	view, err := h.escrow.Status(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: view})
}

func (h *EscrowHandler) List(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	filter := storage.TxFilter{UserID: &userID, Limit: 20}

	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if v := c.Query("status"); v != "" {
		filter.Status = &v
	}

	txs, err := h.escrow.List(c.Context(), filter)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *EscrowHandler) GetPaymentInfo(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}
	t, err := h.escrow.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: dto.PaymentInfoResponse{
		TransactionID: t.ID.String(),
		ChargeID:      t.PaymentChargeID,
		HostedURL:     t.PaymentChargeURL,
		Address:       t.PaymentAddress,
		Amount:        t.Amount.String(),
		Currency:      t.Currency,
		Status:        t.Status,
	}})
}

func (h *EscrowHandler) MarkTransferred(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	actorID := middleware.GetUserID(c)
	applied, err := h.escrow.MarkTransferred(c.Context(), id, actorID)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "transaction is not awaiting transfer"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) Cancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.CancelEscrowRequest
	_ = c.BodyParser(&req)
	if req.Reason == "" {
		req.Reason = "cancelled by buyer"
	}

	actorID := middleware.GetUserID(c)
	t, err := h.escrow.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if t.BuyerID != actorID {
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Error: "only the buyer can cancel"})
	}

	applied, err := h.escrow.Cancel(c.Context(), id, &actorID, req.Reason)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "only an unfunded escrow can be cancelled"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Release is the admin override for releasing held funds.
func (h *EscrowHandler) Release(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	actorID := middleware.GetUserID(c)
	applied, err := h.escrow.Complete(c.Context(), id, &actorID)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "funds cannot be released from the current status"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Reverify re-runs the funding verification gate on a FUNDED
// transaction, the operator path out of a manual-review hold.
func (h *EscrowHandler) Reverify(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	applied, err := h.escrow.ReverifyFunding(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "verification did not move the transaction"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

// Refund is the admin override for returning held funds to the buyer.
func (h *EscrowHandler) Refund(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.RefundEscrowRequest
	if err := c.BodyParser(&req); err != nil || req.Reason == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "reason is required"})
	}

	actorID := middleware.GetUserID(c)
	applied, err := h.escrow.Refund(c.Context(), id, &actorID, req.Reason)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "funds cannot be refunded from the current status"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *EscrowHandler) OpenDispute(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid transaction id"})
	}

	var req dto.OpenDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	actorID := middleware.GetUserID(c)
	d, err := h.escrow.OpenDispute(c.Context(), id, actorID, req.Description)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: d})
}
