package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trustlink/backend/internal/http/dto"
	"github.com/trustlink/backend/internal/middleware"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/services"
	"go.uber.org/zap"
)

type DisputeHandler struct {
	disputes *services.DisputeService
	log      *zap.Logger
}

func NewDisputeHandler(disputes *services.DisputeService, log *zap.Logger) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, log: log}
}

func (h *DisputeHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}
	d, err := h.disputes.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *DisputeHandler) Assign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	var req dto.AssignDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	arbitratorID, err := uuid.Parse(req.ArbitratorID)
	if err != nil {
		// Default to self-assignment by the calling arbitrator.
		arbitratorID = middleware.GetUserID(c)
	}

	applied, err := h.disputes.Assign(c.Context(), id, arbitratorID)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "dispute is not open for assignment"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DisputeHandler) SubmitEvidence(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	var req dto.SubmitEvidenceRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	actorID := middleware.GetUserID(c)
	if err := h.disputes.SubmitEvidence(c.Context(), id, actorID, req.Evidence); err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DisputeHandler) RequestRuling(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	applied, err := h.disputes.RequestRuling(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "dispute is not under investigation"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DisputeHandler) Resolve(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	var split *services.RefundSplit
	if req.RefundBuyer != "" || req.RefundSeller != "" {
		buyer, err := decimal.NewFromString(req.RefundBuyer)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid refund_buyer"})
		}
		seller, err := decimal.NewFromString(req.RefundSeller)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid refund_seller"})
		}
		split = &services.RefundSplit{Buyer: buyer, Seller: seller}
	}

	actorID := middleware.GetUserID(c)
	applied, err := h.disputes.Resolve(c.Context(), id, actorID, models.Ruling(req.Ruling), req.Notes, split)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "dispute is already resolved"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *DisputeHandler) Close(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid dispute id"})
	}

	applied, err := h.disputes.Close(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	if !applied {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: "dispute is not resolved"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
