package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/trustlink/backend/internal/http/dto"
	"github.com/trustlink/backend/internal/middleware"
	"github.com/trustlink/backend/internal/services"
	"github.com/trustlink/backend/internal/storage"
	"go.uber.org/zap"
)

type ListingHandler struct {
	listings *services.ListingService
	log      *zap.Logger
}

func NewListingHandler(listings *services.ListingService, log *zap.Logger) *ListingHandler {
	return &ListingHandler{listings: listings, log: log}
}

func (h *ListingHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	price, err := decimal.NewFromString(req.PriceUSD)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid price_usd"})
	}

	sellerID := middleware.GetUserID(c)
	listing, err := h.listings.Create(c.Context(), sellerID, services.CreateListingInput{
		GroupID:     req.GroupID,
		PriceUSD:    price,
		Category:    req.Category,
		Description: req.Description,
	})
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing id"})
	}
	listing, err := h.listings.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) List(c *fiber.Ctx) error {
	filter := storage.ListingFilter{Limit: 20}

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
	if v := c.Query("category"); v != "" {
		filter.Category = &v
	}
	if c.Query("mine") == "true" {
		sellerID := middleware.GetUserID(c)
		filter.SellerID = &sellerID
	}

	listings, err := h.listings.List(c.Context(), filter)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listings})
}

func (h *ListingHandler) Update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing id"})
	}

	var req dto.UpdateListingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}

	input := services.UpdateListingInput{
		Category:    req.Category,
		Description: req.Description,
	}
	if req.PriceUSD != nil {
		price, err := decimal.NewFromString(*req.PriceUSD)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid price_usd"})
		}
		input.PriceUSD = &price
	}

	sellerID := middleware.GetUserID(c)
	listing, err := h.listings.Update(c.Context(), id, sellerID, input)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) Refresh(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing id"})
	}
	listing, err := h.listings.Refresh(c.Context(), id)
	if err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: listing})
}

func (h *ListingHandler) Suspend(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid listing id"})
	}
	if err := h.listings.Suspend(c.Context(), id); err != nil {
		return serviceError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}
