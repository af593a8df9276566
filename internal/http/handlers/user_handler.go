package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trustlink/backend/internal/http/dto"
	"github.com/trustlink/backend/internal/middleware"
	"github.com/trustlink/backend/internal/storage"
	"go.uber.org/zap"
)

type UserHandler struct {
	store storage.Store
	log   *zap.Logger
}

func NewUserHandler(store storage.Store, log *zap.Logger) *UserHandler {
	return &UserHandler{store: store, log: log}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	userID := middleware.GetUserID(c)
	user, err := h.store.GetUser(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: user})
}
