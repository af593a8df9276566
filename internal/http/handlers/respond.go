package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/trustlink/backend/internal/http/dto"
	"github.com/trustlink/backend/internal/models"
	"github.com/trustlink/backend/internal/storage"
	"go.uber.org/zap"
)

// serviceError maps service failures onto the response contract:
// validation errors are the caller's fault, missing rows are 404,
// anything else is logged and hidden behind a 500.
func serviceError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: verr.Error()})
	}
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "not found"})
	}
	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal server error"})
}
