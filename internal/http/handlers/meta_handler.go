package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/trustlink/backend/internal/http/dto"
	"github.com/trustlink/backend/internal/models"
)

type MetaHandler struct{}

func NewMetaHandler() *MetaHandler {
	return &MetaHandler{}
}

type MetaCategory struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var predefinedCategories = []MetaCategory{
	{ID: models.CategoryCrypto, Label: "Crypto & Web3"},
	{ID: models.CategoryTrading, Label: "Finance & Trading"},
	{ID: models.CategoryTech, Label: "Technology"},
	{ID: models.CategoryBusiness, Label: "Business"},
	{ID: models.CategoryEducation, Label: "Education"},
	{ID: models.CategoryEntertainment, Label: "Entertainment"},
	{ID: models.CategoryOther, Label: "Other"},
}

var supportedCurrencies = []string{
	models.CurrencyUSDT,
	models.CurrencyETH,
	models.CurrencyBTC,
}

func (h *MetaHandler) GetCategories(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: predefinedCategories})
}

func (h *MetaHandler) GetCurrencies(c *fiber.Ctx) error {
	return c.JSON(dto.SuccessResponse{OK: true, Data: supportedCurrencies})
}
