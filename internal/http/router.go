package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/trustlink/backend/internal/config"
	"github.com/trustlink/backend/internal/http/handlers"
	"github.com/trustlink/backend/internal/middleware"
	"github.com/trustlink/backend/internal/rbac"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	listingHandler *handlers.ListingHandler,
	escrowHandler *handlers.EscrowHandler,
	disputeHandler *handlers.DisputeHandler,
	webhookHandler *handlers.WebhookHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/telegram", authHandler.TelegramAuth)

	// Payment provider webhook (signature-authenticated, not JWT)
	api.Post("/webhooks/payment", webhookHandler.HandlePaymentWebhook)

	// Rate-limited public endpoints
	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Meta (public, no auth required)
	metaHandler := handlers.NewMetaHandler()
	api.Get("/meta/categories", metaHandler.GetCategories)
	api.Get("/meta/currencies", metaHandler.GetCurrencies)

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)

	// Listings
	protected.Post("/listings", listingHandler.Create)
	protected.Get("/listings", listingHandler.List)
	protected.Get("/listings/:id", listingHandler.Get)
	protected.Put("/listings/:id", listingHandler.Update)
	protected.Post("/listings/:id/refresh", listingHandler.Refresh)

	// Escrow transactions
	protected.Post("/escrows", escrowHandler.Create)
	protected.Get("/escrows", escrowHandler.List)
	protected.Get("/escrows/:id", escrowHandler.Get)
	protected.Get("/escrows/:id/status", escrowHandler.Status)
	protected.Get("/escrows/:id/payment", escrowHandler.GetPaymentInfo)
	protected.Post("/escrows/:id/transferred", escrowHandler.MarkTransferred)
	protected.Post("/escrows/:id/cancel", escrowHandler.Cancel)
	protected.Post("/escrows/:id/dispute", escrowHandler.OpenDispute)

	// Disputes (parties can read and submit evidence)
	protected.Get("/disputes/:id", disputeHandler.Get)
	protected.Post("/disputes/:id/evidence", disputeHandler.SubmitEvidence)

	// Arbitration
	arbitration := protected.Group("", middleware.RequirePermission(cfg, rbac.PermResolveDispute))
	arbitration.Post("/disputes/:id/assign", disputeHandler.Assign)
	arbitration.Post("/disputes/:id/request-ruling", disputeHandler.RequestRuling)
	arbitration.Post("/disputes/:id/resolve", disputeHandler.Resolve)
	arbitration.Post("/disputes/:id/close", disputeHandler.Close)

	// Admin overrides
	admin := protected.Group("", middleware.RequirePermission(cfg, rbac.PermReleaseFunds))
	admin.Post("/escrows/:id/release", escrowHandler.Release)
	admin.Post("/escrows/:id/refund", escrowHandler.Refund)
	admin.Post("/escrows/:id/reverify", escrowHandler.Reverify)
	admin.Post("/listings/:id/suspend", listingHandler.Suspend)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
