package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/trustlink/backend/internal/config"
	"github.com/trustlink/backend/internal/db"
	"github.com/trustlink/backend/internal/events"
	apphttp "github.com/trustlink/backend/internal/http"
	"github.com/trustlink/backend/internal/http/handlers"
	"github.com/trustlink/backend/internal/services"
	"github.com/trustlink/backend/internal/storage/postgres"
	"github.com/trustlink/backend/internal/tme"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Storage
	store := postgres.NewStore(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	botClient := services.NewBotClient(cfg.BotInternalURL, log)
	chargeClient := services.NewChargeClient(cfg.PaymentAPIBaseURL, cfg.PaymentAPIKey, log)
	previewParser := tme.NewParser(cfg.TMEFetchTimeoutMS, cfg.TMEFetchMaxRetries, log)
	verifier := services.NewVerificationService(store, botClient, log)
	escrowService := services.NewEscrowService(store, verifier, chargeClient, botClient, publisher, cfg, log)
	paymentService := services.NewPaymentService(store, escrowService, cfg.PaymentWebhookSecret, log)
	disputeService := services.NewDisputeService(store, escrowService, publisher, log)
	listingService := services.NewListingService(store, botClient, previewParser, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(store, cfg, log)
	userHandler := handlers.NewUserHandler(store, log)
	listingHandler := handlers.NewListingHandler(listingService, log)
	escrowHandler := handlers.NewEscrowHandler(escrowService, log)
	disputeHandler := handlers.NewDisputeHandler(disputeService, log)
	webhookHandler := handlers.NewWebhookHandler(paymentService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, listingHandler, escrowHandler, disputeHandler, webhookHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
