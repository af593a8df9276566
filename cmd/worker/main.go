package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trustlink/backend/internal/config"
	"github.com/trustlink/backend/internal/db"
	"github.com/trustlink/backend/internal/events"
	"github.com/trustlink/backend/internal/services"
	"github.com/trustlink/backend/internal/storage/postgres"
	"go.uber.org/zap"
)

// The worker runs the time-driven side of the escrow lifecycle:
// cancelling unfunded escrows, refunding lapsed transfer windows,
// re-running the verification gate for stuck transactions and expiring
// stale listings.
func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	store := postgres.NewStore(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)
	botClient := services.NewBotClient(cfg.BotInternalURL, log)
	verifier := services.NewVerificationService(store, botClient, log)
	escrowService := services.NewEscrowService(store, verifier, nil, botClient, publisher, cfg, log)
	listingService := services.NewListingService(store, botClient, nil, cfg, log)

	// Dispute events page the arbitration team.
	err = subscriber.Subscribe(ctx, events.StreamEscrow, func(e events.Event) {
		switch e.Type {
		case events.EventDisputeOpened, events.EventDisputeResolved:
			txID, _ := e.Payload["transaction_id"].(string)
			for _, adminID := range cfg.AdminTelegramIDs {
				_ = botClient.SendNotification(ctx, adminID,
					fmt.Sprintf("%s: transaction %s", e.Type, txID))
			}
		}
	})
	if err != nil {
		log.Error("failed to subscribe to escrow events", zap.Error(err))
	}

	log.Info("worker started")

	expiryTicker := time.NewTicker(cfg.ExpirySweepInterval)
	verifyTicker := time.NewTicker(cfg.TransferPollInterval)
	listingTicker := time.NewTicker(1 * time.Hour)
	defer expiryTicker.Stop()
	defer verifyTicker.Stop()
	defer listingTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expiryTicker.C:
			if err := escrowService.ExpireSweep(ctx); err != nil {
				log.Error("expiry sweep failed", zap.Error(err))
			}
		case <-verifyTicker.C:
			if err := escrowService.MonitorTransfers(ctx); err != nil {
				log.Error("transfer monitor failed", zap.Error(err))
			}
			if err := escrowService.VerifySweep(ctx); err != nil {
				log.Error("verify sweep failed", zap.Error(err))
			}
		case <-listingTicker.C:
			if err := listingService.ExpireSweep(ctx); err != nil {
				log.Error("listing expiry sweep failed", zap.Error(err))
			}
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}
