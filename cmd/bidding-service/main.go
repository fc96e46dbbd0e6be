package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"auction-bidding/internal/api/handlers"
	"auction-bidding/internal/config"
	"auction-bidding/internal/domain"
	"auction-bidding/internal/infrastructure/backend"
	"auction-bidding/internal/infrastructure/identity"
	"auction-bidding/internal/infrastructure/websocket"
	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithLevel(cfg.Log.Level).With("service", "bidding-service", "instance_id", cfg.Instance.ID)
	defer log.Sync()
	log.Info("Starting bidding service", "config", cfg.GetConfigString())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	clock := domain.SystemClock{}
	b, err := backend.Open(ctx, cfg, clock, log)
	if err != nil {
		log.Fatal("Failed to initialize storage", "driver", cfg.Storage.Driver, "error", err)
	}
	defer b.Close()

	identityProvider, err := identity.NewProvider(cfg.Auth)
	if err != nil {
		log.Fatal("Failed to initialize identity provider", "error", err)
	}

	auctionManager := services.NewAuctionManager(b.Store, b.Publisher, clock, cfg.Bidding.Precision, cfg.Sweep.BatchSize, log)
	bidService := services.NewBidService(b.Store, auctionManager, b.Publisher, clock, cfg.Bidding, log)

	// Initialize connection manager
	connManager := websocket.NewConnectionManager(log)
	auctionBroadcaster := websocket.NewNotifier(connManager)

	eventListener := services.NewEventListener(connManager, auctionBroadcaster, log)
	wsHandler := websocket.NewHandler(bidService, auctionManager, identityProvider, connManager, log)

	router := handlers.NewBiddingRouter(wsHandler, log)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	go func() {
		if err := eventListener.Start(runCtx, b.Subscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Event listener stopped", "error", err)
		}
	}()

	// Start HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bidding service...")

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	stopRun()

	log.Info("Bidding service stopped")
}
