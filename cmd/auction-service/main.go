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
	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithLevel(cfg.Log.Level).With("service", "auction-service", "instance_id", cfg.Instance.ID)
	defer log.Sync()
	log.Info("Starting auction service", "config", cfg.GetConfigString())

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
	sweeper := services.NewSweeper(cfg.Sweep.Schedule, auctionManager, b.Leader, cfg.Instance.ID, log)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: `{"time":"${time_rfc3339}","id":"${id}","remote_ip":"${remote_ip}","method":"${method}","uri":"${uri}","status":${status},"error":"${error}","latency_human":"${latency_human}"}` + "\n",
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{echo.GET, echo.HEAD, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			identity.UserIDHeader,
			identity.RoleHeader,
		},
		MaxAge: 86400,
	}))

	auctionHandler := handlers.NewAuctionHandler(auctionManager, bidService, clock, log)
	auctionHandler.Register(e.Group("/api/v1"), identityProvider)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"service":   "auction-service",
			"storage":   cfg.Storage.Driver,
			"timestamp": clock.Now().Format(time.RFC3339),
		})
	})

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	if err := sweeper.Start(runCtx); err != nil {
		log.Fatal("Failed to start sweeper", "error", err)
	}

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info("Starting HTTP server", "address", serverAddr)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down auction service...")

	// Graceful shutdown
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	stopRun()
	if err := sweeper.Stop(); err != nil {
		log.Error("Failed to stop sweeper", "error", err)
	}
	if err := b.Leader.ReleaseLeadership(shutdownCtx, cfg.Instance.ID); err != nil {
		log.Error("Failed to release leadership", "error", err)
	}

	log.Info("Auction service stopped")
}
