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
	"auction-bidding/internal/infrastructure/backend"
	"auction-bidding/internal/infrastructure/mysql"
	"auction-bidding/internal/infrastructure/redis"
	"auction-bidding/internal/services"
	"auction-bidding/pkg/logger"
	"auction-bidding/pkg/utils"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New().Fatal("Failed to load config", "error", err)
	}

	log := logger.NewWithLevel(cfg.Log.Level).With("service", "analytics-service", "instance_id", cfg.Instance.ID)
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rdb, err := utils.InitializeRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", "error", err)
	}
	defer rdb.Close()

	db, err := backend.OpenMySQL(ctx, cfg.MySQL, log)
	if err != nil {
		log.Fatal("Failed to connect to MySQL", "error", err)
	}
	defer db.Close()

	// Initialize services
	eventSubscriber := redis.NewEventSubscriber(rdb, log)
	analyticsService := services.NewAnalyticsService(mysql.NewEventRepository(db), log)

	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()

	go func() {
		if err := analyticsService.Start(runCtx, eventSubscriber); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Analytics subscriber stopped", "error", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())

	handlers.NewAnalyticsHandler(analyticsService, log).Register(e.Group("/api/v1"))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "service": "analytics-service"})
	})

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

	log.Info("Shutting down analytics service...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}
	stopRun()

	log.Info("Analytics service stopped")
}
