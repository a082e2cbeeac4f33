package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"push-campaign-backend/config"
	"push-campaign-backend/internal/api"
	"push-campaign-backend/internal/db"
	"push-campaign-backend/internal/dispatch"
	"push-campaign-backend/internal/logging"
	"push-campaign-backend/internal/notification"
	"push-campaign-backend/internal/store"
	"push-campaign-backend/internal/sweeper"
	"push-campaign-backend/internal/tracking"
)

// shutdownGrace leaves in-flight dispatches time to finalize.
const shutdownGrace = 30 * time.Second

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger := logging.New(cfg.Log)
	defer func() { _ = logger.Sync() }()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if cfg.Push.PublicKey == "" || cfg.Push.PrivateKey == "" {
		logger.Fatal("VAPID keys must be configured; generate them with cmd/vapidkeys")
	}
	if cfg.Server.PublicBaseURL == "" {
		logger.Fatal("server.public_base_url must be set for click tracking")
	}

	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	appStore := store.NewGormStore(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeperSvc := sweeper.NewService(cfg.Dispatch, appStore, logger.Named("sweeper"))
	go sweeperSvc.Run(ctx)

	lookupTTL := time.Duration(cfg.Tracking.LookupCacheSeconds) * time.Second
	tracker := tracking.NewTracker(appStore, cfg.Server.PublicBaseURL, cache.New(lookupTTL, 2*lookupTTL), logger.Named("tracking"))
	transport := notification.NewTransport(cfg.Push, logger.Named("push"))
	dispatcher := dispatch.New(appStore, transport, tracker, cfg.Dispatch, logger.Named("dispatch"))

	responseTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	handler := api.NewHandler(appStore, dispatcher, tracker, cfg.Push.PublicKey, cache.New(responseTTL, 2*responseTTL), logger.Named("api"))

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(handler, cfg.Server, logger.Named("http"))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server starting",
			zap.Int("port", cfg.Server.Port),
			zap.Int("max_concurrency", cfg.Dispatch.MaxConcurrency),
			zap.Duration("send_timeout", cfg.Push.SendTimeout))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	logger.Info("server gracefully stopped")
}
