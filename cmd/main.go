package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/live-room-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/handler"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/hub"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/ice"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/service"
	"github.com/weiawesome/wes-io-live/live-room-service/internal/snapshot"
	pkglog "github.com/weiawesome/wes-io-live/live-room-service/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	pkglog.Init(pkglog.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty, ServiceName: "live-room-service"})
	logger := pkglog.L()

	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting live-room-service")

	ctx, cancel := context.WithCancel(pkglog.WithLogger(context.Background(), logger))
	defer cancel()

	// Initialize snapshot store
	store, err := snapshot.New(ctx, cfg.Snapshot)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Snapshot.Driver).Msg("failed to create snapshot store, persistence disabled")
		store = snapshot.NopStore{}
	}
	defer store.Close()
	logger.Info().Str("driver", cfg.Snapshot.Driver).Msg("snapshot store configured")

	// Initialize Kafka producer for live events
	var producer kafka.LiveEventProducer
	if cfg.Kafka.Enabled {
		cp, err := kafka.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.Partitions)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, live events disabled")
		} else {
			producer = cp
			defer cp.Close()
			logger.Info().Str("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("connected to kafka")
		}
	}

	// Initialize credential broker
	broker, err := ice.New(cfg.ICE)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure ice credential broker")
	}

	// Initialize hub and service
	wsHub := hub.NewHub(cfg.WebSocket)
	liveSvc := service.NewLiveService(service.ConfigFrom(cfg), wsHub, store, producer, nil)

	if err := liveSvc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start live service")
	}

	// Initialize handlers
	wsHandler := handler.NewWSHandler(wsHub, liveSvc, service.NewSignalingRelay(wsHub), broker)
	httpHandler := handler.NewHandler(liveSvc, wsHub, broker, wsHandler)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	httpHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("live-room-service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down live-room-service")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := liveSvc.Stop(); err != nil {
		logger.Error().Err(err).Msg("failed to stop live service")
	}

	logger.Info().Msg("live-room-service stopped")
}
