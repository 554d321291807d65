package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/loic-ops/medical-transcription/adapters/kafka"
	"github.com/loic-ops/medical-transcription/adapters/memory"
	"github.com/loic-ops/medical-transcription/adapters/mongo"
	"github.com/loic-ops/medical-transcription/adapters/redis"
	"github.com/loic-ops/medical-transcription/adapters/report"
	"github.com/loic-ops/medical-transcription/adapters/transcriptionapi"
	"github.com/loic-ops/medical-transcription/domain/entities"
	"github.com/loic-ops/medical-transcription/domain/repositories"
	"github.com/loic-ops/medical-transcription/internal/api"
	"github.com/loic-ops/medical-transcription/internal/auth"
	"github.com/loic-ops/medical-transcription/internal/config"
	"github.com/loic-ops/medical-transcription/internal/logging"
	"github.com/loic-ops/medical-transcription/internal/metrics"
	"github.com/loic-ops/medical-transcription/internal/websocket"
	"github.com/loic-ops/medical-transcription/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// Initialize logger
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.DefaultMetrics

	// Initialize adapters
	repo, closeStore, err := newRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize record store", zap.Error(err))
	}
	defer closeStore()

	client, err := transcriptionapi.NewClient(transcriptionapi.Config{
		BaseURL:           cfg.TranscriptionAPIURL,
		TranscribeTimeout: cfg.TranscribeTimeout,
		InputLanguage:     cfg.InputLanguage,
		OutputLanguage:    cfg.OutputLanguage,
		Metrics:           m,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize transcription API client", zap.Error(err))
	}

	var cache repositories.TemplateCache
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClientFromURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", zap.Error(err))
		}
		defer redisClient.Close()
		cache = redis.NewTemplateCache(redisClient, redis.WithTTL(cfg.TemplatesCacheTTL))
		logger.Info("Template cache enabled", zap.Duration("ttl", cfg.TemplatesCacheTTL))
	}

	publisher := kafka.New(kafka.Config{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic}, m, logger)
	defer publisher.Close()

	// Initialize usecase services
	service := usecase.NewTranscriptionService(repo, client, report.NewPDFRenderer(logger), cache, usecase.Config{
		TranscribeTimeout: cfg.TranscribeTimeout,
		InputLanguage:     cfg.InputLanguage,
		OutputLanguage:    cfg.OutputLanguage,
	}, m, logger)

	// Initialize WebSocket hub; it follows session events like any other publisher
	hub := websocket.NewHub(service, m, logger)
	service.AddPublisher(hub)
	service.AddPublisher(publisher)
	go hub.Run(ctx)

	tokens := auth.NewTokens(cfg.JWTSecret)
	if !tokens.Enabled() {
		logger.Warn("JWT_SECRET is not set, routes are not protected")
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request",
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status))
			return nil
		},
	}))

	// Initialize API routes
	api.InitRoutes(e, service, hub, tokens, prometheus.DefaultGatherer, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(cfg.Addr()); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.String("port", cfg.Port),
		zap.String("store", cfg.StoreDriver),
		zap.String("transcriptionAPI", client.BaseURL()))

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// newRepository opens the record store selected by STORE_DRIVER
func newRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.TranscriptionRepository, func(), error) {
	format := entities.ReferenceFormat{Prefix: cfg.ReferencePrefix, Padding: cfg.ReferencePadding}

	switch cfg.StoreDriver {
	case config.StoreMemory:
		logger.Warn("Using in-memory record store, data is lost on restart")
		return memory.NewTranscriptionRepository(format), func() {}, nil

	case config.StoreMongo:
		client, err := mongo.NewClient(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase}, logger)
		if err != nil {
			return nil, nil, err
		}
		closeStore := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Close(ctx)
		}
		repo, err := mongo.NewTranscriptionRepository(client.Database, format, logger)
		if err != nil {
			closeStore()
			return nil, nil, err
		}
		return repo, closeStore, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
