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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/satriahrh/transcribe-relay/adapters"
	"github.com/satriahrh/transcribe-relay/adapters/mongo"
	"github.com/satriahrh/transcribe-relay/adapters/stt"
	"github.com/satriahrh/transcribe-relay/domain/repositories"
	"github.com/satriahrh/transcribe-relay/internal/api"
	"github.com/satriahrh/transcribe-relay/internal/config"
	"github.com/satriahrh/transcribe-relay/internal/metrics"
	"github.com/satriahrh/transcribe-relay/internal/websocket"
	"github.com/satriahrh/transcribe-relay/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	// Initialize adapters
	transcriber, err := newTranscriber(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize transcription backend", zap.Error(err))
	}

	records, closeRecords := newConnectionRepository(ctx, cfg, logger)
	defer closeRecords()

	// Initialize usecase services
	transcription := usecase.NewTranscriptionService(transcriber, cfg.StreamConfig(), logger)

	// Initialize WebSocket hub
	hub := websocket.NewHub(transcription, records, metrics.NewMetrics(prometheus.DefaultRegisterer), logger)

	cleanup := websocket.NewRecordCleanupService(records, cfg.RecordRetention, logger)
	cleanup.Start()
	defer cleanup.Stop()

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Initialize API routes
	api.InitRoutes(e, hub, records, cfg, logger)

	// Graceful shutdown
	go func() {
		if err := e.Start(cfg.Address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Server started",
		zap.Int("port", cfg.Port),
		zap.String("provider", cfg.Provider),
		zap.String("region", cfg.Region),
		zap.String("language", cfg.LanguageCode),
		zap.Int("sampleRate", cfg.SampleRate),
		zap.String("wsPath", cfg.WSPath))

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by the HTTP server, so
	// the hub closes them itself.
	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Some connections did not close in time", zap.Error(err))
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newTranscriber(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.Transcriber, error) {
	switch cfg.Provider {
	case config.ProviderGoogle:
		return stt.NewGoogleSpeechToText(logger), nil
	case config.ProviderMock:
		logger.Warn("Using mock transcription backend")
		return stt.NewMockSpeechToText(logger), nil
	default:
		return stt.NewAWSTranscriber(ctx, cfg.Region, logger)
	}
}

// newConnectionRepository uses MongoDB when configured and falls back to
// memory otherwise.
func newConnectionRepository(ctx context.Context, cfg config.Config, logger *zap.Logger) (repositories.ConnectionRepository, func()) {
	if cfg.MongoURI == "" {
		logger.Info("Storing connection records in memory")
		return adapters.NewMemoryConnectionRepository(), func() {}
	}

	client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	if err != nil {
		logger.Warn("MongoDB unavailable, storing connection records in memory", zap.Error(err))
		return adapters.NewMemoryConnectionRepository(), func() {}
	}

	repo := mongo.NewConnectionRepository(client.Database, logger)
	if err := repo.EnsureIndexes(ctx); err != nil {
		logger.Warn("Failed to create connection record indexes", zap.Error(err))
	}

	return repo, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Close(closeCtx)
	}
}
