package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/portfolio/backend/internal/config"
	"github.com/onnwee/portfolio/backend/internal/errorreporting"
	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/server"
	"github.com/onnwee/portfolio/backend/internal/tracing"
)

func main() {
	envErr := godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Initialize structured logging
	logger.InitWith(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if envErr != nil {
		logger.Debug("No .env file found, using process environment")
	}
	logger.Info("Initializing API server", "version", cfg.SentryRelease, "log_level", cfg.LogLevel)

	// Initialize error reporting
	if err := errorreporting.Init(errorreporting.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	} else if errorreporting.Enabled() {
		logger.Info("Error reporting initialized", "environment", cfg.SentryEnvironment)
		defer func() {
			logger.Info("Flushing error reports...")
			errorreporting.Flush(2 * time.Second)
		}()
	}

	// Initialize tracing
	shutdownTracing, err := tracing.Init(tracing.Settings{
		ServiceName: "portfolio-api",
		Version:     cfg.SentryRelease,
		Enabled:     cfg.OTELEnabled,
		Endpoint:    cfg.OTELEndpoint,
		SampleRate:  cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Warn("Failed to initialize tracing", "error", err)
	} else if cfg.OTELEnabled {
		logger.Info("Tracing initialized", "endpoint", cfg.OTELEndpoint, "sample_rate", cfg.OTELSampleRate)
		defer func() {
			logger.Info("Shutting down tracer...")
			if err := shutdownTracing(context.Background()); err != nil {
				logger.Error("Failed to shutdown tracer", "error", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg)
	if err != nil {
		logger.Error("Server init failed", "error", err)
		errorreporting.CaptureError(err)
		errorreporting.Flush(2 * time.Second)
		os.Exit(1)
	}
	defer srv.Close()

	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("Server stopped with error", "error", err)
		errorreporting.CaptureError(err)
		return
	}
	logger.Info("Server stopped")
}
