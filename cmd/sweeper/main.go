// Command sweeper removes collaborators whose access grants have expired.
// By default it sweeps once and exits, for use from cron; -schedule keeps it
// running on an "@every"/"@hourly" schedule instead.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	"github.com/onnwee/portfolio/backend/internal/config"
	"github.com/onnwee/portfolio/backend/internal/errorreporting"
	"github.com/onnwee/portfolio/backend/internal/githubapi"
	"github.com/onnwee/portfolio/backend/internal/grant"
	"github.com/onnwee/portfolio/backend/internal/logger"
	"github.com/onnwee/portfolio/backend/internal/scheduler"
	"github.com/onnwee/portfolio/backend/internal/secrets"
	"github.com/onnwee/portfolio/backend/internal/server"
)

func main() {
	schedule := flag.String("schedule", "", `run continuously on a schedule such as "@every 1h" (default: sweep once)`)
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger.InitWith(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	if err := secrets.ValidateRequired("GITHUB_TOKEN", "DATABASE_URL"); err != nil {
		logger.Error("Missing configuration", "error", err)
		os.Exit(2)
	}

	if err := errorreporting.Init(errorreporting.Options{
		DSN:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.SentryRelease,
		SampleRate:  cfg.SentrySampleRate,
	}); err != nil {
		logger.Warn("Failed to initialize error reporting", "error", err)
	}
	defer errorreporting.Flush(2 * time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *schedule); err != nil {
		logger.Error("Sweep failed", "error", err)
		errorreporting.CaptureError(err)
		errorreporting.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, schedule string) error {
	gh, err := githubapi.NewFromConfig(cfg, nil)
	if err != nil {
		return err
	}
	tokens, conn, err := server.InitTokenStore(ctx, cfg)
	if err != nil {
		return err
	}
	if conn != nil {
		defer conn.Close()
	}
	sweeper := grant.NewSweeper(tokens, gh, nil)

	if schedule == "" {
		report, err := sweeper.Run(ctx)
		if err != nil {
			return err
		}
		if err := json.NewEncoder(os.Stdout).Encode(report); err != nil {
			return err
		}
		if report.Failed > 0 {
			return errors.Newf("%d of %d expired grants could not be revoked", report.Failed, report.Checked)
		}
		return nil
	}

	sched, err := scheduler.Parse(schedule)
	if err != nil {
		return err
	}
	logger.Info("Sweeper running", "schedule", schedule)
	job := grant.NewJob(sweeper, sched)
	go func() {
		<-ctx.Done()
		job.Stop()
	}()
	job.Start(ctx)
	return nil
}
