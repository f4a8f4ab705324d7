package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/portfolio/backend/internal/logger"
)

// Task is one run of a scheduled job.
type Task func(ctx context.Context) error

// Runner executes a Task immediately and then at each time its Schedule
// yields. Runs never overlap; a slow run pushes the next one back.
type Runner struct {
	name     string
	schedule Schedule
	task     Task
	now      func() time.Time
	log      *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRunner creates a runner named for logging.
func NewRunner(name string, schedule Schedule, task Task) *Runner {
	return &Runner{
		name:     name,
		schedule: schedule,
		task:     task,
		now:      time.Now,
		log:      logger.WithComponent("scheduler").With("job", name),
		stop:     make(chan struct{}),
	}
}

// Start blocks until ctx is done or Stop is called.
func (r *Runner) Start(ctx context.Context) {
	r.log.Info("scheduler started", "schedule", r.schedule.String())

	for {
		r.runOnce(ctx)

		next := r.schedule.Next(r.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			r.log.Info("scheduler stopped by context")
			return
		case <-r.stop:
			timer.Stop()
			r.log.Info("scheduler stopped by signal")
			return
		case <-timer.C:
		}
	}
}

// Stop ends Start after the current run. Safe to call more than once.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *Runner) runOnce(ctx context.Context) {
	start := r.now()
	if err := r.task(ctx); err != nil {
		r.log.Error("scheduled job failed", "error", err, "duration", time.Since(start))
		return
	}
	r.log.Info("scheduled job finished",
		"duration", time.Since(start),
		"next_run", r.schedule.Next(r.now()).Format(time.RFC3339))
}
