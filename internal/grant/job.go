package grant

import (
	"context"

	"github.com/onnwee/portfolio/backend/internal/scheduler"
)

// Job runs the sweeper on a schedule.
type Job struct {
	runner *scheduler.Runner
}

// NewJob schedules sweeper. The first sweep happens as soon as Start is called.
func NewJob(sweeper *Sweeper, schedule scheduler.Schedule) *Job {
	return &Job{
		runner: scheduler.NewRunner("grant-sweep", schedule, func(ctx context.Context) error {
			_, err := sweeper.Run(ctx)
			return err
		}),
	}
}

// Start blocks until ctx is cancelled or Stop is called.
func (j *Job) Start(ctx context.Context) { j.runner.Start(ctx) }

// Stop ends the schedule after any running sweep.
func (j *Job) Stop() { j.runner.Stop() }
