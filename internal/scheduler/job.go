package scheduler

import "context"

// Job defines the interface for a periodic background task.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run performs one pass of the job. It is called once per tick.
	Run(ctx context.Context) error
}
