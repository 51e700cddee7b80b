package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const defaultInterval = time.Minute

// Scheduler runs a job on a fixed interval, independent of any request.
// At most maxConcurrent passes of the job overlap; a tick that finds the cap
// reached is skipped.
type Scheduler struct {
	logger   *zap.Logger
	job      Job
	interval time.Duration
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
}

// New creates a scheduler for job.
func New(logger *zap.Logger, job Job, interval time.Duration, maxConcurrent int64) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Scheduler{
		logger:   logger.Named("scheduler").With(zap.String("job", job.Name())),
		job:      job,
		interval: interval,
		sem:      semaphore.NewWeighted(maxConcurrent),
	}
}

// Run starts the scheduler's main loop and blocks until ctx is done and all
// in-flight passes have returned.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting scheduler loop", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping scheduler...")
			s.wg.Wait()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts one pass unless the concurrency cap is reached.
func (s *Scheduler) tick(ctx context.Context) bool {
	if !s.sem.TryAcquire(1) {
		s.logger.Warn("Previous run still in progress, skipping tick")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.sem.Release(1)

		start := time.Now()
		err := s.runOnce(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) && ctx.Err() != nil:
			s.logger.Info("Job stopped by shutdown", zap.Duration("elapsed", time.Since(start)))
			return
		default:
			s.logger.Error("Job failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
			return
		}
		s.logger.Debug("Job finished", zap.Duration("elapsed", time.Since(start)))
	}()
	return true
}

// runOnce keeps a panicking pass from taking the loop down with it.
func (s *Scheduler) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return s.job.Run(ctx)
}
