// Package scheduler runs the delivery pipeline's drain jobs on fixed-delay
// loops. Each run is wrapped in a named, TTL-boxed distributed lock so that
// exactly one worker replica drains a queue at a time; replicas that lose
// the lock skip the run and wait for the next tick.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"backoffice/internal/lock"
	"backoffice/internal/types"
)

// lockKeyPrefix namespaces job locks in the shared Redis keyspace.
const lockKeyPrefix = "job:"

// Job is one runnable drain job.
type Job interface {
	Name() types.JobName
	Run(ctx context.Context) error
}

// JobSpec binds a job to its schedule. Delay is the pause between the end
// of one run and the start of the next (fixed delay, not fixed rate).
type JobSpec struct {
	Job     Job
	Delay   time.Duration
	LockTTL time.Duration
}

// Scheduler owns the job loops.
type Scheduler struct {
	locker lock.Locker
	logger types.Logger
	jobs   []JobSpec

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a Scheduler over the given jobs.
func NewScheduler(locker lock.Locker, logger types.Logger, jobs ...JobSpec) *Scheduler {
	return &Scheduler{
		locker: locker,
		logger: logger,
		jobs:   jobs,
		sleep:  sleepCtx,
	}
}

// Start runs every job loop until ctx is cancelled. It returns the first
// loop error; job-level failures are logged and do not stop the loop, so
// in practice Start returns only on shutdown.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range s.jobs {
		spec := spec
		g.Go(func() error {
			return s.runLoop(ctx, spec)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, spec JobSpec) error {
	name := spec.Job.Name()
	logger := s.logger.With("job", string(name))
	logger.Info("job loop started", "delay", spec.Delay.String(), "lock_ttl", spec.LockTTL.String())

	for {
		s.runOnce(ctx, spec, logger)

		if err := s.sleep(ctx, spec.Delay); err != nil {
			logger.Info("job loop stopped")
			return nil
		}
	}
}

// runOnce executes a single lock-guarded run. Lock contention is a normal
// condition, logged at info; job errors are logged and swallowed so one
// bad run never kills the loop.
func (s *Scheduler) runOnce(ctx context.Context, spec JobSpec, logger types.Logger) {
	name := spec.Job.Name()
	start := time.Now()

	ran, err := lock.RunExclusively(ctx, s.locker, lockKeyPrefix+string(name), spec.LockTTL, func(ctx context.Context) error {
		return spec.Job.Run(ctx)
	})
	switch {
	case err != nil && !ran:
		logger.Error("job lock error", "error", err.Error())
	case err != nil:
		logger.Error("job run failed", "error", err.Error(), "duration", time.Since(start).String())
	case !ran:
		logger.Info("job run skipped, lock held elsewhere")
	default:
		logger.Info("job run completed", "duration", time.Since(start).String())
	}
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
