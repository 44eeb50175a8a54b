package scheduler

import (
	"context"
	"errors"
	"time"

	"parkshare/pkg/config"
	"parkshare/pkg/lock"
)

const leaseKey = "parkshare:scheduler"

// Step is one idempotent transition run on every tick. It returns how many
// aggregates it changed.
type Step struct {
	Name string
	Run  func(ctx context.Context, limit int) (int, error)
}

type Scheduler struct {
	locker lock.Locker
	steps  []Step
	cfg    *config.Config
}

func NewScheduler(locker lock.Locker, cfg *config.Config, steps ...Step) *Scheduler {
	return &Scheduler{
		locker: locker,
		steps:  steps,
		cfg:    cfg,
	}
}

// Run ticks every SchedulerInterval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.cfg.Log.Info("Scheduler started", "interval", s.cfg.SchedulerInterval, "steps", len(s.steps))

	ticker := time.NewTicker(s.cfg.SchedulerInterval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil {
			s.cfg.Log.Error("Scheduler tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.cfg.Log.Info("Scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick runs every step once while holding the scheduler lease. A tick that
// finds the lease held elsewhere does nothing and reports ran=false. Steps run
// even when an earlier one failed.
func (s *Scheduler) Tick(ctx context.Context) (ran bool, err error) {
	lease, err := s.locker.TryAcquire(ctx, leaseKey, s.cfg.SchedulerLeaseTTL)
	if err != nil {
		return false, err
	}
	if lease == nil {
		s.cfg.Log.Debug("Scheduler lease held by another instance")
		return false, nil
	}
	defer func() {
		if relErr := lease.Release(context.WithoutCancel(ctx)); relErr != nil && !errors.Is(relErr, lock.ErrNotHeld) {
			s.cfg.Log.Warn("Failed to release scheduler lease", "error", relErr)
		}
	}()

	var errs []error
	for _, step := range s.steps {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		n, stepErr := step.Run(ctx, s.cfg.SchedulerBatchSize)
		if stepErr != nil {
			s.cfg.Log.Error("Scheduler step failed", "step", step.Name, "changed", n, "error", stepErr)
			errs = append(errs, stepErr)
			continue
		}
		if n > 0 {
			s.cfg.Log.Info("Scheduler step applied", "step", step.Name, "changed", n)
		}
	}
	return true, errors.Join(errs...)
}
