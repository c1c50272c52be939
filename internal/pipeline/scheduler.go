package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/1alexb/gaza-datasheet-server/internal/config"
)

const (
	TriggerPeriodic = "periodic"
	TriggerOnDemand = "on-demand"
)

// Result is what an on-demand trigger reports back to its caller.
type Result struct {
	Count int
	Err   error
}

// Scheduler serializes sync processes: at most one runs at any instant.
type Scheduler struct {
	pipeline   *Pipeline
	interval   time.Duration
	runOnStart bool
	sem        *semaphore.Weighted
}

func NewScheduler(p *Pipeline, interval time.Duration, runOnStart bool) *Scheduler {
	if interval <= 0 {
		interval = config.DefaultInterval
	}
	return &Scheduler{pipeline: p, interval: interval, runOnStart: runOnStart, sem: semaphore.NewWeighted(1)}
}

// Tick runs a periodic sync unless one is already in flight, in which case
// the tick is skipped. Failures are logged only. It reports whether a sync ran.
// A started sync is not interrupted by ctx.
func (s *Scheduler) Tick(ctx context.Context) bool {
	if !s.sem.TryAcquire(1) {
		s.pipeline.Log.Warn("sync already running, tick skipped")
		s.pipeline.Metrics.SkipTick()
		return false
	}
	defer s.sem.Release(1)
	_, _ = s.pipeline.Run(context.WithoutCancel(ctx), TriggerPeriodic)
	return true
}

// Trigger runs an on-demand sync, waiting for an in-flight one to finish
// first. ctx only bounds the wait: once started, the sync runs to completion
// even if ctx is cancelled.
func (s *Scheduler) Trigger(ctx context.Context) Result {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Result{Err: err}
	}
	defer s.sem.Release(1)
	n, err := s.pipeline.Run(context.WithoutCancel(ctx), TriggerOnDemand)
	return Result{Count: n, Err: err}
}

// Start ticks every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.pipeline.Log.Info("scheduler started", "interval", s.interval.String(), "run_on_start", s.runOnStart)
	if s.runOnStart {
		s.Tick(ctx)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.pipeline.Log.Info("scheduler stopping", "reason", ctx.Err())
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}
