package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// CycleRunner runs one monitoring cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (Result, error)
}

// Scheduler triggers cycles on a fixed interval. A trigger that fires while
// a cycle is still running is skipped.
type Scheduler struct {
	cron     *cron.Cron
	runner   CycleRunner
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a scheduler for runner. Intervals under one second
// are rounded up by cron.
func NewScheduler(runner CycleRunner, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:   runner,
		interval: interval,
		logger:   logger,
	}
}

// Run executes one cycle immediately, then on every interval until ctx is
// cancelled. It waits for a running cycle to return before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("scheduler: interval must be positive, got %s", s.interval)
	}
	schedule := "@every " + s.interval.String()
	if _, err := s.cron.AddFunc(schedule, func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("scheduler: register %q: %w", schedule, err)
	}

	s.logger.Info("Running initial cycle")
	s.runOnce(ctx)
	if ctx.Err() != nil {
		return nil
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "schedule", schedule)

	<-ctx.Done()
	stopped := s.cron.Stop()
	<-stopped.Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunCycle(ctx); err != nil {
		s.logger.Debug("Cycle returned error", "error", err)
	}
}

// cronLogger routes cron's logging to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.logger.Warn("Previous cycle still running, skipping trigger", keysAndValues...)
		return
	}
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
