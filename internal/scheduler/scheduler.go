// Package scheduler triggers full pipeline runs on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Runner is the unit of work scheduled on each tick.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler runs the pipeline immediately on start and then on every
// interval tick. Overlapping runs are prevented: a tick that fires while a
// run is still in progress is skipped.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a Scheduler for the given runner and interval.
func New(runner Runner, interval time.Duration, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		runner:    runner,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the recurring run and begins executing asynchronously.
// The context bounds each individual run, not the scheduler itself.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.scheduler.Every(s.interval).StartImmediately().Do(func() {
		if err := s.runner.Run(ctx); err != nil {
			s.logger.Error("scheduled run failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", "interval", s.interval)
	return nil
}

// Stop cancels future ticks and waits for a running job to finish.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}
