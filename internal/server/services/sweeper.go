package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/snapboard/internal/logging"
)

// SweepTask removes whatever expired before now and reports how much.
type SweepTask func(ctx context.Context, now time.Time) (int64, error)

// Sweeper runs cleanup tasks on a fixed interval.
type Sweeper struct {
	interval time.Duration
	tasks    map[string]SweepTask
	logger   logging.Logger
	now      func() time.Time
}

func NewSweeper(interval time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{
		interval: interval,
		tasks:    make(map[string]SweepTask),
		logger:   logger.With("module", "sweeper"),
		now:      time.Now,
	}
}

// Add registers a task under name. Not safe to call after Run.
func (s *Sweeper) Add(name string, task SweepTask) {
	s.tasks[name] = task
}

// RunOnce runs every task once. A failing task does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) {
	now := s.now()
	for name, task := range s.tasks {
		n, err := task(ctx, now)
		if err != nil {
			s.logger.Error(ctx, "sweep failed", "task", name, "error", err)
			continue
		}
		if n > 0 {
			s.logger.Info(ctx, "sweep done", "task", name, "removed", n)
		}
	}
}

// Run blocks until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}
