package pipeline

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/curation-crawler/internal/crawler"
	"github.com/JakeFAU/curation-crawler/internal/runlock"
)

// DefaultInterval separates recurring runs.
const DefaultInterval = 24 * time.Hour

// Runner executes one crawl.
type Runner interface {
	Run(ctx context.Context) (Stats, error)
}

// SchedulerConfig selects once or recurring mode.
type SchedulerConfig struct {
	Once     bool
	Interval time.Duration
	// OnRun receives every finished run, e.g. to print a summary.
	OnRun func(Stats, error)
}

// Scheduler repeats runs on a fixed interval. Missed runs are not caught up.
type Scheduler struct {
	runner Runner
	cfg    SchedulerConfig
	clock  crawler.Clock
	logger *zap.Logger
}

// NewScheduler builds a Scheduler.
func NewScheduler(runner Runner, cfg SchedulerConfig, clock crawler.Clock, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{runner: runner, cfg: cfg, clock: clock, logger: logger.Named("scheduler")}
}

// Start runs immediately, then every Interval until ctx is cancelled. In once mode it
// returns the first run's error; in recurring mode run errors are logged and never stop
// the loop.
func (s *Scheduler) Start(ctx context.Context) error {
	for runs := 1; ; runs++ {
		stats, err := s.runner.Run(ctx)
		if s.cfg.OnRun != nil {
			s.cfg.OnRun(stats, err)
		}
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			s.logger.Info("run interrupted by shutdown")
			return nil
		case errors.Is(err, runlock.ErrHeld):
			s.logger.Warn("another crawler holds the lock, skipping run")
		default:
			s.logger.Error("crawl run failed", zap.Error(err))
		}
		if s.cfg.Once {
			return err
		}

		next := s.clock.Now().Add(s.cfg.Interval)
		s.logger.Info("next run scheduled", zap.Int("completed_runs", runs), zap.Time("next_run", next))
		if err := s.clock.Sleep(ctx, s.cfg.Interval); err != nil {
			s.logger.Info("scheduler stopped")
			return nil
		}
	}
}
