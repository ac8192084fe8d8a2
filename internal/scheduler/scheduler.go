package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// CacheMaintainer is the part of weather.Service the scheduler drives.
type CacheMaintainer interface {
	Prune() int
	Warm(ctx context.Context, states []string, timeout time.Duration)
}

// Config controls which jobs run and how often.
type Config struct {
	PruneInterval time.Duration
	WarmStates    []string
	WarmInterval  time.Duration
	// WarmTimeout bounds each state's warm-up; defaults to 30s.
	WarmTimeout time.Duration
}

// Scheduler periodically prunes expired cache entries and prefetches configured states.
type Scheduler struct {
	scheduler *gocron.Scheduler
	target    CacheMaintainer
	cfg       Config
	logger    *zap.Logger
}

// New creates a new Scheduler.
func New(cfg Config, target CacheMaintainer, logger *zap.Logger) *Scheduler {
	if cfg.WarmTimeout <= 0 {
		cfg.WarmTimeout = 30 * time.Second
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		target:    target,
		cfg:       cfg,
		logger:    logger,
	}
}

// Start schedules the jobs and starts the underlying scheduler.
// The warm job runs once immediately, then every WarmInterval.
func (s *Scheduler) Start() error {
	if s.cfg.PruneInterval > 0 {
		_, err := s.scheduler.Every(s.cfg.PruneInterval).WaitForSchedule().Do(s.prune)
		if err != nil {
			return err
		}
	}

	if len(s.cfg.WarmStates) > 0 && s.cfg.WarmInterval > 0 {
		_, err := s.scheduler.Every(s.cfg.WarmInterval).SingletonMode().Do(s.warm)
		if err != nil {
			return err
		}
	} else {
		s.logger.Info("scheduler: no warm states configured; skipping prefetch")
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) prune() {
	if n := s.target.Prune(); n > 0 {
		s.logger.Debug("scheduler: pruned expired cache entries", zap.Int("removed", n))
	}
}

func (s *Scheduler) warm() {
	s.logger.Info("scheduler: warming forecast cache", zap.Strings("states", s.cfg.WarmStates))
	s.target.Warm(context.Background(), s.cfg.WarmStates, s.cfg.WarmTimeout)
	s.logger.Info("scheduler: completed warm-up")
}
