package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"events_syncer/internal/domain"
)

// Syncer defines the interface for sync operations.
type Syncer interface {
	Sync(ctx context.Context) (*domain.SyncStats, error)
}

type Config struct {
	Interval time.Duration
	Cron     string
	Timeout  time.Duration
	Location *time.Location
}

// Scheduler runs the syncer once, on a fixed interval, or on a cron
// schedule. Cron takes precedence over Interval.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	schedule cron.Schedule
	cronSpec string
	location *time.Location
	timeout  time.Duration
	logger   *slog.Logger
}

func NewScheduler(syncer Syncer, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		syncer:   syncer,
		interval: cfg.Interval,
		cronSpec: cfg.Cron,
		location: cfg.Location,
		timeout:  cfg.Timeout,
		logger:   logger,
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.timeout == 0 {
		s.timeout = 5 * time.Minute
	}

	if cfg.Cron != "" {
		schedule, err := cron.ParseStandard(cfg.Cron)
		if err != nil {
			return nil, fmt.Errorf("parse cron %q: %w", cfg.Cron, err)
		}
		s.schedule = schedule
	}

	return s, nil
}

// Repeats reports whether Start keeps running after the first sync.
func (s *Scheduler) Repeats() bool {
	return s.schedule != nil || s.interval > 0
}

// Start blocks until ctx is cancelled when repeating; otherwise it runs a
// single sync and returns its error.
func (s *Scheduler) Start(ctx context.Context) error {
	switch {
	case s.schedule != nil:
		return s.startCron(ctx)
	case s.interval > 0:
		return s.startTicker(ctx)
	default:
		_, err := s.runSync(ctx)
		return err
	}
}

// runLogged is used by the repeating modes, where nobody else sees the error.
func (s *Scheduler) runLogged(ctx context.Context) {
	if _, err := s.runSync(ctx); err != nil {
		s.logger.Error("sync failed", "error", err)
	}
}

func (s *Scheduler) startTicker(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.runLogged(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runLogged(ctx)
		}
	}
}

func (s *Scheduler) startCron(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(s.location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		s.runLogged(ctx)
	}))

	s.logger.Info("scheduler started", "cron", s.cronSpec, "next", s.schedule.Next(time.Now().In(s.location)))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) runSync(ctx context.Context) (*domain.SyncStats, error) {
	syncCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	return s.syncer.Sync(syncCtx)
}
