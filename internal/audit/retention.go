package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper deletes audit records past the retention window on a cron
// schedule.
type Sweeper struct {
	store     Store
	retention time.Duration
	schedule  string
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewSweeper builds a sweeper. schedule is a five-field cron spec; an empty
// string means nightly at 03:00.
func NewSweeper(store Store, retention time.Duration, schedule string, logger *slog.Logger) *Sweeper {
	if schedule == "" {
		schedule = "0 3 * * *"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:     store,
		retention: retention,
		schedule:  schedule,
		logger:    logger,
	}
}

// Start schedules the sweep and returns a stop function. An invalid
// schedule is returned as an error before anything runs.
func (s *Sweeper) Start(ctx context.Context) (func(), error) {
	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
	)))
	if _, err := c.AddFunc(s.schedule, func() { s.sweep(ctx) }); err != nil {
		return nil, err
	}
	s.cron = c
	c.Start()

	s.logger.Info("audit retention sweeper started",
		slog.String("schedule", s.schedule),
		slog.Duration("retention", s.retention),
	)
	return func() { <-c.Stop().Done() }, nil
}

// Sweep runs one purge pass immediately, outside the schedule.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.retention)
	return s.store.Purge(ctx, cutoff)
}

func (s *Sweeper) sweep(ctx context.Context) {
	deleted, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("audit retention sweep failed", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		s.logger.Info("audit retention sweep", slog.Int64("deleted", deleted))
	}
}
