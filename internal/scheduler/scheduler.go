package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/pgm9-art/mcmahon-news/internal/logging"
	"github.com/pgm9-art/mcmahon-news/internal/models"
	"github.com/pgm9-art/mcmahon-news/internal/publisher"
)

type Refresher interface {
	Refresh(ctx context.Context) (models.RefreshCounts, error)
}

// Scheduler refreshes once on start and then on every tick. It runs as a
// supervised service.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *logging.Logger
}

// New creates a new scheduler that refreshes on the given interval
func New(refresher Refresher, interval, timeout time.Duration, logger *logging.Logger) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

func (s *Scheduler) Serve(ctx context.Context) error {
	s.logger.Info("Refresh scheduler started", logging.WithField("interval", s.interval.String()))
	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	rctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err := s.refresher.Refresh(rctx)
	switch {
	case errors.Is(err, publisher.ErrRefreshInProgress):
		s.logger.Info("Skipping scheduled refresh, one is already running")
	case err != nil:
		s.logger.Error("Scheduled refresh failed", logging.WithError(err))
	}
}

func (s *Scheduler) String() string {
	return "refresh-scheduler"
}
