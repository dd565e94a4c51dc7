package sweeper

import (
	"context"
	"time"

	"github.com/nkiryanov/authkeeper/internal/logger"
)

const defaultInterval = time.Hour

type tokenDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Config struct {
	// Tokens expired longer than retention ago are deleted
	Retention time.Duration

	// Interval between sweeps, default one hour
	Interval time.Duration

	// Clock, time.Now if not set
	Now func() time.Time
}

// Sweeper periodically deletes long expired reset tokens
type Sweeper struct {
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	tokens    tokenDeleter
	logger    logger.Logger
}

func New(cfg Config, tokens tokenDeleter, l logger.Logger) *Sweeper {
	if cfg.Interval == 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Sweeper{
		retention: cfg.Retention,
		interval:  cfg.Interval,
		now:       cfg.Now,
		tokens:    tokens,
		logger:    l,
	}
}

// Delete tokens expired before now minus retention
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(ctx, s.now().Add(-s.retention))
}

// Start sweeping in background
// Returned channel is closed when sweeper stopped by context
func (s *Sweeper) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	s.logger.Debug("Starting sweeper", "interval", s.interval, "retention", s.retention)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("Sweeper stopped by context")
				return

			case <-ticker.C:
				deleted, err := s.Sweep(ctx)
				if err != nil {
					s.logger.Error("Failed to delete expired reset tokens", "error", err)
					continue
				}
				if deleted > 0 {
					s.logger.Info("Expired reset tokens deleted", "count", deleted)
				}
			}
		}
	}()

	return idleStopped
}
