// Package retention prunes old delivery records on a cron schedule. When a
// distributed lock manager is available, at most one replica runs the
// deletion for any given sweep.
package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/quiltdata/benchling-webhook-sub011/internal/common/errors"
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/logging"
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/utils"
	"github.com/quiltdata/benchling-webhook-sub011/internal/common/validation"
	"github.com/quiltdata/benchling-webhook-sub011/internal/locks"
	"github.com/quiltdata/benchling-webhook-sub011/internal/storage"
)

// sweepTimeout bounds a single scheduled sweep, matching the sweep lock
// expiration.
const sweepTimeout = 5 * time.Minute

// Config holds the retention settings.
type Config struct {
	// Schedule is a cron expression, standard 5-field syntax or a
	// descriptor like @hourly.
	Schedule string `json:"schedule" validate:"required,cron_expression"`

	// MaxAge is how old a delivery may get before it is pruned. Day and
	// week suffixes are accepted, e.g. "30d".
	MaxAge string `json:"max_age" validate:"required,duration"`
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c)
}

// Sweeper deletes deliveries older than the configured age on a schedule.
type Sweeper struct {
	store    storage.Storage
	locks    *locks.Manager
	logger   logging.Logger
	cron     *cron.Cron
	schedule string
	maxAge   time.Duration
	now      func() time.Time
}

// New creates a sweeper from the given configuration. The lock manager may
// be nil, in which case sweeps run unserialized.
func New(store storage.Storage, lockManager *locks.Manager, config *Config, logger logging.Logger) (*Sweeper, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	maxAge, err := utils.ParseDuration(config.MaxAge)
	if err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid retention max age %q", config.MaxAge))
	}

	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	s := &Sweeper{
		store:    store,
		locks:    lockManager,
		logger:   logger,
		cron:     cron.New(),
		schedule: config.Schedule,
		maxAge:   maxAge,
		now:      time.Now,
	}

	if _, err := s.cron.AddFunc(config.Schedule, s.runScheduledSweep); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid retention schedule %q: %v", config.Schedule, err))
	}

	return s, nil
}

// Start begins running sweeps on the configured schedule.
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("Retention sweeper started",
		logging.Field{"schedule", s.schedule},
		logging.Field{"max_age", utils.FormatDuration(s.maxAge)},
	)
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(30 * time.Second):
		s.logger.Warn("Retention sweeper stopped with a sweep still running")
	}
	s.logger.Info("Retention sweeper stopped")
}

func (s *Sweeper) runScheduledSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("Retention sweep failed", err)
	}
}

// Sweep deletes deliveries received before now minus the retention age and
// returns how many were removed. When another replica holds the sweep lock
// the call is a no-op.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	if s.locks != nil {
		lock, err := s.locks.AcquireSweepLock(ctx)
		if err != nil {
			s.logger.Info("Retention sweep skipped, lock held elsewhere")
			return 0, nil
		}
		defer lock.Release(ctx)
	}

	cutoff := s.now().Add(-s.maxAge)
	deleted, err := s.store.DeleteOldDeliveries(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old deliveries: %w", err)
	}

	if deleted > 0 {
		s.logger.Info("Retention sweep completed",
			logging.Field{"deleted", deleted},
			logging.Field{"cutoff", cutoff.Format(time.RFC3339)},
		)
	}
	return deleted, nil
}
