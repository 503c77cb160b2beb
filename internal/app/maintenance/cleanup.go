package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/smartsupply/agent/pkg/logger"
)

const (
	defaultSessionSpec  = "@every 1m"
	defaultOptimizeSpec = "@daily"
)

// SessionExpirer ends the agent's session once its token has expired.
type SessionExpirer interface {
	ExpireIfDue() bool
}

// CacheOptimizer tidies the local cache database.
type CacheOptimizer interface {
	Optimize(ctx context.Context) error
}

// Cleaner coordinates background housekeeping: ending sessions whose token
// has expired and optimising the local cache.
type Cleaner struct {
	sessions SessionExpirer
	cache    CacheOptimizer
	cron     *cron.Cron
	log      *zap.Logger
	enabled  bool

	sessionSchedule  string
	optimizeSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSessionSchedule overrides the cron specification for the session expiry check.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithOptimizeSchedule overrides the cron specification for cache optimisation.
func WithOptimizeSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.optimizeSchedule = spec
		}
	}
}

// WithLogger overrides the maintenance logger.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		if log != nil {
			cleaner.log = log
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding job being skipped.
func NewCleaner(sessions SessionExpirer, cache CacheOptimizer, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:         sessions,
		cache:            cache,
		sessionSchedule:  defaultSessionSpec,
		optimizeSchedule: defaultOptimizeSpec,
		log:              logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.sessions != nil || cleaner.cache != nil

	return cleaner
}

// Start registers the jobs with the cron scheduler and launches it if at least one job is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			c.expireSession()
		}); err != nil {
			return err
		}
	}

	if c.cache != nil {
		if _, err := c.cron.AddFunc(c.optimizeSchedule, func() {
			if err := c.cache.Optimize(context.Background()); err != nil {
				c.log.Warn("cache optimize failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially. Used in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		c.expireSession()
	}

	if c.cache != nil {
		if err := c.cache.Optimize(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) expireSession() {
	if c.sessions.ExpireIfDue() {
		c.log.Info("expired session ended")
	}
}
