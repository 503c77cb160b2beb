package customersync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CancelFunc stops a recurring job. It is safe to call more than once.
type CancelFunc func()

// Scheduler runs fn every interval until the returned CancelFunc is called.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (CancelFunc, error)
}

// CronScheduler schedules jobs on a robfig/cron runner.
type CronScheduler struct {
	cron *cron.Cron

	mu      sync.Mutex
	started bool
}

// NewCronScheduler wraps c, or a new runner when c is nil.
func NewCronScheduler(c *cron.Cron) *CronScheduler {
	if c == nil {
		c = cron.New(cron.WithLogger(cron.DiscardLogger), cron.WithChain(cron.Recover(cron.DiscardLogger)))
	}
	return &CronScheduler{cron: c}
}

// Every registers a constant-delay job, starting the runner on first use.
func (s *CronScheduler) Every(interval time.Duration, fn func()) (CancelFunc, error) {
	if interval <= 0 {
		return nil, errors.New("scheduler: interval must be positive")
	}
	if fn == nil {
		return nil, errors.New("scheduler: job is required")
	}

	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(fn))

	s.mu.Lock()
	if !s.started {
		s.cron.Start()
		s.started = true
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.cron.Remove(id) })
	}, nil
}

// Stop halts the runner. The returned context is done once running jobs
// have finished, and immediately when the runner never started.
func (s *CronScheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.started = false
	return s.cron.Stop()
}
