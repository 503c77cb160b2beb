// Package search implements search-as-you-type over the customer directory:
// the local cache answers first, and an empty local answer falls back to the
// Smart Supply API after a delay.
package search

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/smartsupply/agent/internal/models"
	"github.com/smartsupply/agent/pkg/logger"
)

const (
	// DefaultSettleDelay coalesces bursts of keystrokes.
	DefaultSettleDelay = 10 * time.Millisecond
	// DefaultFallbackDelay is how long an empty local result waits before
	// the remote API is asked.
	DefaultFallbackDelay = 5 * time.Second

	defaultRemoteRate  = rate.Limit(2)
	defaultRemoteBurst = 4
)

// LocalStore is the local cache as seen by search.
type LocalStore interface {
	Initialize(ctx context.Context) error
	SearchCustomers(ctx context.Context, query string) ([]models.CachedCustomer, error)
	UpsertCustomers(ctx context.Context, records []models.CustomerRecord) error
}

// RemoteSearcher runs the server-side customer search.
type RemoteSearcher interface {
	SearchCustomers(ctx context.Context, query string) ([]models.CustomerRecord, error)
}

// Option customises a Searcher.
type Option func(*Searcher)

// WithClock overrides the clock driving the settle and fallback timers.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Searcher) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithSettleDelay overrides the keystroke settle delay.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Searcher) {
		if d > 0 {
			s.settleDelay = d
		}
	}
}

// WithFallbackDelay overrides the delay before the remote fallback.
func WithFallbackDelay(d time.Duration) Option {
	return func(s *Searcher) {
		if d > 0 {
			s.fallbackDelay = d
		}
	}
}

// WithRemoteRate bounds remote fallback requests across all sessions.
func WithRemoteRate(limit rate.Limit, burst int) Option {
	return func(s *Searcher) {
		if limit > 0 && burst > 0 {
			s.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithLogger overrides the search logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Searcher) {
		if log != nil {
			s.log = log
		}
	}
}

// Searcher holds what every search session shares.
type Searcher struct {
	store         LocalStore
	remote        RemoteSearcher
	clock         clockwork.Clock
	settleDelay   time.Duration
	fallbackDelay time.Duration
	limiter       *rate.Limiter
	log           *zap.Logger
}

// NewSearcher builds a Searcher over the local store and the remote API.
func NewSearcher(store LocalStore, remote RemoteSearcher, opts ...Option) *Searcher {
	s := &Searcher{
		store:         store,
		remote:        remote,
		clock:         clockwork.NewRealClock(),
		settleDelay:   DefaultSettleDelay,
		fallbackDelay: DefaultFallbackDelay,
		limiter:       rate.NewLimiter(defaultRemoteRate, defaultRemoteBurst),
		log:           logger.WithModule("search"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SearchLocal runs a one-shot search against the local cache only. Storage
// failures yield no results.
func (s *Searcher) SearchLocal(ctx context.Context, query string) []models.CachedCustomer {
	if err := s.store.Initialize(ctx); err != nil {
		s.log.Warn("local cache unavailable for search", zap.Error(err))
		return []models.CachedCustomer{}
	}
	customers, err := s.store.SearchCustomers(ctx, query)
	if err != nil {
		s.log.Warn("local customer search failed", zap.String("query", query), zap.Error(err))
		return []models.CachedCustomer{}
	}
	return customers
}
