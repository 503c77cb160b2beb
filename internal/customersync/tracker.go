package customersync

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// DefaultInterval is how long a synced cache stays fresh.
const DefaultInterval = 6 * time.Hour

// LastSyncReader reads the recorded last sync time.
type LastSyncReader interface {
	GetLastSyncTime(ctx context.Context) (int64, bool, error)
}

// Tracker decides whether the cache is due for a sync.
type Tracker struct {
	store    LastSyncReader
	clock    clockwork.Clock
	interval time.Duration
	log      *zap.Logger
}

// NewTracker builds a Tracker. A zero interval means DefaultInterval.
func NewTracker(store LastSyncReader, clock clockwork.Clock, interval time.Duration, log *zap.Logger) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{store: store, clock: clock, interval: interval, log: log}
}

// ShouldSync reports true when no sync was ever recorded, when the last one
// is at least one interval old, or when the timestamp cannot be read.
func (t *Tracker) ShouldSync(ctx context.Context) bool {
	last, ok, err := t.store.GetLastSyncTime(ctx)
	if err != nil {
		t.log.Warn("reading last sync time failed", zap.Error(err))
		return true
	}
	if !ok {
		return true
	}
	elapsed := t.clock.Now().UnixMilli() - last
	return elapsed >= t.interval.Milliseconds()
}
