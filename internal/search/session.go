package search

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/smartsupply/agent/internal/models"
	"github.com/smartsupply/agent/internal/monitoring"
)

// Source tells where a result set came from.
type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// Update is one result set delivered to a session's listener.
type Update struct {
	Query           string                  `json:"query"`
	Source          Source                  `json:"source"`
	Customers       []models.CachedCustomer `json:"customers"`
	FallbackPending bool                    `json:"fallbackPending"`
}

// Session tracks the query of one search box. Updates are delivered one at a
// time, in query order; an update for a replaced query is dropped. The
// listener must not call back into the session.
type Session struct {
	id       string
	searcher *Searcher
	onUpdate func(Update)
	log      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.Mutex
	gen          uint64
	query        string
	selected     *models.CachedCustomer
	settle       clockwork.Timer
	fallback     clockwork.Timer
	cancelRemote context.CancelFunc
	closed       bool

	emitMu sync.Mutex
}

// NewSession starts a session delivering its result sets to onUpdate.
func (s *Searcher) NewSession(onUpdate func(Update)) *Session {
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Session{
		id:       id,
		searcher: s,
		onUpdate: onUpdate,
		log:      s.log.With(zap.String("session", id)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID identifies the session in logs.
func (ss *Session) ID() string {
	return ss.id
}

// Query returns the current query text.
func (ss *Session) Query() string {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.query
}

// Selected returns the customer picked for the current query, if any.
func (ss *Session) Selected() (models.CachedCustomer, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.selected == nil {
		return models.CachedCustomer{}, false
	}
	return *ss.selected, true
}

// SetQuery replaces the query. Pending timers and any remote request for the
// previous query are cancelled and the selection is cleared. A blank query
// immediately delivers an empty result set.
func (ss *Session) SetQuery(query string) {
	ss.mu.Lock()
	if ss.closed {
		ss.mu.Unlock()
		return
	}
	ss.gen++
	gen := ss.gen
	ss.stopLocked()
	ss.selected = nil
	ss.query = query

	if strings.TrimSpace(query) == "" {
		ss.mu.Unlock()
		ss.emit(gen, Update{Query: query, Source: SourceLocal, Customers: []models.CachedCustomer{}})
		return
	}

	ss.settle = ss.searcher.clock.AfterFunc(ss.searcher.settleDelay, func() {
		ss.runLocal(gen, query)
	})
	ss.mu.Unlock()
}

// Select records the customer the user picked and cancels any pending or
// in-flight remote fallback.
func (ss *Session) Select(customer models.CachedCustomer) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.closed {
		return
	}
	ss.selected = &customer
	ss.stopFallbackLocked()
}

// Close cancels all timers and requests. No update is delivered after Close
// returns.
func (ss *Session) Close() {
	ss.mu.Lock()
	if ss.closed {
		ss.mu.Unlock()
		return
	}
	ss.closed = true
	ss.gen++
	ss.stopLocked()
	ss.cancel()
	ss.mu.Unlock()

	// Wait out a delivery that passed its check before the close.
	ss.emitMu.Lock()
	ss.emitMu.Unlock()
}

func (ss *Session) runLocal(gen uint64, query string) {
	if !ss.current(gen) {
		return
	}

	customers := ss.searcher.SearchLocal(ss.ctx, query)

	ss.mu.Lock()
	if ss.gen != gen || ss.closed {
		ss.mu.Unlock()
		return
	}
	pending := false
	if len(customers) == 0 && ss.selected == nil {
		ss.fallback = ss.searcher.clock.AfterFunc(ss.searcher.fallbackDelay, func() {
			ss.runRemote(gen, query)
		})
		pending = true
	}
	ss.mu.Unlock()

	ss.emit(gen, Update{Query: query, Source: SourceLocal, Customers: customers, FallbackPending: pending})
}

func (ss *Session) runRemote(gen uint64, query string) {
	ss.mu.Lock()
	if ss.gen != gen || ss.closed || ss.selected != nil {
		ss.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ss.ctx)
	ss.cancelRemote = cancel
	ss.mu.Unlock()
	defer cancel()

	if err := ss.searcher.limiter.Wait(ctx); err != nil {
		return
	}

	records, err := ss.searcher.remote.SearchCustomers(ctx, query)
	if ctx.Err() != nil {
		// Superseded by a newer query, a selection or Close.
		return
	}
	if err != nil {
		ss.log.Warn("remote customer search failed", zap.String("query", query), zap.Error(err))
		monitoring.RecordRemoteFallback("failure")
		ss.emit(gen, Update{Query: query, Source: SourceRemote, Customers: []models.CachedCustomer{}})
		return
	}
	monitoring.RecordRemoteFallback("success")

	if len(records) > 0 {
		if err := ss.searcher.store.UpsertCustomers(ctx, records); err != nil {
			ss.log.Warn("caching remote search results failed", zap.Error(err))
		}
	}

	customers := make([]models.CachedCustomer, 0, len(records))
	for _, record := range records {
		customer := record.ToCached()
		if customer.ID == "" {
			continue
		}
		customers = append(customers, customer)
	}
	ss.emit(gen, Update{Query: query, Source: SourceRemote, Customers: customers})
}

// emit delivers u unless its query has been replaced or a selection has
// superseded a remote result.
func (ss *Session) emit(gen uint64, u Update) {
	ss.emitMu.Lock()
	defer ss.emitMu.Unlock()

	ss.mu.Lock()
	ok := ss.gen == gen && !ss.closed
	if u.Source == SourceRemote && ss.selected != nil {
		ok = false
	}
	ss.mu.Unlock()
	if !ok {
		return
	}

	monitoring.RecordSearchUpdate(string(u.Source))
	ss.onUpdate(u)
}

func (ss *Session) current(gen uint64) bool {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.gen == gen && !ss.closed
}

func (ss *Session) stopLocked() {
	if ss.settle != nil {
		ss.settle.Stop()
		ss.settle = nil
	}
	ss.stopFallbackLocked()
}

func (ss *Session) stopFallbackLocked() {
	if ss.fallback != nil {
		ss.fallback.Stop()
		ss.fallback = nil
	}
	if ss.cancelRemote != nil {
		ss.cancelRemote()
		ss.cancelRemote = nil
	}
}
