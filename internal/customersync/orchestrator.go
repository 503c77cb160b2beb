// Package customersync keeps the local customer cache in step with the
// Smart Supply API, on demand and on a recurring schedule.
package customersync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/smartsupply/agent/internal/models"
	"github.com/smartsupply/agent/internal/monitoring"
	"github.com/smartsupply/agent/internal/remote"
	"github.com/smartsupply/agent/pkg/logger"
)

// Store is the part of the local cache the orchestrator writes to.
type Store interface {
	LastSyncReader
	Initialize(ctx context.Context) error
	ReplaceCustomers(ctx context.Context, records []models.CustomerRecord) error
	Count(ctx context.Context) (int64, error)
	ReplaceBottlePrices(ctx context.Context, records []models.BottleCategoryRecord) error
	Find19LiterPrice(ctx context.Context) (string, bool, error)
	SetLastSyncTime(ctx context.Context, ms int64) error
}

// API is the part of the remote client the orchestrator reads from.
type API interface {
	GetCustomers(ctx context.Context) ([]models.CustomerRecord, error)
	GetCompanySetup(ctx context.Context) (remote.CompanySetup, error)
	GetBottleCategories(ctx context.Context, companySetupID string) ([]models.BottleCategoryRecord, error)
}

// State describes whether periodic sync is running.
type State string

const (
	StateIdle      State = "idle"
	StateScheduled State = "scheduled"
)

// Result reports the outcome of one sync cycle.
type Result struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message,omitempty"`
	Customers    int64         `json:"customers"`
	PricesSynced bool          `json:"pricesSynced"`
	Price19Liter string        `json:"price19Liter,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the clock, primarily for testing.
func WithClock(clock clockwork.Clock) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithScheduler overrides the recurring job scheduler.
func WithScheduler(s Scheduler) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.scheduler = s
		}
	}
}

// WithInterval overrides the periodic sync interval.
func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithLogger overrides the orchestrator logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) {
		if log != nil {
			o.log = log
		}
	}
}

// Orchestrator runs customer and price syncs. Overlapping syncs are allowed;
// the store resolves them last-write-wins.
type Orchestrator struct {
	store     Store
	api       API
	scheduler Scheduler
	clock     clockwork.Clock
	interval  time.Duration
	log       *zap.Logger
	tracker   *Tracker

	mu       sync.Mutex
	cancel   CancelFunc
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
}

// NewOrchestrator wires an orchestrator over store and api.
func NewOrchestrator(store Store, api API, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		api:      api,
		clock:    clockwork.NewRealClock(),
		interval: DefaultInterval,
		log:      logger.WithModule("customersync"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.scheduler == nil {
		o.scheduler = NewCronScheduler(nil)
	}
	o.tracker = NewTracker(store, o.clock, o.interval, o.log)
	return o
}

// Tracker returns the freshness tracker sharing this orchestrator's clock
// and interval.
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// ShouldSync reports whether the cache is due for a sync.
func (o *Orchestrator) ShouldSync(ctx context.Context) bool {
	return o.tracker.ShouldSync(ctx)
}

// SyncCustomers runs one full sync cycle. Failures on the customer path are
// reported in the Result; price list failures are only logged.
func (o *Orchestrator) SyncCustomers(ctx context.Context) Result {
	start := o.clock.Now()
	result := o.sync(ctx)
	result.Duration = o.clock.Since(start)

	customers := int64(-1)
	outcome := "failure"
	if result.Success {
		outcome = "success"
		customers = result.Customers
	}
	monitoring.RecordSyncRun(outcome, result.Message, result.Duration, customers)
	return result
}

func (o *Orchestrator) sync(ctx context.Context) Result {
	o.log.Info("customer sync started")

	if err := o.store.Initialize(ctx); err != nil {
		o.log.Error("local cache initialization failed", zap.Error(err))
		return Result{Message: "Failed to initialize local cache"}
	}

	result := Result{Customers: -1}

	customers, err := o.api.GetCustomers(ctx)
	switch {
	case errors.Is(err, remote.ErrUnsuccessful):
		o.log.Warn("customer fetch unsuccessful, keeping cached directory", zap.Error(err))
	case err != nil:
		o.log.Error("customer fetch failed", zap.Error(err))
		return Result{Message: failureMessage("fetch customers", err)}
	default:
		o.log.Info("fetched customers", zap.Int("customers", len(customers)))
		if len(customers) > 0 {
			if err := o.store.ReplaceCustomers(ctx, customers); err != nil {
				o.log.Error("storing customers failed", zap.Error(err))
				return Result{Message: failureMessage("store customers", err)}
			}
			count, err := o.store.Count(ctx)
			if err != nil {
				o.log.Warn("reading cached customer count failed", zap.Error(err))
			} else {
				result.Customers = count
				o.log.Info("customers cached", zap.Int64("stored", count))
			}
		}
	}

	if price, err := o.syncPrices(ctx); err != nil {
		o.log.Warn("bottle price sync failed", zap.Error(err))
	} else {
		result.PricesSynced = true
		result.Price19Liter = price
	}

	if err := o.store.SetLastSyncTime(ctx, o.clock.Now().UnixMilli()); err != nil {
		o.log.Error("recording sync time failed", zap.Error(err))
		return Result{Message: failureMessage("record sync time", err)}
	}

	if result.Customers < 0 {
		if count, err := o.store.Count(ctx); err == nil {
			result.Customers = count
		} else {
			result.Customers = 0
		}
	}

	result.Success = true
	o.log.Info("customer sync completed",
		zap.Int64("customers", result.Customers),
		zap.Bool("prices_synced", result.PricesSynced),
	)
	return result
}

// syncPrices refreshes the bottle price list and returns the 19-liter price
// when one is listed.
func (o *Orchestrator) syncPrices(ctx context.Context) (string, error) {
	setup, err := o.api.GetCompanySetup(ctx)
	if err != nil {
		return "", err
	}

	categories, err := o.api.GetBottleCategories(ctx, setup.ID)
	if err != nil {
		return "", err
	}
	o.log.Info("fetched bottle categories", zap.Int("categories", len(categories)))
	if len(categories) == 0 {
		return "", nil
	}

	if err := o.store.ReplaceBottlePrices(ctx, categories); err != nil {
		return "", fmt.Errorf("store bottle prices: %w", err)
	}

	price, ok, err := o.store.Find19LiterPrice(ctx)
	switch {
	case err != nil:
		return "", fmt.Errorf("read 19 liter price: %w", err)
	case !ok:
		o.log.Warn("19 liter bottle price not found in categories")
		return "", nil
	default:
		o.log.Info("19 liter bottle price stored", zap.String("price", price))
		return price, nil
	}
}

// StartPeriodicSync replaces any running schedule with a new one: an
// immediate sync in the background, then one every interval. Background
// syncs outlive ctx's cancellation but keep its values.
func (o *Orchestrator) StartPeriodicSync(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopLocked()

	bgCtx, bgCancel := context.WithCancel(context.WithoutCancel(ctx))

	cancel, err := o.scheduler.Every(o.interval, func() {
		if !o.track(bgCtx) {
			return
		}
		defer o.wg.Done()
		o.runBackground(bgCtx, "periodic")
	})
	if err != nil {
		bgCancel()
		return fmt.Errorf("schedule periodic sync: %w", err)
	}

	o.cancel = cancel
	o.bgCancel = bgCancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runBackground(bgCtx, "initial")
	}()

	o.log.Info("periodic customer sync scheduled", zap.Duration("interval", o.interval))
	return nil
}

// StopPeriodicSync cancels the schedule and any sync it started. It is a
// no-op when nothing is scheduled.
func (o *Orchestrator) StopPeriodicSync() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		o.log.Info("periodic customer sync stopped")
	}
	o.stopLocked()
}

func (o *Orchestrator) stopLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.bgCancel != nil {
		o.bgCancel()
		o.bgCancel = nil
	}
}

// State reports whether periodic sync is scheduled.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.cancel != nil {
		return StateScheduled
	}
	return StateIdle
}

// Shutdown stops periodic sync and waits for background syncs to return.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.StopPeriodicSync()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// track registers a background sync unless ctx was cancelled by a stop. It
// holds the mutex so no Add can follow StopPeriodicSync.
func (o *Orchestrator) track(ctx context.Context) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	o.wg.Add(1)
	return true
}

func (o *Orchestrator) runBackground(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	result := o.SyncCustomers(ctx)
	if !result.Success {
		o.log.Error("background customer sync failed",
			zap.String("trigger", trigger),
			zap.String("message", result.Message),
		)
	}
}

func failureMessage(step string, err error) string {
	var netErr *remote.NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode > 0 {
		return fmt.Sprintf("Failed to %s: server responded with status %d", step, netErr.StatusCode)
	}
	return fmt.Sprintf("Failed to %s: %v", step, err)
}
