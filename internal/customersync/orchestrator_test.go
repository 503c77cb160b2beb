package customersync

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/smartsupply/agent/internal/cache"
	"github.com/smartsupply/agent/internal/database"
	"github.com/smartsupply/agent/internal/database/testutil"
	"github.com/smartsupply/agent/internal/models"
	"github.com/smartsupply/agent/internal/remote"
)

type fakeAPI struct {
	customers     []models.CustomerRecord
	customersErr  error
	setup         remote.CompanySetup
	setupErr      error
	categories    []models.BottleCategoryRecord
	categoriesErr error

	customerCalls atomic.Int32
	block         chan struct{}
}

func (f *fakeAPI) GetCustomers(ctx context.Context) ([]models.CustomerRecord, error) {
	f.customerCalls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.customers, f.customersErr
}

func (f *fakeAPI) GetCompanySetup(context.Context) (remote.CompanySetup, error) {
	return f.setup, f.setupErr
}

func (f *fakeAPI) GetBottleCategories(_ context.Context, id string) ([]models.BottleCategoryRecord, error) {
	if id != f.setup.ID {
		return nil, errors.New("unexpected company setup id")
	}
	return f.categories, f.categoriesErr
}

type fakeScheduler struct {
	mu        sync.Mutex
	interval  time.Duration
	jobs      []func()
	cancelled int
}

func (s *fakeScheduler) Every(interval time.Duration, fn func()) (CancelFunc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = interval
	s.jobs = append(s.jobs, fn)
	return func() {
		s.mu.Lock()
		s.cancelled++
		s.mu.Unlock()
	}, nil
}

func (s *fakeScheduler) fire(i int) {
	s.mu.Lock()
	job := s.jobs[i]
	s.mu.Unlock()
	job()
}

func (s *fakeScheduler) cancelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

func newTestStore(t *testing.T) *cache.CustomerStore {
	t.Helper()
	store := cache.NewCustomerStore(testutil.MemoryConfig(), cache.WithLogger(zap.NewNop()))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func money(v int64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromInt(v))
}

func active(v bool) *bool { return &v }

func scenarioAPI() *fakeAPI {
	return &fakeAPI{
		customers: []models.CustomerRecord{
			{ID: "c1", Name: "Ahmed", Phone: "0300", Balance: money(500)},
			{ID: "c2", Name: "Bilal", Phone: "0301", IsActive: active(false)},
		},
		setup: remote.CompanySetup{ID: "co-1"},
		categories: []models.BottleCategoryRecord{
			{ID: "p1", CategoryName: "19 Liter", Price: money(180)},
		},
	}
}

func newTestOrchestrator(t *testing.T, store Store, api API, opts ...Option) (*Orchestrator, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	opts = append([]Option{WithClock(clock), WithLogger(zap.NewNop()), WithScheduler(&fakeScheduler{})}, opts...)
	return NewOrchestrator(store, api, opts...), clock
}

func TestSyncCustomersStoresDirectoryAndPrices(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	orch, clock := newTestOrchestrator(t, store, scenarioAPI())

	result := orch.SyncCustomers(ctx)
	require.True(t, result.Success, result.Message)
	require.EqualValues(t, 2, result.Customers)
	require.True(t, result.PricesSynced)
	require.Equal(t, "180", result.Price19Liter)

	results, err := store.SearchCustomers(ctx, "a")
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "c1", results[0].ID)

	last, ok, err := store.GetLastSyncTime(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, clock.Now().UnixMilli(), last)

	require.False(t, orch.ShouldSync(ctx))
}

func TestSyncCustomersNetworkFailureKeepsCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCustomers(ctx, []models.CustomerRecord{{ID: "old", Name: "Cached"}}))

	api := &fakeAPI{customersErr: &remote.NetworkError{Op: "get customers", StatusCode: http.StatusInternalServerError}}
	orch, _ := newTestOrchestrator(t, store, api)

	result := orch.SyncCustomers(ctx)
	require.False(t, result.Success)
	require.Contains(t, result.Message, "500")

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	_, ok, err := store.GetLastSyncTime(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSyncCustomersUnsuccessfulEnvelopeIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCustomers(ctx, []models.CustomerRecord{{ID: "old", Name: "Cached"}}))

	api := scenarioAPI()
	api.customers = nil
	api.customersErr = remote.ErrUnsuccessful
	orch, _ := newTestOrchestrator(t, store, api)

	result := orch.SyncCustomers(ctx)
	require.True(t, result.Success)
	require.EqualValues(t, 1, result.Customers)

	_, ok, err := store.GetLastSyncTime(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestSyncCustomersEmptyListKeepsCache(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.ReplaceCustomers(ctx, []models.CustomerRecord{{ID: "old", Name: "Cached"}}))

	api := scenarioAPI()
	api.customers = []models.CustomerRecord{}
	orch, _ := newTestOrchestrator(t, store, api)

	result := orch.SyncCustomers(ctx)
	require.True(t, result.Success)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)
}

func TestSyncCustomersPricingIsBestEffort(t *testing.T) {
	ctx := context.Background()

	cases := map[string]func(*fakeAPI){
		"not configured":    func(a *fakeAPI) { a.setupErr = remote.ErrNotConfigured },
		"categories failed": func(a *fakeAPI) { a.categoriesErr = &remote.NetworkError{Op: "get bottle categories", StatusCode: 502} },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			store := newTestStore(t)
			api := scenarioAPI()
			mutate(api)
			orch, _ := newTestOrchestrator(t, store, api)

			result := orch.SyncCustomers(ctx)
			require.True(t, result.Success)
			require.False(t, result.PricesSynced)
			require.EqualValues(t, 2, result.Customers)

			_, ok, err := store.Find19LiterPrice(ctx)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestSyncCustomersInitializeFailure(t *testing.T) {
	store := cache.NewCustomerStore(database.Config{},
		cache.WithLogger(zap.NewNop()),
		cache.WithOpener(func(database.Config) (*gorm.DB, error) { return nil, errors.New("denied") }),
	)
	api := scenarioAPI()
	orch, _ := newTestOrchestrator(t, store, api)

	result := orch.SyncCustomers(context.Background())
	require.False(t, result.Success)
	require.Equal(t, "Failed to initialize local cache", result.Message)
	require.Zero(t, api.customerCalls.Load())
}

func TestShouldSyncFollowsInterval(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	tracker := NewTracker(store, clock, 0, nil)

	require.True(t, tracker.ShouldSync(ctx), "never synced")

	now := clock.Now()
	require.NoError(t, store.SetLastSyncTime(ctx, now.Add(-5*time.Hour-59*time.Minute).UnixMilli()))
	require.False(t, tracker.ShouldSync(ctx))

	require.NoError(t, store.SetLastSyncTime(ctx, now.Add(-6*time.Hour).UnixMilli()))
	require.True(t, tracker.ShouldSync(ctx))

	require.NoError(t, store.SetLastSyncTime(ctx, now.UnixMilli()))
	clock.Advance(6*time.Hour - time.Millisecond)
	require.False(t, tracker.ShouldSync(ctx))
	clock.Advance(time.Millisecond)
	require.True(t, tracker.ShouldSync(ctx))
}

type failingReader struct{}

func (failingReader) GetLastSyncTime(context.Context) (int64, bool, error) {
	return 0, false, cache.ErrStorageIO
}

func TestShouldSyncOnReadError(t *testing.T) {
	tracker := NewTracker(failingReader{}, clockwork.NewFakeClock(), time.Hour, zap.NewNop())
	require.True(t, tracker.ShouldSync(context.Background()))
}

func TestStartPeriodicSyncRunsImmediatelyAndOnSchedule(t *testing.T) {
	store := newTestStore(t)
	api := scenarioAPI()
	sched := &fakeScheduler{}
	orch, _ := newTestOrchestrator(t, store, api, WithScheduler(sched))

	require.Equal(t, StateIdle, orch.State())
	require.NoError(t, orch.StartPeriodicSync(context.Background()))
	require.Equal(t, StateScheduled, orch.State())
	require.Equal(t, DefaultInterval, sched.interval)

	require.Eventually(t, func() bool { return api.customerCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	sched.fire(0)
	require.EqualValues(t, 2, api.customerCalls.Load())

	require.NoError(t, orch.Shutdown(context.Background()))
	require.Equal(t, StateIdle, orch.State())
	require.Equal(t, 1, sched.cancelCount())

	sched.fire(0)
	require.EqualValues(t, 2, api.customerCalls.Load(), "no sync after stop")
}

func TestStartPeriodicSyncReplacesExistingSchedule(t *testing.T) {
	store := newTestStore(t)
	api := scenarioAPI()
	sched := &fakeScheduler{}
	orch, _ := newTestOrchestrator(t, store, api, WithScheduler(sched), WithInterval(time.Minute))

	require.NoError(t, orch.StartPeriodicSync(context.Background()))
	require.NoError(t, orch.StartPeriodicSync(context.Background()))
	require.Equal(t, 1, sched.cancelCount())
	require.Equal(t, time.Minute, sched.interval)

	orch.StopPeriodicSync()
	orch.StopPeriodicSync()
	require.Equal(t, 2, sched.cancelCount())
	require.NoError(t, orch.Shutdown(context.Background()))
}

func TestStopPeriodicSyncCancelsInFlightSync(t *testing.T) {
	store := newTestStore(t)
	api := scenarioAPI()
	api.block = make(chan struct{})
	orch, _ := newTestOrchestrator(t, store, api)

	require.NoError(t, orch.StartPeriodicSync(context.Background()))
	require.Eventually(t, func() bool { return api.customerCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, orch.Shutdown(ctx))

	_, ok, err := store.GetLastSyncTime(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCronSchedulerRunsAndCancels(t *testing.T) {
	sched := NewCronScheduler(nil)
	t.Cleanup(func() { <-sched.Stop().Done() })

	_, err := sched.Every(0, func() {})
	require.Error(t, err)

	var runs atomic.Int32
	cancel, err := sched.Every(time.Second, func() { runs.Add(1) })
	require.NoError(t, err)

	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	cancel()
	cancel()

	seen := runs.Load()
	time.Sleep(1200 * time.Millisecond)
	require.Equal(t, seen, runs.Load())
}

func TestCronSchedulerStopBeforeFirstJob(t *testing.T) {
	sched := NewCronScheduler(nil)

	select {
	case <-sched.Stop().Done():
	case <-time.After(time.Second):
		t.Fatal("stopping an idle scheduler should not block")
	}
}
