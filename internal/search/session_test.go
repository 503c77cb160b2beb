package search

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smartsupply/agent/internal/models"
)

type fakeStore struct {
	mu        sync.Mutex
	customers []models.CachedCustomer
	upserted  []models.CustomerRecord
	initErr   error
	searchErr error
}

func (f *fakeStore) Initialize(context.Context) error {
	return f.initErr
}

func (f *fakeStore) SearchCustomers(_ context.Context, query string) ([]models.CachedCustomer, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	needle := strings.ToLower(strings.TrimSpace(query))
	out := []models.CachedCustomer{}
	for _, c := range f.customers {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) UpsertCustomers(_ context.Context, records []models.CustomerRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeStore) upserts() []models.CustomerRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CustomerRecord(nil), f.upserted...)
}

type fakeRemote struct {
	mu      sync.Mutex
	queries []string
	records []models.CustomerRecord
	err     error
	block   bool
	started chan string
	aborted chan string
}

func (f *fakeRemote) SearchCustomers(ctx context.Context, query string) ([]models.CustomerRecord, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	block := f.block
	f.mu.Unlock()

	if f.started != nil {
		f.started <- query
	}
	if block {
		<-ctx.Done()
		if f.aborted != nil {
			f.aborted <- query
		}
		return nil, ctx.Err()
	}
	return f.records, f.err
}

func (f *fakeRemote) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func newTestSession(t *testing.T, store LocalStore, remote RemoteSearcher) (*Session, clockwork.FakeClock, chan Update) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	searcher := NewSearcher(store, remote, WithClock(clock), WithLogger(zap.NewNop()))
	updates := make(chan Update, 16)
	session := searcher.NewSession(func(u Update) {
		updates <- u
	})
	t.Cleanup(session.Close)
	return session, clock, updates
}

func nextUpdate(t *testing.T, updates <-chan Update) Update {
	t.Helper()
	select {
	case u := <-updates:
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a search update")
		return Update{}
	}
}

func requireNoUpdate(t *testing.T, updates <-chan Update) {
	t.Helper()
	select {
	case u := <-updates:
		t.Fatalf("unexpected update %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionLocalHit(t *testing.T) {
	store := &fakeStore{customers: []models.CachedCustomer{
		{ID: "c1", Name: "Al Madina Store", IsActive: true},
		{ID: "c2", Name: "Noor Water", IsActive: true},
	}}
	remote := &fakeRemote{}
	session, clock, updates := newTestSession(t, store, remote)

	session.SetQuery("madina")
	requireNoUpdate(t, updates)

	clock.Advance(DefaultSettleDelay)
	u := nextUpdate(t, updates)
	require.Equal(t, "madina", u.Query)
	require.Equal(t, SourceLocal, u.Source)
	require.False(t, u.FallbackPending)
	require.Len(t, u.Customers, 1)
	require.Equal(t, "c1", u.Customers[0].ID)

	clock.Advance(DefaultFallbackDelay)
	requireNoUpdate(t, updates)
	require.Empty(t, remote.calls())
}

func TestSessionDebouncesKeystrokes(t *testing.T) {
	store := &fakeStore{customers: []models.CachedCustomer{{ID: "c1", Name: "Noor Water", IsActive: true}}}
	session, clock, updates := newTestSession(t, store, &fakeRemote{})

	session.SetQuery("n")
	session.SetQuery("no")
	session.SetQuery("noor")
	clock.Advance(DefaultSettleDelay)

	u := nextUpdate(t, updates)
	require.Equal(t, "noor", u.Query)
	requireNoUpdate(t, updates)
}

func TestSessionRemoteFallback(t *testing.T) {
	store := &fakeStore{}
	remote := &fakeRemote{records: []models.CustomerRecord{
		{ID: "r1", Name: "Remote Traders", Phone: "03001234567"},
	}}
	session, clock, updates := newTestSession(t, store, remote)

	session.SetQuery("remote")
	clock.Advance(DefaultSettleDelay)

	local := nextUpdate(t, updates)
	require.Equal(t, SourceLocal, local.Source)
	require.Empty(t, local.Customers)
	require.NotNil(t, local.Customers)
	require.True(t, local.FallbackPending)

	clock.Advance(DefaultFallbackDelay - time.Millisecond)
	requireNoUpdate(t, updates)

	clock.Advance(time.Millisecond)
	u := nextUpdate(t, updates)
	require.Equal(t, SourceRemote, u.Source)
	require.Equal(t, "remote", u.Query)
	require.Len(t, u.Customers, 1)
	require.Equal(t, "r1", u.Customers[0].ID)
	require.True(t, u.Customers[0].IsActive)

	require.Equal(t, []string{"remote"}, remote.calls())
	require.Len(t, store.upserts(), 1)
}

func TestSessionQueryChangeCancelsFallback(t *testing.T) {
	remote := &fakeRemote{}
	session, clock, updates := newTestSession(t, &fakeStore{}, remote)

	session.SetQuery("xyz")
	clock.Advance(DefaultSettleDelay)
	require.True(t, nextUpdate(t, updates).FallbackPending)

	session.SetQuery("abc")
	clock.Advance(DefaultSettleDelay)
	u := nextUpdate(t, updates)
	require.Equal(t, "abc", u.Query)

	clock.Advance(DefaultFallbackDelay)
	u = nextUpdate(t, updates)
	require.Equal(t, SourceRemote, u.Source)
	require.Equal(t, "abc", u.Query)

	require.Never(t, func() bool {
		for _, q := range remote.calls() {
			if q == "xyz" {
				return true
			}
		}
		return false
	}, 100*time.Millisecond, 10*time.Millisecond)
	require.Equal(t, []string{"abc"}, remote.calls())
}

func TestSessionSelectionSuppressesFallback(t *testing.T) {
	remote := &fakeRemote{}
	session, clock, updates := newTestSession(t, &fakeStore{}, remote)

	session.SetQuery("walk-in")
	clock.Advance(DefaultSettleDelay)
	require.True(t, nextUpdate(t, updates).FallbackPending)

	picked := models.CachedCustomer{ID: "c9", Name: "Walk-in Customer"}
	session.Select(picked)

	clock.Advance(DefaultFallbackDelay)
	requireNoUpdate(t, updates)
	require.Empty(t, remote.calls())

	selected, ok := session.Selected()
	require.True(t, ok)
	require.Equal(t, "c9", selected.ID)

	session.SetQuery("other")
	_, ok = session.Selected()
	require.False(t, ok)
}

func TestSessionRemoteFailureYieldsEmptyResult(t *testing.T) {
	remote := &fakeRemote{err: errors.New("connection refused")}
	session, clock, updates := newTestSession(t, &fakeStore{}, remote)

	session.SetQuery("offline")
	clock.Advance(DefaultSettleDelay)
	nextUpdate(t, updates)

	clock.Advance(DefaultFallbackDelay)
	u := nextUpdate(t, updates)
	require.Equal(t, SourceRemote, u.Source)
	require.Empty(t, u.Customers)
	require.NotNil(t, u.Customers)
}

func TestSessionNewQueryAbortsRemoteRequest(t *testing.T) {
	remote := &fakeRemote{
		block:   true,
		started: make(chan string, 4),
		aborted: make(chan string, 4),
	}
	session, clock, updates := newTestSession(t, &fakeStore{}, remote)

	session.SetQuery("slow")
	clock.Advance(DefaultSettleDelay)
	nextUpdate(t, updates)
	clock.Advance(DefaultFallbackDelay)

	select {
	case q := <-remote.started:
		require.Equal(t, "slow", q)
	case <-time.After(2 * time.Second):
		t.Fatal("remote search never started")
	}

	session.SetQuery("")
	blank := nextUpdate(t, updates)
	require.Equal(t, SourceLocal, blank.Source)
	require.Empty(t, blank.Customers)

	select {
	case q := <-remote.aborted:
		require.Equal(t, "slow", q)
	case <-time.After(2 * time.Second):
		t.Fatal("remote search was not cancelled")
	}
	requireNoUpdate(t, updates)
}

func TestSessionBlankQuery(t *testing.T) {
	remote := &fakeRemote{}
	session, clock, updates := newTestSession(t, &fakeStore{}, remote)

	session.SetQuery("   ")
	u := nextUpdate(t, updates)
	require.Equal(t, SourceLocal, u.Source)
	require.Empty(t, u.Customers)
	require.False(t, u.FallbackPending)

	clock.Advance(DefaultSettleDelay + DefaultFallbackDelay)
	requireNoUpdate(t, updates)
	require.Empty(t, remote.calls())
}

func TestSessionCloseSuppressesUpdates(t *testing.T) {
	store := &fakeStore{customers: []models.CachedCustomer{{ID: "c1", Name: "Noor Water"}}}
	session, clock, updates := newTestSession(t, store, &fakeRemote{})

	session.SetQuery("noor")
	session.Close()
	clock.Advance(DefaultSettleDelay)
	requireNoUpdate(t, updates)

	session.SetQuery("noor")
	clock.Advance(DefaultSettleDelay)
	requireNoUpdate(t, updates)
	require.Equal(t, "noor", session.Query())
}

func TestSessionStorageUnavailableFallsBack(t *testing.T) {
	store := &fakeStore{initErr: errors.New("disk full")}
	remote := &fakeRemote{records: []models.CustomerRecord{{ID: "r1", Name: "Noor Water"}}}
	session, clock, updates := newTestSession(t, store, remote)

	session.SetQuery("noor")
	clock.Advance(DefaultSettleDelay)
	local := nextUpdate(t, updates)
	require.Empty(t, local.Customers)
	require.True(t, local.FallbackPending)

	clock.Advance(DefaultFallbackDelay)
	u := nextUpdate(t, updates)
	require.Equal(t, SourceRemote, u.Source)
	require.Len(t, u.Customers, 1)
}

func TestSearchLocalSwallowsErrors(t *testing.T) {
	store := &fakeStore{searchErr: errors.New("locked")}
	searcher := NewSearcher(store, &fakeRemote{}, WithLogger(zap.NewNop()))

	got := searcher.SearchLocal(context.Background(), "noor")
	require.NotNil(t, got)
	require.Empty(t, got)
}
