package monitoring

import (
	"sync/atomic"
	"time"
)

type statStore struct {
	loginSuccess atomic.Uint64
	loginFailure atomic.Uint64
	loginError   atomic.Uint64

	sync            jobStats
	cachedCustomers atomic.Int64

	localUpdates    atomic.Uint64
	remoteUpdates   atomic.Uint64
	fallbackSuccess atomic.Uint64
	fallbackFailure atomic.Uint64

	remoteSuccess atomic.Uint64
	remoteFailure atomic.Uint64

	realtimeConnections atomic.Int64
	realtimeFailures    atomic.Uint64
	realtimeLastFailure atomic.Value // *FailureRecord
}

func newStatStore() *statStore {
	store := &statStore{}
	store.cachedCustomers.Store(-1)
	store.realtimeLastFailure.Store((*FailureRecord)(nil))
	return store
}

func (s *statStore) summary() Summary {
	lastFailure, _ := s.realtimeLastFailure.Load().(*FailureRecord)

	return Summary{
		GeneratedAt: time.Now(),
		Logins: LoginSummary{
			Success: s.loginSuccess.Load(),
			Failure: s.loginFailure.Load(),
			Error:   s.loginError.Load(),
		},
		Sync: s.sync.snapshot(s.cachedCustomers.Load()),
		Search: SearchSummary{
			LocalUpdates:    s.localUpdates.Load(),
			RemoteUpdates:   s.remoteUpdates.Load(),
			FallbackSuccess: s.fallbackSuccess.Load(),
			FallbackFailure: s.fallbackFailure.Load(),
		},
		Remote: RemoteSummary{
			Success: s.remoteSuccess.Load(),
			Failure: s.remoteFailure.Load(),
		},
		Realtime: RealtimeSummary{
			ActiveConnections: s.realtimeConnections.Load(),
			Failures:          s.realtimeFailures.Load(),
			LastFailure:       lastFailure,
		},
	}
}

func (s *statStore) recordLogin(result string) {
	switch result {
	case "success":
		s.loginSuccess.Add(1)
	case "failure":
		s.loginFailure.Add(1)
	default:
		s.loginError.Add(1)
	}
}

func (s *statStore) recordSearchUpdate(source string) {
	if source == "remote" {
		s.remoteUpdates.Add(1)
		return
	}
	s.localUpdates.Add(1)
}

func (s *statStore) recordFallback(result string) {
	if result == "success" {
		s.fallbackSuccess.Add(1)
		return
	}
	s.fallbackFailure.Add(1)
}

func (s *statStore) recordRemote(result string) {
	if result == "success" {
		s.remoteSuccess.Add(1)
		return
	}
	s.remoteFailure.Add(1)
}

func (s *statStore) recordRealtimeConnection(delta int64) int64 {
	return s.realtimeConnections.Add(delta)
}

func (s *statStore) recordRealtimeFailure(record FailureRecord) {
	s.realtimeFailures.Add(1)
	cloned := record
	s.realtimeLastFailure.Store(&cloned)
}

type jobStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	consecutiveSuccesses atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
}

func (j *jobStats) snapshot(cachedCustomers int64) SyncSummary {
	status, _ := j.lastStatus.Load().(string)
	errMsg, _ := j.lastError.Load().(string)

	summary := SyncSummary{
		LastStatus:          status,
		LastDuration:        time.Duration(j.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: j.consecutiveFailures.Load(),
		ConsecutiveSuccess:  j.consecutiveSuccesses.Load(),
		TotalRuns:           j.totalRuns.Load(),
		CachedCustomers:     cachedCustomers,
	}
	if ns := j.lastRun.Load(); ns > 0 {
		summary.LastRunAt = time.Unix(0, ns)
	}
	if ns := j.lastSuccessfulRun.Load(); ns > 0 {
		summary.LastSuccessAt = time.Unix(0, ns)
	}
	return summary
}

func (j *jobStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	j.lastStatus.Store(result)
	j.lastError.Store(message)
	j.lastRun.Store(now.UnixNano())
	j.lastDuration.Store(int64(duration))
	j.totalRuns.Add(1)

	if result == "success" {
		j.consecutiveFailures.Store(0)
		j.consecutiveSuccesses.Add(1)
		j.lastSuccessfulRun.Store(now.UnixNano())
		return
	}
	j.consecutiveFailures.Add(1)
	j.consecutiveSuccesses.Store(0)
}
