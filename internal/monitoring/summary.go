package monitoring

import "time"

// Summary surfaces aggregated runtime statistics for the status endpoint.
type Summary struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Logins      LoginSummary    `json:"logins"`
	Sync        SyncSummary     `json:"sync"`
	Search      SearchSummary   `json:"search"`
	Remote      RemoteSummary   `json:"remote"`
	Realtime    RealtimeSummary `json:"realtime"`
}

type LoginSummary struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
	Error   uint64 `json:"error"`
}

// SyncSummary describes recent customer sync cycles. CachedCustomers is -1
// until a sync has read the count back.
type SyncSummary struct {
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
	CachedCustomers     int64         `json:"cached_customers"`
}

type SearchSummary struct {
	LocalUpdates    uint64 `json:"local_updates"`
	RemoteUpdates   uint64 `json:"remote_updates"`
	FallbackSuccess uint64 `json:"fallback_success"`
	FallbackFailure uint64 `json:"fallback_failure"`
}

type RemoteSummary struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
}

type FailureRecord struct {
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	Occurred time.Time `json:"occurred_at"`
}

type RealtimeSummary struct {
	ActiveConnections int64          `json:"active_connections"`
	Failures          uint64         `json:"failures"`
	LastFailure       *FailureRecord `json:"last_failure,omitempty"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	if module := CurrentModule(); module != nil && module.stats != nil {
		return module.stats.summary()
	}
	return Summary{GeneratedAt: time.Now(), Sync: SyncSummary{CachedCustomers: -1}}
}
