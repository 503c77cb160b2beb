package monitoring

import (
	"strings"
	"time"

	"github.com/smartsupply/agent/pkg/metrics"
)

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	metrics.ObserveDuration(module.metrics.APILatency.WithLabelValues(method, path, status), duration)
}

// RecordSyncRun records the outcome of one customer sync cycle. A negative
// customers value leaves the cached customer gauge untouched.
func RecordSyncRun(result, message string, duration time.Duration, customers int64) {
	module := CurrentModule()
	if module == nil {
		return
	}
	result = normalizeLabel(result)
	module.metrics.SyncRuns.WithLabelValues(result).Inc()
	metrics.ObserveDuration(module.metrics.SyncDuration, duration)
	if result == "success" {
		module.metrics.SyncLastSuccess.Set(float64(time.Now().Unix()))
	}
	if customers >= 0 {
		module.metrics.CachedCustomers.Set(float64(customers))
		module.stats.cachedCustomers.Store(customers)
	}
	module.stats.sync.record(result, strings.TrimSpace(message), duration)
}

// RecordSearchUpdate counts a delivered search result set.
func RecordSearchUpdate(source string) {
	module := CurrentModule()
	if module == nil {
		return
	}
	source = normalizeLabel(source)
	module.metrics.SearchUpdates.WithLabelValues(source).Inc()
	module.stats.recordSearchUpdate(source)
}

// RecordRemoteFallback counts a remote search fallback by result.
func RecordRemoteFallback(result string) {
	module := CurrentModule()
	if module == nil {
		return
	}
	result = normalizeLabel(result)
	module.metrics.RemoteFallbacks.WithLabelValues(result).Inc()
	module.stats.recordFallback(result)
}

// RecordRemoteRequest records one Smart Supply API call, retries included.
func RecordRemoteRequest(op, result string, duration time.Duration) {
	module := CurrentModule()
	if module == nil {
		return
	}
	op = normalizePath(op)
	result = normalizeLabel(result)
	module.metrics.RemoteRequests.WithLabelValues(op, result).Inc()
	metrics.ObserveDuration(module.metrics.RemoteRequestLatency.WithLabelValues(op), duration)
	module.stats.recordRemote(result)
}

// RecordLogin increments the login counter.
func RecordLogin(result string) {
	module := CurrentModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.Logins.WithLabelValues(label).Inc()
	module.stats.recordLogin(label)
}

// RecordRealtimeConnection adjusts the websocket connection gauge.
func RecordRealtimeConnection(delta int64) {
	module := CurrentModule()
	if module == nil || delta == 0 {
		return
	}
	module.metrics.RealtimeConnections.Add(float64(delta))
	if module.stats.recordRealtimeConnection(delta) < 0 {
		module.stats.realtimeConnections.Store(0)
		module.metrics.RealtimeConnections.Set(0)
	}
}

// RecordRealtimeFailure snapshots a realtime failure occurrence.
func RecordRealtimeFailure(failureType, message string) {
	module := CurrentModule()
	if module == nil {
		return
	}
	failureType = normalizeLabel(failureType)
	module.metrics.RealtimeFailures.WithLabelValues(failureType).Inc()
	module.stats.recordRealtimeFailure(FailureRecord{
		Type:     failureType,
		Message:  strings.TrimSpace(message),
		Occurred: time.Now(),
	})
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

// sanitizePath keeps the route template as registered, e.g. "/customers/:id".
func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	return strings.ReplaceAll(path, " ", "_")
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
