// Package metrics defines the Prometheus collectors exported by the agent.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultNamespace prefixes every collector name.
const DefaultNamespace = "smartsupply"

// Collectors groups the agent's collectors. Build one per registry with New.
type Collectors struct {
	APILatency *prometheus.HistogramVec

	// SyncRuns counts customer sync cycles by result (success|failure).
	SyncRuns        *prometheus.CounterVec
	SyncDuration    prometheus.Histogram
	SyncLastSuccess prometheus.Gauge
	CachedCustomers prometheus.Gauge

	// SearchUpdates counts search results delivered by source (local|remote).
	SearchUpdates   *prometheus.CounterVec
	RemoteFallbacks *prometheus.CounterVec

	RemoteRequests       *prometheus.CounterVec
	RemoteRequestLatency *prometheus.HistogramVec

	Logins *prometheus.CounterVec

	RealtimeConnections prometheus.Gauge
	RealtimeFailures    *prometheus.CounterVec
}

// New registers a fresh collector set on reg.
func New(namespace string, reg prometheus.Registerer) *Collectors {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Collectors{
		APILatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_latency_seconds",
			Help:      "Local API endpoint latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		SyncRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "customer_sync_runs_total",
			Help:      "Customer sync cycles by result",
		}, []string{"result"}),
		SyncDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "customer_sync_duration_seconds",
			Help:      "Duration of customer sync cycles",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SyncLastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "customer_sync_last_success_timestamp",
			Help:      "Timestamp of the last successful customer sync (seconds since epoch)",
		}),
		CachedCustomers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_customers",
			Help:      "Customers held in the local cache after the last sync",
		}),
		SearchUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_updates_total",
			Help:      "Search result sets delivered by source",
		}, []string{"source"}),
		RemoteFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_remote_fallbacks_total",
			Help:      "Remote search fallbacks by result",
		}, []string{"result"}),
		RemoteRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_requests_total",
			Help:      "Requests to the Smart Supply API by operation and result",
		}, []string{"op", "result"}),
		RemoteRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_request_duration_seconds",
			Help:      "Latency of Smart Supply API requests including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_logins_total",
			Help:      "Session login attempts by result",
		}, []string{"result"}),
		RealtimeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Active search websocket connections",
		}),
		RealtimeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_failures_total",
			Help:      "Search websocket failures by type",
		}, []string{"type"}),
	}
}

// ObserveDuration records d in seconds, clamping negatives to zero.
func ObserveDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
