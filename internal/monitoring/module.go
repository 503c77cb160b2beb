package monitoring

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smartsupply/agent/pkg/metrics"
)

// Options control monitoring module configuration.
type Options struct {
	// Namespace configures the Prometheus namespace. Defaults to "smartsupply".
	Namespace string
	// DisableGoCollector skips registration of the Go runtime collector when true.
	DisableGoCollector bool
	// DisableProcessCollector skips registration of the process collector when true.
	DisableProcessCollector bool
}

// Module owns the Prometheus registry, the runtime statistics behind the
// summary endpoint and the health probes.
type Module struct {
	registry *prometheus.Registry
	metrics  *metrics.Collectors
	stats    *statStore
	health   *HealthManager
}

// NewModule constructs a monitoring module with its own Prometheus registry.
func NewModule(opts Options) (*Module, error) {
	registry := prometheus.NewRegistry()
	if !opts.DisableGoCollector {
		if err := registry.Register(prometheus.NewGoCollector()); err != nil {
			return nil, err
		}
	}
	if !opts.DisableProcessCollector {
		if err := registry.Register(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{})); err != nil {
			return nil, err
		}
	}

	return &Module{
		registry: registry,
		metrics:  metrics.New(opts.Namespace, registry),
		stats:    newStatStore(),
		health:   NewHealthManager(),
	}, nil
}

// Registry exposes the underlying Prometheus registry.
func (m *Module) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns an http.Handler serving Prometheus metrics for this module.
func (m *Module) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Metrics returns the module's collector set.
func (m *Module) Metrics() *metrics.Collectors {
	if m == nil {
		return nil
	}
	return m.metrics
}

// Health exposes the health manager responsible for liveness and readiness probes.
func (m *Module) Health() *HealthManager {
	if m == nil {
		return nil
	}
	return m.health
}

var globalModule atomic.Pointer[Module]

// SetModule configures the process-wide monitoring module used by instrumentation helpers.
func SetModule(module *Module) {
	if module == nil {
		return
	}
	globalModule.Store(module)
}

// CurrentModule returns the process-wide monitoring module, or nil when unset.
func CurrentModule() *Module {
	return globalModule.Load()
}
