package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smartsupply/agent/internal/app"
	"github.com/smartsupply/agent/internal/monitoring"
	"github.com/smartsupply/agent/pkg/response"
)

// MonitoringHandler surfaces the agent's sync, search and login statistics.
type MonitoringHandler struct {
	module *monitoring.Module
	cfg    *app.Config
}

// NewMonitoringHandler constructs a monitoring handler. Returns nil when monitoring is disabled.
func NewMonitoringHandler(module *monitoring.Module, cfg *app.Config) *MonitoringHandler {
	if module == nil || cfg == nil {
		return nil
	}
	if !cfg.Monitoring.Health.Enabled && !cfg.Monitoring.Prometheus.Enabled {
		return nil
	}
	return &MonitoringHandler{module: module, cfg: cfg}
}

// Summary returns aggregated monitoring statistics and configuration hints.
func (h *MonitoringHandler) Summary(c *gin.Context) {
	snapshot := monitoring.Snapshot()
	endpoint := strings.TrimSpace(h.cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}

	response.Success(c, http.StatusOK, gin.H{
		"summary": snapshot,
		"prometheus": gin.H{
			"enabled":  h.cfg.Monitoring.Prometheus.Enabled,
			"endpoint": endpoint,
		},
	})
}
