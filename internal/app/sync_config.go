package app

import (
	"golang.org/x/time/rate"

	"github.com/smartsupply/agent/internal/auth"
	"github.com/smartsupply/agent/internal/customersync"
	"github.com/smartsupply/agent/internal/search"
)

// SessionManagerConfig converts SyncConfig into session manager parameters.
func (c SyncConfig) SessionManagerConfig() auth.ManagerConfig {
	return auth.ManagerConfig{
		SyncRoles:     append([]string(nil), c.EnabledRoles...),
		ClearOnLogout: c.ClearOnLogout,
	}
}

// OrchestratorOptions converts SyncConfig into orchestrator options. A zero
// interval keeps the default.
func (c SyncConfig) OrchestratorOptions() []customersync.Option {
	var opts []customersync.Option
	if c.Interval > 0 {
		opts = append(opts, customersync.WithInterval(c.Interval))
	}
	return opts
}

// SearcherOptions converts SearchConfig into searcher options.
func (c SearchConfig) SearcherOptions() []search.Option {
	opts := []search.Option{
		search.WithSettleDelay(c.SettleDelay),
		search.WithFallbackDelay(c.FallbackDelay),
	}
	if c.RemoteRate > 0 && c.RemoteBurst > 0 {
		opts = append(opts, search.WithRemoteRate(rate.Limit(c.RemoteRate), c.RemoteBurst))
	}
	return opts
}
