package checks

import (
	"context"
	"time"

	"github.com/smartsupply/agent/internal/monitoring"
)

// Pinger is satisfied by the local cache store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Cache returns a readiness probe that pings the local cache database.
func Cache(store Pinger) monitoring.Check {
	return monitoring.NewCheck("cache", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if store == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "cache store not configured",
				Duration: time.Since(start),
			}
		}
		return monitoring.ResultFromError("cache", store.Ping(ctx), time.Since(start))
	})
}
