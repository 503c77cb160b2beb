package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/smartsupply/agent/internal/monitoring"
)

const defaultRealtimeWindow = 5 * time.Minute

// Realtime degrades while the search stream has recorded a failure within
// window.
func Realtime(window time.Duration) monitoring.Check {
	if window <= 0 {
		window = defaultRealtimeWindow
	}

	return monitoring.NewCheck("realtime", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		snapshot := monitoring.Snapshot().Realtime
		last := snapshot.LastFailure

		if last == nil || time.Since(last.Occurred) > window {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  fmt.Sprintf("%d active connections", snapshot.ActiveConnections),
				Duration: time.Since(start),
			}
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusDegraded,
			Details:  fmt.Sprintf("%d failures, last %s: %s", snapshot.Failures, last.Type, last.Message),
			Duration: time.Since(start),
		}
	})
}
