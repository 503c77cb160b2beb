package checks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smartsupply/agent/internal/monitoring"
)

const defaultSyncMaxAge = 12 * time.Hour

// Sync reports whether customer sync is keeping the cache fresh. A run that
// never happened is healthy (no admin has logged in yet); repeated failures
// take the component down and a stale last run degrades it.
func Sync(maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultSyncMaxAge
	}

	return monitoring.NewCheck("customer_sync", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		summary := monitoring.Snapshot().Sync

		if summary.TotalRuns == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "no sync has run yet",
				Duration: time.Since(start),
			}
		}

		status := monitoring.StatusUp
		var problems []string

		if summary.ConsecutiveFailures > 0 {
			status = worstStatus(status, monitoring.StatusDegraded)
			if summary.ConsecutiveFailures >= 3 {
				status = monitoring.StatusDown
			}
			problems = append(problems, fmt.Sprintf("%d consecutive failures", summary.ConsecutiveFailures))
		}

		if !summary.LastSuccessAt.IsZero() && time.Since(summary.LastSuccessAt) > maxAge {
			status = worstStatus(status, monitoring.StatusDegraded)
			problems = append(problems, "last success "+summary.LastSuccessAt.UTC().Format(time.RFC3339))
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(problems, "; "),
			Duration: time.Since(start),
		}
	})
}

func worstStatus(current, candidate monitoring.ProbeStatus) monitoring.ProbeStatus {
	if current == monitoring.StatusDown || candidate == monitoring.StatusDown {
		return monitoring.StatusDown
	}
	if current == monitoring.StatusDegraded || candidate == monitoring.StatusDegraded {
		return monitoring.StatusDegraded
	}
	return monitoring.StatusUp
}
