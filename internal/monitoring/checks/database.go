package checks

import (
	"context"
	"errors"
	"time"

	"github.com/charlesng35/agentdesk/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger func(ctx context.Context) error

// Database returns a readiness probe backed by ping.
func Database(ping Pinger, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if ping == nil {
			return monitoring.ResultFromError("database", errors.New("database not configured"), time.Since(start))
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultDatabaseTimeout))
		defer cancel()

		return monitoring.ResultFromError("database", ping(probeCtx), time.Since(start))
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
