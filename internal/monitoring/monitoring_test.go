package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/agentdesk/internal/monitoring"
)

func upCheck(name string) monitoring.Check {
	return monitoring.NewCheck(name, func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	})
}

func TestHealthManagerEvaluate(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	manager := monitoring.NewHealthManager(monitoring.WithClock(func() time.Time { return fixed }))
	manager.RegisterReadiness(upCheck("database"))
	manager.RegisterReadiness(monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "purge failing"}
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 2)
	require.Equal(t, "database", report.Checks[0].Component)
	require.Equal(t, "maintenance", report.Checks[1].Component)
	require.Equal(t, fixed, report.CheckedAt)
}

func TestHealthManagerEmptyIsUp(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(monitoring.Check{})

	report := manager.EvaluateLiveness(context.Background())
	require.True(t, report.Success)
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Empty(t, report.Checks)
}

func TestHealthManagerDegradedAndCombined(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterLiveness(upCheck("process"))
	manager.RegisterReadiness(monitoring.NewCheck("database", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusDegraded}
	}))

	require.True(t, manager.EvaluateLiveness(context.Background()).Success)

	report := manager.Evaluate(context.Background())
	require.False(t, report.Success)
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Len(t, report.Checks, 2)
}

func TestHealthManagerRecoversPanics(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager()
	manager.RegisterReadiness(monitoring.NewCheck("flaky", func(context.Context) monitoring.ProbeResult {
		panic("probe exploded")
	}))
	manager.RegisterReadiness(monitoring.NewCheck("blank", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{}
	}))
	manager.RegisterReadiness(monitoring.NewCheck("missing", nil))

	report := manager.EvaluateReadiness(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.Len(t, report.Checks, 3)
	require.Equal(t, "flaky", report.Checks[0].Component)
	require.Equal(t, "probe exploded", report.Checks[0].Details)
	require.Equal(t, monitoring.StatusDown, report.Checks[1].Status)
	require.Equal(t, "probe not implemented", report.Checks[2].Details)
}

func TestHealthManagerBoundsChecks(t *testing.T) {
	t.Parallel()

	manager := monitoring.NewHealthManager(monitoring.WithCheckTimeout(10 * time.Millisecond))
	manager.RegisterReadiness(monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError("slow", ctx.Err(), 0)
	}))

	report := manager.EvaluateReadiness(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.Positive(t, report.Checks[0].Duration)
}

func TestResultFromError(t *testing.T) {
	t.Parallel()

	up := monitoring.ResultFromError("db", nil, -time.Second)
	require.Equal(t, monitoring.StatusUp, up.Status)
	require.Zero(t, up.Duration)

	down := monitoring.ResultFromError("db", errors.New("refused"), time.Millisecond)
	require.Equal(t, monitoring.StatusDown, down.Status)
	require.Equal(t, "refused", down.Details)

	slow := monitoring.ResultFromError("db", context.DeadlineExceeded, time.Millisecond)
	require.Equal(t, monitoring.StatusDegraded, slow.Status)
}
