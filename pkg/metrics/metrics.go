package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|locked|inactive).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_auth_attempts_total",
			Help: "Total number of agent authentication attempts",
		},
		[]string{"result"},
	)

	// Lockouts counts agents locked out after reaching the failure threshold.
	Lockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentdesk_lockouts_total",
			Help: "Total number of agent lockouts",
		},
	)

	// LockCheckFailures counts lock status reads that failed and were resolved by policy (open|closed).
	LockCheckFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_lock_check_failures_total",
			Help: "Lock status reads that failed",
		},
		[]string{"policy"},
	)

	// CapabilityChecks counts capability evaluations and their outcome (allow|deny|error).
	CapabilityChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_capability_checks_total",
			Help: "Total number of capability checks",
		},
		[]string{"capability", "result"},
	)

	// ActiveSessions tracks sessions issued minus sessions removed by this process.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentdesk_active_sessions",
			Help: "Number of active agent sessions",
		},
	)

	// SessionsRevoked counts deleted sessions by reason (logout|bulk|expired|orphaned).
	SessionsRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_sessions_revoked_total",
			Help: "Total number of revoked agent sessions",
		},
		[]string{"reason"},
	)

	// Invitations counts invitation lifecycle events (created|consumed|revoked).
	Invitations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_invitations_total",
			Help: "Invitation lifecycle events",
		},
		[]string{"event"},
	)

	// CrossTenantViolations counts rejected cross-tenant requests.
	CrossTenantViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentdesk_cross_tenant_violations_total",
			Help: "Rejected requests targeting an account outside the caller's tenant",
		},
	)

	// MaintenanceRuns counts scheduled housekeeping runs by job and result (success|failure).
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_maintenance_runs_total",
			Help: "Scheduled maintenance job executions",
		},
		[]string{"job", "result"},
	)

	// HTTPInFlight tracks requests currently being served.
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentdesk_http_in_flight_requests",
			Help: "HTTP requests currently being served",
		},
	)

	// Panics counts handler panics converted into 500 responses.
	Panics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentdesk_http_panics_total",
			Help: "Handler panics recovered by the HTTP stack",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentdesk_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
