package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/agentdesk/pkg/logger"
	"github.com/charlesng35/agentdesk/pkg/metrics"
)

const (
	defaultSessionSpec = "@hourly"

	// JobSessionCleanup names the expired-session purge in status reports.
	JobSessionCleanup = "session_cleanup"
)

// JobStatus summarises the recent history of one scheduled job.
type JobStatus struct {
	Job                 string    `json:"job"`
	TotalRuns           uint64    `json:"total_runs"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastRunAt           time.Time `json:"last_run_at,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
}

// SessionPurger removes sessions whose expiry has passed.
type SessionPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner schedules storage housekeeping. Lockouts and invitations expire
// lazily and are never swept here.
type Cleaner struct {
	sessions SessionPurger
	cron     *cron.Cron
	log      *zap.Logger
	timeout  time.Duration

	sessionSchedule string

	mu     sync.Mutex
	status JobStatus
	now    func() time.Time
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithJobTimeout bounds a single scheduled run.
func WithJobTimeout(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.timeout = d
		}
	}
}

// WithLogger replaces the maintenance logger.
func WithLogger(log *zap.Logger) Option {
	return func(cleaner *Cleaner) {
		if log != nil {
			cleaner.log = log
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil purger leaves
// the session job unscheduled.
func NewCleaner(sessions SessionPurger, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:        sessions,
		timeout:         time.Minute,
		sessionSchedule: defaultSessionSpec,
		log:             logger.WithModule("maintenance"),
		status:          JobStatus{Job: JobSessionCleanup},
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.sessions == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.sessionSchedule, c.runSessions); err != nil {
		return fmt.Errorf("maintenance: schedule session purge %q: %w", c.sessionSchedule, err)
	}

	c.cron.Start()
	c.log.Info("maintenance scheduled", zap.String("session_schedule", c.sessionSchedule))
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once any
// running job completes.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured cleanup routine and aggregates failures.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.purgeSessions(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purge sessions: %w", err))
		}
	}

	return errs
}

func (c *Cleaner) runSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	removed, err := c.purgeSessions(ctx)
	if err != nil {
		c.log.Warn("session cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		c.log.Debug("expired sessions purged", zap.Int64("removed", removed))
	}
}

// Status reports the history of every scheduled job. It is empty when no
// session purger was configured.
func (c *Cleaner) Status() []JobStatus {
	if c.sessions == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return []JobStatus{c.status}
}

func (c *Cleaner) purgeSessions(ctx context.Context) (int64, error) {
	removed, err := c.sessions.PurgeExpired(ctx)

	c.mu.Lock()
	c.status.TotalRuns++
	c.status.LastRunAt = c.now().UTC()
	if err != nil {
		c.status.ConsecutiveFailures++
		c.status.LastError = err.Error()
	} else {
		c.status.ConsecutiveFailures = 0
		c.status.LastError = ""
	}
	c.mu.Unlock()

	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.MaintenanceRuns.WithLabelValues(JobSessionCleanup, result).Inc()
	return removed, err
}
