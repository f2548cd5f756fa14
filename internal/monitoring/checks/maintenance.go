package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/agentdesk/internal/app/maintenance"
	"github.com/charlesng35/agentdesk/internal/monitoring"
)

const defaultMaintenanceMaxAge = 6 * time.Hour

// JobReporter exposes the run history of scheduled jobs.
type JobReporter interface {
	Status() []maintenance.JobStatus
}

// Maintenance verifies that background jobs succeed and have run within
// maxAge. Jobs that have not run yet are reported but do not fail the probe.
// A zero maxAge uses a six hour window.
func Maintenance(jobs JobReporter, maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultMaintenanceMaxAge
	}

	return monitoring.NewCheck("maintenance", func(context.Context) monitoring.ProbeResult {
		start := time.Now()
		if jobs == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance jobs registered"}
		}

		statuses := jobs.Status()
		if len(statuses) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance jobs registered"}
		}

		status := monitoring.StatusUp
		var notes []string

		for _, job := range statuses {
			switch {
			case job.TotalRuns == 0:
				notes = append(notes, job.Job+": pending first run")
			case job.ConsecutiveFailures > 0:
				status = monitoring.StatusDown
				notes = append(notes, job.Job+": "+job.LastError)
			case start.Sub(job.LastRunAt) > maxAge:
				if status != monitoring.StatusDown {
					status = monitoring.StatusDegraded
				}
				notes = append(notes, job.Job+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(notes, "; "),
			Duration: time.Since(start),
		}
	})
}
