package worker

import (
	"time"

	"github.com/cuongbtq/cron-agent/internal/domain"
	"github.com/cuongbtq/cron-agent/internal/schedule"
)

// Transition maps a job's current state and a pipeline outcome to its next
// status and next-run instant.
//
// Success keeps a recurring job active with next-run recomputed from now,
// and completes a one-time job with no next-run. Failure moves the job to
// error and leaves next-run untouched. Jobs that are not active or running
// are terminal for the scheduler and come back unchanged.
func Transition(current domain.Status, sched schedule.Schedule, nextRun *time.Time, outcome domain.Outcome, now time.Time) (domain.Status, *time.Time, error) {
	if current != domain.StatusActive && current != domain.StatusRunning {
		return current, nextRun, nil
	}

	if outcome != domain.OutcomeOK {
		return domain.StatusError, nextRun, nil
	}

	if !sched.Recurring {
		return domain.StatusCompleted, nil, nil
	}

	next, err := schedule.NextRecurringRun(sched.Recurrence, sched.TimeOfDay, sched.Weekday, now)
	if err != nil {
		return domain.StatusError, nextRun, err
	}

	return domain.StatusActive, &next, nil
}
