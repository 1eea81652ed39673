package schedule

import "time"

// Schedule describes when a job runs: either a recurrence with a time of day
// (and weekday for weekly), or a single run-at instant.
type Schedule struct {
	Recurring  bool
	Recurrence Recurrence
	TimeOfDay  string
	Weekday    *int
	RunAt      *time.Time
}

// Validate checks the schedule invariants without computing a run time
func (s Schedule) Validate() error {
	if !s.Recurring {
		if s.RunAt == nil || s.RunAt.IsZero() {
			return invalid("run_at is required for one-time jobs")
		}
		if s.Recurrence != "" {
			return invalid("one-time jobs must not carry a recurrence")
		}
		return nil
	}

	if s.Recurrence == "" {
		return invalid("recurrence is required")
	}
	if !s.Recurrence.Valid() {
		return invalid("unsupported recurrence %q", s.Recurrence)
	}
	if s.TimeOfDay == "" {
		return invalid("recurring_time is required")
	}
	if _, err := ParseTimeOfDay(s.TimeOfDay); err != nil {
		return err
	}
	if s.Recurrence == Weekly && (s.Weekday == nil || *s.Weekday < 0 || *s.Weekday > 6) {
		return invalid("recurring_weekday between 0 and 6 is required for weekly")
	}

	return nil
}

// Normalize drops fields the schedule kind does not use: the weekday of a
// non-weekly recurrence and the run-at of a recurring job.
func (s Schedule) Normalize() Schedule {
	if s.Recurring {
		s.RunAt = nil
		if s.Recurrence != Weekly {
			s.Weekday = nil
		}
		return s
	}

	s.Recurrence = ""
	s.TimeOfDay = ""
	s.Weekday = nil
	return s
}

// InitialNextRun computes the first due instant for a schedule.
// One-time schedules return run_at verbatim, even when it is in the past.
func InitialNextRun(s Schedule, now time.Time) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}

	if !s.Recurring {
		return s.RunAt.UTC(), nil
	}

	return NextRecurringRun(s.Recurrence, s.TimeOfDay, s.Weekday, now)
}
