// Package schedule computes when a job is next due.
//
// All instants are UTC. The functions here are pure: the reference instant is
// always passed in, never read from the clock.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Recurrence is the repeating cadence of a recurring job
type Recurrence string

// Supported recurrences
const (
	Hourly1       Recurrence = "hourly_1"
	Hourly2       Recurrence = "hourly_2"
	Hourly4       Recurrence = "hourly_4"
	Hourly8       Recurrence = "hourly_8"
	Hourly12      Recurrence = "hourly_12"
	Hourly24      Recurrence = "hourly_24"
	EveryOtherDay Recurrence = "every_other_day"
	Weekly        Recurrence = "weekly"
)

// Recurrences lists every supported recurrence in display order
var Recurrences = []Recurrence{
	Hourly1, Hourly2, Hourly4, Hourly8, Hourly12, Hourly24, EveryOtherDay, Weekly,
}

var hourlyStep = map[Recurrence]int{
	Hourly1:  1,
	Hourly2:  2,
	Hourly4:  4,
	Hourly8:  8,
	Hourly12: 12,
	Hourly24: 24,
}

var timeOfDayPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// InvalidScheduleError is returned when a schedule spec cannot produce a run time
type InvalidScheduleError struct {
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	return "invalid schedule: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &InvalidScheduleError{Reason: fmt.Sprintf(format, args...)}
}

// Valid reports whether r is a supported recurrence
func (r Recurrence) Valid() bool {
	if r == EveryOtherDay || r == Weekly {
		return true
	}
	_, ok := hourlyStep[r]
	return ok
}

// TimeOfDay is an hour and minute in UTC
type TimeOfDay struct {
	Hour   int
	Minute int
}

// String formats the time as HH:mm
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimeOfDay parses an HH:mm string
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if !timeOfDayPattern.MatchString(s) {
		return TimeOfDay{}, invalid("time of day %q must match HH:mm", s)
	}

	hour, _ := strconv.Atoi(s[:2])
	minute, _ := strconv.Atoi(s[3:])
	if hour > 23 || minute > 59 {
		return TimeOfDay{}, invalid("time of day %q is out of range", s)
	}

	return TimeOfDay{Hour: hour, Minute: minute}, nil
}

// NextRecurringRun returns the smallest instant strictly after from that
// satisfies the recurrence. weekday is only consulted for weekly schedules.
func NextRecurringRun(recurrence Recurrence, timeOfDay string, weekday *int, from time.Time) (time.Time, error) {
	if !recurrence.Valid() {
		return time.Time{}, invalid("unsupported recurrence %q", recurrence)
	}

	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}

	from = from.UTC()

	if step, ok := hourlyStep[recurrence]; ok {
		return nextHourly(step, tod, from), nil
	}

	switch recurrence {
	case EveryOtherDay:
		return nextEveryOtherDay(tod, from), nil
	case Weekly:
		if weekday == nil || *weekday < 0 || *weekday > 6 {
			return time.Time{}, invalid("weekly recurrence requires a weekday between 0 and 6")
		}
		return nextWeekly(tod, time.Weekday(*weekday), from), nil
	}

	return time.Time{}, invalid("unsupported recurrence %q", recurrence)
}

func nextHourly(step int, tod TimeOfDay, from time.Time) time.Time {
	candidate := time.Date(from.Year(), from.Month(), from.Day(), from.Hour(), tod.Minute, 0, 0, time.UTC)
	if !candidate.After(from) {
		candidate = candidate.Add(time.Hour)
	}

	for candidate.Hour()%step != tod.Hour%step {
		candidate = candidate.Add(time.Hour)
	}

	return candidate
}

func nextEveryOtherDay(tod TimeOfDay, from time.Time) time.Time {
	candidate := time.Date(from.Year(), from.Month(), from.Day(), tod.Hour, tod.Minute, 0, 0, time.UTC)
	for !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 2)
	}

	return candidate
}

func nextWeekly(tod TimeOfDay, weekday time.Weekday, from time.Time) time.Time {
	candidate := time.Date(from.Year(), from.Month(), from.Day(), tod.Hour, tod.Minute, 0, 0, time.UTC)

	delta := (int(weekday) - int(candidate.Weekday()) + 7) % 7
	candidate = candidate.AddDate(0, 0, delta)

	if !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, 7)
	}

	return candidate
}
