package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

func intPtr(v int) *int {
	return &v
}

func TestNextRecurringRun(t *testing.T) {
	tests := []struct {
		name       string
		recurrence Recurrence
		timeOfDay  string
		weekday    *int
		from       time.Time
		expected   time.Time
	}{
		{
			name:       "hourly_1 later in the same hour",
			recurrence: Hourly1,
			timeOfDay:  "14:30",
			from:       utc(2024, 1, 1, 14, 0),
			expected:   utc(2024, 1, 1, 14, 30),
		},
		{
			name:       "hourly_1 minute already passed",
			recurrence: Hourly1,
			timeOfDay:  "14:30",
			from:       utc(2024, 1, 1, 14, 45),
			expected:   utc(2024, 1, 1, 15, 30),
		},
		{
			name:       "hourly_12 exact boundary advances",
			recurrence: Hourly12,
			timeOfDay:  "06:00",
			from:       utc(2024, 1, 1, 6, 0),
			expected:   utc(2024, 1, 1, 18, 0),
		},
		{
			name:       "hourly_4 aligns to configured hour modulus",
			recurrence: Hourly4,
			timeOfDay:  "01:15",
			from:       utc(2024, 1, 1, 2, 0),
			expected:   utc(2024, 1, 1, 5, 15),
		},
		{
			name:       "hourly_24 rolls over midnight",
			recurrence: Hourly24,
			timeOfDay:  "09:00",
			from:       utc(2024, 1, 1, 23, 10),
			expected:   utc(2024, 1, 2, 9, 0),
		},
		{
			name:       "hourly_2 sub-second past the candidate",
			recurrence: Hourly2,
			timeOfDay:  "00:00",
			from:       time.Date(2024, 1, 1, 10, 0, 0, 1, time.UTC),
			expected:   utc(2024, 1, 1, 12, 0),
		},
		{
			name:       "every_other_day exact boundary advances two days",
			recurrence: EveryOtherDay,
			timeOfDay:  "00:00",
			from:       utc(2024, 1, 10, 0, 0),
			expected:   utc(2024, 1, 12, 0, 0),
		},
		{
			name:       "every_other_day later today",
			recurrence: EveryOtherDay,
			timeOfDay:  "18:00",
			from:       utc(2024, 1, 10, 8, 0),
			expected:   utc(2024, 1, 10, 18, 0),
		},
		{
			name:       "every_other_day across month end",
			recurrence: EveryOtherDay,
			timeOfDay:  "07:00",
			from:       utc(2024, 1, 31, 9, 0),
			expected:   utc(2024, 2, 2, 7, 0),
		},
		{
			name:       "weekly same day before time",
			recurrence: Weekly,
			timeOfDay:  "09:00",
			weekday:    intPtr(3),
			from:       utc(2024, 1, 3, 8, 0),
			expected:   utc(2024, 1, 3, 9, 0),
		},
		{
			name:       "weekly same day after time",
			recurrence: Weekly,
			timeOfDay:  "09:00",
			weekday:    intPtr(3),
			from:       utc(2024, 1, 3, 10, 0),
			expected:   utc(2024, 1, 10, 9, 0),
		},
		{
			name:       "weekly sunday from saturday",
			recurrence: Weekly,
			timeOfDay:  "12:00",
			weekday:    intPtr(0),
			from:       utc(2024, 1, 6, 13, 0),
			expected:   utc(2024, 1, 7, 12, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextRecurringRun(tt.recurrence, tt.timeOfDay, tt.weekday, tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNextRecurringRun_Errors(t *testing.T) {
	tests := []struct {
		name       string
		recurrence Recurrence
		timeOfDay  string
		weekday    *int
	}{
		{name: "unknown recurrence", recurrence: "monthly", timeOfDay: "09:00"},
		{name: "empty recurrence", recurrence: "", timeOfDay: "09:00"},
		{name: "malformed time", recurrence: Hourly1, timeOfDay: "9:00"},
		{name: "hour out of range", recurrence: Hourly1, timeOfDay: "24:00"},
		{name: "minute out of range", recurrence: Hourly1, timeOfDay: "10:60"},
		{name: "weekly without weekday", recurrence: Weekly, timeOfDay: "09:00"},
		{name: "weekly weekday too high", recurrence: Weekly, timeOfDay: "09:00", weekday: intPtr(7)},
		{name: "weekly weekday negative", recurrence: Weekly, timeOfDay: "09:00", weekday: intPtr(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NextRecurringRun(tt.recurrence, tt.timeOfDay, tt.weekday, utc(2024, 1, 1, 0, 0))
			require.Error(t, err)

			var scheduleErr *InvalidScheduleError
			assert.True(t, errors.As(err, &scheduleErr))
		})
	}
}

func TestNextRecurringRun_StrictlyAfterAndDeterministic(t *testing.T) {
	start := utc(2024, 2, 27, 0, 0)
	times := []string{"00:00", "06:00", "12:30", "23:59"}

	for _, rec := range Recurrences {
		for _, tod := range times {
			for step := 0; step < 7*24*4; step++ {
				from := start.Add(time.Duration(step) * 15 * time.Minute)

				first, err := NextRecurringRun(rec, tod, intPtr(step%7), from)
				require.NoError(t, err)
				second, err := NextRecurringRun(rec, tod, intPtr(step%7), from)
				require.NoError(t, err)

				require.True(t, first.After(from), "%s %s from %s returned %s", rec, tod, from, first)
				require.Equal(t, first, second)
			}
		}
	}
}

func TestNextRecurringRun_NormalizesToUTC(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	from := time.Date(2024, 1, 1, 16, 0, 0, 0, zone) // 14:00Z

	got, err := NextRecurringRun(Hourly1, "14:30", nil, from)
	require.NoError(t, err)
	assert.Equal(t, utc(2024, 1, 1, 14, 30), got)
}

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("07:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 7, Minute: 5}, tod)
	assert.Equal(t, "07:05", tod.String())

	for _, bad := range []string{"", "7:05", "07:5", "ab:cd", "07-05", "25:00"} {
		_, err := ParseTimeOfDay(bad)
		assert.Error(t, err, bad)
	}
}
