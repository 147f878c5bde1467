package schedule

import (
	"testing"
	"time"

	"github.com/Dan9191/fintrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name     string
		freq     models.Frequency
		start    time.Time
		due      time.Time
		expected time.Time
	}{
		{"daily", models.FrequencyDaily, date(2026, 3, 1), date(2026, 3, 1), date(2026, 3, 2)},
		{"daily across month end", models.FrequencyDaily, date(2026, 1, 1), date(2026, 1, 31), date(2026, 2, 1)},
		{"daily across year end", models.FrequencyDaily, date(2025, 12, 1), date(2025, 12, 31), date(2026, 1, 1)},
		{"weekly", models.FrequencyWeekly, date(2026, 3, 2), date(2026, 3, 2), date(2026, 3, 9)},
		{"weekly across month end", models.FrequencyWeekly, date(2026, 3, 2), date(2026, 3, 30), date(2026, 4, 6)},
		{"monthly mid month", models.FrequencyMonthly, date(2026, 1, 15), date(2026, 1, 15), date(2026, 2, 15)},
		{"monthly december rollover", models.FrequencyMonthly, date(2025, 12, 10), date(2025, 12, 10), date(2026, 1, 10)},
		{"monthly jan 31 clamps to feb 28", models.FrequencyMonthly, date(2026, 1, 31), date(2026, 1, 31), date(2026, 2, 28)},
		{"monthly jan 31 clamps to feb 29 in leap year", models.FrequencyMonthly, date(2028, 1, 31), date(2028, 1, 31), date(2028, 2, 29)},
		{"monthly returns to anchor day after clamp", models.FrequencyMonthly, date(2026, 1, 31), date(2026, 2, 28), date(2026, 3, 31)},
		{"monthly 31 clamps to 30", models.FrequencyMonthly, date(2026, 1, 31), date(2026, 3, 31), date(2026, 4, 30)},
		{"monthly 30 clamps in february", models.FrequencyMonthly, date(2026, 1, 30), date(2026, 1, 30), date(2026, 2, 28)},
		{"monthly 29 in leap february", models.FrequencyMonthly, date(2028, 1, 29), date(2028, 1, 29), date(2028, 2, 29)},
		{"yearly", models.FrequencyYearly, date(2025, 6, 1), date(2025, 6, 1), date(2026, 6, 1)},
		{"yearly leap day to common year", models.FrequencyYearly, date(2024, 2, 29), date(2024, 2, 29), date(2025, 2, 28)},
		{"yearly leap day back to leap year", models.FrequencyYearly, date(2024, 2, 29), date(2027, 2, 28), date(2028, 2, 29)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			next, err := Advance(tc.freq, tc.start, tc.due)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, next.UTC())
		})
	}
}

func TestAdvance_StrictlyIncreases(t *testing.T) {
	start := date(2024, 1, 31)
	for _, freq := range []models.Frequency{
		models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly,
	} {
		t.Run(string(freq), func(t *testing.T) {
			due := start
			for i := 0; i < 40; i++ {
				next, err := Advance(freq, start, due)
				require.NoError(t, err)
				assert.True(t, next.After(due), "%s must advance past %s", next, due)
				switch freq {
				case models.FrequencyDaily:
					assert.GreaterOrEqual(t, next.Sub(due), 24*time.Hour)
				case models.FrequencyWeekly:
					assert.GreaterOrEqual(t, next.Sub(due), 7*24*time.Hour)
				case models.FrequencyMonthly:
					assert.NotEqual(t, due.Month(), next.Month())
				case models.FrequencyYearly:
					assert.Equal(t, due.Year()+1, next.Year())
				}
				due = next
			}
		})
	}
}

func TestAdvance_KeepsTimeOfDay(t *testing.T) {
	start := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	next, err := Advance(models.FrequencyMonthly, start, start)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 4, 9, 30, 0, 0, time.UTC), next.UTC())
}

func TestNew_UnsupportedFrequency(t *testing.T) {
	_, err := New(models.Frequency("hourly"), date(2026, 1, 1))
	assert.Error(t, err)
}

func TestUpcoming(t *testing.T) {
	s, err := New(models.FrequencyMonthly, date(2026, 1, 31))
	require.NoError(t, err)

	upcoming, err := s.Upcoming(date(2026, 1, 31), 4)
	require.NoError(t, err)
	expected := []time.Time{date(2026, 2, 28), date(2026, 3, 31), date(2026, 4, 30), date(2026, 5, 31)}
	require.Len(t, upcoming, len(expected))
	for i := range expected {
		assert.Equal(t, expected[i], upcoming[i].UTC())
	}
}

func TestString(t *testing.T) {
	s, err := New(models.FrequencyWeekly, date(2026, 1, 5))
	require.NoError(t, err)
	assert.Contains(t, s.String(), "FREQ=WEEKLY")
}
