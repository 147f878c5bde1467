// Package schedule computes due dates of recurring rules.
//
// Occurrences are anchored on the rule's start date. When the anchor day does
// not exist in a month (Jan 31 -> February) the occurrence is clamped to the
// last day of that month, and the next month goes back to the anchor day.
// A yearly rule anchored on Feb 29 fires on Feb 28 in common years.
package schedule

import (
	"fmt"
	"time"

	"github.com/Dan9191/fintrack/internal/models"
	"github.com/teambition/rrule-go"
)

// Schedule is the recurrence of a single rule
type Schedule struct {
	rule *rrule.RRule
}

// New builds the schedule of a rule with the given frequency starting at anchor
func New(freq models.Frequency, anchor time.Time) (*Schedule, error) {
	opt, err := options(freq, anchor.UTC())
	if err != nil {
		return nil, err
	}
	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build recurrence: %w", err)
	}
	return &Schedule{rule: rule}, nil
}

func options(freq models.Frequency, anchor time.Time) (*rrule.ROption, error) {
	opt := &rrule.ROption{Dtstart: anchor, Interval: 1}
	day := anchor.Day()

	switch freq {
	case models.FrequencyDaily:
		opt.Freq = rrule.DAILY
	case models.FrequencyWeekly:
		opt.Freq = rrule.WEEKLY
	case models.FrequencyMonthly:
		opt.Freq = rrule.MONTHLY
		if day > 28 {
			opt.Bymonthday = clampDays(day)
			opt.Bysetpos = []int{-1}
		}
	case models.FrequencyYearly:
		opt.Freq = rrule.YEARLY
		if anchor.Month() == time.February && day == 29 {
			opt.Bymonth = []int{int(time.February)}
			opt.Bymonthday = []int{28, 29}
			opt.Bysetpos = []int{-1}
		}
	default:
		return nil, fmt.Errorf("unsupported frequency: %q", freq)
	}
	return opt, nil
}

// clampDays lists the candidate days 28..day; BYSETPOS=-1 then picks the
// latest one that exists in the month.
func clampDays(day int) []int {
	days := make([]int, 0, day-27)
	for d := 28; d <= day; d++ {
		days = append(days, d)
	}
	return days
}

// Next returns the first occurrence strictly after the given time
func (s *Schedule) Next(after time.Time) (time.Time, error) {
	next := s.rule.After(after.UTC(), false)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("no occurrence after %s", after.Format(time.RFC3339))
	}
	if !next.After(after) {
		return time.Time{}, fmt.Errorf("recurrence did not advance past %s", after.Format(time.RFC3339))
	}
	return next, nil
}

// Upcoming returns the next count occurrences strictly after the given time
func (s *Schedule) Upcoming(after time.Time, count int) ([]time.Time, error) {
	occurrences := make([]time.Time, 0, count)
	current := after
	for i := 0; i < count; i++ {
		next, err := s.Next(current)
		if err != nil {
			return nil, err
		}
		occurrences = append(occurrences, next)
		current = next
	}
	return occurrences, nil
}

// String returns the RFC 5545 representation of the schedule
func (s *Schedule) String() string {
	return s.rule.String()
}

// Advance returns the due date that follows due for a rule with the given
// frequency anchored at start.
func Advance(freq models.Frequency, start, due time.Time) (time.Time, error) {
	s, err := New(freq, start)
	if err != nil {
		return time.Time{}, err
	}
	return s.Next(due)
}
