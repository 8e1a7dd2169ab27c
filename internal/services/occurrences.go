package services

import (
	"fmt"

	"github.com/teambition/rrule-go"

	"coinly/internal/core"
)

// MaxUpcoming caps how many occurrences UpcomingOccurrences projects.
const MaxUpcoming = 366

// RecurrenceOption translates a rule into an RFC 5545 recurrence.
// Invalid month days are skipped by RRULE expansion, matching IsDueToday.
func RecurrenceOption(rule core.RecurringRule) (rrule.ROption, error) {
	opt := rrule.ROption{
		Interval: 1,
		Dtstart:  rule.StartDate.Time,
	}
	switch rule.Frequency {
	case core.Daily:
		opt.Freq = rrule.DAILY
	case core.Weekly:
		opt.Freq = rrule.WEEKLY
	case core.Monthly:
		opt.Freq = rrule.MONTHLY
		opt.Bymonthday = []int{rule.StartDate.Day()}
	case core.Yearly:
		opt.Freq = rrule.YEARLY
		opt.Bymonth = []int{int(rule.StartDate.Month())}
		opt.Bymonthday = []int{rule.StartDate.Day()}
	default:
		return rrule.ROption{}, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, rule.Frequency)
	}
	if rule.EndDate != nil {
		opt.Until = rule.EndDate.Time
	}
	return opt, nil
}

// UpcomingOccurrences returns up to n dates on or after from on which rule fires.
// Inactive rules have no upcoming occurrences.
func UpcomingOccurrences(rule core.RecurringRule, from core.Date, n int) ([]core.Date, error) {
	if !rule.Active || n <= 0 {
		return []core.Date{}, nil
	}
	if n > MaxUpcoming {
		n = MaxUpcoming
	}

	opt, err := RecurrenceOption(rule)
	if err != nil {
		return nil, err
	}
	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("build recurrence: %w", err)
	}

	dates := make([]core.Date, 0, n)
	next := r.After(from.Time, true)
	for !next.IsZero() && len(dates) < n {
		dates = append(dates, core.DateOf(next))
		next = r.After(next, false)
	}
	return dates, nil
}
