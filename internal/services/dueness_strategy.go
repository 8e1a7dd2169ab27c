// Package services provides business logic and orchestration services.
//
// This file implements the Strategy Pattern for recurring rule dueness checking.
// Each frequency (daily, weekly, monthly, yearly) has its own strategy that
// decides whether a rule fires on a given calendar date.

package services

import (
	"fmt"
	"sync"

	"coinly/internal/core"
)

// DuenessChecker is the strategy interface for checking if a recurring rule is due.
// Implementations only see dates already known to be inside the rule's range.
type DuenessChecker interface {
	// IsDue reports whether a rule starting on start fires on today.
	IsDue(start, today core.Date) bool
}

// DailyChecker fires on every day of the range.
type DailyChecker struct{}

func (DailyChecker) IsDue(_, _ core.Date) bool {
	return true
}

// WeeklyChecker fires on exact multiples of seven days after the start date.
type WeeklyChecker struct{}

func (WeeklyChecker) IsDue(start, today core.Date) bool {
	return today.DaysSince(start)%7 == 0
}

// MonthlyChecker fires when the day of month matches the start date.
// Months shorter than the start day are skipped.
type MonthlyChecker struct{}

func (MonthlyChecker) IsDue(start, today core.Date) bool {
	return today.Day() == start.Day()
}

// YearlyChecker fires on the anniversary of the start date.
// A February 29 start only fires in leap years.
type YearlyChecker struct{}

func (YearlyChecker) IsDue(start, today core.Date) bool {
	return today.Day() == start.Day() && today.Month() == start.Month()
}

var (
	strategiesMu sync.RWMutex

	// duenessStrategies maps frequencies to their checkers.
	duenessStrategies = map[core.Frequency]DuenessChecker{
		core.Daily:   DailyChecker{},
		core.Weekly:  WeeklyChecker{},
		core.Monthly: MonthlyChecker{},
		core.Yearly:  YearlyChecker{},
	}
)

// GetDuenessChecker returns the checker registered for a frequency.
func GetDuenessChecker(frequency core.Frequency) (DuenessChecker, error) {
	strategiesMu.RLock()
	defer strategiesMu.RUnlock()

	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return checker, nil
}

// RegisterDuenessChecker registers a checker for a new (or existing) frequency.
func RegisterDuenessChecker(frequency core.Frequency, checker DuenessChecker) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	duenessStrategies[frequency] = checker
}

// IsDueToday decides whether rule must post a transaction on today.
// Inactive rules, dates outside [start, end] and unknown frequencies are never due.
func IsDueToday(rule core.RecurringRule, today core.Date) bool {
	if !rule.Active || !rule.InRange(today) {
		return false
	}
	checker, err := GetDuenessChecker(rule.Frequency)
	if err != nil {
		return false
	}
	return checker.IsDue(rule.StartDate, today)
}
