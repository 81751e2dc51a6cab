// Strategies deciding whether a recurring expense item is due. Each interval
// has its own checker, registered by repetition type.

package services

import (
	"fmt"
	"time"

	"opsdesk/internal/core"
)

// DuenessChecker decides if an item is due at now, given the day it was last
// generated (zero when never) and its start date.
type DuenessChecker interface {
	IsDue(lastGenerated, now time.Time, startDate core.Date) bool
}

type DailyChecker struct{}

// IsDue returns true once per calendar day.
func (DailyChecker) IsDue(last, now time.Time, _ core.Date) bool {
	if last.IsZero() {
		return true
	}
	return core.DateOf(last) != core.DateOf(now)
}

type WeeklyChecker struct{}

// IsDue returns true when 7 or more days have passed.
func (WeeklyChecker) IsDue(last, now time.Time, _ core.Date) bool {
	if last.IsZero() {
		return true
	}
	return now.Sub(last).Hours()/24 >= 7
}

type MonthlyChecker struct{}

// IsDue returns true in a new month once the start day is reached. Start
// days past the end of a short month clamp to its last day.
func (MonthlyChecker) IsDue(last, now time.Time, startDate core.Date) bool {
	if last.IsZero() {
		return true
	}
	if last.Year() == now.Year() && last.Month() == now.Month() {
		return false
	}
	return now.Day() >= clampDay(now.Year(), now.Month(), startDate.Day())
}

type YearlyChecker struct{}

// IsDue returns true in a new year once the start month and day are reached.
func (YearlyChecker) IsDue(last, now time.Time, startDate core.Date) bool {
	if last.IsZero() {
		return true
	}
	if last.Year() == now.Year() {
		return false
	}
	target := time.Month(startDate.Month())
	switch {
	case now.Month() < target:
		return false
	case now.Month() == target:
		return now.Day() >= clampDay(now.Year(), target, startDate.Day())
	default:
		return true
	}
}

func clampDay(year int, month time.Month, day int) int {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}

var duenessStrategies = map[core.RepetitionTypes]DuenessChecker{
	core.Daily:   DailyChecker{},
	core.Weekly:  WeeklyChecker{},
	core.Monthly: MonthlyChecker{},
	core.Yearly:  YearlyChecker{},
}

// GetDuenessChecker returns the checker for an interval.
func GetDuenessChecker(frequency core.RepetitionTypes) (DuenessChecker, error) {
	checker, ok := duenessStrategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: unknown repetition type %q", core.ErrInvalidRecurring, string(frequency))
	}
	return checker, nil
}
