// Package calendar computes delivery timestamps for drip sequences using
// working-day and business-hour rules. All functions are pure and keep the
// location of their input.
package calendar

import (
	"time"

	"github.com/jononovo/5ducks-outreach/internal/domain"
)

const (
	// WorkdayStartHour is where a weekend-snapped time lands.
	WorkdayStartHour = 9
	// WorkingDaySendHour is where a working-day delay lands.
	WorkingDaySendHour = 10
)

// IsWeekend reports whether t falls on a Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// AddWorkingDays advances start one calendar day at a time, counting only
// weekdays toward n. The time of day is left untouched.
func AddWorkingDays(start time.Time, n int) time.Time {
	result := start
	added := 0
	for added < n {
		result = result.AddDate(0, 0, 1)
		if !IsWeekend(result) {
			added++
		}
	}
	return result
}

// AddHours is literal timestamp arithmetic.
func AddHours(t time.Time, h int) time.Time {
	return t.Add(time.Duration(h) * time.Hour)
}

// NextWorkingDay returns t unchanged on a weekday. On a weekend it advances
// to the following Monday at 09:00:00.000.
func NextWorkingDay(t time.Time) time.Time {
	if !IsWeekend(t) {
		return t
	}
	result := t
	for IsWeekend(result) {
		result = result.AddDate(0, 0, 1)
	}
	return atHour(result, WorkdayStartHour)
}

// ScheduledTime resolves an event delay against base.
//
// DelayWorkingDays rounds delay hours up to whole days, advances that many
// working days and pins the result to 10:00. DelayHours adds the hours
// literally and then snaps weekends forward via NextWorkingDay, so even a
// zero-hour delay from a Saturday lands on Monday morning.
func ScheduledTime(base time.Time, delay int, kind domain.DelayKind) time.Time {
	switch kind {
	case domain.DelayWorkingDays:
		days := (delay + 23) / 24
		if delay <= 0 {
			days = 0
		}
		result := AddWorkingDays(base, days)
		// only reachable when days == 0 and base is on a weekend
		for IsWeekend(result) {
			result = result.AddDate(0, 0, 1)
		}
		return atHour(result, WorkingDaySendHour)
	default:
		return NextWorkingDay(AddHours(base, delay))
	}
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	return atHour(t, 0)
}

func atHour(t time.Time, hour int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, t.Location())
}
