// Package markethours decides whether the US stock market is open. Pure
// functions of time, no I/O.
package markethours

import (
	"fmt"
	"time"
)

// US market hours in UTC (9:30 AM - 4:00 PM EST), Monday through Friday.
const (
	openHour    = 14
	openMinute  = 30
	closeHour   = 21
	closeMinute = 0
)

func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

const (
	openMinuteOfDay  = openHour*60 + openMinute
	closeMinuteOfDay = closeHour*60 + closeMinute
)

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsOpen reports whether the market is open at the given instant.
func IsOpen(at time.Time) bool {
	t := at.UTC()
	if isWeekend(t) {
		return false
	}
	m := minuteOfDay(t)
	return m >= openMinuteOfDay && m <= closeMinuteOfDay
}

// TimeUntilOpen returns the duration until the next market open, or zero if
// the market is already open.
func TimeUntilOpen(at time.Time) time.Duration {
	t := at.UTC()
	if IsOpen(t) {
		return 0
	}

	next := time.Date(t.Year(), t.Month(), t.Day(), openHour, openMinute, 0, 0, time.UTC)
	if minuteOfDay(t) >= openMinuteOfDay || isWeekend(t) {
		next = next.AddDate(0, 0, 1)
		for isWeekend(next) {
			next = next.AddDate(0, 0, 1)
		}
	}
	return next.Sub(t)
}

// TimeUntilClose returns the duration until today's close, or zero if the
// market is closed.
func TimeUntilClose(at time.Time) time.Duration {
	t := at.UTC()
	if !IsOpen(t) {
		return 0
	}
	closeAt := time.Date(t.Year(), t.Month(), t.Day(), closeHour, closeMinute, 0, 0, time.UTC)
	return closeAt.Sub(t)
}

// Status returns whether the market is open plus a human-readable message
// with the time until the next transition.
func Status(at time.Time) (bool, string) {
	if IsOpen(at) {
		left := TimeUntilClose(at)
		return true, fmt.Sprintf("Market is open. Closes in %dh %dm",
			int(left.Hours()), int(left.Minutes())%60)
	}
	left := TimeUntilOpen(at)
	return false, fmt.Sprintf("Market is closed. Opens in %dh %dm",
		int(left.Hours()), int(left.Minutes())%60)
}
