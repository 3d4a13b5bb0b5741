// Package timezone provides calendar-date helpers for streak and scheduling
// logic. All "is this today / yesterday" decisions in the engine go through
// calendar-date strings produced here, never raw millisecond arithmetic, so
// daylight-saving transitions cannot shift a day boundary.
package timezone

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for all day-boundary comparisons.
const DateLayout = "2006-01-02"

// Parse resolves an IANA timezone identifier (e.g. "Europe/Paris").
// An empty or invalid identifier falls back to UTC; the error tells the
// caller the fallback happened.
func Parse(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC, fmt.Errorf("invalid timezone %q: %w", tz, err)
	}
	return loc, nil
}

// DateIn projects an instant onto a calendar date in the given timezone.
func DateIn(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// PrevDate returns the calendar date one civil day before the given date
// string. Arithmetic is done on the parsed date, not on a timestamp, so the
// result is exact across DST changes.
func PrevDate(date string) string {
	d, err := time.Parse(DateLayout, date)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, -1).Format(DateLayout)
}

// DaysBetween returns the number of whole civil days from date a to date b.
// Positive when b is after a. Malformed input yields 0.
func DaysBetween(a, b string) int {
	da, errA := time.Parse(DateLayout, a)
	db, errB := time.Parse(DateLayout, b)
	if errA != nil || errB != nil {
		return 0
	}
	return int(db.Sub(da).Hours() / 24)
}

// HoursUntilMidnight returns how many hours remain until the next local
// midnight in the given timezone. Used for the streak at-risk countdown.
func HoursUntilMidnight(t time.Time, loc *time.Location) float64 {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	return midnight.Sub(local).Hours()
}
