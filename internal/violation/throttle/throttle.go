// Package throttle implements the daily notification quota check. The
// functions are pure so the caller supplies the clock.
package throttle

import "time"

// StartOfDay truncates t to midnight UTC. All quota windows are calendar
// days in UTC so deployments count consistently regardless of host zone.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CountSince returns how many log entries are at or after cutoff.
func CountSince(log []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range log {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// Admit reports whether another notification may be sent given the record's
// log. It admits iff fewer than limit entries fall on now's UTC calendar
// day. A non-positive limit always denies.
func Admit(log []time.Time, now time.Time, limit int) bool {
	if limit <= 0 {
		return false
	}
	return CountSince(log, StartOfDay(now)) < limit
}
