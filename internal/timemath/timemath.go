// Package timemath holds the pure time arithmetic the booking core relies
// on. All local/UTC crossings happen here; callers keep everything else in
// UTC.
package timemath

import "time"

// ToLocal converts a UTC instant into the given location.
func ToLocal(t time.Time, loc *time.Location) time.Time {
	return t.In(loc)
}

// ToUTC converts a local instant to UTC.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ISOWeekday returns the ISO-8601 weekday of t, Monday=1 through Sunday=7.
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// LocalWindow combines a calendar date with a pair of times of day (minutes
// since local midnight) in loc and returns the window as UTC instants. When
// endMinute is not after startMinute the window wraps into the next local
// day. Times falling into a DST gap resolve the way time.Date resolves them,
// which is deterministic.
func LocalWindow(year int, month time.Month, day, startMinute, endMinute int, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, day, 0, startMinute, 0, 0, loc)
	endDay := day
	if endMinute <= startMinute {
		endDay++
	}
	end := time.Date(year, month, endDay, 0, endMinute, 0, 0, loc)
	return start.UTC(), end.UTC()
}

// StepRange yields start, start+step, ... for every value v with
// v+step <= end.
func StepRange(start, end time.Time, step time.Duration) []time.Time {
	if step <= 0 {
		return nil
	}
	var out []time.Time
	for v := start; !v.Add(step).After(end); v = v.Add(step) {
		out = append(out, v)
	}
	return out
}

// NextBoundary advances windowStart to the first step boundary at or after
// at. Boundaries are counted from windowStart itself, so slot alignment is
// preserved when a window is clamped mid-way.
func NextBoundary(windowStart, at time.Time, step time.Duration) time.Time {
	if step <= 0 || !at.After(windowStart) {
		return windowStart
	}
	elapsed := at.Sub(windowStart)
	steps := elapsed / step
	if elapsed%step != 0 {
		steps++
	}
	return windowStart.Add(steps * step)
}
