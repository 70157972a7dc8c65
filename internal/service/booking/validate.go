package booking

import (
	"time"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/timemath"
)

// validateCandidate checks that the requested (start, duration) is a slot
// the schedule could have produced right now. Every failed predicate maps
// to ErrSlotNotFound; the response never says which rule fired.
func validateCandidate(s domain.Schedule, start time.Time, duration int, now time.Time) error {
	// Clients submit UTC; a zero-offset zone like Etc/GMT is not the same
	// thing.
	if start.Location() != time.UTC {
		return ErrSlotNotFound
	}
	if duration != s.SlotDuration || duration <= 0 {
		return ErrSlotNotFound
	}

	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return ErrSlotNotFound
	}

	now = now.UTC()
	end := start.Add(time.Duration(duration) * time.Minute)

	if start.Before(now.Add(time.Duration(s.EarliestBooking) * time.Minute)) {
		return ErrSlotNotFound
	}
	// The generator offers every slot of the horizon's final UTC day, so
	// the cutoff here is the end of that day, not the horizon minute.
	horizon := now.Add(time.Duration(s.FarthestBooking) * time.Minute)
	horizonDayEnd := time.Date(horizon.Year(), horizon.Month(), horizon.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	if !start.Before(horizonDayEnd) {
		return ErrSlotNotFound
	}

	local := start.In(loc)
	localDate := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	scheduleStart := time.Date(s.StartDate.Year(), s.StartDate.Month(), s.StartDate.Day(), 0, 0, 0, 0, loc)
	if localDate.Before(scheduleStart) {
		return ErrSlotNotFound
	}
	if s.EndDate != nil {
		scheduleEnd := time.Date(s.EndDate.Year(), s.EndDate.Month(), s.EndDate.Day(), 0, 0, 0, 0, loc)
		if localDate.After(scheduleEnd) {
			return ErrSlotNotFound
		}
	}

	if !insideWindow(s, start, end, loc) {
		return ErrSlotNotFound
	}
	return nil
}

// insideWindow reports whether [start, end) lies inside a daily window on
// a slot boundary. Windows anchored on the previous local day are checked
// too, since a wrapped window reaches past midnight into the slot's day.
func insideWindow(s domain.Schedule, start, end time.Time, loc *time.Location) bool {
	step := time.Duration(s.SlotDuration) * time.Minute
	local := start.In(loc)

	for dayOffset := 0; dayOffset >= -1; dayOffset-- {
		d := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, dayOffset)
		wd := timemath.ISOWeekday(d)
		if !s.HasWeekday(wd) {
			continue
		}
		for _, w := range s.WindowsFor(wd) {
			ws, we := timemath.LocalWindow(d.Year(), d.Month(), d.Day(), w.StartMinute, w.EndMinute, loc)
			if start.Before(ws) || end.After(we) {
				continue
			}
			if start.Sub(ws)%step != 0 {
				continue
			}
			return true
		}
	}
	return false
}
