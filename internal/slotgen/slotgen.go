// Package slotgen turns a schedule template into the ordered list of
// candidate slots inside its booking horizon.
package slotgen

import (
	"errors"
	"sort"
	"time"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/timemath"
)

var ErrInvalidTimezone = errors.New("invalid schedule timezone")

// Generate produces the candidate slots for s as seen at instant now.
//
// The effective range starts at the later of the schedule's start and
// now+earliest_booking. The range ends on the calendar date of
// now+farthest_booking (or the schedule's end date if that is earlier); the
// full daily window of that date is still emitted, matching how hosts reason
// about the horizon in days. Windows are built in the schedule's timezone,
// clamped to the effective start on a slot boundary, and stepped by the slot
// duration. Output is sorted by start and duplicate-free.
func Generate(s domain.Schedule, now time.Time) ([]domain.Slot, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	if s.SlotDuration <= 0 {
		return nil, errors.New("slot duration must be positive")
	}

	now = now.UTC()
	step := time.Duration(s.SlotDuration) * time.Minute
	earliest := now.Add(time.Duration(s.EarliestBooking) * time.Minute)
	farthest := now.Add(time.Duration(s.FarthestBooking) * time.Minute)

	scheduleStart := time.Date(
		s.StartDate.Year(), s.StartDate.Month(), s.StartDate.Day(),
		0, s.StartTime, 0, 0, loc,
	).UTC()
	effectiveStart := scheduleStart
	if earliest.After(effectiveStart) {
		effectiveStart = earliest
	}

	startDay := dateOf(effectiveStart)
	endDay := dateOf(farthest)
	if s.EndDate != nil {
		scheduleEnd := dateOf(*s.EndDate)
		if scheduleEnd.Before(endDay) {
			endDay = scheduleEnd
		}
	}
	if endDay.Before(startDay) {
		return nil, nil
	}

	var out []domain.Slot
	for d := startDay; !d.After(endDay); d = d.AddDate(0, 0, 1) {
		wd := timemath.ISOWeekday(d)
		if !s.HasWeekday(wd) {
			continue
		}
		for _, w := range s.WindowsFor(wd) {
			ws, we := timemath.LocalWindow(d.Year(), d.Month(), d.Day(), w.StartMinute, w.EndMinute, loc)
			// Clamp to the effective start without breaking slot alignment.
			ws = timemath.NextBoundary(ws, effectiveStart, step)
			for _, v := range timemath.StepRange(ws, we, step) {
				out = append(out, domain.Slot{
					StartTime:     v,
					Duration:      s.SlotDuration,
					BookingStatus: domain.BookingStatusNone,
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return dedupe(out), nil
}

// dateOf strips a UTC instant to its calendar date.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func dedupe(slots []domain.Slot) []domain.Slot {
	if len(slots) < 2 {
		return slots
	}
	out := slots[:1]
	for _, s := range slots[1:] {
		prev := out[len(out)-1]
		if s.StartTime.Equal(prev.StartTime) && s.Duration == prev.Duration {
			continue
		}
		out = append(out, s)
	}
	return out
}
