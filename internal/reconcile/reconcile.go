// Package reconcile merges candidate slots with remote busy intervals and
// locally held slots into the publicly visible free/busy view.
package reconcile

import (
	"sort"
	"time"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/remote"
)

// Merge partitions the candidates into free slots (status none, copied
// through) and blocked slots. Runs of blocked slots whose boundaries align
// are fused into a single marker with summed duration and status booked, so
// clients can render contiguous busy bands without re-deriving them. The
// result is sorted ascending by start.
//
// A candidate is blocked when any busy interval or held slot overlaps it
// under the open-interval rule: a.start < b.end && a.end > b.start.
func Merge(candidates []domain.Slot, busy []remote.BusyInterval, held []domain.Slot) []domain.Slot {
	blockers := make([]remote.BusyInterval, 0, len(busy)+len(held))
	blockers = append(blockers, busy...)
	for _, h := range held {
		blockers = append(blockers, remote.BusyInterval{Start: h.StartTime, End: h.EndTime()})
	}

	var free, merged []domain.Slot
	var run *domain.Slot
	for _, c := range candidates {
		if !blocked(c, blockers) {
			c.BookingStatus = domain.BookingStatusNone
			free = append(free, c)
			run = nil
			continue
		}
		if run != nil && run.EndTime().Equal(c.StartTime) {
			run.Duration += c.Duration
			continue
		}
		merged = append(merged, domain.Slot{
			StartTime:     c.StartTime,
			Duration:      c.Duration,
			BookingStatus: domain.BookingStatusBooked,
		})
		run = &merged[len(merged)-1]
	}

	out := append(free, merged...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Overlaps reports whether the interval [start, end) intersects any busy
// interval or held slot, under the same open-interval rule Merge uses.
func Overlaps(start, end time.Time, busy []remote.BusyInterval, held []domain.Slot) bool {
	for _, b := range busy {
		if start.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	for _, h := range held {
		if start.Before(h.EndTime()) && end.After(h.StartTime) {
			return true
		}
	}
	return false
}

func blocked(c domain.Slot, blockers []remote.BusyInterval) bool {
	end := c.EndTime()
	for _, b := range blockers {
		if c.StartTime.Before(b.End) && end.After(b.Start) {
			return true
		}
	}
	return false
}
