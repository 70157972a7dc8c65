package timemath

import (
	"testing"
	"time"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("LoadLocation(%q) error: %v", name, err)
	}
	return loc
}

func TestISOWeekday(t *testing.T) {
	// 2024-03-04 is a Monday, 2024-03-10 a Sunday.
	mon := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	sun := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if got := ISOWeekday(mon); got != 1 {
		t.Fatalf("ISOWeekday(monday) = %d, want 1", got)
	}
	if got := ISOWeekday(sun); got != 7 {
		t.Fatalf("ISOWeekday(sunday) = %d, want 7", got)
	}
}

func TestLocalWindow_PlainDay(t *testing.T) {
	loc := mustLoad(t, "America/Vancouver")

	start, end := LocalWindow(2024, time.March, 4, 9*60, 17*60, loc)
	if want := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("start = %v, want %v", start, want)
	}
	if want := time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("end = %v, want %v", end, want)
	}
}

func TestLocalWindow_WrapsPastMidnight(t *testing.T) {
	loc := mustLoad(t, "Europe/Berlin")

	// 22:00-02:00: end is on the next local day.
	start, end := LocalWindow(2024, time.June, 1, 22*60, 2*60, loc)
	if !end.After(start) {
		t.Fatalf("end %v not after start %v", end, start)
	}
	if got := end.Sub(start); got != 4*time.Hour {
		t.Fatalf("window length = %v, want 4h", got)
	}
}

func TestLocalWindow_SpringForwardShortensDay(t *testing.T) {
	loc := mustLoad(t, "America/Vancouver")

	// 2024-03-10: clocks jump 02:00 -> 03:00, the local day is 23h long.
	start, end := LocalWindow(2024, time.March, 10, 0, 24*60, loc)
	if got := end.Sub(start); got != 23*time.Hour {
		t.Fatalf("day length = %v, want 23h", got)
	}
}

func TestRoundTrip_LocalUTCLocal(t *testing.T) {
	loc := mustLoad(t, "America/Vancouver")

	local := time.Date(2024, 7, 15, 9, 30, 0, 0, loc)
	back := ToLocal(ToUTC(local), loc)
	if !back.Equal(local) || back.Hour() != 9 || back.Minute() != 30 {
		t.Fatalf("round trip = %v, want %v", back, local)
	}
}

func TestStepRange(t *testing.T) {
	start := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)

	got := StepRange(start, end, 30*time.Minute)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	last := got[len(got)-1]
	if last.Add(30 * time.Minute).After(end) {
		t.Fatalf("last value %v overruns end %v", last, end)
	}
}

func TestStepRange_NoRoomYieldsNothing(t *testing.T) {
	start := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
	if got := StepRange(start, start.Add(29*time.Minute), 30*time.Minute); len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestNextBoundary(t *testing.T) {
	ws := time.Date(2024, 3, 4, 17, 0, 0, 0, time.UTC)
	step := 30 * time.Minute

	if got := NextBoundary(ws, ws.Add(-time.Hour), step); !got.Equal(ws) {
		t.Fatalf("before window: got %v, want %v", got, ws)
	}
	if got := NextBoundary(ws, ws.Add(10*time.Minute), step); !got.Equal(ws.Add(step)) {
		t.Fatalf("mid-step: got %v, want %v", got, ws.Add(step))
	}
	if got := NextBoundary(ws, ws.Add(step), step); !got.Equal(ws.Add(step)) {
		t.Fatalf("on boundary: got %v, want %v", got, ws.Add(step))
	}
}
