package domain

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type MeetingLinkProvider string

const (
	MeetingLinkProviderNone       MeetingLinkProvider = "none"
	MeetingLinkProviderZoom       MeetingLinkProvider = "zoom"
	MeetingLinkProviderGoogleMeet MeetingLinkProvider = "google_meet"
)

// Schedule is the recurring template slots are generated from. Times of day
// are minutes since local midnight in the schedule's timezone; if EndTime is
// not after StartTime the daily window wraps into the next local day.
type Schedule struct {
	bun.BaseModel `bun:"table:schedules"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	CalendarID uuid.UUID `bun:"calendar_id,notnull,type:uuid"`
	Active     bool      `bun:"active,notnull,default:true"`
	Name       string    `bun:"name,notnull"`
	Details    string    `bun:"details"`
	// LocationURL is the static meeting location used when no conferencing
	// link is created.
	LocationURL string     `bun:"location_url"`
	Timezone    string     `bun:"timezone,notnull"`
	Weekdays    []int16    `bun:"weekdays,array,notnull"`
	StartDate   time.Time  `bun:"start_date,notnull"`
	EndDate     *time.Time `bun:"end_date"`
	StartTime   int        `bun:"start_time,notnull"`
	EndTime     int        `bun:"end_time,notnull"`
	// Durations and horizons are minutes.
	SlotDuration            int                 `bun:"slot_duration,notnull"`
	EarliestBooking         int                 `bun:"earliest_booking,notnull"`
	FarthestBooking         int                 `bun:"farthest_booking,notnull"`
	BookingConfirmation     bool                `bun:"booking_confirmation,notnull,default:true"`
	MeetingLinkProvider     MeetingLinkProvider `bun:"meeting_link_provider,notnull,default:'none'"`
	UseCustomAvailabilities bool                `bun:"use_custom_availabilities,notnull,default:false"`

	Availabilities []*ScheduleAvailability `bun:"rel:has-many,join:id=schedule_id"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (s *Schedule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if s.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			s.ID = id
		}
		if s.CreatedAt.IsZero() {
			s.CreatedAt = now
		}
		if s.UpdatedAt.IsZero() {
			s.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		s.UpdatedAt = now
	}
	return nil
}

// ScheduleAvailability is one per-weekday window used instead of the
// schedule's single daily window when UseCustomAvailabilities is set.
type ScheduleAvailability struct {
	bun.BaseModel `bun:"table:schedule_availabilities"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	ScheduleID uuid.UUID `bun:"schedule_id,notnull,type:uuid"`
	DayOfWeek  int16     `bun:"day_of_week,notnull"`
	StartTime  int       `bun:"start_time,notnull"`
	EndTime    int       `bun:"end_time,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (a *ScheduleAvailability) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// DayWindow is a bookable window within one local day, in minutes since
// local midnight.
type DayWindow struct {
	StartMinute int
	EndMinute   int
}

// EffectiveWeekdays returns the schedule's weekday set, defaulting to
// Monday through Friday when none are configured.
func (s *Schedule) EffectiveWeekdays() []int16 {
	if len(s.Weekdays) == 0 {
		return []int16{1, 2, 3, 4, 5}
	}
	out := make([]int16, 0, len(s.Weekdays))
	seen := make(map[int16]struct{}, len(s.Weekdays))
	for _, wd := range s.Weekdays {
		if wd < 1 || wd > 7 {
			continue
		}
		if _, ok := seen[wd]; ok {
			continue
		}
		seen[wd] = struct{}{}
		out = append(out, wd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasWeekday reports whether the given ISO weekday (Mon=1) is bookable.
func (s *Schedule) HasWeekday(weekday int) bool {
	for _, wd := range s.EffectiveWeekdays() {
		if int(wd) == weekday {
			return true
		}
	}
	return false
}

// WindowsFor returns the daily windows applying to the given ISO weekday,
// sorted by start. With custom availabilities disabled this is the single
// configured window.
func (s *Schedule) WindowsFor(weekday int) []DayWindow {
	if !s.UseCustomAvailabilities {
		return []DayWindow{{StartMinute: s.StartTime, EndMinute: s.EndTime}}
	}
	out := make([]DayWindow, 0, 2)
	for _, a := range s.Availabilities {
		if int(a.DayOfWeek) == weekday {
			out = append(out, DayWindow{StartMinute: a.StartTime, EndMinute: a.EndTime})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartMinute < out[j].StartMinute })
	return out
}
