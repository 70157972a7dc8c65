package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusNone      BookingStatus = "none"
	BookingStatusRequested BookingStatus = "requested"
	BookingStatusBooked    BookingStatus = "booked"
	BookingStatusDeclined  BookingStatus = "declined"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusModified  BookingStatus = "modified"
)

// Slot is an atomic bookable interval. StartTime is UTC, Duration minutes.
// A slot either belongs to a schedule (recurring template) or stands alone
// under a one-shot appointment. For any status other than none at most one
// slot may exist per (schedule_id, start_time, duration); the store enforces
// this with a partial unique index.
type Slot struct {
	bun.BaseModel `bun:"table:slots"`

	ID            uuid.UUID  `bun:"id,pk,type:uuid"`
	ScheduleID    *uuid.UUID `bun:"schedule_id,type:uuid"`
	AppointmentID *uuid.UUID `bun:"appointment_id,type:uuid"`
	AttendeeID    *uuid.UUID `bun:"attendee_id,type:uuid"`
	StartTime     time.Time  `bun:"start_time,notnull"`
	Duration      int        `bun:"duration,notnull"`

	BookingStatus    BookingStatus `bun:"booking_status,notnull,default:'none'"`
	BookingTkn       string        `bun:"booking_tkn"`
	BookingExpiresAt *time.Time    `bun:"booking_expires_at"`

	MeetingLinkID  string `bun:"meeting_link_id"`
	MeetingLinkURL string `bun:"meeting_link_url"`

	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// EndTime is the exclusive end of the slot interval.
func (s *Slot) EndTime() time.Time {
	return s.StartTime.Add(time.Duration(s.Duration) * time.Minute)
}

func (s *Slot) BeforeAppendModel(ctx context.Context, query bun.Query) error {
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
		if s.BookingStatus == "" {
			s.BookingStatus = BookingStatusNone
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
