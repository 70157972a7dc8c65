package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	AppointmentStatusDraft  AppointmentStatus = "draft"
	AppointmentStatusOpened AppointmentStatus = "opened"
	AppointmentStatusClosed AppointmentStatus = "closed"
)

// Appointment groups booked slots under a title and location. UUID is the
// stable public identifier reused as the remote event's iCalUID, which makes
// remote saves idempotent and remote deletes safe without prior state.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID         uuid.UUID         `bun:"id,pk,type:uuid"`
	CalendarID uuid.UUID         `bun:"calendar_id,notnull,type:uuid"`
	UUID       uuid.UUID         `bun:"uuid,notnull,unique,type:uuid"`
	Title      string            `bun:"title,notnull"`
	Details    string            `bun:"details"`
	Location   string            `bun:"location"`
	Status     AppointmentStatus `bun:"status,notnull,default:'draft'"`
	// ExternalID is the id the remote calendar returned for the event held
	// or booked for this appointment. Empty when no remote event exists.
	ExternalID string    `bun:"external_id"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
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
		if a.UUID == uuid.Nil {
			a.UUID = uuid.New()
		}
		if a.Status == "" {
			a.Status = AppointmentStatusDraft
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
