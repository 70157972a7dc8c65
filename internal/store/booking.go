package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"bookline/backend/internal/domain"
)

// BookingTx is the transactional surface the coordinator drives. All state
// transitions for a slot happen under one transaction so that the partial
// unique index and the row lock taken by SlotForDecision serialize
// concurrent requests and decisions.
type BookingTx interface {
	// InsertRequested persists a slot in status requested. It returns
	// ErrConflict when another slot with the same (schedule_id, start,
	// duration) already exists in any status other than none.
	InsertRequested(ctx context.Context, slot domain.Slot) (domain.Slot, error)

	// SlotForDecision locks the slot row and returns it only when the
	// status is requested, the token matches and the hold has not expired.
	// Every violation is ErrNotFound.
	SlotForDecision(ctx context.Context, slotID uuid.UUID, token string, now time.Time) (domain.Slot, error)

	// SlotForUpdate locks and returns the slot row regardless of token.
	// Used by the expiry sweep.
	SlotForUpdate(ctx context.Context, slotID uuid.UUID) (domain.Slot, error)

	MarkBooked(ctx context.Context, slotID uuid.UUID, meetingLinkID, meetingLinkURL string) error
	DeleteSlot(ctx context.Context, slotID uuid.UUID) error

	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) error
	DeleteAppointment(ctx context.Context, appointmentID uuid.UUID) error
	AppointmentByID(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)

	CreateAttendee(ctx context.Context, attendee domain.Attendee) (domain.Attendee, error)
	AttendeeByID(ctx context.Context, attendeeID uuid.UUID) (domain.Attendee, error)
}

// SlotRepository is the durable slot store and the race-serialization point
// of the core.
type SlotRepository interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx BookingTx) error) error

	// LocallyHeld returns the slots in status requested or booked that
	// overlap the window, for reconciliation against candidates.
	LocallyHeld(ctx context.Context, scheduleID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error)

	// ExpiredRequested returns requested slots whose hold expired before
	// now.
	ExpiredRequested(ctx context.Context, now time.Time) ([]domain.Slot, error)

	AppointmentByID(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	AttendeeByID(ctx context.Context, attendeeID uuid.UUID) (domain.Attendee, error)
}
