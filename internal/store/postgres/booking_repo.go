package postgres

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/store"
)

// slotsActiveBookingConstraint is the partial unique index enforcing the
// uniqueness predicate: at most one slot per (schedule_id, start_time,
// duration) with booking_status <> 'none'.
const slotsActiveBookingConstraint = "slots_active_booking_idx"

type Repo struct {
	db *bun.DB
}

func NewRepo(db *bun.DB) *Repo {
	return &Repo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *Repo) RunInTx(ctx context.Context, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, bookingTx{tx: tx})
	})
}

func (r *Repo) LocallyHeld(ctx context.Context, scheduleID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Slot, error) {
	var rows []domain.Slot
	err := r.db.NewSelect().
		Model(&rows).
		Where("schedule_id = ?", scheduleID).
		Where("booking_status IN (?)", bun.In([]domain.BookingStatus{domain.BookingStatusRequested, domain.BookingStatusBooked})).
		Where("start_time < ?", windowEnd).
		Where("start_time + make_interval(mins => duration) > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) ExpiredRequested(ctx context.Context, now time.Time) ([]domain.Slot, error) {
	var rows []domain.Slot
	err := r.db.NewSelect().
		Model(&rows).
		Where("booking_status = ?", domain.BookingStatusRequested).
		Where("booking_expires_at IS NOT NULL").
		Where("booking_expires_at < ?", now.UTC()).
		OrderExpr("booking_expires_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) AppointmentByID(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := r.db.NewSelect().
		Model(&appt).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (r *Repo) AttendeeByID(ctx context.Context, attendeeID uuid.UUID) (domain.Attendee, error) {
	var a domain.Attendee
	err := r.db.NewSelect().
		Model(&a).
		Where("id = ?", attendeeID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attendee{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Attendee{}, err
	}
	return a, nil
}

func (t bookingTx) InsertRequested(ctx context.Context, slot domain.Slot) (domain.Slot, error) {
	m := slot
	m.BookingStatus = domain.BookingStatusRequested

	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == slotsActiveBookingConstraint {
			return domain.Slot{}, store.ErrConflict
		}
		return domain.Slot{}, err
	}
	return m, nil
}

func (t bookingTx) SlotForDecision(ctx context.Context, slotID uuid.UUID, token string, now time.Time) (domain.Slot, error) {
	slot, err := t.SlotForUpdate(ctx, slotID)
	if err != nil {
		return domain.Slot{}, err
	}
	if slot.BookingStatus != domain.BookingStatusRequested {
		return domain.Slot{}, store.ErrNotFound
	}
	if subtle.ConstantTimeCompare([]byte(slot.BookingTkn), []byte(token)) != 1 {
		return domain.Slot{}, store.ErrNotFound
	}
	if slot.BookingExpiresAt == nil || !slot.BookingExpiresAt.After(now.UTC()) {
		return domain.Slot{}, store.ErrNotFound
	}
	return slot, nil
}

func (t bookingTx) SlotForUpdate(ctx context.Context, slotID uuid.UUID) (domain.Slot, error) {
	var slot domain.Slot
	err := t.tx.NewSelect().
		Model(&slot).
		Where("id = ?", slotID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Slot{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}

func (t bookingTx) MarkBooked(ctx context.Context, slotID uuid.UUID, meetingLinkID, meetingLinkURL string) error {
	res, err := t.tx.NewUpdate().
		Model((*domain.Slot)(nil)).
		Set("booking_status = ?", domain.BookingStatusBooked).
		Set("booking_tkn = NULL").
		Set("booking_expires_at = NULL").
		Set("meeting_link_id = ?", meetingLinkID).
		Set("meeting_link_url = ?", meetingLinkURL).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", slotID).
		Where("booking_status = ?", domain.BookingStatusRequested).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t bookingTx) DeleteSlot(ctx context.Context, slotID uuid.UUID) error {
	res, err := t.tx.NewDelete().
		Model((*domain.Slot)(nil)).
		Where("id = ?", slotID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t bookingTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Appointment{}, err
	}
	return m, nil
}

func (t bookingTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) error {
	res, err := t.tx.NewUpdate().
		Model(&appt).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t bookingTx) DeleteAppointment(ctx context.Context, appointmentID uuid.UUID) error {
	_, err := t.tx.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("id = ?", appointmentID).
		Exec(ctx)
	return err
}

func (t bookingTx) AppointmentByID(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var appt domain.Appointment
	err := t.tx.NewSelect().
		Model(&appt).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (t bookingTx) CreateAttendee(ctx context.Context, attendee domain.Attendee) (domain.Attendee, error) {
	m := attendee
	if _, err := t.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
		return domain.Attendee{}, err
	}
	return m, nil
}

func (t bookingTx) AttendeeByID(ctx context.Context, attendeeID uuid.UUID) (domain.Attendee, error) {
	var a domain.Attendee
	err := t.tx.NewSelect().
		Model(&a).
		Where("id = ?", attendeeID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Attendee{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Attendee{}, err
	}
	return a, nil
}
