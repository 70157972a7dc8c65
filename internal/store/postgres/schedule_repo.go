package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/store"
)

func (r *Repo) ScheduleByID(ctx context.Context, scheduleID uuid.UUID) (domain.Schedule, error) {
	var s domain.Schedule
	err := r.db.NewSelect().
		Model(&s).
		Relation("Availabilities").
		Where("schedule.id = ?", scheduleID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Schedule{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Schedule{}, err
	}
	return s, nil
}

// ActiveScheduleForSubscriber resolves the subscriber's bookable schedule:
// the first active schedule whose calendar is connected. Conflicts across
// several schedules on one calendar are first-come-first-served by design,
// so the oldest active schedule wins.
func (r *Repo) ActiveScheduleForSubscriber(ctx context.Context, subscriberID uuid.UUID) (domain.Schedule, error) {
	var s domain.Schedule
	err := r.db.NewSelect().
		Model(&s).
		Relation("Availabilities").
		Join("JOIN calendars AS c ON c.id = schedule.calendar_id").
		Where("c.subscriber_id = ?", subscriberID).
		Where("c.connected").
		Where("schedule.active").
		OrderExpr("schedule.created_at ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Schedule{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Schedule{}, err
	}
	return s, nil
}

func (r *Repo) SubscriberByUsername(ctx context.Context, username string) (domain.Subscriber, error) {
	var sub domain.Subscriber
	err := r.db.NewSelect().
		Model(&sub).
		Where("username = ?", username).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscriber{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Subscriber{}, err
	}
	return sub, nil
}

func (r *Repo) SubscriberByID(ctx context.Context, subscriberID uuid.UUID) (domain.Subscriber, error) {
	var sub domain.Subscriber
	err := r.db.NewSelect().
		Model(&sub).
		Where("id = ?", subscriberID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Subscriber{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Subscriber{}, err
	}
	return sub, nil
}

func (r *Repo) CalendarByID(ctx context.Context, calendarID uuid.UUID) (domain.Calendar, error) {
	var cal domain.Calendar
	err := r.db.NewSelect().
		Model(&cal).
		Where("id = ?", calendarID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Calendar{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Calendar{}, err
	}
	return cal, nil
}

func (r *Repo) ConnectionByID(ctx context.Context, connectionID uuid.UUID) (domain.ExternalConnection, error) {
	var conn domain.ExternalConnection
	err := r.db.NewSelect().
		Model(&conn).
		Where("id = ?", connectionID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ExternalConnection{}, store.ErrNotFound
	}
	if err != nil {
		return domain.ExternalConnection{}, err
	}
	return conn, nil
}
