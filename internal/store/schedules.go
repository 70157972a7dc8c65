package store

import (
	"context"

	"github.com/google/uuid"

	"bookline/backend/internal/domain"
)

// ScheduleReader serves the read side of the public surface: resolving a
// signed link to a subscriber, loading their active schedule with its
// custom availabilities, and walking the ownership chain up to the remote
// credential.
type ScheduleReader interface {
	ScheduleByID(ctx context.Context, scheduleID uuid.UUID) (domain.Schedule, error)
	ActiveScheduleForSubscriber(ctx context.Context, subscriberID uuid.UUID) (domain.Schedule, error)

	SubscriberByUsername(ctx context.Context, username string) (domain.Subscriber, error)
	SubscriberByID(ctx context.Context, subscriberID uuid.UUID) (domain.Subscriber, error)

	CalendarByID(ctx context.Context, calendarID uuid.UUID) (domain.Calendar, error)
	ConnectionByID(ctx context.Context, connectionID uuid.UUID) (domain.ExternalConnection, error)
}
