package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type CalendarProvider string

const (
	CalendarProviderCalDAV CalendarProvider = "caldav"
	CalendarProviderGoogle CalendarProvider = "google"
)

// ExternalConnection is a subscriber's credential for one remote account.
// It is the sole owner of the credential material; calendars reference it by
// id and never carry tokens of their own.
type ExternalConnection struct {
	bun.BaseModel `bun:"table:external_connections"`

	ID           uuid.UUID        `bun:"id,pk,type:uuid"`
	SubscriberID uuid.UUID        `bun:"subscriber_id,notnull,type:uuid"`
	Provider     CalendarProvider `bun:"provider,notnull"`
	Name         string           `bun:"name,notnull"`
	// Token is the serialized OAuth2 token for google connections and the
	// password for caldav connections.
	Token     string    `bun:"token,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (c *ExternalConnection) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			c.ID = id
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}

// Calendar binds a subscriber to exactly one remote calendar collection.
// Only connected calendars are eligible for busy reads and event writes.
type Calendar struct {
	bun.BaseModel `bun:"table:calendars"`

	ID           uuid.UUID        `bun:"id,pk,type:uuid"`
	SubscriberID uuid.UUID        `bun:"subscriber_id,notnull,type:uuid"`
	ConnectionID uuid.UUID        `bun:"connection_id,notnull,type:uuid"`
	Provider     CalendarProvider `bun:"provider,notnull"`
	Title        string           `bun:"title,notnull"`
	// URL is the CalDAV collection URL, or the Google calendar id.
	URL       string    `bun:"url,notnull"`
	User      string    `bun:"caldav_user"`
	Connected bool      `bun:"connected,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

func (c *Calendar) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if c.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			c.ID = id
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		if c.UpdatedAt.IsZero() {
			c.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		c.UpdatedAt = now
	}
	return nil
}
