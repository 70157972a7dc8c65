package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Subscriber is the host. It owns calendars, schedules and the slots booked
// against them. The timezone is an IANA identifier and governs how the
// subscriber's schedules interpret local times of day.
type Subscriber struct {
	bun.BaseModel `bun:"table:subscribers"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	Username      string    `bun:"username,notnull,unique"`
	Email         string    `bun:"email,notnull"`
	Name          string    `bun:"name,notnull"`
	Timezone      string    `bun:"timezone,notnull"`
	Locale        string    `bun:"locale,notnull,default:'en'"`
	ShortLinkHash string    `bun:"short_link_hash,notnull"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (s *Subscriber) BeforeAppendModel(ctx context.Context, query bun.Query) error {
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
		if s.Locale == "" {
			s.Locale = "en"
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
