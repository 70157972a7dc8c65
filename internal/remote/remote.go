// Package remote defines the capability a remote calendar provider exposes
// to the booking core. Implementations live in the dav and gcal
// subpackages; the closed provider set is dispatched in providers.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks provider-side failures, as opposed to an empty busy
// list. Callers decide whether to surface or compensate.
var ErrUnavailable = errors.New("remote calendar unavailable")

// BusyInterval is an opaque busy span. Titles are discarded at the port
// boundary.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Event is the provider-neutral event written for holds and bookings. UID
// is the owning appointment's public uuid; saving the same UID twice
// overwrites rather than duplicates.
type Event struct {
	UID            string
	Title          string
	Description    string
	Location       string
	Start          time.Time
	End            time.Time
	OrganizerEmail string
	OrganizerName  string
	AttendeeEmail  string
	AttendeeName   string
	// RequestMeetLink asks the provider to attach a conferencing link if it
	// supports one. Only the google port honors it.
	RequestMeetLink bool
}

// SavedEvent reports the provider-side identity of a written event.
type SavedEvent struct {
	ExternalID string
	// ConferenceURL is set when the provider created a conferencing link.
	ConferenceURL string
}

// Client is the capability set of one connected calendar.
type Client interface {
	// ListBusy returns the busy spans between start and end. Provider
	// errors surface as ErrUnavailable, never as an empty list.
	ListBusy(ctx context.Context, start, end time.Time) ([]BusyInterval, error)
	// SaveEvent creates or overwrites the event keyed by its UID.
	SaveEvent(ctx context.Context, ev Event) (SavedEvent, error)
	// DeleteEvent removes the event by external id or UID. A missing event
	// is success.
	DeleteEvent(ctx context.Context, ref string) error
}
