package booking

import (
	"context"
	"time"
)

// MeetingLink is a created conferencing link.
type MeetingLink struct {
	ID  string
	URL string
}

// LinkProvider creates conferencing links for confirmed bookings. Google
// Meet links are not created here; they ride along on the calendar event
// write instead.
type LinkProvider interface {
	CreateLink(ctx context.Context, title string, start time.Time, durationMinutes int) (MeetingLink, error)
}
