// Package gcal implements the remote calendar port on the Google Calendar
// API. Tokens are refreshed out of band; this package only consumes them.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"bookline/backend/internal/remote"
)

type Client struct {
	service    *calendar.Service
	calendarID string
	log        *slog.Logger
}

// New builds a client for one Google calendar. token is the serialized
// oauth2 token held by the external connection.
func New(ctx context.Context, log *slog.Logger, clientID, clientSecret, token, calendarID string, timeout time.Duration) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal([]byte(token), tok); err != nil {
		return nil, fmt.Errorf("decode google token: %w", err)
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       []string{calendar.CalendarEventsScope, calendar.CalendarReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	httpClient := cfg.Client(ctx, tok)
	httpClient.Timeout = timeout

	service, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}

	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{
		service:    service,
		calendarID: calendarID,
		log:        log.With(slog.String("component", "remote.gcal")),
	}, nil
}

func (c *Client) ListBusy(ctx context.Context, start, end time.Time) ([]remote.BusyInterval, error) {
	resp, err := c.service.Freebusy.Query(&calendar.FreeBusyRequest{
		TimeMin: start.UTC().Format(time.RFC3339),
		TimeMax: end.UTC().Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: c.calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		c.log.Warn("freebusy query failed", slog.Any("err", err))
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}

	cal, ok := resp.Calendars[c.calendarID]
	if !ok {
		return nil, nil
	}
	if len(cal.Errors) > 0 {
		return nil, fmt.Errorf("%w: %s", remote.ErrUnavailable, cal.Errors[0].Reason)
	}

	out := make([]remote.BusyInterval, 0, len(cal.Busy))
	for _, p := range cal.Busy {
		s, err := time.Parse(time.RFC3339, p.Start)
		if err != nil {
			continue
		}
		e, err := time.Parse(time.RFC3339, p.End)
		if err != nil {
			continue
		}
		out = append(out, remote.BusyInterval{Start: s.UTC(), End: e.UTC()})
	}
	return out, nil
}

func (c *Client) SaveEvent(ctx context.Context, ev remote.Event) (remote.SavedEvent, error) {
	gev := &calendar.Event{
		ICalUID:     ev.UID,
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339)},
	}
	if ev.AttendeeEmail != "" {
		gev.Attendees = []*calendar.EventAttendee{{
			Email:       ev.AttendeeEmail,
			DisplayName: ev.AttendeeName,
		}}
	}

	// Import keyed by iCalUID is an upsert: re-sending the same UID
	// overwrites the earlier event instead of duplicating it.
	call := c.service.Events.Import(c.calendarID, gev).Context(ctx)
	if ev.RequestMeetLink {
		gev.ConferenceData = &calendar.ConferenceData{
			CreateRequest: &calendar.CreateConferenceRequest{
				RequestId: ev.UID,
				ConferenceSolutionKey: &calendar.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		}
		call = call.ConferenceDataVersion(1)
	}

	saved, err := call.Do()
	if err != nil {
		c.log.Warn("event import failed", slog.String("uid", ev.UID), slog.Any("err", err))
		return remote.SavedEvent{}, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}

	out := remote.SavedEvent{ExternalID: saved.Id}
	if saved.HangoutLink != "" {
		out.ConferenceURL = saved.HangoutLink
	} else if saved.ConferenceData != nil {
		for _, ep := range saved.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				out.ConferenceURL = ep.Uri
				break
			}
		}
	}
	return out, nil
}

func (c *Client) DeleteEvent(ctx context.Context, ref string) error {
	// References may be appointment uuids rather than event ids; try the
	// iCalUID index first and fall back to treating ref as an event id.
	id := ref
	if resolved, err := c.eventIDForUID(ctx, ref); err == nil && resolved != "" {
		id = resolved
	}

	err := c.service.Events.Delete(c.calendarID, id).Context(ctx).Do()
	if err == nil || isGone(err) {
		return nil
	}
	c.log.Warn("event delete failed", slog.String("ref", ref), slog.Any("err", err))
	return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
}

func (c *Client) eventIDForUID(ctx context.Context, uid string) (string, error) {
	resp, err := c.service.Events.List(c.calendarID).ICalUID(uid).MaxResults(1).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", nil
	}
	return resp.Items[0].Id, nil
}

func isGone(err error) bool {
	if gerr, ok := err.(*googleapi.Error); ok {
		return gerr.Code == 404 || gerr.Code == 410
	}
	return false
}
