// Package dav implements the remote calendar port over CalDAV with HTTP
// basic credentials against a single collection URL.
package dav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"

	"bookline/backend/internal/remote"
)

// basicAuthTransport adds basic credentials and a stable user agent to every
// request.
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "bookline/1.0")
	return t.transport.RoundTrip(req)
}

type Client struct {
	caldavClient  *caldav.Client
	webdavClient  *webdav.Client
	collectionURL string
	timeout       time.Duration
	log           *slog.Logger
}

// New builds a client for one CalDAV collection. The collection URL is the
// calendar's full URL; event objects are addressed beneath it as
// <uid>.ics.
func New(log *slog.Logger, collectionURL, username, password string, timeout time.Duration) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &basicAuthTransport{
			username:  username,
			password:  password,
			transport: http.DefaultTransport,
		},
	}

	base, err := serverBase(collectionURL)
	if err != nil {
		return nil, err
	}
	cd, err := caldav.NewClient(httpClient, base)
	if err != nil {
		return nil, fmt.Errorf("create caldav client: %w", err)
	}
	wd, err := webdav.NewClient(httpClient, base)
	if err != nil {
		return nil, fmt.Errorf("create webdav client: %w", err)
	}

	return &Client{
		caldavClient:  cd,
		webdavClient:  wd,
		collectionURL: strings.TrimSuffix(collectionURL, "/") + "/",
		timeout:       timeout,
		log:           log.With(slog.String("component", "remote.dav")),
	}, nil
}

func (c *Client) ListBusy(ctx context.Context, start, end time.Time) ([]remote.BusyInterval, error) {
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name: ical.CompCalendar,
			Comps: []caldav.CalendarCompRequest{{
				Name:     ical.CompEvent,
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start.UTC(),
				End:   end.UTC(),
			}},
		},
	}

	objs, err := c.caldavClient.QueryCalendar(ctx, c.collectionPath(), query)
	if err != nil {
		c.log.Warn("caldav report failed", slog.Any("err", err))
		return nil, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}

	var out []remote.BusyInterval
	for _, obj := range objs {
		if obj.Data == nil {
			continue
		}
		for _, ev := range obj.Data.Events() {
			if status, _ := ev.Props.Text(ical.PropStatus); strings.EqualFold(status, "CANCELLED") {
				continue
			}
			evStart, err := ev.DateTimeStart(time.UTC)
			if err != nil {
				continue
			}
			evEnd, err := ev.DateTimeEnd(time.UTC)
			if err != nil || !evEnd.After(evStart) {
				continue
			}
			out = append(out, remote.BusyInterval{Start: evStart.UTC(), End: evEnd.UTC()})
		}
	}
	return out, nil
}

func (c *Client) SaveEvent(ctx context.Context, ev remote.Event) (remote.SavedEvent, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//bookline//EN")

	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ev.UID)
	ve.Props.SetText(ical.PropSummary, ev.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.Start.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.End.UTC())
	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		ve.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.OrganizerEmail != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.SetText("mailto:" + ev.OrganizerEmail)
		ve.Props.Add(p)
	}
	if ev.AttendeeEmail != "" {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText("mailto:" + ev.AttendeeEmail)
		ve.Props.Add(p)
	}
	cal.Children = append(cal.Children, ve)

	path := c.eventPath(ev.UID)
	if _, err := c.caldavClient.PutCalendarObject(ctx, path, cal); err != nil {
		c.log.Warn("caldav put failed", slog.String("uid", ev.UID), slog.Any("err", err))
		return remote.SavedEvent{}, fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
	}
	return remote.SavedEvent{ExternalID: path}, nil
}

func (c *Client) DeleteEvent(ctx context.Context, ref string) error {
	path := ref
	if !strings.Contains(ref, "/") {
		path = c.eventPath(ref)
	}
	err := c.webdavClient.RemoveAll(ctx, path)
	if err == nil || isNotFound(err) {
		return nil
	}
	c.log.Warn("caldav delete failed", slog.String("ref", ref), slog.Any("err", err))
	return fmt.Errorf("%w: %v", remote.ErrUnavailable, err)
}

func (c *Client) collectionPath() string {
	u, err := url.Parse(c.collectionURL)
	if err != nil {
		return c.collectionURL
	}
	return u.Path
}

func (c *Client) eventPath(uid string) string {
	return c.collectionPath() + uid + ".ics"
}

func serverBase(collectionURL string) (string, error) {
	u, err := url.Parse(collectionURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid caldav collection url %q", collectionURL)
	}
	return u.Scheme + "://" + u.Host, nil
}

// isNotFound matches the formatted status in the error text; go-webdav
// keeps its HTTP error type in an internal package.
func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "404")
}
