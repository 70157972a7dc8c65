// Package booking drives the slot state machine: request, hold, confirm,
// deny and expiry, with the remote calendar and the mails hanging off each
// transition.
package booking

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bookline/backend/internal/domain"
	"bookline/backend/internal/notifier"
	"bookline/backend/internal/remote"
	"bookline/backend/internal/remote/providers"
	"bookline/backend/internal/service/availability"
	"bookline/backend/internal/store"
)

// retryBackoff spaces the single retry of the final remote write.
const retryBackoff = 500 * time.Millisecond

type Config struct {
	// BaseURL is the public frontend origin decide links point at.
	BaseURL string
	// HoldPrefix marks tentative remote events, default "HOLD: ".
	HoldPrefix string
	// HoldTTL bounds how long a requested slot stays held, default 24h.
	HoldTTL time.Duration
}

type Coordinator struct {
	repo      store.SlotRepository
	schedules store.ScheduleReader
	avail     *availability.Service
	clients   providers.Factory
	notify    *notifier.Notifier
	links     map[domain.MeetingLinkProvider]LinkProvider
	cfg       Config
	now       func() time.Time
	log       *slog.Logger
}

func NewCoordinator(
	repo store.SlotRepository,
	schedules store.ScheduleReader,
	avail *availability.Service,
	clients providers.Factory,
	notify *notifier.Notifier,
	links map[domain.MeetingLinkProvider]LinkProvider,
	cfg Config,
	log *slog.Logger,
) *Coordinator {
	if cfg.HoldPrefix == "" {
		cfg.HoldPrefix = "HOLD: "
	}
	if cfg.HoldTTL <= 0 {
		cfg.HoldTTL = 24 * time.Hour
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		repo:      repo,
		schedules: schedules,
		avail:     avail,
		clients:   clients,
		notify:    notify,
		links:     links,
		cfg:       cfg,
		now:       time.Now,
		log:       log.With(slog.String("component", "booking")),
	}
}

// RequestResult is what a successful Request hands back to the transport.
type RequestResult struct {
	Slot        domain.Slot
	Appointment domain.Appointment
	// Pending is true when the host still has to confirm.
	Pending bool
}

// Request runs the booking request path: validate the slot against the
// schedule's rules, re-check freshness, then persist attendee, appointment
// and requested slot in one transaction. With confirmation enabled the
// tentative HOLD event is written to the remote calendar inside that
// transaction, so a remote failure rolls the hold back. Without
// confirmation the slot is confirmed in place.
func (c *Coordinator) Request(ctx context.Context, schedule domain.Schedule, attendee domain.Attendee, slotStart time.Time, duration int) (RequestResult, error) {
	now := c.now().UTC()
	if err := validateCandidate(schedule, slotStart, duration, now); err != nil {
		return RequestResult{}, err
	}

	free, err := c.avail.IsFree(ctx, schedule, slotStart, duration)
	if err != nil {
		return RequestResult{}, err
	}
	if !free {
		return RequestResult{}, ErrSlotAlreadyTaken
	}

	host, cal, client, err := c.resolve(ctx, schedule)
	if err != nil {
		return RequestResult{}, err
	}

	token, err := newBookingToken()
	if err != nil {
		return RequestResult{}, err
	}
	expires := now.Add(c.cfg.HoldTTL)

	var (
		slot domain.Slot
		appt domain.Appointment
		att  domain.Attendee
	)
	err = c.repo.RunInTx(ctx, func(ctx context.Context, tx store.BookingTx) error {
		att, err = tx.CreateAttendee(ctx, attendee)
		if err != nil {
			return err
		}

		appt, err = tx.CreateAppointment(ctx, domain.Appointment{
			CalendarID: cal.ID,
			Title:      fmt.Sprintf("%s with %s", schedule.Name, att.Name),
			Details:    schedule.Details,
			Location:   schedule.LocationURL,
			Status:     domain.AppointmentStatusOpened,
		})
		if err != nil {
			return err
		}

		slot, err = tx.InsertRequested(ctx, domain.Slot{
			ScheduleID:       &schedule.ID,
			AppointmentID:    &appt.ID,
			AttendeeID:       &att.ID,
			StartTime:        slotStart,
			Duration:         duration,
			BookingTkn:       token,
			BookingExpiresAt: &expires,
		})
		if errors.Is(err, store.ErrConflict) {
			return ErrSlotAlreadyTaken
		}
		if err != nil {
			return err
		}

		if schedule.BookingConfirmation {
			// The HOLD write sits inside the transaction on purpose: if
			// the remote calendar rejects it, the local hold must not
			// survive either.
			saved, err := client.SaveEvent(ctx, remote.Event{
				UID:            appt.UUID.String(),
				Title:          c.cfg.HoldPrefix + appt.Title,
				Description:    appt.Details,
				Location:       appt.Location,
				Start:          slot.StartTime,
				End:            slot.EndTime(),
				OrganizerEmail: host.Email,
				OrganizerName:  host.Name,
				AttendeeEmail:  att.Email,
				AttendeeName:   att.Name,
			})
			if err != nil {
				return err
			}
			appt.ExternalID = saved.ExternalID
			return tx.UpdateAppointment(ctx, appt)
		}
		return nil
	})
	if err != nil {
		return RequestResult{}, err
	}

	c.avail.BustCalendar(ctx, schedule)

	if !schedule.BookingConfirmation {
		if _, err := c.decide(ctx, schedule, slot.ID, token, true, true); err != nil {
			return RequestResult{}, err
		}
		c.notify.NewBookingHost(host, att, slot)
		booked, err := c.bookedState(ctx, slot.ID, appt.ID)
		if err == nil {
			slot, appt = booked.Slot, booked.Appointment
		}
		return RequestResult{Slot: slot, Appointment: appt, Pending: false}, nil
	}

	c.notify.HoldPendingHost(host, att, slot, c.decideURL(slot.ID, token))
	c.notify.HoldPendingAttendee(host, att, slot, c.buildICS(ctx, "REQUEST", true, host, att, appt, slot))
	return RequestResult{Slot: slot, Appointment: appt, Pending: true}, nil
}

// DecisionResult echoes the settled slot and its attendee back to the
// caller. On a deny the slot carries its last held state.
type DecisionResult struct {
	Slot      domain.Slot
	Attendee  domain.Attendee
	Confirmed bool
}

// Decide settles a held slot. The row lock taken by SlotForDecision makes
// concurrent decisions on the same slot serialize; the loser sees
// ErrSlotNotFound, which also makes a repeated decision on the same link
// idempotent from the caller's point of view.
func (c *Coordinator) Decide(ctx context.Context, schedule domain.Schedule, slotID uuid.UUID, token string, confirmed bool) (DecisionResult, error) {
	return c.decide(ctx, schedule, slotID, token, confirmed, false)
}

// autoConfirmed distinguishes a host decision from a confirmation the
// request itself triggered; the latter invites the attendee instead of
// confirming a request they are still waiting on.
func (c *Coordinator) decide(ctx context.Context, schedule domain.Schedule, slotID uuid.UUID, token string, confirmed, autoConfirmed bool) (DecisionResult, error) {
	now := c.now().UTC()

	host, cal, client, err := c.resolve(ctx, schedule)
	if err != nil {
		return DecisionResult{}, err
	}

	var (
		slot    domain.Slot
		appt    domain.Appointment
		att     domain.Attendee
		hadHold bool
	)
	err = c.repo.RunInTx(ctx, func(ctx context.Context, tx store.BookingTx) error {
		slot, err = tx.SlotForDecision(ctx, slotID, token, now)
		if errors.Is(err, store.ErrNotFound) {
			return ErrSlotNotFound
		}
		if err != nil {
			return err
		}
		if slot.AppointmentID == nil {
			return ErrSlotNotFound
		}
		appt, err = tx.AppointmentByID(ctx, *slot.AppointmentID)
		if err != nil {
			return err
		}
		hadHold = appt.ExternalID != ""
		if slot.AttendeeID != nil {
			if a, err := tx.AttendeeByID(ctx, *slot.AttendeeID); err == nil {
				att = a
			}
		}

		if !confirmed {
			if err := tx.DeleteSlot(ctx, slot.ID); err != nil {
				return err
			}
			return tx.DeleteAppointment(ctx, appt.ID)
		}

		link := c.createMeetingLink(ctx, schedule, host, appt, slot)

		saved, saveErr := c.saveFinalEvent(ctx, client, schedule, cal, host, att, appt, slot, link)
		if saveErr != nil {
			// The booking itself goes through; the host's calendar catches
			// up on the next write or by hand.
			c.log.Warn("final remote event failed, booking locally anyway",
				slog.String("appointment", appt.UUID.String()),
				slog.Any("err", saveErr),
			)
		}
		if link.URL == "" && saved.ConferenceURL != "" {
			link = MeetingLink{URL: saved.ConferenceURL}
		}

		if err := tx.MarkBooked(ctx, slot.ID, link.ID, link.URL); err != nil {
			return err
		}
		slot.BookingStatus = domain.BookingStatusBooked
		slot.MeetingLinkID = link.ID
		slot.MeetingLinkURL = link.URL

		appt.Status = domain.AppointmentStatusClosed
		if saved.ExternalID != "" {
			appt.ExternalID = saved.ExternalID
		}
		return tx.UpdateAppointment(ctx, appt)
	})
	if err != nil {
		return DecisionResult{}, err
	}

	c.avail.BustCalendar(ctx, schedule)

	if confirmed {
		ics := c.buildICS(ctx, "REQUEST", false, host, att, appt, slot)
		if autoConfirmed {
			c.notify.InviteAttendee(host, att, slot, ics)
		} else {
			c.notify.ConfirmBookingAttendee(host, att, slot, ics)
		}
		return DecisionResult{Slot: slot, Attendee: att, Confirmed: true}, nil
	}

	// Deny path: drop the HOLD from the remote calendar, best effort.
	if hadHold {
		if err := client.DeleteEvent(ctx, appt.ExternalID); err != nil {
			c.log.Warn("hold cleanup failed",
				slog.String("appointment", appt.UUID.String()),
				slog.Any("err", err),
			)
		}
	}
	c.notify.CancelBookingAttendee(host, att, slot, c.buildICS(ctx, "CANCEL", false, host, att, appt, slot))
	return DecisionResult{Slot: slot, Attendee: att, Confirmed: false}, nil
}

// ExpirePending deletes requested slots whose hold ran out and compensates
// their remote HOLD events. No mail goes out; an expired request simply
// frees the slot. Returns how many holds were released.
func (c *Coordinator) ExpirePending(ctx context.Context) (int, error) {
	now := c.now().UTC()
	expired, err := c.repo.ExpiredRequested(ctx, now)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, candidate := range expired {
		var (
			appt    domain.Appointment
			deleted bool
		)
		err := c.repo.RunInTx(ctx, func(ctx context.Context, tx store.BookingTx) error {
			slot, err := tx.SlotForUpdate(ctx, candidate.ID)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			// Re-check under the lock; a decision may have won the race.
			if slot.BookingStatus != domain.BookingStatusRequested {
				return nil
			}
			if slot.BookingExpiresAt == nil || slot.BookingExpiresAt.After(now) {
				return nil
			}
			if slot.AppointmentID != nil {
				if a, err := tx.AppointmentByID(ctx, *slot.AppointmentID); err == nil {
					appt = a
				}
			}
			if err := tx.DeleteSlot(ctx, slot.ID); err != nil {
				return err
			}
			deleted = true
			if slot.AppointmentID != nil {
				return tx.DeleteAppointment(ctx, *slot.AppointmentID)
			}
			return nil
		})
		if err != nil {
			c.log.Warn("expiry sweep failed for slot",
				slog.String("slot", candidate.ID.String()),
				slog.Any("err", err),
			)
			continue
		}
		if !deleted {
			continue
		}
		released++
		if appt.ID != uuid.Nil {
			c.compensateHold(ctx, candidate, appt)
		}
	}
	return released, nil
}

func (c *Coordinator) compensateHold(ctx context.Context, slot domain.Slot, appt domain.Appointment) {
	if appt.ExternalID == "" || slot.ScheduleID == nil {
		return
	}
	schedule, err := c.schedules.ScheduleByID(ctx, *slot.ScheduleID)
	if err != nil {
		return
	}
	_, _, client, err := c.resolve(ctx, schedule)
	if err != nil {
		return
	}
	c.avail.BustCalendar(ctx, schedule)
	if err := client.DeleteEvent(ctx, appt.ExternalID); err != nil {
		c.log.Warn("hold cleanup failed",
			slog.String("appointment", appt.UUID.String()),
			slog.Any("err", err),
		)
	}
}

func (c *Coordinator) createMeetingLink(ctx context.Context, schedule domain.Schedule, host domain.Subscriber, appt domain.Appointment, slot domain.Slot) MeetingLink {
	provider, ok := c.links[schedule.MeetingLinkProvider]
	if !ok {
		return MeetingLink{}
	}
	link, err := provider.CreateLink(ctx, appt.Title, slot.StartTime, slot.Duration)
	if err != nil {
		c.log.Warn("meeting link creation failed",
			slog.String("provider", string(schedule.MeetingLinkProvider)),
			slog.Any("err", err),
		)
		c.notify.LinkFailedHost(host, slot, err.Error())
		return MeetingLink{}
	}
	return link
}

// saveFinalEvent writes the confirmed event keyed by the appointment's
// public UUID, replacing a HOLD with the same UID. One retry absorbs a
// transient remote hiccup.
func (c *Coordinator) saveFinalEvent(ctx context.Context, client remote.Client, schedule domain.Schedule, cal domain.Calendar, host domain.Subscriber, att domain.Attendee, appt domain.Appointment, slot domain.Slot, link MeetingLink) (remote.SavedEvent, error) {
	location := appt.Location
	if link.URL != "" {
		location = link.URL
	}
	ev := remote.Event{
		UID:            appt.UUID.String(),
		Title:          appt.Title,
		Description:    appt.Details,
		Location:       location,
		Start:          slot.StartTime,
		End:            slot.EndTime(),
		OrganizerEmail: host.Email,
		OrganizerName:  host.Name,
		AttendeeEmail:  att.Email,
		AttendeeName:   att.Name,
		RequestMeetLink: schedule.MeetingLinkProvider == domain.MeetingLinkProviderGoogleMeet &&
			cal.Provider == domain.CalendarProviderGoogle &&
			link.URL == "",
	}

	saved, err := client.SaveEvent(ctx, ev)
	if err == nil {
		return saved, nil
	}
	select {
	case <-ctx.Done():
		return remote.SavedEvent{}, ctx.Err()
	case <-time.After(retryBackoff):
	}
	return client.SaveEvent(ctx, ev)
}

func (c *Coordinator) buildICS(ctx context.Context, method string, tentative bool, host domain.Subscriber, att domain.Attendee, appt domain.Appointment, slot domain.Slot) []byte {
	location := appt.Location
	if slot.MeetingLinkURL != "" {
		location = slot.MeetingLinkURL
	}
	ics, err := notifier.BuildICS(method, notifier.Invite{
		UID:            appt.UUID.String(),
		Title:          appt.Title,
		Description:    appt.Details,
		Location:       location,
		URL:            slot.MeetingLinkURL,
		Start:          slot.StartTime,
		End:            slot.EndTime(),
		OrganizerEmail: host.Email,
		OrganizerName:  host.Name,
		AttendeeEmail:  att.Email,
		AttendeeName:   att.Name,
		Tentative:      tentative,
	})
	if err != nil {
		c.log.Warn("ics build failed", slog.Any("err", err))
		return nil
	}
	return ics
}

type bookedState struct {
	Slot        domain.Slot
	Appointment domain.Appointment
}

func (c *Coordinator) bookedState(ctx context.Context, slotID, apptID uuid.UUID) (bookedState, error) {
	var out bookedState
	err := c.repo.RunInTx(ctx, func(ctx context.Context, tx store.BookingTx) error {
		slot, err := tx.SlotForUpdate(ctx, slotID)
		if err != nil {
			return err
		}
		appt, err := tx.AppointmentByID(ctx, apptID)
		if err != nil {
			return err
		}
		out = bookedState{Slot: slot, Appointment: appt}
		return nil
	})
	return out, err
}

func (c *Coordinator) resolve(ctx context.Context, schedule domain.Schedule) (domain.Subscriber, domain.Calendar, remote.Client, error) {
	cal, err := c.schedules.CalendarByID(ctx, schedule.CalendarID)
	if err != nil {
		return domain.Subscriber{}, domain.Calendar{}, nil, fmt.Errorf("load calendar: %w", err)
	}
	host, err := c.schedules.SubscriberByID(ctx, cal.SubscriberID)
	if err != nil {
		return domain.Subscriber{}, domain.Calendar{}, nil, fmt.Errorf("load subscriber: %w", err)
	}
	conn, err := c.schedules.ConnectionByID(ctx, cal.ConnectionID)
	if err != nil {
		return domain.Subscriber{}, domain.Calendar{}, nil, fmt.Errorf("load connection: %w", err)
	}
	client, err := c.clients(ctx, cal, conn)
	if err != nil {
		return domain.Subscriber{}, domain.Calendar{}, nil, err
	}
	return host, cal, client, nil
}

func (c *Coordinator) decideURL(slotID uuid.UUID, token string) string {
	return fmt.Sprintf("%s/booking/%s?token=%s", c.cfg.BaseURL, slotID, token)
}

// newBookingToken returns a url-safe token with 128 bits of entropy.
func newBookingToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
