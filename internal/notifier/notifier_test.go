package notifier

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"bookline/backend/internal/domain"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.sent))
	copy(out, f.sent)
	return out
}

func testHost() domain.Subscriber {
	return domain.Subscriber{
		Username: "anna",
		Email:    "anna@example.com",
		Name:     "Anna",
		Timezone: "Europe/Berlin",
		Locale:   "en",
	}
}

func testAttendee() domain.Attendee {
	return domain.Attendee{
		Email:    "bob@example.com",
		Name:     "Bob",
		Timezone: "America/Vancouver",
	}
}

func testSlot() domain.Slot {
	return domain.Slot{
		StartTime: time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
		Duration:  30,
	}
}

func TestRenderLocales(t *testing.T) {
	data := mailData{Host: testHost(), Attendee: testAttendee(), Slot: testSlot(), DecideURL: "https://example.com/d"}

	en, err := render("en", tmplHoldPendingHost, data)
	if err != nil {
		t.Fatalf("render en error: %v", err)
	}
	if !strings.Contains(en.Body, "requested the slot") {
		t.Errorf("english body missing phrase: %q", en.Body)
	}
	if !strings.Contains(en.Body, "https://example.com/d") {
		t.Errorf("body missing decide URL: %q", en.Body)
	}

	de, err := render("de", tmplHoldPendingHost, data)
	if err != nil {
		t.Fatalf("render de error: %v", err)
	}
	if !strings.Contains(de.Body, "Buchungsanfrage") && !strings.Contains(de.Subject, "Buchungsanfrage") {
		t.Errorf("german rendering missing localized text: subject=%q", de.Subject)
	}

	// Unknown locales fall back to English.
	fr, err := render("fr", tmplHoldPendingHost, data)
	if err != nil {
		t.Fatalf("render fr error: %v", err)
	}
	if fr.Subject != en.Subject {
		t.Errorf("fallback subject = %q, want %q", fr.Subject, en.Subject)
	}
}

func TestRenderTimezones(t *testing.T) {
	data := mailData{Host: testHost(), Attendee: testAttendee(), Slot: testSlot()}

	// 17:00 UTC is 18:00 in Berlin and 09:00 in Vancouver.
	if got := data.WhenHost(); !strings.Contains(got, "18:00") {
		t.Errorf("WhenHost() = %q, want Berlin local time", got)
	}
	if got := data.WhenAttendee(); !strings.Contains(got, "09:00") {
		t.Errorf("WhenAttendee() = %q, want Vancouver local time", got)
	}
}

func TestBuildICS(t *testing.T) {
	inv := Invite{
		UID:            "e2a0a3d0-0000-0000-0000-000000000001",
		Title:          "Office hours",
		Location:       "Room 4",
		Start:          time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC),
		End:            time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC),
		OrganizerEmail: "anna@example.com",
		AttendeeEmail:  "bob@example.com",
		Tentative:      true,
	}

	b, err := BuildICS("REQUEST", inv)
	if err != nil {
		t.Fatalf("BuildICS error: %v", err)
	}
	s := string(b)
	for _, want := range []string{
		"METHOD:REQUEST",
		"UID:" + inv.UID,
		"STATUS:TENTATIVE",
		"SUMMARY:Office hours",
		"mailto:bob@example.com",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("ics missing %q:\n%s", want, s)
		}
	}

	cancel, err := BuildICS("CANCEL", inv)
	if err != nil {
		t.Fatalf("BuildICS cancel error: %v", err)
	}
	if !strings.Contains(string(cancel), "STATUS:CANCELLED") {
		t.Errorf("cancel ics missing cancelled status:\n%s", cancel)
	}
}

func TestNotifierDelivers(t *testing.T) {
	mailer := &fakeMailer{}
	n := New(mailer, slog.New(slog.NewTextHandler(io.Discard, nil)), 8)
	n.Start()

	n.HoldPendingHost(testHost(), testAttendee(), testSlot(), "https://example.com/d")
	n.ConfirmBookingAttendee(testHost(), testAttendee(), testSlot(), []byte("BEGIN:VCALENDAR"))
	n.Close()

	msgs := mailer.messages()
	if len(msgs) != 2 {
		t.Fatalf("delivered %d messages, want 2", len(msgs))
	}
	if msgs[0].To != "anna@example.com" {
		t.Errorf("first message to %q, want host", msgs[0].To)
	}
	if msgs[1].To != "bob@example.com" || msgs[1].ICSMethod != "REQUEST" {
		t.Errorf("second message = %+v, want attendee with REQUEST ics", msgs[1])
	}
}

func TestNotifierSwallowsSendErrors(t *testing.T) {
	mailer := &fakeMailer{err: errors.New("smtp down")}
	n := New(mailer, slog.New(slog.NewTextHandler(io.Discard, nil)), 8)
	n.Start()

	n.NewBookingHost(testHost(), testAttendee(), testSlot())
	n.Close()
	// No panic, no error surfaced; delivery failure only logs.
}
