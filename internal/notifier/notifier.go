// Package notifier delivers the booking mails. Dispatch is asynchronous
// and fire-and-forget: the core never blocks on, or fails because of, mail
// delivery.
package notifier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bookline/backend/internal/domain"
)

const sendTimeout = 30 * time.Second

type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
	// ICS, when set, is attached as a calendar part with the given method
	// (REQUEST or CANCEL).
	ICS       []byte
	ICSMethod string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Notifier struct {
	mailer Mailer
	log    *slog.Logger

	queue chan Message
	wg    sync.WaitGroup
	once  sync.Once
}

func New(mailer Mailer, log *slog.Logger, buffer int) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Notifier{
		mailer: mailer,
		log:    log.With(slog.String("component", "notifier")),
		queue:  make(chan Message, buffer),
	}
}

// Start launches the delivery worker. Safe to call once.
func (n *Notifier) Start() {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for msg := range n.queue {
			ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
			err := n.mailer.Send(ctx, msg)
			cancel()
			if err != nil {
				// Swallowed by design; booking state never depends on mail.
				n.log.Warn("mail delivery failed",
					slog.String("to", msg.To),
					slog.String("subject", msg.Subject),
					slog.Any("err", err),
				)
			}
		}
	}()
}

// Close drains the queue and stops the worker.
func (n *Notifier) Close() {
	n.once.Do(func() { close(n.queue) })
	n.wg.Wait()
}

func (n *Notifier) enqueue(msg Message) {
	select {
	case n.queue <- msg:
	default:
		n.log.Warn("mail queue full, dropping message",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
		)
	}
}

// HoldPendingHost asks the host to confirm or deny a requested slot via the
// signed decide URL.
func (n *Notifier) HoldPendingHost(host domain.Subscriber, attendee domain.Attendee, slot domain.Slot, decideURL string) {
	msg, err := render(host.Locale, tmplHoldPendingHost, mailData{
		Host:      host,
		Attendee:  attendee,
		Slot:      slot,
		DecideURL: decideURL,
	})
	if err != nil {
		n.log.Error("render hold-pending-host failed", slog.Any("err", err))
		return
	}
	msg.To = host.Email
	msg.ToName = host.Name
	n.enqueue(msg)
}

// HoldPendingAttendee tells the attendee their request is awaiting the
// host, with a tentative ICS attached.
func (n *Notifier) HoldPendingAttendee(host domain.Subscriber, attendee domain.Attendee, slot domain.Slot, ics []byte) {
	msg, err := render(host.Locale, tmplHoldPendingAttendee, mailData{Host: host, Attendee: attendee, Slot: slot})
	if err != nil {
		n.log.Error("render hold-pending-attendee failed", slog.Any("err", err))
		return
	}
	msg.To = attendee.Email
	msg.ToName = attendee.Name
	msg.ICS = ics
	msg.ICSMethod = "REQUEST"
	n.enqueue(msg)
}

// ConfirmBookingAttendee carries the final invitation ICS.
func (n *Notifier) ConfirmBookingAttendee(host domain.Subscriber, attendee domain.Attendee, slot domain.Slot, ics []byte) {
	msg, err := render(host.Locale, tmplConfirmAttendee, mailData{Host: host, Attendee: attendee, Slot: slot})
	if err != nil {
		n.log.Error("render confirm-booking-attendee failed", slog.Any("err", err))
		return
	}
	msg.To = attendee.Email
	msg.ToName = attendee.Name
	msg.ICS = ics
	msg.ICSMethod = "REQUEST"
	n.enqueue(msg)
}

// CancelBookingAttendee carries the cancellation ICS after a deny.
func (n *Notifier) CancelBookingAttendee(host domain.Subscriber, attendee domain.Attendee, slot domain.Slot, ics []byte) {
	msg, err := render(host.Locale, tmplCancelAttendee, mailData{Host: host, Attendee: attendee, Slot: slot})
	if err != nil {
		n.log.Error("render cancel-booking-attendee failed", slog.Any("err", err))
		return
	}
	msg.To = attendee.Email
	msg.ToName = attendee.Name
	msg.ICS = ics
	msg.ICSMethod = "CANCEL"
	n.enqueue(msg)
}

// NewBookingHost informs the host about an auto-confirmed booking.
func (n *Notifier) NewBookingHost(host domain.Subscriber, attendee domain.Attendee, slot domain.Slot) {
	msg, err := render(host.Locale, tmplNewBookingHost, mailData{Host: host, Attendee: attendee, Slot: slot})
	if err != nil {
		n.log.Error("render new-booking-host failed", slog.Any("err", err))
		return
	}
	msg.To = host.Email
	msg.ToName = host.Name
	n.enqueue(msg)
}

// LinkFailedHost tells the host that conferencing-link creation failed and
// the booking proceeded without one.
func (n *Notifier) LinkFailedHost(host domain.Subscriber, slot domain.Slot, reason string) {
	msg, err := render(host.Locale, tmplLinkFailedHost, mailData{Host: host, Slot: slot, Reason: reason})
	if err != nil {
		n.log.Error("render link-failed-host failed", slog.Any("err", err))
		return
	}
	msg.To = host.Email
	msg.ToName = host.Name
	n.enqueue(msg)
}

// InviteAttendee sends a one-shot appointment invitation.
func (n *Notifier) InviteAttendee(host domain.Subscriber, attendee domain.Attendee, slot domain.Slot, ics []byte) {
	msg, err := render(host.Locale, tmplInvite, mailData{Host: host, Attendee: attendee, Slot: slot})
	if err != nil {
		n.log.Error("render invite failed", slog.Any("err", err))
		return
	}
	msg.To = attendee.Email
	msg.ToName = attendee.Name
	msg.ICS = ics
	msg.ICSMethod = "REQUEST"
	n.enqueue(msg)
}
