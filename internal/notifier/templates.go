package notifier

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"bookline/backend/internal/domain"
)

type templateKey string

const (
	tmplInvite              templateKey = "invite"
	tmplHoldPendingHost     templateKey = "hold-pending-host"
	tmplHoldPendingAttendee templateKey = "hold-pending-attendee"
	tmplConfirmAttendee     templateKey = "confirm-booking-attendee"
	tmplCancelAttendee      templateKey = "cancel-booking-attendee"
	tmplNewBookingHost      templateKey = "new-booking-host"
	tmplLinkFailedHost      templateKey = "link-failed-host"
)

type mailData struct {
	Host      domain.Subscriber
	Attendee  domain.Attendee
	Slot      domain.Slot
	DecideURL string
	Reason    string
}

// WhenHost renders the slot start in the host's timezone.
func (d mailData) WhenHost() string {
	return formatIn(d.Slot.StartTime, d.Host.Timezone)
}

// WhenAttendee renders the slot start in the attendee's timezone.
func (d mailData) WhenAttendee() string {
	return formatIn(d.Slot.StartTime, d.Attendee.Timezone)
}

func (d mailData) Duration() int {
	return d.Slot.Duration
}

func formatIn(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("Mon, 02 Jan 2006 15:04 MST")
}

type mailTemplate struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[string]map[templateKey]mailTemplate{
	"en": {
		tmplInvite: newMailTemplate(tmplInvite, "en",
			"Invitation: {{.Host.Name}} on {{.WhenAttendee}}",
			`Hello {{.Attendee.Name}},

{{.Host.Name}} invites you to an appointment on {{.WhenAttendee}} ({{.Duration}} minutes).
The attached invitation can be added to your calendar.`),
		tmplHoldPendingHost: newMailTemplate(tmplHoldPendingHost, "en",
			"Booking request from {{.Attendee.Name}} for {{.WhenHost}}",
			`Hello {{.Host.Name}},

{{.Attendee.Name}} ({{.Attendee.Email}}) requested the slot on {{.WhenHost}} ({{.Duration}} minutes).
Confirm or decline the request here:

{{.DecideURL}}

If you do nothing, the request expires and the slot opens up again.`),
		tmplHoldPendingAttendee: newMailTemplate(tmplHoldPendingAttendee, "en",
			"Your booking request for {{.WhenAttendee}}",
			`Hello {{.Attendee.Name}},

your request for {{.WhenAttendee}} ({{.Duration}} minutes) with {{.Host.Name}} was received
and is awaiting confirmation. The attached tentative invitation holds the time in your calendar.`),
		tmplConfirmAttendee: newMailTemplate(tmplConfirmAttendee, "en",
			"Confirmed: {{.WhenAttendee}} with {{.Host.Name}}",
			`Hello {{.Attendee.Name}},

{{.Host.Name}} confirmed your appointment on {{.WhenAttendee}} ({{.Duration}} minutes).
{{- if .Slot.MeetingLinkURL}}

Join here: {{.Slot.MeetingLinkURL}}
{{- end}}

The attached invitation updates the entry in your calendar.`),
		tmplCancelAttendee: newMailTemplate(tmplCancelAttendee, "en",
			"Declined: {{.WhenAttendee}} with {{.Host.Name}}",
			`Hello {{.Attendee.Name}},

unfortunately {{.Host.Name}} could not confirm your appointment on {{.WhenAttendee}}.
The attached cancellation removes the tentative entry from your calendar.
Feel free to pick another slot.`),
		tmplNewBookingHost: newMailTemplate(tmplNewBookingHost, "en",
			"New booking: {{.Attendee.Name}} on {{.WhenHost}}",
			`Hello {{.Host.Name}},

{{.Attendee.Name}} ({{.Attendee.Email}}) booked the slot on {{.WhenHost}} ({{.Duration}} minutes).
The appointment was added to your calendar.`),
		tmplLinkFailedHost: newMailTemplate(tmplLinkFailedHost, "en",
			"Conferencing link could not be created",
			`Hello {{.Host.Name}},

the conferencing link for the appointment on {{.WhenHost}} could not be created:

{{.Reason}}

The booking went through without a link. You may want to add one manually.`),
	},
	"de": {
		tmplInvite: newMailTemplate(tmplInvite, "de",
			"Einladung: {{.Host.Name}} am {{.WhenAttendee}}",
			`Hallo {{.Attendee.Name}},

{{.Host.Name}} laedt Sie zu einem Termin am {{.WhenAttendee}} ein ({{.Duration}} Minuten).
Die angehaengte Einladung kann in Ihren Kalender uebernommen werden.`),
		tmplHoldPendingHost: newMailTemplate(tmplHoldPendingHost, "de",
			"Buchungsanfrage von {{.Attendee.Name}} fuer {{.WhenHost}}",
			`Hallo {{.Host.Name}},

{{.Attendee.Name}} ({{.Attendee.Email}}) hat den Termin am {{.WhenHost}} angefragt ({{.Duration}} Minuten).
Bestaetigen oder ablehnen koennen Sie hier:

{{.DecideURL}}

Ohne Reaktion verfaellt die Anfrage und der Termin wird wieder frei.`),
		tmplHoldPendingAttendee: newMailTemplate(tmplHoldPendingAttendee, "de",
			"Ihre Buchungsanfrage fuer {{.WhenAttendee}}",
			`Hallo {{.Attendee.Name}},

Ihre Anfrage fuer {{.WhenAttendee}} ({{.Duration}} Minuten) bei {{.Host.Name}} ist eingegangen
und wartet auf Bestaetigung. Die angehaengte vorlaeufige Einladung reserviert die Zeit in Ihrem Kalender.`),
		tmplConfirmAttendee: newMailTemplate(tmplConfirmAttendee, "de",
			"Bestaetigt: {{.WhenAttendee}} bei {{.Host.Name}}",
			`Hallo {{.Attendee.Name}},

{{.Host.Name}} hat Ihren Termin am {{.WhenAttendee}} bestaetigt ({{.Duration}} Minuten).
{{- if .Slot.MeetingLinkURL}}

Teilnahme-Link: {{.Slot.MeetingLinkURL}}
{{- end}}

Die angehaengte Einladung aktualisiert den Eintrag in Ihrem Kalender.`),
		tmplCancelAttendee: newMailTemplate(tmplCancelAttendee, "de",
			"Abgelehnt: {{.WhenAttendee}} bei {{.Host.Name}}",
			`Hallo {{.Attendee.Name}},

leider konnte {{.Host.Name}} Ihren Termin am {{.WhenAttendee}} nicht bestaetigen.
Die angehaengte Absage entfernt den vorlaeufigen Eintrag aus Ihrem Kalender.
Gerne koennen Sie einen anderen Termin waehlen.`),
		tmplNewBookingHost: newMailTemplate(tmplNewBookingHost, "de",
			"Neue Buchung: {{.Attendee.Name}} am {{.WhenHost}}",
			`Hallo {{.Host.Name}},

{{.Attendee.Name}} ({{.Attendee.Email}}) hat den Termin am {{.WhenHost}} gebucht ({{.Duration}} Minuten).
Der Termin wurde in Ihren Kalender eingetragen.`),
		tmplLinkFailedHost: newMailTemplate(tmplLinkFailedHost, "de",
			"Konferenz-Link konnte nicht erstellt werden",
			`Hallo {{.Host.Name}},

der Konferenz-Link fuer den Termin am {{.WhenHost}} konnte nicht erstellt werden:

{{.Reason}}

Die Buchung wurde ohne Link abgeschlossen. Bitte ergaenzen Sie ihn bei Bedarf manuell.`),
	},
}

func newMailTemplate(key templateKey, locale, subject, body string) mailTemplate {
	name := string(key) + "-" + locale
	return mailTemplate{
		subject: template.Must(template.New(name + "-subject").Parse(subject)),
		body:    template.Must(template.New(name + "-body").Parse(body)),
	}
}

// render picks the locale's template set, falling back to English for
// unknown locales, and produces subject and body.
func render(locale string, key templateKey, data mailData) (Message, error) {
	set, ok := templates[strings.ToLower(locale)]
	if !ok {
		set = templates["en"]
	}
	tmpl, ok := set[key]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q", key)
	}

	var subject, body strings.Builder
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return Message{}, fmt.Errorf("render subject %q: %w", key, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("render body %q: %w", key, err)
	}
	return Message{Subject: subject.String(), Body: body.String()}, nil
}
