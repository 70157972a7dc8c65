package notifier

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
)

// Invite describes the calendar entry attached to booking mails.
type Invite struct {
	UID            string
	Title          string
	Description    string
	Location       string
	URL            string
	Start          time.Time
	End            time.Time
	OrganizerEmail string
	OrganizerName  string
	AttendeeEmail  string
	AttendeeName   string
	// Tentative marks the event as not yet confirmed (pending host decision).
	Tentative bool
}

// BuildICS renders the invite as an iCalendar stream. method is REQUEST for
// invitations and updates, CANCEL for cancellations. The same UID across
// REQUEST and CANCEL lets mail clients replace and remove the entry.
func BuildICS(method string, inv Invite) ([]byte, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//bookline//EN")
	cal.Props.SetText(ical.PropMethod, method)

	ev := ical.NewComponent(ical.CompEvent)
	ev.Props.SetText(ical.PropUID, inv.UID)
	ev.Props.SetText(ical.PropSummary, inv.Title)
	ev.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, inv.Start.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeEnd, inv.End.UTC())
	if inv.Description != "" {
		ev.Props.SetText(ical.PropDescription, inv.Description)
	}
	if inv.Location != "" {
		ev.Props.SetText(ical.PropLocation, inv.Location)
	}
	if inv.URL != "" {
		ev.Props.SetText(ical.PropURL, inv.URL)
	}

	switch {
	case method == "CANCEL":
		ev.Props.SetText(ical.PropStatus, "CANCELLED")
	case inv.Tentative:
		ev.Props.SetText(ical.PropStatus, "TENTATIVE")
	default:
		ev.Props.SetText(ical.PropStatus, "CONFIRMED")
	}

	if inv.OrganizerEmail != "" {
		p := ical.NewProp(ical.PropOrganizer)
		if inv.OrganizerName != "" {
			p.Params.Set(ical.ParamCommonName, inv.OrganizerName)
		}
		p.SetText("mailto:" + inv.OrganizerEmail)
		ev.Props.Add(p)
	}
	if inv.AttendeeEmail != "" {
		p := ical.NewProp(ical.PropAttendee)
		if inv.AttendeeName != "" {
			p.Params.Set(ical.ParamCommonName, inv.AttendeeName)
		}
		p.Params.Set(ical.ParamParticipationStatus, "NEEDS-ACTION")
		p.SetText("mailto:" + inv.AttendeeEmail)
		ev.Props.Add(p)
	}

	cal.Children = append(cal.Children, ev)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode ics: %w", err)
	}
	return buf.Bytes(), nil
}
