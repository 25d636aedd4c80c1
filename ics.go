package gcal

import (
	"fmt"
	"path"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const icsProductID = "-//go-gcal//Calendar Export//EN"

var icsStatuses = map[EventStatus]ics.ObjectStatus{
	StatusConfirmed: ics.ObjectStatusConfirmed,
	StatusTentative: ics.ObjectStatusTentative,
	StatusCanceled:  ics.ObjectStatusCancelled,
}

// ICS renders the event as a single-event iCalendar document.
func (e *Event) ICS() string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)

	vevent := cal.AddEvent(e.uid())
	vevent.SetDtStampTime(time.Now().UTC())
	if !e.published.IsZero() {
		vevent.SetCreatedTime(e.published)
	}
	if !e.updated.IsZero() {
		vevent.SetModifiedAt(e.updated)
	}

	start, end, allDay := e.Start, e.End, e.AllDay
	if e.Recurrence != nil {
		start, end, allDay = e.Recurrence.Start, e.Recurrence.End, e.Recurrence.AllDay
		vevent.AddRrule(strings.TrimSuffix(e.Recurrence.ruleValue(), ";"))
	}
	if allDay {
		vevent.SetAllDayStartAt(start)
		if !end.IsZero() {
			vevent.SetAllDayEndAt(end)
		}
	} else {
		vevent.SetStartAt(start)
		if !end.IsZero() {
			vevent.SetEndAt(end)
		}
	}

	vevent.SetSummary(e.Title)
	if e.Content != "" {
		vevent.SetDescription(e.Content)
	}
	if e.Where != "" {
		vevent.SetLocation(e.Where)
	}
	vevent.SetStatus(icsStatuses[e.Status])
	if e.Transparency == TransparencyFree {
		vevent.SetProperty(ics.ComponentPropertyTransp, "TRANSPARENT")
	} else {
		vevent.SetProperty(ics.ComponentPropertyTransp, "OPAQUE")
	}

	for _, a := range e.Attendees {
		if a.Name != "" {
			vevent.AddAttendee(a.Email, ics.WithCN(a.Name))
		} else {
			vevent.AddAttendee(a.Email)
		}
	}

	if e.Reminder != nil {
		if trigger := e.Reminder.trigger(); trigger != "" {
			alarm := vevent.AddAlarm()
			if strings.EqualFold(e.Reminder.Method, "email") || e.Reminder.Method == "" {
				alarm.SetAction(ics.ActionEmail)
			} else {
				alarm.SetAction(ics.ActionDisplay)
			}
			alarm.SetTrigger(trigger)
		}
	}

	return cal.Serialize()
}

// uid derives a stable iCalendar UID from the event id, which is a URL
// ending in the server's event identifier.
func (e *Event) uid() string {
	if e.id == "" {
		return fmt.Sprintf("%d@go-gcal", time.Now().UnixNano())
	}
	return path.Base(e.id)
}

// trigger returns the reminder as a negative iCalendar duration, using the
// same precedence as the Atom form.
func (r *Reminder) trigger() string {
	switch {
	case r.Minutes > 0:
		return fmt.Sprintf("-PT%dM", r.Minutes)
	case r.Hours > 0:
		return fmt.Sprintf("-PT%dH", r.Hours)
	case r.Days > 0:
		return fmt.Sprintf("-P%dD", r.Days)
	case r.atStart:
		return "PT0M"
	default:
		return ""
	}
}
