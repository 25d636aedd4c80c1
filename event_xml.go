package gcal

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const eventDateFormat = time.DateOnly

// ToXML renders the event as an Atom entry. A recurring event carries its
// rule in gd:recurrence and any reminder in an otherwise empty gd:when.
func (e *Event) ToXML() string {
	var sb strings.Builder
	sb.WriteString(`<entry xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005'>`)
	fmt.Fprintf(&sb, `<category scheme='%s' term='%s'></category>`, kindScheme, eventKind)

	sb.WriteString(`<title type='text'>`)
	sb.WriteString(escapeXML(e.Title))
	sb.WriteString(`</title>`)

	sb.WriteString(`<content type='text'>`)
	sb.WriteString(escapeXML(e.Content))
	sb.WriteString(`</content>`)

	fmt.Fprintf(&sb, `<gd:transparency value='%s'></gd:transparency>`, e.Transparency.Value())
	fmt.Fprintf(&sb, `<gd:eventStatus value='%s'></gd:eventStatus>`, e.Status.Value())
	fmt.Fprintf(&sb, `<gd:where valueString='%s'></gd:where>`, escapeXML(e.Where))

	for _, a := range e.Attendees {
		fmt.Fprintf(&sb, `<gd:who rel='%s' email='%s'`, attendeeRel, escapeXML(a.Email))
		if a.Name != "" {
			fmt.Fprintf(&sb, ` valueString='%s'`, escapeXML(a.Name))
		}
		sb.WriteString(`></gd:who>`)
	}

	if recurrence := e.recurrenceText(); recurrence != "" {
		sb.WriteString(`<gd:recurrence>`)
		sb.WriteString(escapeXML(recurrence))
		sb.WriteString(`</gd:recurrence>`)
		if e.Reminder != nil {
			sb.WriteString(`<gd:when>`)
			sb.WriteString(e.Reminder.xml())
			sb.WriteString(`</gd:when>`)
		}
	} else {
		fmt.Fprintf(&sb, `<gd:when startTime='%s' endTime='%s'>`, e.formatTime(e.Start), e.formatTime(e.End))
		if e.Reminder != nil {
			sb.WriteString(e.Reminder.xml())
		}
		sb.WriteString(`</gd:when>`)
	}

	sb.WriteString(`</entry>`)
	return sb.String()
}

func (e *Event) recurrenceText() string {
	if e.Recurrence != nil {
		return e.Recurrence.String()
	}
	return e.rawRecurrence
}

func (e *Event) formatTime(t time.Time) string {
	if e.AllDay {
		return t.Format(eventDateFormat)
	}
	return t.Format(time.RFC3339)
}

func (r *Reminder) xml() string {
	method := r.Method
	if method == "" {
		method = defaultReminderMethod
	}

	var unit string
	var value int
	switch {
	case r.Minutes > 0:
		unit, value = "minutes", r.Minutes
	case r.Hours > 0:
		unit, value = "hours", r.Hours
	case r.Days > 0:
		unit, value = "days", r.Days
	case r.atStart:
		unit = "minutes"
	default:
		return fmt.Sprintf(`<gd:reminder method='%s'/>`, escapeXML(method))
	}
	return fmt.Sprintf(`<gd:reminder %s='%d' method='%s'/>`, unit, value, escapeXML(method))
}

var eventElements = map[string]elementHandler[*Event]{
	// The edit feed is reset along with the id; the edit link, which
	// follows the id in server entries, sets it again.
	"id": func(e *Event, el *xmlNode) {
		e.id = strings.TrimSpace(el.Text)
		e.editFeed = ""
	},
	"title":   func(e *Event, el *xmlNode) { e.Title = el.Text },
	"content": func(e *Event, el *xmlNode) { e.Content = el.Text },
	"when": func(e *Event, el *xmlNode) {
		if start := el.attr("startTime"); start != "" {
			e.Start, e.AllDay = parseEventTime(start)
		}
		if end := el.attr("endTime"); end != "" {
			e.End, _ = parseEventTime(end)
		}
		if rem := el.child("reminder"); rem != nil {
			e.Reminder = parseReminder(rem)
		}
	},
	"reminder":   func(e *Event, el *xmlNode) { e.Reminder = parseReminder(el) },
	"recurrence": func(e *Event, el *xmlNode) { e.rawRecurrence = el.Text },
	"where":      func(e *Event, el *xmlNode) { e.Where = el.attr("valueString") },
	"link": func(e *Event, el *xmlNode) {
		if el.attr("rel") == "edit" {
			e.editFeed = el.attr("href")
		}
	},
	"who": func(e *Event, el *xmlNode) {
		if el.attr("rel") == attendeeRel {
			e.Attendees = append(e.Attendees, Attendee{
				Email: el.attr("email"),
				Name:  el.attr("valueString"),
			})
		}
	},
	"eventStatus": func(e *Event, el *xmlNode) {
		if s, ok := ParseEventStatus(el.attr("value")); ok {
			e.Status = s
		}
	},
	"transparency": func(e *Event, el *xmlNode) {
		if t, ok := ParseTransparency(el.attr("value")); ok {
			e.Transparency = t
		}
	},
	"published": func(e *Event, el *xmlNode) { e.published, _ = parseEventTime(el.Text) },
	"updated":   func(e *Event, el *xmlNode) { e.updated, _ = parseEventTime(el.Text) },
	"edited":    func(e *Event, el *xmlNode) { e.edited, _ = parseEventTime(el.Text) },
}

// load replaces the event's fields with those of a server entry. Recurrence
// text that does not decode, such as an RDATE-only series, is kept verbatim
// and written back by ToXML.
func (e *Event) load(entry *xmlNode) {
	e.Recurrence = nil
	e.Reminder = nil
	e.Attendees = nil
	e.rawRecurrence = ""

	e.etag = entry.attr("etag")
	dispatchElements(e, entry, eventElements)

	if e.rawRecurrence != "" {
		if r, err := ParseRecurrence(e.rawRecurrence); err != nil {
			e.calendar.service.logger.Warn("Keeping recurrence of event %s undecoded: %v", e.id, err)
		} else {
			e.Recurrence = r
			e.AllDay = r.AllDay
			e.rawRecurrence = ""
		}
	}

	e.exists = true
	e.deleted = false
}

// parseEventTime reads a date-only or RFC 3339 timestamp. The second result
// reports a date-only value.
func parseEventTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if len(value) == len(eventDateFormat) {
		t, err := time.Parse(eventDateFormat, value)
		if err == nil {
			return t, true
		}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, false
}

func parseReminder(el *xmlNode) *Reminder {
	atoi := func(name string) int {
		n, _ := strconv.Atoi(el.attr(name))
		return n
	}
	r := &Reminder{
		Minutes: atoi("minutes"),
		Hours:   atoi("hours"),
		Days:    atoi("days"),
		Method:  el.attr("method"),
	}
	r.atStart = r.Minutes == 0 && r.Hours == 0 && r.Days == 0 &&
		(el.hasAttr("minutes") || el.hasAttr("hours") || el.hasAttr("days"))
	return r
}
