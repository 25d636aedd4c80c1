package gcal

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EventStatus is the confirmation state of an event.
type EventStatus int

const (
	StatusConfirmed EventStatus = iota
	StatusTentative
	StatusCanceled
)

var eventStatusValues = map[EventStatus]string{
	StatusConfirmed: "http://schemas.google.com/g/2005#event.confirmed",
	StatusTentative: "http://schemas.google.com/g/2005#event.tentative",
	StatusCanceled:  "http://schemas.google.com/g/2005#event.canceled",
}

func (s EventStatus) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusTentative:
		return "tentative"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("EventStatus(%d)", int(s))
	}
}

// Value returns the wire value of the status.
func (s EventStatus) Value() string {
	return eventStatusValues[s]
}

// ParseEventStatus maps a wire value back to an EventStatus. Only the exact
// values produced by Value are accepted.
func ParseEventStatus(value string) (EventStatus, bool) {
	for s, v := range eventStatusValues {
		if v == value {
			return s, true
		}
	}
	return StatusConfirmed, false
}

// Transparency tells whether an event blocks time on the calendar.
type Transparency int

const (
	TransparencyBusy Transparency = iota
	TransparencyFree
)

var transparencyValues = map[Transparency]string{
	TransparencyBusy: "http://schemas.google.com/g/2005#event.opaque",
	TransparencyFree: "http://schemas.google.com/g/2005#event.transparent",
}

func (t Transparency) String() string {
	switch t {
	case TransparencyBusy:
		return "busy"
	case TransparencyFree:
		return "free"
	default:
		return fmt.Sprintf("Transparency(%d)", int(t))
	}
}

func (t Transparency) Value() string {
	return transparencyValues[t]
}

func ParseTransparency(value string) (Transparency, bool) {
	for t, v := range transparencyValues {
		if v == value {
			return t, true
		}
	}
	return TransparencyBusy, false
}

const (
	attendeeRel = "http://schemas.google.com/g/2005#event.attendee"
	eventKind   = "http://schemas.google.com/g/2005#event"

	defaultReminderMethod = "email"
)

// Reminder fires before an event starts. Only the largest-resolution
// non-zero field is sent, checked in the order minutes, hours, days.
type Reminder struct {
	Minutes int
	Hours   int
	Days    int
	Method  string

	// atStart marks a reminder at the start time itself, which the zero
	// offsets alone cannot tell apart from one with no offset at all.
	atStart bool
}

// ReminderAtStart returns a reminder that fires when the event starts.
func ReminderAtStart(method string) *Reminder {
	return &Reminder{Method: method, atStart: true}
}

type Attendee struct {
	Email string
	Name  string
}

// Event is one entry in a calendar's event feed. It has either a time
// window (Start, End) or a Recurrence; when Recurrence is set the window is
// not sent.
type Event struct {
	Title        string
	Content      string
	Where        string
	Start        time.Time
	End          time.Time
	AllDay       bool
	Recurrence   *Recurrence
	Transparency Transparency
	Status       EventStatus
	Reminder     *Reminder
	Attendees    []Attendee

	calendar      *Calendar
	id            string
	etag          string
	editFeed      string
	exists        bool
	deleted       bool
	published     time.Time
	updated       time.Time
	edited        time.Time
	rawRecurrence string
}

// NewEvent returns an unsaved event in calendar, starting now and lasting
// one hour. The calendar must be editable.
func NewEvent(calendar *Calendar) (*Event, error) {
	if calendar == nil || calendar.service == nil {
		return nil, ErrInvalidService
	}
	if !calendar.editable {
		return nil, fmt.Errorf("%w: %s", ErrCalendarNotEditable, calendar.id)
	}

	start := time.Now().Truncate(time.Minute)
	return &Event{
		Start:        start,
		End:          start.Add(time.Hour),
		Status:       StatusConfirmed,
		Transparency: TransparencyBusy,
		calendar:     calendar,
	}, nil
}

func (e *Event) ID() string { return e.id }
func (e *Event) ETag() string { return e.etag }
func (e *Event) EditFeed() string { return e.editFeed }
func (e *Event) Exists() bool { return e.exists }
func (e *Event) Deleted() bool { return e.deleted }
func (e *Event) Calendar() *Calendar { return e.calendar }
func (e *Event) Published() time.Time { return e.published }
func (e *Event) Updated() time.Time { return e.updated }
func (e *Event) Edited() time.Time { return e.edited }

// RawRecurrence returns recurrence text the server sent that could not be
// decoded into Recurrence, or "" when there is none.
func (e *Event) RawRecurrence() string { return e.rawRecurrence }
func (e *Event) transport() *Transport { return e.calendar.service.transport }

// AddAttendee appends an attendee; name may be empty.
func (e *Event) AddAttendee(email, name string) {
	e.Attendees = append(e.Attendees, Attendee{Email: email, Name: name})
}

// Save creates the event or, if it exists, updates it conditionally on
// its etag and then reloads it. A stale etag fails with the server's
// *HTTPError; the request is not retried.
func (e *Event) Save(ctx context.Context) error {
	if e.deleted {
		return ErrEventDeleted
	}
	if e.Recurrence != nil {
		if err := e.Recurrence.Validate(); err != nil {
			return err
		}
	}

	body := []byte(e.ToXML())

	if e.exists {
		if e.editFeed == "" {
			return fmt.Errorf("%w: event %s has no edit link", ErrEventSaveFailed, e.id)
		}
		header := atomHeader()
		if e.etag != "" {
			header.Set("If-Match", e.etag)
		}
		if _, err := e.transport().Put(ctx, e.editFeed, body, header); err != nil {
			return fmt.Errorf("updating event %s: %w", e.id, err)
		}
		return e.Reload(ctx)
	}

	resp, err := e.transport().Post(ctx, e.calendar.eventFeed, body, atomHeader())
	if err != nil {
		return fmt.Errorf("creating event: %w", err)
	}

	entry, err := parseEntry(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEventSaveFailed, err)
	}
	e.load(entry)
	if e.id == "" {
		return fmt.Errorf("%w: server response carried no event id", ErrEventSaveFailed)
	}

	e.calendar.service.logger.Info("Created event %s", e.id)
	return nil
}

// Reload fetches the event by id and replaces every field with the
// server's values.
func (e *Event) Reload(ctx context.Context) error {
	if !e.exists {
		return ErrNotSaved
	}

	resp, err := e.transport().Get(ctx, privateEventURL(e.id), nil)
	if err != nil {
		return fmt.Errorf("reloading event %s: %w", e.id, err)
	}

	entry, err := parseEntry(resp.Body)
	if err != nil {
		return err
	}
	e.load(entry)
	return nil
}

// Delete removes the event, conditionally on its etag.
func (e *Event) Delete(ctx context.Context) error {
	if e.deleted {
		return ErrEventDeleted
	}
	if !e.exists {
		return ErrNotSaved
	}

	target := e.editFeed
	if target == "" {
		target = privateEventURL(e.id)
	}

	header := make(http.Header)
	if e.etag != "" {
		header.Set("If-Match", e.etag)
	}
	if _, err := e.transport().Delete(ctx, target, header); err != nil {
		return fmt.Errorf("deleting event %s: %w", e.id, err)
	}

	*e = Event{calendar: e.calendar, deleted: true}
	return nil
}

// Copy returns an unsaved duplicate of the event in the same calendar.
func (e *Event) Copy() *Event {
	dup := &Event{
		Title:        e.Title,
		Content:      e.Content,
		Where:        e.Where,
		Start:        e.Start,
		End:          e.End,
		AllDay:       e.AllDay,
		Transparency: e.Transparency,
		Status:       e.Status,
		Attendees:    append([]Attendee(nil), e.Attendees...),
		calendar:     e.calendar,
	}
	if e.Recurrence != nil {
		r := *e.Recurrence
		r.ByValues = append([]string(nil), e.Recurrence.ByValues...)
		r.extra = append([]string(nil), e.Recurrence.extra...)
		dup.Recurrence = &r
	}
	dup.rawRecurrence = e.rawRecurrence
	if e.Reminder != nil {
		rem := *e.Reminder
		dup.Reminder = &rem
	}
	return dup
}

// privateEventURL turns an event id or display URL into its private feed
// address.
func privateEventURL(id string) string {
	return strings.Replace(id, "/events/", "/private/full/", 1)
}
