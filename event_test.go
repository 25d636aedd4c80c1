package gcal

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewEvent(t *testing.T) {
	if _, err := NewEvent(nil); !errors.Is(err, ErrInvalidService) {
		t.Errorf("expected ErrInvalidService for nil calendar, got %v", err)
	}
	if _, err := NewEvent(&Calendar{}); !errors.Is(err, ErrInvalidService) {
		t.Errorf("expected ErrInvalidService for calendar without service, got %v", err)
	}

	fake := newFakeGData(t)
	svc := newTestService(fake)

	readOnly := newCalendar(svc)
	readOnly.id = "shared"
	if _, err := NewEvent(readOnly); !errors.Is(err, ErrCalendarNotEditable) {
		t.Errorf("expected ErrCalendarNotEditable, got %v", err)
	}
	if len(fake.recorded()) != 0 {
		t.Error("expected no network request")
	}

	ev, err := NewEvent(editableCalendar(svc, "work"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.End.Sub(ev.Start) != time.Hour {
		t.Errorf("expected one hour default duration, got %s", ev.End.Sub(ev.Start))
	}
	if ev.Start.Second() != 0 || ev.Start.Nanosecond() != 0 {
		t.Errorf("expected start truncated to the minute, got %s", ev.Start)
	}
	if ev.Status != StatusConfirmed || ev.Transparency != TransparencyBusy {
		t.Errorf("unexpected defaults: %s %s", ev.Status, ev.Transparency)
	}
	if ev.Exists() || ev.Deleted() || ev.ID() != "" {
		t.Error("expected a new event to have no server state")
	}
}

func TestEventStatusValues(t *testing.T) {
	tests := []struct {
		value  string
		want   EventStatus
		wantOK bool
	}{
		{"http://schemas.google.com/g/2005#event.confirmed", StatusConfirmed, true},
		{"http://schemas.google.com/g/2005#event.tentative", StatusTentative, true},
		{"http://schemas.google.com/g/2005#event.canceled", StatusCanceled, true},
		{"http://schemas.google.com/g/2005#event.cancelled", StatusConfirmed, false},
		{"tentative", StatusConfirmed, false},
		{"", StatusConfirmed, false},
	}
	for _, tt := range tests {
		got, ok := ParseEventStatus(tt.value)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseEventStatus(%q) = %s, %v; want %s, %v", tt.value, got, ok, tt.want, tt.wantOK)
		}
		if ok && got.Value() != tt.value {
			t.Errorf("Value() of %s = %q, want %q", got, got.Value(), tt.value)
		}
	}
}

func TestTransparencyValues(t *testing.T) {
	tests := []struct {
		value  string
		want   Transparency
		wantOK bool
	}{
		{"http://schemas.google.com/g/2005#event.opaque", TransparencyBusy, true},
		{"http://schemas.google.com/g/2005#event.transparent", TransparencyFree, true},
		{"transparent", TransparencyBusy, false},
	}
	for _, tt := range tests {
		got, ok := ParseTransparency(tt.value)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseTransparency(%q) = %s, %v; want %s, %v", tt.value, got, ok, tt.want, tt.wantOK)
		}
	}
}

func testEvent(t *testing.T) *Event {
	t.Helper()
	cal := editableCalendar(NewService(), "work")
	ev, err := NewEvent(cal)
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	ev.Start = time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	ev.End = ev.Start.Add(time.Hour)
	return ev
}

func TestEventToXML(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Event)
		want    []string
		notWant []string
	}{
		{
			name: "timed",
			mutate: func(e *Event) {
				e.Title = "Standup"
				e.Content = "Daily sync"
				e.Where = "Room 1"
			},
			want: []string{
				`<category scheme='http://schemas.google.com/g/2005#kind' term='http://schemas.google.com/g/2005#event'></category>`,
				`<title type='text'>Standup</title>`,
				`<content type='text'>Daily sync</content>`,
				`<gd:transparency value='http://schemas.google.com/g/2005#event.opaque'></gd:transparency>`,
				`<gd:eventStatus value='http://schemas.google.com/g/2005#event.confirmed'></gd:eventStatus>`,
				`<gd:where valueString='Room 1'></gd:where>`,
				`<gd:when startTime='2024-03-05T10:00:00Z' endTime='2024-03-05T11:00:00Z'></gd:when>`,
			},
			notWant: []string{"gd:recurrence", "gd:reminder"},
		},
		{
			name: "all day with reminder",
			mutate: func(e *Event) {
				e.AllDay = true
				e.End = e.Start.AddDate(0, 0, 1)
				e.Reminder = &Reminder{Hours: 2}
			},
			want: []string{
				`<gd:when startTime='2024-03-05' endTime='2024-03-06'><gd:reminder hours='2' method='email'/></gd:when>`,
			},
		},
		{
			name: "minutes take precedence",
			mutate: func(e *Event) {
				e.Reminder = &Reminder{Minutes: 10, Hours: 2, Days: 1, Method: "alert"}
			},
			want:    []string{`<gd:reminder minutes='10' method='alert'/>`},
			notWant: []string{"hours=", "days="},
		},
		{
			name: "recurring",
			mutate: func(e *Event) {
				r, err := NewRecurrence(e.Start, e.End, Weekly, "TU")
				if err != nil {
					t.Fatalf("NewRecurrence: %v", err)
				}
				e.Recurrence = r
				e.Reminder = &Reminder{Minutes: 30, Method: "alert"}
			},
			want: []string{
				"<gd:recurrence>DTSTART;VALUE=DATE-TIME:20240305T100000Z\nDTEND;VALUE=DATE-TIME:20240305T110000Z\nRRULE:FREQ=WEEKLY;BYDAY=TU;\n</gd:recurrence>",
				`<gd:when><gd:reminder minutes='30' method='alert'/></gd:when>`,
			},
			notWant: []string{"startTime"},
		},
		{
			name: "recurring without reminder",
			mutate: func(e *Event) {
				r, _ := NewRecurrence(e.Start, time.Time{}, Daily)
				e.Recurrence = r
			},
			want:    []string{"RRULE:FREQ=DAILY;\n"},
			notWant: []string{"gd:when", "DTEND"},
		},
		{
			name: "attendees and status",
			mutate: func(e *Event) {
				e.AddAttendee("alice@example.com", "Alice")
				e.AddAttendee("bob@example.com", "")
				e.Status = StatusCanceled
				e.Transparency = TransparencyFree
			},
			want: []string{
				`<gd:who rel='http://schemas.google.com/g/2005#event.attendee' email='alice@example.com' valueString='Alice'></gd:who>`,
				`<gd:who rel='http://schemas.google.com/g/2005#event.attendee' email='bob@example.com'></gd:who>`,
				`value='http://schemas.google.com/g/2005#event.canceled'`,
				`value='http://schemas.google.com/g/2005#event.transparent'`,
			},
		},
		{
			name:   "escaped text",
			mutate: func(e *Event) { e.Title = `R&D <review> "final"` },
			want:   []string{`<title type='text'>R&amp;D &lt;review&gt; &#34;final&#34;</title>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := testEvent(t)
			tt.mutate(ev)
			xml := ev.ToXML()
			for _, want := range tt.want {
				if !strings.Contains(xml, want) {
					t.Errorf("expected XML to contain %q\n%s", want, xml)
				}
			}
			for _, not := range tt.notWant {
				if strings.Contains(xml, not) {
					t.Errorf("expected XML not to contain %q\n%s", not, xml)
				}
			}
		})
	}
}

func TestEventXMLRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Event)
	}{
		{name: "plain", mutate: func(e *Event) { e.Title = "Lunch" }},
		{
			name: "full",
			mutate: func(e *Event) {
				e.Title = "Review & plan"
				e.Content = "Bring <notes>"
				e.Where = "O'Brien's office"
				e.Status = StatusTentative
				e.Transparency = TransparencyFree
				e.Reminder = &Reminder{Days: 1, Method: "sms"}
				e.AddAttendee("alice@example.com", "Alice")
			},
		},
		{
			name: "all day",
			mutate: func(e *Event) {
				e.AllDay = true
				e.Start = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
				e.End = e.Start.AddDate(0, 0, 2)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testEvent(t)
			tt.mutate(src)

			entry, err := parseEntry([]byte(src.ToXML()))
			if err != nil {
				t.Fatalf("ToXML produced unparsable XML: %v", err)
			}
			got, _ := NewEvent(src.Calendar())
			got.load(entry)

			if got.Title != src.Title || got.Content != src.Content || got.Where != src.Where {
				t.Errorf("text mismatch: got %q/%q/%q", got.Title, got.Content, got.Where)
			}
			if !got.Start.Equal(src.Start) || !got.End.Equal(src.End) || got.AllDay != src.AllDay {
				t.Errorf("time mismatch: got %s-%s allDay=%v, want %s-%s allDay=%v",
					got.Start, got.End, got.AllDay, src.Start, src.End, src.AllDay)
			}
			if got.Status != src.Status || got.Transparency != src.Transparency {
				t.Errorf("state mismatch: got %s/%s", got.Status, got.Transparency)
			}
			if len(got.Attendees) != len(src.Attendees) {
				t.Fatalf("expected %d attendees, got %d", len(src.Attendees), len(got.Attendees))
			}
			for i := range src.Attendees {
				if got.Attendees[i] != src.Attendees[i] {
					t.Errorf("attendee %d: got %+v want %+v", i, got.Attendees[i], src.Attendees[i])
				}
			}
			if (got.Reminder == nil) != (src.Reminder == nil) {
				t.Fatalf("reminder presence mismatch")
			}
			if src.Reminder != nil && *got.Reminder != *src.Reminder {
				t.Errorf("reminder: got %+v want %+v", *got.Reminder, *src.Reminder)
			}
		})
	}
}

func TestEventLoad(t *testing.T) {
	base := "http://example.test/calendar"
	entry, err := parseEntry([]byte(eventEntryXML(base, "e1", `"etag-1"`, "Planning")))
	if err != nil {
		t.Fatalf("parseEntry: %v", err)
	}

	ev := testEvent(t)
	ev.load(entry)

	if ev.ID() != base+"/feeds/default/events/e1" {
		t.Errorf("unexpected id %s", ev.ID())
	}
	if ev.EditFeed() != base+"/feeds/default/private/full/e1" {
		t.Errorf("unexpected edit feed %s", ev.EditFeed())
	}
	if ev.ETag() != `"etag-1"` {
		t.Errorf("unexpected etag %s", ev.ETag())
	}
	if ev.Title != "Planning" || ev.Content != "Quarterly planning" || ev.Where != "Room 4" {
		t.Errorf("unexpected text fields: %q %q %q", ev.Title, ev.Content, ev.Where)
	}
	if ev.Status != StatusTentative || ev.Transparency != TransparencyFree {
		t.Errorf("unexpected status %s transparency %s", ev.Status, ev.Transparency)
	}
	if want := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC); !ev.Start.Equal(want) || ev.AllDay {
		t.Errorf("unexpected start %s allDay=%v", ev.Start, ev.AllDay)
	}
	if want := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC); !ev.End.Equal(want) {
		t.Errorf("unexpected end %s", ev.End)
	}
	if ev.Reminder == nil || ev.Reminder.Minutes != 15 || ev.Reminder.Method != "alert" {
		t.Errorf("unexpected reminder %+v", ev.Reminder)
	}
	if len(ev.Attendees) != 2 {
		t.Fatalf("expected organizer to be skipped, got %+v", ev.Attendees)
	}
	if ev.Attendees[0] != (Attendee{Email: "alice@example.com", Name: "Alice"}) ||
		ev.Attendees[1] != (Attendee{Email: "bob@example.com"}) {
		t.Errorf("unexpected attendees %+v", ev.Attendees)
	}
	if want := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC); !ev.Updated().Equal(want) || !ev.Edited().Equal(want) {
		t.Errorf("unexpected updated/edited %s %s", ev.Updated(), ev.Edited())
	}
	if !ev.Exists() || ev.Recurrence != nil {
		t.Error("expected an existing non-recurring event")
	}
}

func TestEventLoadEdgeCases(t *testing.T) {
	t.Run("link before id is cleared", func(t *testing.T) {
		entry, _ := parseEntry([]byte(`<entry xmlns='http://www.w3.org/2005/Atom'>
			<link rel='edit' href='http://example.test/edit'/>
			<id>http://example.test/events/x</id>
		</entry>`))
		ev := testEvent(t)
		ev.load(entry)
		if ev.EditFeed() != "" {
			t.Errorf("expected edit feed to be reset by a later id, got %s", ev.EditFeed())
		}
	})

	t.Run("all day window", func(t *testing.T) {
		entry, _ := parseEntry([]byte(`<entry xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005'>
			<gd:when startTime='2024-03-05' endTime='2024-03-06'/>
		</entry>`))
		ev := testEvent(t)
		ev.load(entry)
		if !ev.AllDay || ev.Start.Format(time.DateOnly) != "2024-03-05" || ev.End.Format(time.DateOnly) != "2024-03-06" {
			t.Errorf("unexpected all-day window %s-%s allDay=%v", ev.Start, ev.End, ev.AllDay)
		}
	})

	t.Run("recurrence", func(t *testing.T) {
		entry, _ := parseEntry([]byte(`<entry xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005'>
			<gd:recurrence>DTSTART;VALUE=DATE:20240305
DTEND;VALUE=DATE:20240306
RRULE:FREQ=WEEKLY;BYDAY=TU;UNTIL=20240430
</gd:recurrence>
			<gd:when><gd:reminder minutes='5' method='alert'/></gd:when>
		</entry>`))
		ev := testEvent(t)
		ev.load(entry)
		r := ev.Recurrence
		if r == nil {
			t.Fatal("expected a recurrence")
		}
		if r.Frequency != Weekly || len(r.ByValues) != 1 || r.ByValues[0] != "TU" || !r.AllDay || !ev.AllDay {
			t.Errorf("unexpected recurrence %+v", r)
		}
		if ev.Reminder == nil || ev.Reminder.Minutes != 5 {
			t.Errorf("expected reminder from the empty when, got %+v", ev.Reminder)
		}
	})

	t.Run("undecodable recurrence is kept verbatim", func(t *testing.T) {
		raw := "DTSTART;VALUE=DATE:20240305\nRDATE;VALUE=DATE:20240312,20240319\n"
		entry, _ := parseEntry([]byte(`<entry xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005'>
			<id>http://example.test/events/r1</id>
			<gd:recurrence>` + raw + `</gd:recurrence>
			<gd:when><gd:reminder minutes='10' method='alert'/></gd:when>
		</entry>`))
		logger := &mockLogger{}
		ev, _ := NewEvent(editableCalendar(NewService(WithLogger(logger)), "work"))
		ev.load(entry)

		if ev.Recurrence != nil {
			t.Errorf("expected no decoded recurrence, got %+v", ev.Recurrence)
		}
		if ev.RawRecurrence() != raw {
			t.Errorf("RawRecurrence() = %q, want %q", ev.RawRecurrence(), raw)
		}
		if !ev.Exists() || ev.Reminder == nil || ev.Reminder.Minutes != 10 {
			t.Errorf("expected the rest of the entry to load, got exists=%v reminder=%+v", ev.Exists(), ev.Reminder)
		}
		if !containsCall(logger.warnCalls, "http://example.test/events/r1") {
			t.Errorf("expected a warning naming the event, got %v", logger.warnCalls)
		}

		out := ev.ToXML()
		for _, want := range []string{
			"<gd:recurrence>" + raw + "</gd:recurrence>",
			"<gd:when><gd:reminder minutes='10' method='alert'/></gd:when>",
		} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in\n%s", want, out)
			}
		}
		if strings.Contains(out, "startTime=") {
			t.Errorf("expected no time window alongside the recurrence\n%s", out)
		}
		if dup := ev.Copy(); dup.RawRecurrence() != raw {
			t.Errorf("expected Copy to keep the recurrence text, got %q", dup.RawRecurrence())
		}
	})

	t.Run("reload clears old lists", func(t *testing.T) {
		ev := testEvent(t)
		ev.AddAttendee("old@example.com", "")
		ev.Reminder = &Reminder{Minutes: 1}
		entry, _ := parseEntry([]byte(`<entry xmlns='http://www.w3.org/2005/Atom'><id>x</id></entry>`))
		ev.load(entry)
		if len(ev.Attendees) != 0 || ev.Reminder != nil {
			t.Errorf("expected attendees and reminder to be cleared, got %+v %+v", ev.Attendees, ev.Reminder)
		}
	})
}

func TestReminderAtStart(t *testing.T) {
	entry, _ := parseEntry([]byte(`<entry xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005'>
		<gd:when startTime='2024-03-05T09:00:00Z' endTime='2024-03-05T10:00:00Z'><gd:reminder minutes='0' method='alert'/></gd:when>
	</entry>`))
	ev := testEvent(t)
	ev.load(entry)

	if ev.Reminder == nil || *ev.Reminder != *ReminderAtStart("alert") {
		t.Fatalf("expected a reminder at the start time, got %+v", ev.Reminder)
	}
	if out := ev.ToXML(); !strings.Contains(out, "<gd:reminder minutes='0' method='alert'/>") {
		t.Errorf("expected the zero offset to be written back\n%s", out)
	}

	tests := []struct {
		name     string
		reminder *Reminder
		want     string
	}{
		{name: "at start", reminder: ReminderAtStart(""), want: "<gd:reminder minutes='0' method='email'/>"},
		{name: "no offset", reminder: &Reminder{Method: "sms"}, want: "<gd:reminder method='sms'/>"},
		{name: "minutes win", reminder: &Reminder{Minutes: 5, Hours: 1}, want: "<gd:reminder minutes='5' method='email'/>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.reminder.xml(); got != tt.want {
				t.Errorf("xml() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventSaveCreate(t *testing.T) {
	fake := newFakeGData(t)
	base := fake.base()
	fake.handle("POST /calendar/feeds/work/private/full",
		respondXML(http.StatusCreated, eventEntryXML(base, "e1", `"etag-1"`, "Planning")))

	ev, _ := NewEvent(editableCalendar(newTestService(fake), "work"))
	ev.Title = "Planning"

	if err := ev.Save(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ev.Exists() || ev.ID() != base+"/feeds/default/events/e1" || ev.ETag() != `"etag-1"` {
		t.Errorf("expected server state to be loaded, got id=%s etag=%s", ev.ID(), ev.ETag())
	}

	reqs := fake.recorded()
	if len(reqs) != 1 {
		t.Fatalf("expected 1 request, got %d", len(reqs))
	}
	if reqs[0].Header.Get("If-Match") != "" {
		t.Error("expected no If-Match on create")
	}
	if !strings.Contains(reqs[0].Body, "<title type='text'>Planning</title>") {
		t.Errorf("unexpected body %s", reqs[0].Body)
	}
}

func TestEventSaveCreateWithoutID(t *testing.T) {
	fake := newFakeGData(t)
	fake.handle("POST /calendar/feeds/work/private/full",
		respondXML(http.StatusCreated, `<entry xmlns='http://www.w3.org/2005/Atom'><title>x</title></entry>`))

	ev, _ := NewEvent(editableCalendar(newTestService(fake), "work"))
	if err := ev.Save(context.Background()); !errors.Is(err, ErrEventSaveFailed) {
		t.Errorf("expected ErrEventSaveFailed, got %v", err)
	}
}

func TestEventSaveInvalidRecurrence(t *testing.T) {
	fake := newFakeGData(t)
	ev, _ := NewEvent(editableCalendar(newTestService(fake), "work"))
	ev.Recurrence = &Recurrence{Start: ev.Start, Frequency: Weekly, ByValues: []string{"XX"}}

	if err := ev.Save(context.Background()); !errors.Is(err, ErrRecurrenceValue) {
		t.Errorf("expected ErrRecurrenceValue, got %v", err)
	}
	if len(fake.recorded()) != 0 {
		t.Error("expected no network request")
	}
}

// savedEvent returns an event loaded from the fake server's entry e1.
func savedEvent(t *testing.T, fake *fakeGData, svc *Service) *Event {
	t.Helper()
	entry, err := parseEntry([]byte(eventEntryXML(fake.base(), "e1", `"etag-1"`, "Planning")))
	if err != nil {
		t.Fatalf("parseEntry: %v", err)
	}
	ev, _ := NewEvent(editableCalendar(svc, "work"))
	ev.load(entry)
	return ev
}

func TestEventSaveUpdate(t *testing.T) {
	fake := newFakeGData(t)
	base := fake.base()
	fake.handle("PUT /calendar/feeds/default/private/full/e1", respondXML(http.StatusOK, ""))
	fake.handle("GET /calendar/feeds/default/private/full/e1",
		respondXML(http.StatusOK, eventEntryXML(base, "e1", `"etag-2"`, "Server title")))

	ev := savedEvent(t, fake, newTestService(fake))
	ev.Title = "Local title"

	if err := ev.Save(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reqs := fake.recorded()
	if len(reqs) != 2 || reqs[0].Method != http.MethodPut || reqs[1].Method != http.MethodGet {
		t.Fatalf("expected PUT then GET, got %+v", reqs)
	}
	if reqs[0].Header.Get("If-Match") != `"etag-1"` {
		t.Errorf("expected If-Match with the loaded etag, got %q", reqs[0].Header.Get("If-Match"))
	}
	if !strings.Contains(reqs[0].Body, "Local title") {
		t.Errorf("expected local changes in PUT body, got %s", reqs[0].Body)
	}
	if ev.Title != "Server title" || ev.ETag() != `"etag-2"` {
		t.Errorf("expected reloaded server state, got %q %s", ev.Title, ev.ETag())
	}
}

func TestEventSaveConflict(t *testing.T) {
	fake := newFakeGData(t)
	fake.handle("PUT /calendar/feeds/default/private/full/e1",
		respondXML(http.StatusPreconditionFailed, `Mismatch: etags = ["etag-9"], version = [1]`))

	ev := savedEvent(t, fake, newTestService(fake))
	err := ev.Save(context.Background())

	if !errors.Is(err, ErrHTTPPutFailed) {
		t.Fatalf("expected ErrHTTPPutFailed, got %v", err)
	}
	httpErr, ok := AsHTTPError(err)
	if !ok || !httpErr.IsConflict() {
		t.Errorf("expected a conflict HTTPError, got %v", err)
	}
	if len(fake.recorded()) != 1 {
		t.Errorf("expected the stale write not to be retried, got %d requests", len(fake.recorded()))
	}
	if ev.ETag() != `"etag-1"` {
		t.Errorf("expected etag to be unchanged, got %s", ev.ETag())
	}
}

func TestEventDelete(t *testing.T) {
	fake := newFakeGData(t)
	fake.handle("DELETE /calendar/feeds/default/private/full/e1", respondXML(http.StatusOK, ""))

	ev := savedEvent(t, fake, newTestService(fake))
	cal := ev.Calendar()

	if err := ev.Delete(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := fake.recorded()[0].Header.Get("If-Match"); got != `"etag-1"` {
		t.Errorf("expected If-Match on delete, got %q", got)
	}
	if !ev.Deleted() || ev.Exists() || ev.ID() != "" || ev.Title != "" || ev.ETag() != "" {
		t.Errorf("expected tombstone, got %+v", ev)
	}
	if ev.Calendar() != cal {
		t.Error("expected tombstone to keep its calendar")
	}

	if err := ev.Save(context.Background()); !errors.Is(err, ErrEventDeleted) {
		t.Errorf("expected ErrEventDeleted on save, got %v", err)
	}
	if err := ev.Delete(context.Background()); !errors.Is(err, ErrEventDeleted) {
		t.Errorf("expected ErrEventDeleted on second delete, got %v", err)
	}
	if len(fake.recorded()) != 1 {
		t.Errorf("expected no further requests, got %d", len(fake.recorded()))
	}
}

func TestEventNotSaved(t *testing.T) {
	fake := newFakeGData(t)
	ev, _ := NewEvent(editableCalendar(newTestService(fake), "work"))

	if err := ev.Delete(context.Background()); !errors.Is(err, ErrNotSaved) {
		t.Errorf("expected ErrNotSaved on delete, got %v", err)
	}
	if err := ev.Reload(context.Background()); !errors.Is(err, ErrNotSaved) {
		t.Errorf("expected ErrNotSaved on reload, got %v", err)
	}
	if len(fake.recorded()) != 0 {
		t.Error("expected no network request")
	}
}

func TestEventCopy(t *testing.T) {
	fake := newFakeGData(t)
	ev := savedEvent(t, fake, newTestService(fake))
	r, _ := NewRecurrence(ev.Start, ev.End, Weekly, "MO", "WE")
	ev.Recurrence = r

	dup := ev.Copy()
	if dup.Exists() || dup.ID() != "" || dup.ETag() != "" {
		t.Error("expected copy to be unsaved")
	}
	if dup.Title != ev.Title || dup.Calendar() != ev.Calendar() || len(dup.Attendees) != 2 {
		t.Errorf("expected copied fields, got %+v", dup)
	}

	dup.Recurrence.ByValues[0] = "FR"
	dup.Reminder.Minutes = 99
	dup.Attendees[0].Name = "changed"
	if ev.Recurrence.ByValues[0] != "MO" || ev.Reminder.Minutes != 15 || ev.Attendees[0].Name != "Alice" {
		t.Error("expected copy not to share state with the original")
	}
}

func TestPrivateEventURL(t *testing.T) {
	tests := map[string]string{
		"http://www.google.com/calendar/feeds/default/events/abc":   "http://www.google.com/calendar/feeds/default/private/full/abc",
		"http://www.google.com/calendar/feeds/default/private/full": "http://www.google.com/calendar/feeds/default/private/full",
	}
	for in, want := range tests {
		if got := privateEventURL(in); got != want {
			t.Errorf("privateEventURL(%q) = %q, want %q", in, got, want)
		}
	}
}
