package gcal

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// recordedRequest is what the fake server saw for one request.
type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// fakeGData is an httptest server that records every request and answers
// from a per-path handler map.
type fakeGData struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
	handlers map[string]http.HandlerFunc
}

func newFakeGData(t *testing.T) *fakeGData {
	t.Helper()
	f := &fakeGData{handlers: make(map[string]http.HandlerFunc)}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		handler, ok := f.handlers[r.Method+" "+r.URL.Path]
		if !ok {
			handler, ok = f.handlers[r.URL.Path]
		}
		f.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

// handle registers h for pattern, which is either "METHOD /path" or "/path".
func (f *fakeGData) handle(pattern string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[pattern] = h
}

func (f *fakeGData) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func (f *fakeGData) base() string {
	return f.URL + "/calendar"
}

// newTestService returns a service pointed at f and holding an AuthSub
// token.
func newTestService(f *fakeGData, opts ...Option) *Service {
	opts = append([]Option{
		WithBaseURL(f.base()),
		WithAuthURL(f.URL + "/accounts/ClientLogin"),
	}, opts...)
	svc := NewService(opts...)
	svc.AuthenticateWithToken("test-token", "user@example.com")
	return svc
}

// editableCalendar returns a saved, editable calendar with the given id.
func editableCalendar(svc *Service, id string) *Calendar {
	cal := newCalendar(svc)
	cal.id = id
	cal.exists = true
	cal.editable = true
	cal.eventFeed = svc.endpoints.EventFeed(id)
	cal.editFeed = svc.endpoints.OwnCalendarsFeed() + "/" + id
	return cal
}

func respondXML(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/atom+xml")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func calendarEntryXML(base, id, title string) string {
	return fmt.Sprintf(`<entry xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005' xmlns:gCal='http://schemas.google.com/gCal/2005' gd:etag='W/"cal-etag"'>
  <id>%[1]s/feeds/default/calendars/%[2]s</id>
  <published>2024-01-01T00:00:00.000Z</published>
  <title type='text'>%[3]s</title>
  <summary type='text'>Summary of %[3]s</summary>
  <link rel='alternate' type='application/atom+xml' href='%[1]s/feeds/%[2]s/private/full'/>
  <link rel='edit' type='application/atom+xml' href='%[1]s/feeds/default/owncalendars/full/%[2]s'/>
  <gCal:timezone value='Europe/Berlin'/>
  <gCal:hidden value='false'/>
  <gCal:color value='#0D7813'/>
  <gCal:selected value='true'/>
  <gCal:accesslevel value='owner'/>
</entry>`, base, id, title)
}

func calendarFeedXML(entries ...string) string {
	feed := `<?xml version='1.0' encoding='UTF-8'?>
<feed xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005' xmlns:gCal='http://schemas.google.com/gCal/2005'>
  <title type='text'>Calendars</title>`
	for _, e := range entries {
		feed += "\n" + e
	}
	return feed + "\n</feed>"
}

func aclFeedXML(defaultRole string) string {
	return fmt.Sprintf(`<?xml version='1.0' encoding='UTF-8'?>
<feed xmlns='http://www.w3.org/2005/Atom' xmlns:gAcl='http://schemas.google.com/acl/2007'>
  <entry>
    <id>owner-rule</id>
    <gAcl:scope type='user' value='user@example.com'/>
    <gAcl:role value='http://schemas.google.com/gCal/2005#owner'/>
  </entry>
  <entry>
    <id>default-rule</id>
    <gAcl:scope type='default'/>
    <gAcl:role value='%s'/>
  </entry>
</feed>`, defaultRole)
}

func eventEntryXML(base, id, etag, title string) string {
	return fmt.Sprintf(`<entry xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005' xmlns:gCal='http://schemas.google.com/gCal/2005' xmlns:app='http://www.w3.org/2007/app' gd:etag='%[3]s'>
  <id>%[1]s/feeds/default/events/%[2]s</id>
  <published>2024-03-01T09:00:00.000Z</published>
  <updated>2024-03-02T09:00:00.000Z</updated>
  <app:edited>2024-03-02T09:00:00.000Z</app:edited>
  <category scheme='http://schemas.google.com/g/2005#kind' term='http://schemas.google.com/g/2005#event'/>
  <title type='text'>%[4]s</title>
  <content type='text'>Quarterly planning</content>
  <link rel='alternate' type='text/html' href='http://www.google.com/calendar/event?eid=%[2]s'/>
  <link rel='edit' type='application/atom+xml' href='%[1]s/feeds/default/private/full/%[2]s'/>
  <author><name>User</name><email>user@example.com</email></author>
  <gd:eventStatus value='http://schemas.google.com/g/2005#event.tentative'/>
  <gd:transparency value='http://schemas.google.com/g/2005#event.transparent'/>
  <gd:where valueString='Room 4'/>
  <gd:who email='user@example.com' rel='http://schemas.google.com/g/2005#event.organizer' valueString='User'/>
  <gd:who email='alice@example.com' rel='http://schemas.google.com/g/2005#event.attendee' valueString='Alice'/>
  <gd:who email='bob@example.com' rel='http://schemas.google.com/g/2005#event.attendee'/>
  <gd:when startTime='2024-03-05T10:00:00.000+01:00' endTime='2024-03-05T11:30:00.000+01:00'>
    <gd:reminder minutes='15' method='alert'/>
  </gd:when>
  <gCal:sequence value='0'/>
</entry>`, base, id, etag, title)
}

func eventFeedXML(entries ...string) string {
	feed := `<?xml version='1.0' encoding='UTF-8'?>
<feed xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005'>`
	for _, e := range entries {
		feed += "\n" + e
	}
	return feed + "\n</feed>"
}
