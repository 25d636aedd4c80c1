package gcal

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultCalendarTimezone = "America/Los_Angeles"
	defaultCalendarColor    = "#2952A3"
)

// Calendar is one calendar of a Service account. Exported fields are
// written to the server by Save; the rest are assigned by the server.
type Calendar struct {
	Title    string
	Summary  string
	Timezone string
	Color    string
	Where    string
	Hidden   bool
	Selected bool

	service   *Service
	id        string
	eventFeed string
	editFeed  string
	exists    bool
	public    bool
	editable  bool
}

// NewCalendar returns an unsaved calendar owned by service.
func NewCalendar(service *Service) (*Calendar, error) {
	if service == nil {
		return nil, ErrInvalidService
	}
	return newCalendar(service), nil
}

func newCalendar(service *Service) *Calendar {
	return &Calendar{
		Timezone: defaultCalendarTimezone,
		Color:    defaultCalendarColor,
		service:  service,
	}
}

func (c *Calendar) ID() string { return c.id }
func (c *Calendar) EventFeed() string { return c.eventFeed }
func (c *Calendar) EditFeed() string { return c.editFeed }
func (c *Calendar) Exists() bool { return c.exists }
func (c *Calendar) Public() bool { return c.public }
func (c *Calendar) Editable() bool { return c.editable }
func (c *Calendar) Service() *Service { return c.service }
func (c *Calendar) transport() *Transport { return c.service.transport }

// ToXML renders the calendar as an Atom entry suitable for create and
// update requests.
func (c *Calendar) ToXML() string {
	var sb strings.Builder
	sb.WriteString(`<entry xmlns='http://www.w3.org/2005/Atom' xmlns:gd='http://schemas.google.com/g/2005' xmlns:gCal='http://schemas.google.com/gCal/2005'>`)

	sb.WriteString(`<title type='text'>`)
	sb.WriteString(escapeXML(c.Title))
	sb.WriteString(`</title>`)

	sb.WriteString(`<summary type='text'>`)
	sb.WriteString(escapeXML(c.Summary))
	sb.WriteString(`</summary>`)

	fmt.Fprintf(&sb, `<gCal:timezone value='%s'></gCal:timezone>`, escapeXML(c.Timezone))
	fmt.Fprintf(&sb, `<gCal:hidden value='%t'></gCal:hidden>`, c.Hidden)
	fmt.Fprintf(&sb, `<gCal:color value='%s'></gCal:color>`, escapeXML(c.Color))
	fmt.Fprintf(&sb, `<gd:where rel='' label='' valueString='%s'></gd:where>`, escapeXML(c.Where))

	sb.WriteString(`</entry>`)
	return sb.String()
}

var calendarElements = map[string]elementHandler[*Calendar]{
	"id": func(c *Calendar, el *xmlNode) {
		c.id = strings.TrimPrefix(strings.TrimSpace(el.Text), c.service.endpoints.CalendarIDPrefix())
	},
	"title":    func(c *Calendar, el *xmlNode) { c.Title = el.Text },
	"summary":  func(c *Calendar, el *xmlNode) { c.Summary = el.Text },
	"color":    func(c *Calendar, el *xmlNode) { c.Color = el.attr("value") },
	"hidden":   func(c *Calendar, el *xmlNode) { c.Hidden = parseBool(el.attr("value")) },
	"timezone": func(c *Calendar, el *xmlNode) { c.Timezone = el.attr("value") },
	"selected": func(c *Calendar, el *xmlNode) { c.Selected = parseBool(el.attr("value")) },
	"where":    func(c *Calendar, el *xmlNode) { c.Where = el.attr("valueString") },
	"link": func(c *Calendar, el *xmlNode) {
		if el.attr("rel") == "edit" {
			c.editFeed = el.attr("href")
		}
	},
}

// load fills the calendar from a server entry. When the service checks
// visibility, the ACL feed is read as well; a failure there leaves the
// calendar private and read-only but still loaded.
func (c *Calendar) load(ctx context.Context, entry *xmlNode) {
	c.exists = true
	dispatchElements(c, entry, calendarElements)
	c.eventFeed = c.service.endpoints.EventFeed(c.id)

	if !c.service.checkPublic {
		c.public = false
		c.editable = true
		return
	}

	c.service.logger.Debug("Getting ACL feed for %s", c.id)
	c.loadVisibility(ctx)
}

// Save creates the calendar if it does not exist yet, otherwise updates it.
func (c *Calendar) Save(ctx context.Context) error {
	body := []byte(c.ToXML())

	if c.exists {
		if c.editFeed == "" {
			return fmt.Errorf("%w: calendar %s has no edit link", ErrCalendarSaveFailed, c.id)
		}
		if _, err := c.transport().Put(ctx, c.editFeed, body, atomHeader()); err != nil {
			return fmt.Errorf("updating calendar %s: %w", c.id, err)
		}
		return nil
	}

	resp, err := c.transport().Post(ctx, c.service.endpoints.OwnCalendarsFeed(), body, atomHeader())
	if err != nil {
		return fmt.Errorf("creating calendar: %w", err)
	}

	entry, err := parseEntry(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCalendarSaveFailed, err)
	}
	c.load(ctx, entry)
	if !c.exists || c.id == "" {
		return fmt.Errorf("%w: server response carried no calendar id", ErrCalendarSaveFailed)
	}

	c.service.logger.Info("Created calendar %s", c.id)
	return nil
}

// Delete removes the calendar from the server and clears the local copy.
func (c *Calendar) Delete(ctx context.Context) error {
	if !c.exists {
		return ErrNotSaved
	}

	if _, err := c.transport().Delete(ctx, c.service.endpoints.OwnCalendarsFeed()+"/"+c.id, nil); err != nil {
		return fmt.Errorf("deleting calendar %s: %w", c.id, err)
	}

	c.exists = false
	c.Title = ""
	c.Summary = ""
	c.public = false
	c.editable = false
	c.id = ""
	c.Hidden = false
	c.Selected = false
	c.Timezone = ""
	c.Color = ""
	c.Where = ""
	c.editFeed = ""
	c.eventFeed = ""
	return nil
}

// Reload replaces local state with the server's copy of this calendar.
// Unsaved changes are lost.
func (c *Calendar) Reload(ctx context.Context) error {
	if !c.exists {
		return ErrNotSaved
	}

	calendars, err := c.service.Calendars(ctx)
	if err != nil {
		return err
	}
	for _, cal := range calendars {
		if cal.id == c.id {
			*c = *cal
			return nil
		}
	}
	return fmt.Errorf("calendar %s: %w", c.id, ErrNotFound)
}

// Events returns every event in the calendar's event feed.
func (c *Calendar) Events(ctx context.Context) ([]*Event, error) {
	resp, err := c.transport().Get(ctx, c.eventFeed, nil)
	if err != nil {
		return nil, fmt.Errorf("listing events of %s: %w", c.id, err)
	}
	return c.eventsFromFeed(resp.Body)
}

func (c *Calendar) eventsFromFeed(body []byte) ([]*Event, error) {
	entries, err := parseFeed(body)
	if err != nil {
		return nil, err
	}

	events := make([]*Event, 0, len(entries))
	for i := range entries {
		ev, err := NewEvent(c)
		if err != nil {
			return nil, err
		}
		ev.load(&entries[i])
		events = append(events, ev)
	}
	return events, nil
}
