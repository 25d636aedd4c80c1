package gcal

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type SortOrder string

const (
	SortAscending  SortOrder = "ascending"
	SortDescending SortOrder = "descending"
)

// TimeRange limits a search to events starting in [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Query holds the optional filters of an event search. The zero value
// returns every match in server order.
type Query struct {
	Scope        Scope
	Range        *TimeRange
	MaxResults   int
	SortOrder    SortOrder
	SingleEvents bool
	Timezone     string
}

// Values folds the filters and free text into URL query parameters.
func (q Query) Values(text string) (url.Values, error) {
	v := url.Values{}
	if text != "" {
		v.Set("q", text)
	}

	if q.Range != nil {
		if q.Range.Start.IsZero() || q.Range.End.IsZero() {
			return nil, fmt.Errorf("%w: range needs both start and end", ErrQueryParameter)
		}
		if q.Range.End.Before(q.Range.Start) {
			return nil, fmt.Errorf("%w: range ends before it starts", ErrQueryParameter)
		}
		v.Set("start-min", q.Range.Start.Format(time.RFC3339))
		v.Set("start-max", q.Range.End.Format(time.RFC3339))
	}

	if q.MaxResults < 0 {
		return nil, fmt.Errorf("%w: max results %d", ErrQueryParameter, q.MaxResults)
	}
	if q.MaxResults > 0 {
		v.Set("max-results", strconv.Itoa(q.MaxResults))
	}

	switch q.SortOrder {
	case "":
	case SortAscending, SortDescending:
		v.Set("sortorder", string(q.SortOrder))
	default:
		return nil, fmt.Errorf("%w: sort order %q", ErrQueryParameter, q.SortOrder)
	}

	if q.SingleEvents {
		v.Set("singleevents", "true")
	}

	if tz := strings.TrimSpace(q.Timezone); tz != "" {
		v.Set("ctz", strings.ReplaceAll(tz, " ", "_"))
	}

	if q.Scope != ScopeAll && q.Scope != ScopeFirst {
		return nil, fmt.Errorf("%w: scope %d", ErrQueryParameter, q.Scope)
	}

	return v, nil
}

// FindEvents searches calendar. An absolute URL in query is fetched as a
// single event; any other text is a full-text search combined with q.
func FindEvents(ctx context.Context, calendar *Calendar, query string, q Query) ([]*Event, error) {
	if calendar == nil || calendar.service == nil {
		return nil, ErrInvalidService
	}
	if !calendar.editable {
		return nil, fmt.Errorf("%w: %s", ErrCalendarNotEditable, calendar.id)
	}

	if isAbsoluteURL(query) {
		ev, err := findEventByURL(ctx, calendar, query)
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, nil
		}
		return []*Event{ev}, nil
	}

	values, err := q.Values(query)
	if err != nil {
		return nil, err
	}

	target := calendar.eventFeed
	if encoded := values.Encode(); encoded != "" {
		target += "?" + encoded
	}

	resp, err := calendar.transport().Get(ctx, target, nil)
	if err != nil {
		return nil, fmt.Errorf("searching events of %s: %w", calendar.id, err)
	}

	events, err := calendar.eventsFromFeed(resp.Body)
	if err != nil {
		return nil, err
	}
	if q.Scope == ScopeFirst && len(events) > 1 {
		events = events[:1]
	}
	return events, nil
}

// FindEvent returns the first match of FindEvents, or ErrNotFound.
func FindEvent(ctx context.Context, calendar *Calendar, query string, q Query) (*Event, error) {
	q.Scope = ScopeFirst
	events, err := FindEvents(ctx, calendar, query, q)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event %q: %w", query, ErrNotFound)
	}
	return events[0], nil
}

func findEventByURL(ctx context.Context, calendar *Calendar, rawURL string) (*Event, error) {
	resp, err := calendar.transport().Get(ctx, privateEventURL(rawURL), nil)
	if err != nil {
		if httpErr, ok := AsHTTPError(err); ok && httpErr.IsNotFound() {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching event %s: %w", rawURL, err)
	}

	entry, err := parseEntry(resp.Body)
	if err != nil {
		return nil, err
	}

	ev, err := NewEvent(calendar)
	if err != nil {
		return nil, err
	}
	ev.load(entry)
	return ev, nil
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
