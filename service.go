// Package gcal is a client for the Google Calendar Data API (GData v2).
// Calendars, events and recurrence rules are mapped to and from Atom entries
// carrying the gd, gCal and gAcl extension namespaces.
package gcal

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultAuthURL = "https://www.google.com/accounts/ClientLogin"
	DefaultBaseURL = "http://www.google.com/calendar"

	defaultSource = "go-gcal"
)

// Endpoints holds every URL the client talks to. All calendar feeds derive
// from Base.
type Endpoints struct {
	AuthURL string
	Base    string
}

func NewEndpoints(base string) Endpoints {
	return Endpoints{
		AuthURL: DefaultAuthURL,
		Base:    strings.TrimSuffix(base, "/"),
	}
}

func (e Endpoints) CalendarListFeed() string {
	return e.Base + "/feeds/default/allcalendars/full"
}

func (e Endpoints) OwnCalendarsFeed() string {
	return e.Base + "/feeds/default/owncalendars/full"
}

// CalendarIDPrefix is stripped from entry ids to obtain the bare calendar id.
func (e Endpoints) CalendarIDPrefix() string {
	return e.Base + "/feeds/default/calendars/"
}

func (e Endpoints) EventFeed(calendarID string) string {
	return e.Base + "/feeds/" + calendarID + "/private/full"
}

func (e Endpoints) ACLFeed(calendarID string) string {
	return e.Base + "/feeds/" + calendarID + "/acl/full/"
}

func (e Endpoints) DefaultACLRule(calendarID string) string {
	return e.Base + "/feeds/" + calendarID + "/acl/full/default"
}

// Scope selects whether a lookup returns every match or only the first.
type Scope int

const (
	ScopeAll Scope = iota
	ScopeFirst
)

// Service represents one account on the calendar service. It owns the
// authentication state and the Transport used by every Calendar and Event
// created from it.
type Service struct {
	transport   *Transport
	session     AuthSession
	endpoints   Endpoints
	checkPublic bool
	source      string
	logger      Logger
}

func NewService(opts ...Option) *Service {
	s := &Service{
		endpoints:   NewEndpoints(DefaultBaseURL),
		checkPublic: true,
		source:      defaultSource,
		logger:      noopLogger{},
	}
	s.transport = newTransport(&s.session)

	for _, opt := range opts {
		opt(s)
	}
	s.transport.init()

	return s
}

// Authenticate exchanges an account name and password for a ClientLogin
// token.
func (s *Service) Authenticate(ctx context.Context, account, secret string) error {
	form := url.Values{
		"Email":       {account},
		"Passwd":      {secret},
		"source":      {s.source},
		"service":     {"cl"},
		"accountType": {"HOSTED_OR_GOOGLE"},
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.transport.Post(ctx, s.endpoints.AuthURL, []byte(form.Encode()), header)
	if err != nil {
		s.logger.Error("Authentication request for %s failed: %v", account, err)
		return fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrAuthenticationFailed, resp.StatusCode)
	}

	token, ok := parseAuthToken(resp.Body)
	if !ok {
		return fmt.Errorf("%w: no Auth field in response", ErrAuthenticationFailed)
	}

	s.session = AuthSession{
		Token:   token,
		Account: account,
		Scheme:  AuthSchemeClientLogin,
	}
	s.logger.Info("Authenticated %s via ClientLogin", account)
	return nil
}

// AuthenticateWithToken installs a token issued elsewhere (AuthSub). No
// request is made.
func (s *Service) AuthenticateWithToken(token, account string) {
	s.session = AuthSession{
		Token:   token,
		Account: account,
		Scheme:  AuthSchemeAuthSub,
	}
}

// parseAuthToken finds the Auth= field in a ClientLogin response body,
// which is a list of key=value lines (SID, LSID, Auth).
func parseAuthToken(body []byte) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if value, found := strings.CutPrefix(line, "Auth="); found && value != "" {
			return value, true
		}
	}
	return "", false
}

func (s *Service) Authenticated() bool {
	return s.session.Token != ""
}

func (s *Service) Session() AuthSession {
	return s.session
}

func (s *Service) Account() string {
	return s.session.Account
}

func (s *Service) Transport() *Transport {
	return s.transport
}

func (s *Service) Endpoints() Endpoints {
	return s.endpoints
}

func (s *Service) CheckPublic() bool {
	return s.checkPublic
}

func (s *Service) SetCheckPublic(check bool) {
	s.checkPublic = check
}

// Calendars returns every calendar visible to the authenticated account, in
// feed order.
func (s *Service) Calendars(ctx context.Context) ([]*Calendar, error) {
	if !s.Authenticated() {
		return nil, ErrNotAuthenticated
	}

	resp, err := s.transport.Get(ctx, s.endpoints.CalendarListFeed()+"?max-results=10000", nil)
	if err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}

	entries, err := parseFeed(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("listing calendars: %w", err)
	}

	calendars := make([]*Calendar, 0, len(entries))
	for i := range entries {
		cal := newCalendar(s)
		cal.load(ctx, &entries[i])
		calendars = append(calendars, cal)
	}

	s.logger.Debug("Found %d calendars", len(calendars))
	return calendars, nil
}

// FindCalendars matches term against calendar ids, titles and summaries.
// An exact id match is returned on its own; otherwise titles and summaries
// are matched case-insensitively.
func (s *Service) FindCalendars(ctx context.Context, term string, scope Scope) ([]*Calendar, error) {
	calendars, err := s.Calendars(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(term)
	var matches []*Calendar
	for _, cal := range calendars {
		if cal.id != "" && cal.id == term {
			return []*Calendar{cal}, nil
		}
		if strings.Contains(strings.ToLower(cal.Title), needle) ||
			strings.Contains(strings.ToLower(cal.Summary), needle) {
			if scope == ScopeFirst {
				return []*Calendar{cal}, nil
			}
			matches = append(matches, cal)
		}
	}
	return matches, nil
}
