package gcal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const (
	userAgent           = "go-gcal/1.0"
	gdataVersion        = "2.1"
	atomContentType     = "application/atom+xml"
	defaultMaxRedirects = 5
)

// AuthScheme selects the shape of the Authorization header.
type AuthScheme int

const (
	AuthSchemeNone AuthScheme = iota
	// AuthSchemeClientLogin is a token obtained by exchanging an account
	// password at the ClientLogin endpoint.
	AuthSchemeClientLogin
	// AuthSchemeAuthSub is a token issued to the caller by a third party.
	AuthSchemeAuthSub
)

func (s AuthScheme) String() string {
	switch s {
	case AuthSchemeClientLogin:
		return "ClientLogin"
	case AuthSchemeAuthSub:
		return "AuthSub"
	default:
		return "none"
	}
}

// AuthSession is the credential state of one Service.
type AuthSession struct {
	Token   string
	Account string
	Scheme  AuthScheme
}

func (a *AuthSession) authorization() string {
	switch a.Scheme {
	case AuthSchemeClientLogin:
		return "GoogleLogin auth=" + a.Token
	case AuthSchemeAuthSub:
		return "AuthSub token=" + a.Token
	default:
		return ""
	}
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport issues requests on behalf of a Service. It injects the
// session's credentials, follows redirects up to a fixed number of hops and
// turns every other non-2xx status into an *HTTPError.
type Transport struct {
	httpClient   *http.Client
	config       *HTTPClientConfig
	session      *AuthSession
	logger       Logger
	debugHTTP    bool
	maxRedirects int
}

func newTransport(session *AuthSession) *Transport {
	return &Transport{
		config:       DefaultHTTPClientConfig(),
		session:      session,
		logger:       noopLogger{},
		maxRedirects: defaultMaxRedirects,
	}
}

// init builds the HTTP client once all options have been applied.
func (t *Transport) init() {
	if t.httpClient == nil {
		t.httpClient = NewHTTPClient(t.config)
		if !t.config.VerifyTLS {
			t.logger.Warn("TLS certificate verification is disabled; use WithTLSVerification to enable it")
		}
		return
	}
	client := *t.httpClient
	client.CheckRedirect = noRedirect
	t.httpClient = &client
}

// GetHTTPClient returns the underlying HTTP client.
func (t *Transport) GetHTTPClient() *http.Client {
	return t.httpClient
}

// Send issues method against rawURL. The caller's header is never modified;
// credentials are merged into a copy.
func (t *Transport) Send(ctx context.Context, method, rawURL string, body []byte, header http.Header) (*Response, error) {
	header = t.authHeader(header)
	location := rawURL

	for hops := 0; ; hops++ {
		resp, err := t.do(ctx, method, location, body, header)
		if err != nil {
			return nil, err
		}

		if next := resp.Header.Get("Location"); isRedirect(resp.StatusCode) && next != "" {
			if hops >= t.maxRedirects {
				return nil, fmt.Errorf("%w: %s %s after %d hops", ErrTooManyRedirects, method, rawURL, hops)
			}
			resolved, err := resolveLocation(location, next)
			if err != nil {
				return nil, fmt.Errorf("%s %s: bad redirect location %q: %w", method, location, next, err)
			}
			t.logger.Debug("Redirect received from %s, resending %s to %s", location, method, resolved)
			location = resolved
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			t.logger.Info("%s %s completed with status %d", method, location, resp.StatusCode)
			return resp, nil
		}

		t.logger.Warn("%s %s: invalid response received: %d", method, location, resp.StatusCode)
		return nil, newHTTPError(method, location, resp.StatusCode, resp.Body)
	}
}

func (t *Transport) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	return t.Send(ctx, http.MethodGet, rawURL, nil, header)
}

func (t *Transport) Post(ctx context.Context, rawURL string, body []byte, header http.Header) (*Response, error) {
	return t.Send(ctx, http.MethodPost, rawURL, body, header)
}

func (t *Transport) Put(ctx context.Context, rawURL string, body []byte, header http.Header) (*Response, error) {
	return t.Send(ctx, http.MethodPut, rawURL, body, header)
}

func (t *Transport) Delete(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	return t.Send(ctx, http.MethodDelete, rawURL, nil, header)
}

func (t *Transport) authHeader(header http.Header) http.Header {
	merged := header.Clone()
	if merged == nil {
		merged = make(http.Header)
	}
	if t.session != nil && t.session.Token != "" {
		if auth := t.session.authorization(); auth != "" {
			merged.Set("Authorization", auth)
			merged.Set("GData-Version", gdataVersion)
		}
	}
	return merged
}

func (t *Transport) do(ctx context.Context, method, rawURL string, body []byte, header http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		t.logger.Error("Failed to create %s request: %v", method, err)
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)

	t.logRequest(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Error("%s request failed: %v", method, err)
		return nil, fmt.Errorf("sending %s %s: %w", method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	t.logResponse(resp)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, rawURL, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

func resolveLocation(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	next, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(next).String(), nil
}

func atomHeader() http.Header {
	h := make(http.Header)
	h.Set("Content-Type", atomContentType)
	return h
}
