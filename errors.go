package gcal

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrInvalidService       = errors.New("invalid service")
	ErrCalendarSaveFailed   = errors.New("calendar save failed")
	ErrEventSaveFailed      = errors.New("event save failed")
	ErrRecurrenceValue      = errors.New("invalid recurrence value")
	ErrCalendarNotEditable  = errors.New("calendar not editable")
	ErrQueryParameter       = errors.New("invalid query parameter")
	ErrTooManyRedirects     = errors.New("too many redirects")
	ErrNotSaved             = errors.New("entity does not exist on the server")
	ErrEventDeleted         = errors.New("event has been deleted")
	ErrNotFound             = errors.New("resource not found")
	ErrInvalidXML           = errors.New("invalid XML")

	ErrHTTPGetFailed    = errors.New("HTTP GET failed")
	ErrHTTPPostFailed   = errors.New("HTTP POST failed")
	ErrHTTPPutFailed    = errors.New("HTTP PUT failed")
	ErrHTTPDeleteFailed = errors.New("HTTP DELETE failed")
)

// HTTPError is returned for any response that is neither a success nor a
// redirect. Body holds the raw response body as received.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gcal %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Unwrap returns the verb-specific sentinel, so errors.Is(err, ErrHTTPPutFailed)
// matches a failed PUT.
func (e *HTTPError) Unwrap() error {
	return verbError(e.Method)
}

func (e *HTTPError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized ||
		e.StatusCode == http.StatusForbidden
}

func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsConflict reports whether the server rejected a conditional write
// because the supplied etag was stale.
func (e *HTTPError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict ||
		e.StatusCode == http.StatusPreconditionFailed
}

func verbError(method string) error {
	switch method {
	case http.MethodGet:
		return ErrHTTPGetFailed
	case http.MethodPost:
		return ErrHTTPPostFailed
	case http.MethodPut:
		return ErrHTTPPutFailed
	case http.MethodDelete:
		return ErrHTTPDeleteFailed
	default:
		return nil
	}
}

func newHTTPError(method, url string, statusCode int, body []byte) *HTTPError {
	return &HTTPError{
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
		Body:       string(body),
	}
}

// AsHTTPError extracts an *HTTPError from err, if there is one.
func AsHTTPError(err error) (*HTTPError, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
