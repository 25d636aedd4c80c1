package gcal

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"time"
)

// LogLevel is the minimum severity a writer logger prints.
type LogLevel int

const (
	LogLevelNone LogLevel = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

var levelLabels = map[LogLevel]string{
	LogLevelError: "ERROR",
	LogLevelWarn:  "WARN",
	LogLevelInfo:  "INFO",
	LogLevelDebug: "DEBUG",
}

// Logger receives printf-style messages from the service and its transport.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}

// writerLogger prints lines such as
// "2024/03/05 10:00:00 gcal: WARN no ACL feed for work" to an io.Writer.
type writerLogger struct {
	out *log.Logger
	min LogLevel
}

// NewWriterLogger returns a Logger printing messages at or above level to
// w. LogLevelNone prints nothing.
func NewWriterLogger(w io.Writer, level LogLevel) Logger {
	return &writerLogger{
		out: log.New(w, "gcal: ", log.LstdFlags|log.Lmsgprefix),
		min: level,
	}
}

func (l *writerLogger) Debug(msg string, args ...interface{}) { l.logf(LogLevelDebug, msg, args) }
func (l *writerLogger) Info(msg string, args ...interface{})  { l.logf(LogLevelInfo, msg, args) }
func (l *writerLogger) Warn(msg string, args ...interface{})  { l.logf(LogLevelWarn, msg, args) }
func (l *writerLogger) Error(msg string, args ...interface{}) { l.logf(LogLevelError, msg, args) }

func (l *writerLogger) logf(level LogLevel, msg string, args []interface{}) {
	if level > l.min {
		return
	}
	l.out.Printf("%s %s", levelLabels[level], fmt.Sprintf(msg, args...))
}

// slogLogger routes library logging into a structured slog handler.
type slogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger adapts l to the Logger interface. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{logger: l.With("component", "gcal")}
}

func (s *slogLogger) Debug(msg string, args ...interface{}) {
	s.logger.Debug(fmt.Sprintf(msg, args...))
}

func (s *slogLogger) Info(msg string, args ...interface{}) {
	s.logger.Info(fmt.Sprintf(msg, args...))
}

func (s *slogLogger) Warn(msg string, args ...interface{}) {
	s.logger.Warn(fmt.Sprintf(msg, args...))
}

func (s *slogLogger) Error(msg string, args ...interface{}) {
	s.logger.Log(context.Background(), slog.LevelError, fmt.Sprintf(msg, args...))
}

// Option configures a Service and the Transport it owns.
type Option func(*Service)

// WithLogger routes service and transport messages to logger. A nil logger
// discards them.
func WithLogger(logger Logger) Option {
	return func(s *Service) {
		if logger == nil {
			logger = noopLogger{}
		}
		s.logger = logger
		s.transport.logger = logger
	}
}

// WithDebugLogging logs at debug level to w and dumps every raw HTTP
// request and response.
func WithDebugLogging(w io.Writer) Option {
	return func(s *Service) {
		s.logger = NewWriterLogger(w, LogLevelDebug)
		s.transport.logger = s.logger
		s.transport.debugHTTP = true
	}
}

// WithHTTPDump dumps every raw HTTP request and response at debug level
// through the configured logger.
func WithHTTPDump() Option {
	return func(s *Service) {
		s.transport.debugHTTP = true
	}
}

// WithHTTPClient replaces the underlying client. Its redirect policy is
// overridden so that redirects are followed by the Transport.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		s.transport.httpClient = client
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.transport.config.Timeout = timeout
	}
}

func WithProxy(proxy *ProxyInfo) Option {
	return func(s *Service) {
		s.transport.config.Proxy = proxy
	}
}

// WithTLSVerification enables certificate verification for https endpoints.
func WithTLSVerification() Option {
	return func(s *Service) {
		s.transport.config.VerifyTLS = true
	}
}

func WithMaxRedirects(n int) Option {
	return func(s *Service) {
		s.transport.maxRedirects = n
	}
}

// WithBaseURL points every calendar feed at base instead of
// http://www.google.com/calendar.
func WithBaseURL(base string) Option {
	return func(s *Service) {
		authURL := s.endpoints.AuthURL
		s.endpoints = NewEndpoints(base)
		s.endpoints.AuthURL = authURL
	}
}

func WithAuthURL(authURL string) Option {
	return func(s *Service) {
		s.endpoints.AuthURL = authURL
	}
}

// WithCheckPublic controls whether loading a calendar also reads its ACL
// feed to determine the public and editable flags. Enabled by default.
func WithCheckPublic(check bool) Option {
	return func(s *Service) {
		s.checkPublic = check
	}
}

// WithSource sets the application name reported during authentication.
func WithSource(source string) Option {
	return func(s *Service) {
		s.source = source
	}
}

// logRequest records an outgoing request, in full when dumps are enabled.
func (t *Transport) logRequest(req *http.Request) {
	if !t.debugHTTP {
		t.logger.Debug("-> %s %s", req.Method, req.URL)
		return
	}
	dump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		t.logger.Error("Cannot dump %s %s: %v", req.Method, req.URL, err)
		return
	}
	t.logger.Debug("-> request dump\n%s", dump)
}

func (t *Transport) logResponse(resp *http.Response) {
	if !t.debugHTTP {
		t.logger.Debug("<- %s", resp.Status)
		return
	}
	dump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		t.logger.Error("Cannot dump response %s: %v", resp.Status, err)
		return
	}
	t.logger.Debug("<- response dump\n%s", dump)
}
