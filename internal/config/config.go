package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	gcal "github.com/mgornick/go-gcal"
)

// Config is the configuration of the gcal command.
type Config struct {
	Account AccountConfig `yaml:"account"`
	Service ServiceConfig `yaml:"service"`
	Watch   WatchConfig   `yaml:"watch"`
	Logging LoggingConfig `yaml:"logging"`
}

// AccountConfig selects how the command authenticates. Either Token
// (an AuthSub token) or Email with a password is required.
type AccountConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	// PasswordEnv names an environment variable holding the password. It is
	// read when Password is empty.
	PasswordEnv string `yaml:"password_env"`
	Token       string `yaml:"token"`
}

type ServiceConfig struct {
	BaseURL      string        `yaml:"base_url"`
	AuthURL      string        `yaml:"auth_url"`
	Source       string        `yaml:"source"`
	CheckPublic  *bool         `yaml:"check_public,omitempty"`
	VerifyTLS    bool          `yaml:"verify_tls"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRedirects int           `yaml:"max_redirects"`
	Proxy        *ProxyConfig  `yaml:"proxy,omitempty"`
}

type ProxyConfig struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WatchConfig drives the watch command.
type WatchConfig struct {
	// Schedule is a five-field cron expression, e.g. "*/15 * * * *".
	Schedule    string `yaml:"schedule"`
	Timezone    string `yaml:"timezone"`
	HorizonDays int    `yaml:"horizon_days"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// HTTPDump logs every raw request and response at debug level.
	HTTPDump bool `yaml:"http_dump"`
}

const (
	defaultSchedule     = "*/15 * * * *"
	defaultTimezone     = "UTC"
	defaultHorizonDays  = 7
	defaultLogLevel     = "info"
	defaultLogFormat    = "text"
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 5
)

// Default returns a configuration with every optional field set.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalize()
	return cfg
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = gcal.DefaultBaseURL
	}
	if c.Service.AuthURL == "" {
		c.Service.AuthURL = gcal.DefaultAuthURL
	}
	if c.Service.Source == "" {
		c.Service.Source = "go-gcal-cli"
	}
	if c.Service.CheckPublic == nil {
		check := true
		c.Service.CheckPublic = &check
	}
	if c.Service.Timeout <= 0 {
		c.Service.Timeout = defaultTimeout
	}
	if c.Service.MaxRedirects <= 0 {
		c.Service.MaxRedirects = defaultMaxRedirects
	}

	if c.Watch.Schedule == "" {
		c.Watch.Schedule = defaultSchedule
	}
	if c.Watch.Timezone == "" {
		c.Watch.Timezone = defaultTimezone
	}
	if c.Watch.HorizonDays <= 0 {
		c.Watch.HorizonDays = defaultHorizonDays
	}

	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}

	if c.Account.Password == "" && c.Account.PasswordEnv != "" {
		c.Account.Password = os.Getenv(c.Account.PasswordEnv)
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.Normalize()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Account.Token == "" {
		if c.Account.Email == "" {
			return errors.New("account email or token is required")
		}
		if c.Account.Password == "" {
			return errors.New("account password is required when no token is set")
		}
	}

	if p := c.Service.Proxy; p != nil {
		if p.Address == "" {
			return errors.New("proxy address is required")
		}
		if p.Port < 0 || p.Port > 65535 {
			return fmt.Errorf("proxy port %d out of range", p.Port)
		}
	}

	if _, err := time.LoadLocation(c.Watch.Timezone); err != nil {
		return fmt.Errorf("watch timezone: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}

	return nil
}

// Location returns the watch timezone. It falls back to UTC for a config
// that was not validated.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Watch.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ServiceOptions translates the service section into options for
// gcal.NewService.
func (c *Config) ServiceOptions(logger gcal.Logger) []gcal.Option {
	opts := []gcal.Option{
		gcal.WithBaseURL(c.Service.BaseURL),
		gcal.WithAuthURL(c.Service.AuthURL),
		gcal.WithSource(c.Service.Source),
		gcal.WithTimeout(c.Service.Timeout),
		gcal.WithMaxRedirects(c.Service.MaxRedirects),
	}
	if logger != nil {
		opts = append(opts, gcal.WithLogger(logger))
	}
	if c.Service.CheckPublic != nil {
		opts = append(opts, gcal.WithCheckPublic(*c.Service.CheckPublic))
	}
	if c.Logging.HTTPDump {
		opts = append(opts, gcal.WithHTTPDump())
	}
	if c.Service.VerifyTLS {
		opts = append(opts, gcal.WithTLSVerification())
	}
	if p := c.Service.Proxy; p != nil {
		opts = append(opts, gcal.WithProxy(&gcal.ProxyInfo{
			Address:  p.Address,
			Port:     p.Port,
			Username: p.Username,
			Password: p.Password,
		}))
	}
	return opts
}
