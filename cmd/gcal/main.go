package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	gcal "github.com/mgornick/go-gcal"
	"github.com/mgornick/go-gcal/internal/config"
)

const (
	defaultConfigPath = "gcal.yaml"
	requestTimeout    = time.Minute
)

var (
	configPath = flag.String("config", defaultConfigPath, "Path to configuration file")
	debug      = flag.Bool("debug", false, "Enable debug logging")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: gcal [-config path] [-debug] <command>

Commands:
  calendars                          list calendars of the account
  events <calendar-id> [query]       list upcoming events
  export <calendar-id> <event-url>   print one event as iCalendar
  watch <calendar-id>                print the agenda on the configured schedule
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging, *debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &app{cfg: cfg, logger: logger, out: os.Stdout}
	if err := app.run(ctx, flag.Args()); err != nil {
		logger.Error("Command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	out     io.Writer
	service *gcal.Service
}

func (a *app) run(ctx context.Context, args []string) error {
	a.service = gcal.NewService(a.cfg.ServiceOptions(gcal.NewSlogLogger(a.logger))...)
	if err := a.authenticate(ctx); err != nil {
		return err
	}

	switch args[0] {
	case "calendars":
		return a.listCalendars(ctx)
	case "events":
		if len(args) < 2 {
			return errors.New("events needs a calendar id")
		}
		return a.listEvents(ctx, args[1], strings.Join(args[2:], " "))
	case "export":
		if len(args) != 3 {
			return errors.New("export needs a calendar id and an event URL")
		}
		return a.export(ctx, args[1], args[2])
	case "watch":
		if len(args) != 2 {
			return errors.New("watch needs a calendar id")
		}
		return a.watch(ctx, args[1])
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func (a *app) authenticate(ctx context.Context) error {
	account := a.cfg.Account
	if account.Token != "" {
		a.service.AuthenticateWithToken(account.Token, account.Email)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	return a.service.Authenticate(ctx, account.Email, account.Password)
}

func (a *app) listCalendars(ctx context.Context) error {
	calendars, err := a.service.Calendars(ctx)
	if err != nil {
		return err
	}

	for _, cal := range calendars {
		var flags []string
		if cal.Public() {
			flags = append(flags, "public")
		}
		if !cal.Editable() {
			flags = append(flags, "read-only")
		}
		if cal.Hidden {
			flags = append(flags, "hidden")
		}
		fmt.Fprintf(a.out, "%s\t%s\t%s", cal.ID(), cal.Title, cal.Timezone)
		if len(flags) > 0 {
			fmt.Fprintf(a.out, "\t[%s]", strings.Join(flags, ","))
		}
		fmt.Fprintln(a.out)
	}
	return nil
}

func (a *app) calendar(ctx context.Context, id string) (*gcal.Calendar, error) {
	matches, err := a.service.FindCalendars(ctx, id, gcal.ScopeFirst)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("calendar %q: %w", id, gcal.ErrNotFound)
	}
	return matches[0], nil
}

func (a *app) listEvents(ctx context.Context, calendarID, text string) error {
	cal, err := a.calendar(ctx, calendarID)
	if err != nil {
		return err
	}
	return a.printAgenda(ctx, cal, text)
}

func (a *app) printAgenda(ctx context.Context, cal *gcal.Calendar, text string) error {
	loc := a.cfg.Location()
	now := time.Now().In(loc)
	until := now.AddDate(0, 0, a.cfg.Watch.HorizonDays)

	events, err := gcal.FindEvents(ctx, cal, text, gcal.Query{
		Range:     &gcal.TimeRange{Start: now, End: until},
		SortOrder: gcal.SortAscending,
		Timezone:  a.cfg.Watch.Timezone,
	})
	if err != nil {
		return err
	}

	for _, ev := range events {
		if ev.Recurrence == nil && ev.RawRecurrence() != "" {
			a.logger.Warn("Skipping event with unsupported recurrence", "event", ev.ID())
			continue
		}
		if ev.Recurrence == nil {
			fmt.Fprintf(a.out, "%s\t%s\t%s\n", formatWhen(ev.Start.In(loc), ev.AllDay), ev.Title, ev.Where)
			continue
		}

		occurrences, err := ev.Recurrence.Occurrences(now, until)
		if err != nil {
			a.logger.Warn("Skipping recurring event", "event", ev.ID(), "error", err)
			continue
		}
		for _, t := range occurrences {
			fmt.Fprintf(a.out, "%s\t%s\t%s\t(%s)\n", formatWhen(t.In(loc), ev.Recurrence.AllDay), ev.Title, ev.Where, ev.Recurrence.Frequency)
		}
	}
	return nil
}

func formatWhen(t time.Time, allDay bool) string {
	if allDay {
		return t.Format("Mon 2006-01-02      ")
	}
	return t.Format("Mon 2006-01-02 15:04")
}

func (a *app) export(ctx context.Context, calendarID, eventURL string) error {
	cal, err := a.calendar(ctx, calendarID)
	if err != nil {
		return err
	}

	ev, err := gcal.FindEvent(ctx, cal, eventURL, gcal.Query{})
	if err != nil {
		return err
	}
	_, err = io.WriteString(a.out, ev.ICS())
	return err
}

func (a *app) watch(ctx context.Context, calendarID string) error {
	cal, err := a.calendar(ctx, calendarID)
	if err != nil {
		return err
	}

	refresh := func() {
		tickCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()

		fmt.Fprintf(a.out, "== %s (%s)\n", cal.Title, time.Now().In(a.cfg.Location()).Format(time.RFC1123))
		if err := a.printAgenda(tickCtx, cal, ""); err != nil {
			a.logger.Error("Agenda refresh failed", "calendar", cal.ID(), "error", err)
		}
	}

	c := cron.New(cron.WithLocation(a.cfg.Location()))
	if _, err := c.AddFunc(a.cfg.Watch.Schedule, refresh); err != nil {
		return fmt.Errorf("add watch schedule: %w", err)
	}

	refresh()
	c.Start()
	a.logger.Info("Watching calendar", "calendar", cal.ID(), "schedule", a.cfg.Watch.Schedule, "timezone", a.cfg.Watch.Timezone)

	<-ctx.Done()
	<-c.Stop().Done()
	a.logger.Info("Watch stopped")
	return nil
}

func setupLogger(cfg config.LoggingConfig, debugMode bool) *slog.Logger {
	var level slog.Level
	if debugMode {
		level = slog.LevelDebug
	} else {
		switch cfg.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
