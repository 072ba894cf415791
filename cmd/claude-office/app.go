package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/kylemclaren/claude-office/internal/config"
	"github.com/kylemclaren/claude-office/internal/db"
	"github.com/kylemclaren/claude-office/internal/logging"
	"github.com/kylemclaren/claude-office/internal/office"
)

const timeLayout = "2006-01-02 15:04"

// app carries global flags and the lazily opened service
type app struct {
	ctx    context.Context
	stdout io.Writer
	stderr io.Writer

	configPath string
	driver     string
	dbPath     string
	dsn        string
	jsonOut    bool
	verbose    bool

	log   zerolog.Logger
	store db.Store
	svc   *office.Service
}

func (a *app) globalFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("claude-office", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.SetInterspersed(false)
	fs.StringVar(&a.configPath, "config", "", "config file (default $CLAUDE_OFFICE_CONFIG or <data dir>/config.yaml)")
	fs.StringVar(&a.driver, "driver", "", "storage driver: sqlite, postgres or memory")
	fs.StringVar(&a.dbPath, "db", "", "SQLite database file")
	fs.StringVar(&a.dsn, "dsn", "", "PostgreSQL connection string")
	fs.BoolVar(&a.jsonOut, "json", false, "output as JSON")
	fs.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging on stderr")
	return fs
}

// loadConfig applies the command-line overrides on top of config.Load
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.driver != "" {
		cfg.Storage.Driver = a.driver
	}
	if a.dbPath != "" {
		cfg.Storage.Path = a.dbPath
	}
	if a.dsn != "" {
		cfg.Storage.DSN = a.dsn
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// service opens the store on first use
func (a *app) service() (*office.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logging.New(cfg.Logging, a.stderr, a.verbose)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.StoreOptions()
	if err != nil {
		return nil, err
	}
	store, err := db.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", opts.Driver, err)
	}
	log.Debug().Str("driver", opts.Driver).Str("path", opts.Path).Msg("store opened")

	a.log = log
	a.store = store
	a.svc = office.NewService(store, office.WithLogger(log))
	return a.svc, nil
}

// logger builds the configured logger without opening the store
func (a *app) logger() (zerolog.Logger, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return zerolog.Nop(), err
	}
	return logging.New(cfg.Logging, a.stderr, a.verbose)
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// emit writes v as JSON when --json is set, otherwise calls text
func (a *app) emit(v any, text func(w io.Writer) error) error {
	if a.jsonOut {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(a.stdout)
}

// table writes aligned columns
func (a *app) table(header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// parseTime accepts RFC 3339 or "YYYY-MM-DD HH:MM" in UTC. Blank is the zero time.
func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(timeLayout, raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339 or %q", raw, timeLayout)
	}
	return t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

// optional returns nil for a flag that was not given
func optional(cmd *Command, name, value string) *string {
	if !cmd.Changed(name) {
		return nil
	}
	return &value
}
