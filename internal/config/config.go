// Package config loads claude-office settings.
//
// Settings come from, in increasing precedence: built-in defaults, a YAML
// file, environment variables, and command-line flags (applied by the
// caller). The file is $CLAUDE_OFFICE_CONFIG when set, otherwise
// config.yaml inside the data directory if it exists.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kylemclaren/claude-office/internal/db"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load and ApplyEnv
const (
	EnvData      = "CLAUDE_OFFICE_DATA"
	EnvConfig    = "CLAUDE_OFFICE_CONFIG"
	EnvDBDriver  = "CLAUDE_OFFICE_DB_DRIVER"
	EnvDBPath    = "CLAUDE_OFFICE_DB_PATH"
	EnvDBDSN     = "CLAUDE_OFFICE_DB_DSN"
	EnvLogLevel  = "CLAUDE_OFFICE_LOG_LEVEL"
	EnvLogFormat = "CLAUDE_OFFICE_LOG_FORMAT"
)

const (
	defaultDBFile      = "office.db"
	defaultBusyTimeout = "5s"
)

// Config is the complete claude-office configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// StorageConfig selects the backend.
type StorageConfig struct {
	// Driver is sqlite, postgres or memory.
	Driver string `yaml:"driver"`

	// Path is the SQLite database file.
	// Default: <data dir>/office.db
	Path string `yaml:"path"`

	// DSN is the PostgreSQL connection string, required for postgres.
	DSN string `yaml:"dsn"`

	// BusyTimeout is how long SQLite waits on a locked database, as a Go
	// duration string.
	// Default: 5s
	BusyTimeout string `yaml:"busy_timeout"`
}

// LoggingConfig controls diagnostic output on stderr.
type LoggingConfig struct {
	// Level is a zerolog level name.
	// Default: warn
	Level string `yaml:"level"`

	// Format is console or json.
	// Default: console
	Format string `yaml:"format"`
}

// DataDir returns $CLAUDE_OFFICE_DATA, or ~/.claude-office
func DataDir() (string, error) {
	if dir := os.Getenv(EnvData); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".claude-office"), nil
}

// Default returns the built-in configuration for the given data directory.
func Default(dataDir string) *Config {
	return &Config{
		Storage: StorageConfig{
			Driver:      "sqlite",
			Path:        filepath.Join(dataDir, defaultDBFile),
			BusyTimeout: defaultBusyTimeout,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Load builds the configuration from defaults, the config file and the
// environment. path overrides the file location; an explicitly named file
// must exist.
func Load(path string) (*Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return nil, err
	}
	cfg := Default(dataDir)

	explicit := true
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		explicit = false
		path = filepath.Join(dataDir, "config.yaml")
	}

	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a single YAML file over the defaults without consulting
// the environment.
func LoadFile(path string) (*Config, error) {
	dataDir, err := DataDir()
	if err != nil {
		return nil, err
	}
	cfg := Default(dataDir)
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays the CLAUDE_OFFICE_* variables that are set.
func (c *Config) ApplyEnv() {
	overlay := map[string]*string{
		EnvDBDriver:  &c.Storage.Driver,
		EnvDBPath:    &c.Storage.Path,
		EnvDBDSN:     &c.Storage.DSN,
		EnvLogLevel:  &c.Logging.Level,
		EnvLogFormat: &c.Logging.Format,
	}
	for name, field := range overlay {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			*field = value
		}
	}
}

// Validate checks that the configuration can open a store.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Storage.Driver) {
	case "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			return errors.New("storage.path is required for the sqlite driver")
		}
	case "postgres", "postgresql":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return errors.New("storage.dsn is required for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver %q is not one of sqlite, postgres, memory", c.Storage.Driver)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}
	return nil
}

// StoreOptions converts the storage section for db.Open.
func (c *Config) StoreOptions() (db.Options, error) {
	busy, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout)
	if err != nil {
		return db.Options{}, err
	}
	return db.Options{
		Driver:      c.Storage.Driver,
		Path:        c.Storage.Path,
		DSN:         c.Storage.DSN,
		BusyTimeout: busy,
	}, nil
}

// ParseDurationField parses a duration setting. Blank means zero.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}
