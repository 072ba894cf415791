package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points every CLAUDE_OFFICE_* variable somewhere harmless
func isolate(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv(EnvData, dir)
	for _, name := range []string{EnvConfig, EnvDBDriver, EnvDBPath, EnvDBDSN, EnvLogLevel, EnvLogFormat} {
		t.Setenv(name, "")
	}
	return dir
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != filepath.Join(dir, "office.db") {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "warn" || cfg.Logging.Format != "console" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestLoadReadsDataDirConfig(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, filepath.Join(dir, "config.yaml"), `
storage:
  path: /var/lib/office/office.db
  busy_timeout: 250ms
logging:
  level: debug
`)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Path != "/var/lib/office/office.db" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected file values, got %+v", cfg)
	}
	// keys the file leaves out keep their defaults
	if cfg.Storage.Driver != "sqlite" || cfg.Logging.Format != "console" {
		t.Fatalf("expected defaults for omitted keys, got %+v", cfg)
	}

	opts, err := cfg.StoreOptions()
	if err != nil {
		t.Fatalf("StoreOptions: %v", err)
	}
	if opts.BusyTimeout != 250*time.Millisecond {
		t.Fatalf("expected busy timeout 250ms, got %s", opts.BusyTimeout)
	}
}

func TestLoadExplicitFileMustExist(t *testing.T) {
	dir := isolate(t)

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a missing explicit file to fail, got %v", err)
	}

	t.Setenv(EnvConfig, filepath.Join(dir, "also-missing.yaml"))
	if _, err := Load(""); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected a missing $%s file to fail, got %v", EnvConfig, err)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	writeConfig(t, path, "storage:\n  driver: sqlite\nlogging:\n  level: info\n")

	t.Setenv(EnvDBDriver, "postgres")
	t.Setenv(EnvDBDSN, "postgres://office@localhost/office?sslmode=disable")
	t.Setenv(EnvLogLevel, "error")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != "postgres" || !strings.HasPrefix(cfg.Storage.DSN, "postgres://") {
		t.Fatalf("expected env storage overrides, got %+v", cfg.Storage)
	}
	if cfg.Logging.Level != "error" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := isolate(t)
	writeConfig(t, filepath.Join(dir, "config.yaml"), "storage: [unclosed\n")

	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "parsing config") {
		t.Fatalf("expected a parse error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{name: "memory", mutate: func(c *Config) { c.Storage.Driver = "memory" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "mysql" }, wantErr: "storage.driver"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Storage.Driver = "postgres" }, wantErr: "storage.dsn"},
		{name: "sqlite without path", mutate: func(c *Config) { c.Storage.Path = "" }, wantErr: "storage.path"},
		{name: "bad duration", mutate: func(c *Config) { c.Storage.BusyTimeout = "soon" }, wantErr: "storage.busy_timeout"},
		{name: "negative duration", mutate: func(c *Config) { c.Storage.BusyTimeout = "-1s" }, wantErr: ">= 0"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "logging.format"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default("/tmp/office")
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
