package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Source.Driver != DriverCSV {
		t.Errorf("Driver = %q, want %q", cfg.Source.Driver, DriverCSV)
	}
	if cfg.Address() != "localhost:8084" {
		t.Errorf("Address() = %q", cfg.Address())
	}
	if cfg.Analytics.DefaultTopN != 10 || cfg.Analytics.MaxTopN != 100 {
		t.Errorf("unexpected top-N limits: %+v", cfg.Analytics)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "analytics.yaml")
	yamlBody := `
server:
  port: 9000
  read_timeout: 3s
source:
  driver: postgres
  refresh_interval: 5m
  postgres:
    url: postgres://file/db
    max_conns: 8
analytics:
  default_top_n: 5
  timezone: America/Bogota
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "'postgres://env/db'")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 || cfg.Server.ReadTimeout != 3*time.Second {
		t.Errorf("server section not read from file: %+v", cfg.Server)
	}
	if cfg.Source.RefreshInterval != 5*time.Minute {
		t.Errorf("RefreshInterval = %v", cfg.Source.RefreshInterval)
	}
	if cfg.Source.Postgres.URL != "postgres://env/db" {
		t.Errorf("env should override file and strip quotes, got %q", cfg.Source.Postgres.URL)
	}
	if cfg.Source.Postgres.MaxConns != 8 || cfg.Source.Postgres.MinConns != 1 {
		t.Errorf("pool limits = %d/%d", cfg.Source.Postgres.MinConns, cfg.Source.Postgres.MaxConns)
	}
	if cfg.Logger.Level != "debug" {
		t.Errorf("Level = %q", cfg.Logger.Level)
	}

	loc, err := cfg.Analytics.Location()
	if err != nil || loc == nil || loc.String() != "America/Bogota" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("SERVER_PORT=7001\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SERVER_PORT", "")
	os.Unsetenv("SERVER_PORT")
	t.Cleanup(func() { os.Unsetenv("SERVER_PORT") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Port = %d, want 7001 from .env", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"driver", func(c *Config) { c.Source.Driver = "mysql" }},
		{"postgres url", func(c *Config) { c.Source.Driver = DriverPostgres }},
		{"sqlserver url", func(c *Config) { c.Source.Driver = DriverSQLServer }},
		{"pool limits", func(c *Config) {
			c.Source.Driver = DriverPostgres
			c.Source.Postgres.URL = "postgres://x"
			c.Source.Postgres.MinConns = 4
			c.Source.Postgres.MaxConns = 2
		}},
		{"log level", func(c *Config) { c.Logger.Level = "trace" }},
		{"log format", func(c *Config) { c.Logger.Format = "xml" }},
		{"refresh", func(c *Config) { c.Source.RefreshInterval = -time.Second }},
		{"top n", func(c *Config) { c.Analytics.MaxTopN = 1 }},
		{"timezone", func(c *Config) { c.Analytics.Timezone = "Mars/Olympus" }},
	}

	if err := defaults().validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaults()
			tt.mutate(cfg)
			if err := cfg.validate(); err == nil {
				t.Error("validate() should fail")
			}
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CFG_INT", "abc")
	t.Setenv("CFG_BOOL", "false")
	t.Setenv("CFG_SLICE", "a, b ,c")

	if got := getEnvInt("CFG_INT", 3); got != 3 {
		t.Errorf("getEnvInt with bad value = %d, want fallback 3", got)
	}
	if got := getEnvBool("CFG_BOOL", true); got {
		t.Error("getEnvBool should parse false")
	}
	got := getEnvStringSlice("CFG_SLICE", nil)
	if len(got) != 3 || got[1] != "b" {
		t.Errorf("getEnvStringSlice = %q", got)
	}
}
