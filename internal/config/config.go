package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverCSV       = "csv"
	DriverPostgres  = "postgres"
	DriverSQLServer = "sqlserver"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Source    SourceConfig    `yaml:"source"`
	Logger    LoggerConfig    `yaml:"logger"`
	Security  SecurityConfig  `yaml:"security"`
	Analytics AnalyticsConfig `yaml:"analytics"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type SourceConfig struct {
	Driver          string          `yaml:"driver"`
	SalesCSV        string          `yaml:"sales_csv"`
	ProductsCSV     string          `yaml:"products_csv"`
	ClientsCSV      string          `yaml:"clients_csv"`
	CacheDir        string          `yaml:"cache_dir"`
	LoadTimeout     time.Duration   `yaml:"load_timeout"`
	RefreshInterval time.Duration   `yaml:"refresh_interval"`
	Postgres        PostgresConfig  `yaml:"postgres"`
	SQLServer       SQLServerConfig `yaml:"sqlserver"`
}

type PostgresConfig struct {
	URL               string        `yaml:"url"`
	MinConns          int32         `yaml:"min_conns"`
	MaxConns          int32         `yaml:"max_conns"`
	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	HealthCheckPeriod time.Duration `yaml:"healthcheck_period"`
}

type SQLServerConfig struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type SecurityConfig struct {
	EnableRateLimit bool     `yaml:"rate_limit_enabled"`
	RateLimitRPS    int      `yaml:"rate_limit_rps"`
	RateLimitBurst  int      `yaml:"rate_limit_burst"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
	TrustedProxies  []string `yaml:"trusted_proxies"`
}

type AnalyticsConfig struct {
	DefaultTopN int `yaml:"default_top_n"`
	MaxTopN     int `yaml:"max_top_n"`
	// Timezone names the IANA location used for calendar grouping. Empty
	// means each record's own location.
	Timezone string `yaml:"timezone"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8084,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Source: SourceConfig{
			Driver:      DriverCSV,
			SalesCSV:    "sales.csv",
			CacheDir:    ".cache",
			LoadTimeout: 30 * time.Second,
			Postgres: PostgresConfig{
				MinConns:          1,
				MaxConns:          5,
				ConnectTimeout:    5 * time.Second,
				HealthCheckPeriod: time.Minute,
			},
			SQLServer: SQLServerConfig{
				MaxOpenConns:    5,
				MaxIdleConns:    2,
				ConnMaxLifetime: 30 * time.Minute,
				ConnectTimeout:  5 * time.Second,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			EnableRateLimit: true,
			RateLimitRPS:    100,
			RateLimitBurst:  10,
			AllowedOrigins:  []string{"http://localhost:8084"},
			TrustedProxies:  []string{"127.0.0.1"},
		},
		Analytics: AnalyticsConfig{
			DefaultTopN: 10,
			MaxTopN:     100,
		},
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// CONFIG_FILE (if any), then the environment. A .env file in the working
// directory is read into the environment first without overriding it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = getEnvString("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("SERVER_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.Source.Driver = strings.ToLower(getEnvString("SOURCE_DRIVER", c.Source.Driver))
	c.Source.SalesCSV = getEnvString("SALES_CSV", c.Source.SalesCSV)
	c.Source.ProductsCSV = getEnvString("PRODUCTS_CSV", c.Source.ProductsCSV)
	c.Source.ClientsCSV = getEnvString("CLIENTS_CSV", c.Source.ClientsCSV)
	c.Source.CacheDir = getEnvString("SOURCE_CACHE_DIR", c.Source.CacheDir)
	c.Source.LoadTimeout = getEnvDuration("SOURCE_LOAD_TIMEOUT", c.Source.LoadTimeout)
	c.Source.RefreshInterval = getEnvDuration("SOURCE_REFRESH_INTERVAL", c.Source.RefreshInterval)

	c.Source.Postgres.URL = strings.Trim(getEnvString("DATABASE_URL", c.Source.Postgres.URL), `'"`)
	c.Source.Postgres.MinConns = int32(getEnvInt("DATABASE_MIN_CONNS", int(c.Source.Postgres.MinConns)))
	c.Source.Postgres.MaxConns = int32(getEnvInt("DATABASE_MAX_CONNS", int(c.Source.Postgres.MaxConns)))
	c.Source.SQLServer.URL = strings.Trim(getEnvString("SQLSERVER_URL", c.Source.SQLServer.URL), `'"`)

	c.Logger.Level = strings.ToLower(getEnvString("LOG_LEVEL", c.Logger.Level))
	c.Logger.Format = strings.ToLower(getEnvString("LOG_FORMAT", c.Logger.Format))

	c.Security.EnableRateLimit = getEnvBool("SECURITY_RATE_LIMIT_ENABLED", c.Security.EnableRateLimit)
	c.Security.RateLimitRPS = getEnvInt("SECURITY_RATE_LIMIT_RPS", c.Security.RateLimitRPS)
	c.Security.RateLimitBurst = getEnvInt("SECURITY_RATE_LIMIT_BURST", c.Security.RateLimitBurst)
	c.Security.AllowedOrigins = getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", c.Security.AllowedOrigins)
	c.Security.TrustedProxies = getEnvStringSlice("SECURITY_TRUSTED_PROXIES", c.Security.TrustedProxies)

	c.Analytics.DefaultTopN = getEnvInt("ANALYTICS_DEFAULT_TOP_N", c.Analytics.DefaultTopN)
	c.Analytics.MaxTopN = getEnvInt("ANALYTICS_MAX_TOP_N", c.Analytics.MaxTopN)
	c.Analytics.Timezone = getEnvString("ANALYTICS_TIMEZONE", c.Analytics.Timezone)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	switch c.Source.Driver {
	case DriverCSV:
		if c.Source.SalesCSV == "" {
			return fmt.Errorf("sales CSV path cannot be empty")
		}
	case DriverPostgres:
		if c.Source.Postgres.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
		if c.Source.Postgres.MaxConns < c.Source.Postgres.MinConns {
			return fmt.Errorf("postgres max conns (%d) below min conns (%d)", c.Source.Postgres.MaxConns, c.Source.Postgres.MinConns)
		}
	case DriverSQLServer:
		if c.Source.SQLServer.URL == "" {
			return fmt.Errorf("SQLSERVER_URL is required for the sqlserver driver")
		}
	default:
		return fmt.Errorf("invalid source driver %q, must be one of: %s", c.Source.Driver,
			strings.Join([]string{DriverCSV, DriverPostgres, DriverSQLServer}, ", "))
	}

	if c.Source.LoadTimeout <= 0 {
		return fmt.Errorf("source load timeout must be positive")
	}

	if c.Source.RefreshInterval < 0 {
		return fmt.Errorf("source refresh interval cannot be negative")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !slices.Contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Analytics.DefaultTopN <= 0 || c.Analytics.MaxTopN < c.Analytics.DefaultTopN {
		return fmt.Errorf("top-N limits must satisfy 0 < default (%d) <= max (%d)", c.Analytics.DefaultTopN, c.Analytics.MaxTopN)
	}

	if _, err := c.Analytics.Location(); err != nil {
		return err
	}

	return nil
}

// Location resolves Timezone. It returns nil when no timezone is configured.
func (a AnalyticsConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid analytics timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
