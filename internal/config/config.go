package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

type Config struct {
	// HTTP Server
	Port               string
	JWTSecret          string
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration
	// Extra proxy CIDRs whose forwarding headers are honoured, on top of
	// loopback and private networks.
	TrustedProxies []string

	// Database
	SQLiteDBPath string

	// AMQP (empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Scheduler
	SchedulerEnabled    bool
	SchedulerRunAt      string
	SchedulerTimezone   string
	SchedulerRunOnStart bool

	// Logging
	LogLevel  string
	LogFormat string

	DefaultCurrency string
}

func Load() *Config {
	cfg := &Config{
		Port:               getEnv("PORT", "5000"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/coinly.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "coinly"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transactions_posted"),

		SchedulerEnabled:    getEnvBool("SCHEDULER_ENABLED", true),
		SchedulerRunAt:      getEnv("SCHEDULER_RUN_AT", "00:01"),
		SchedulerTimezone:   getEnv("SCHEDULER_TIMEZONE", "Europe/Warsaw"),
		SchedulerRunOnStart: getEnvBool("SCHEDULER_RUN_ON_START", false),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "PLN")),
	}

	return cfg
}

// Validate checks the settings shared by every binary and returns all problems at once.
func (c *Config) Validate() error {
	return joinProblems(c.problems())
}

// ValidateServer additionally requires what the HTTP API needs.
func (c *Config) ValidateServer() error {
	problems := c.problems()

	if c.JWTSecret == "" {
		problems = append(problems, "JWT_SECRET is required for the API server")
	} else if len(c.JWTSecret) < 16 {
		problems = append(problems, "JWT_SECRET must be at least 16 characters")
	}

	if c.RateLimitPerMinute < 0 {
		problems = append(problems, fmt.Sprintf("invalid rate limit %d: must be 0 (disabled) or positive", c.RateLimitPerMinute))
	}

	if c.ShutdownTimeout < time.Second || c.ShutdownTimeout > 5*time.Minute {
		problems = append(problems, fmt.Sprintf("invalid shutdown timeout %v: must be between 1s and 5m", c.ShutdownTimeout))
	}

	return joinProblems(problems)
}

func (c *Config) problems() []string {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	for _, cidr := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			problems = append(problems, fmt.Sprintf("invalid trusted proxy '%s': must be a CIDR such as 203.0.113.0/24", cidr))
		}
	}

	if c.SQLiteDBPath == "" {
		problems = append(problems, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if _, _, err := c.RunAtClock(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := c.Location(); err != nil {
		problems = append(problems, err.Error())
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(c.DefaultCurrency) != 3 {
		problems = append(problems, fmt.Sprintf("invalid default currency '%s': must be a 3-letter code", c.DefaultCurrency))
	}

	return problems
}

// RunAtClock parses SchedulerRunAt (HH:MM).
func (c *Config) RunAtClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", c.SchedulerRunAt)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid scheduler run time '%s': must be HH:MM", c.SchedulerRunAt)
	}
	return t.Hour(), t.Minute(), nil
}

// Location loads SchedulerTimezone. Empty means UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.SchedulerTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.SchedulerTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone '%s': %v", c.SchedulerTimezone, err)
	}
	return loc, nil
}

func joinProblems(problems []string) error {
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries.
func getEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
