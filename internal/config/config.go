// Package config provides centralized configuration loaded from environment
// variables, validated once at start-up.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultProductBaseURL = "https://www.bestbuy.ca"
	DefaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	DefaultUsername       = "StockTrack Price Monitor"
	DefaultStateFile      = "data/state.json"
	DefaultLogFile        = "data/app.log"

	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Data source
	DropsURL       string        `validate:"required,url"`
	HistoryURL     string        `validate:"required,url"`
	ProductBaseURL string        `validate:"required,url"`
	UserAgent      string        `validate:"required"`
	RequestTimeout time.Duration `validate:"gt=0"`
	RequestDelay   time.Duration `validate:"gte=0"`

	// Cycle
	CheckInterval   time.Duration `validate:"gt=0"`
	MaxHistoryDays  int           `validate:"gte=1"`
	MaxSKUEntries   int           `validate:"gte=0"`
	HistoryCacheTTL time.Duration `validate:"gte=0"`

	// Discord
	WebhookURL       string        `validate:"required,url"`
	DiscordUsername  string        `validate:"required"`
	DiscordAvatarURL string        `validate:"omitempty,url"`
	WebhookRetries   int           `validate:"gte=1"`
	WebhookRetryBase time.Duration `validate:"gte=0"`

	// State
	StateBackend   string `validate:"oneof=file postgres"`
	StateFilePath  string `validate:"required_if=StateBackend file"`
	DatabaseURL    string `validate:"required_if=StateBackend postgres"`
	DBPoolMaxConns int    `validate:"gte=1"`
	DBPoolMaxLife  time.Duration

	// Logging
	LogLevel    slog.Level
	LogFilePath string

	// Status server (disabled when empty)
	StatusAddr       string
	CORSAllowOrigins []string

	// Rate limiting for the status server
	RateLimitEnabled  bool
	RateLimitRequests int           `validate:"gte=1"`
	RateLimitWindow   time.Duration `validate:"gt=0"`
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	var errs []error
	level, err := parseLevel(envOr("LOG_LEVEL", "INFO"))
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		DropsURL:       envOr("DROPS_URL", ""),
		HistoryURL:     envOr("HISTORY_URL", ""),
		ProductBaseURL: strings.TrimRight(envOr("PRODUCT_BASE_URL", DefaultProductBaseURL), "/"),
		UserAgent:      envOr("USER_AGENT", DefaultUserAgent),
		RequestTimeout: envSeconds("REQUEST_TIMEOUT_SECONDS", 10, &errs),
		RequestDelay:   envSeconds("REQUEST_DELAY_SECONDS", 10, &errs),

		CheckInterval:   envSeconds("CHECK_INTERVAL_SECONDS", 900, &errs),
		MaxHistoryDays:  envInt("MAX_HISTORY_DAYS", 30, &errs),
		MaxSKUEntries:   envInt("MAX_SKU_ENTRIES", 1000, &errs),
		HistoryCacheTTL: time.Duration(envInt("HISTORY_CACHE_TTL_HOURS", 0, &errs)) * time.Hour,

		WebhookURL:       envOr("DISCORD_WEBHOOK_URL", ""),
		DiscordUsername:  envOr("DISCORD_USERNAME", DefaultUsername),
		DiscordAvatarURL: envOr("DISCORD_AVATAR_URL", ""),
		WebhookRetries:   envInt("WEBHOOK_MAX_RETRIES", 3, &errs),
		WebhookRetryBase: envSeconds("WEBHOOK_RETRY_DELAY_BASE_SECONDS", 5, &errs),

		StateBackend:   strings.ToLower(envOr("STATE_BACKEND", BackendFile)),
		StateFilePath:  envOr("STATE_FILE_PATH", DefaultStateFile),
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 2, &errs),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30, &errs)) * time.Minute,

		LogLevel:    level,
		LogFilePath: envSet("LOG_FILE_PATH", DefaultLogFile),

		StatusAddr:       envOr("STATUS_ADDR", ""),
		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{"*"}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true, &errs),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 60, &errs),
		RateLimitWindow:   envSeconds("RATE_LIMIT_WINDOW", 60, &errs),
	}
	if len(errs) > 0 {
		return nil, &ConfigurationError{Problems: problems(errs)}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and reports every violation at once.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ConfigurationError{Problems: []string{err.Error()}}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, describe(fe))
	}
	return &ConfigurationError{Problems: out}
}

// StatusEnabled returns true if the status server should be started.
func (c *Config) StatusEnabled() bool {
	return c.StatusAddr != ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// envNames maps struct fields to the variables that set them, for messages.
var envNames = map[string]string{
	"DropsURL":          "DROPS_URL",
	"HistoryURL":        "HISTORY_URL",
	"ProductBaseURL":    "PRODUCT_BASE_URL",
	"UserAgent":         "USER_AGENT",
	"RequestTimeout":    "REQUEST_TIMEOUT_SECONDS",
	"RequestDelay":      "REQUEST_DELAY_SECONDS",
	"CheckInterval":     "CHECK_INTERVAL_SECONDS",
	"MaxHistoryDays":    "MAX_HISTORY_DAYS",
	"MaxSKUEntries":     "MAX_SKU_ENTRIES",
	"HistoryCacheTTL":   "HISTORY_CACHE_TTL_HOURS",
	"WebhookURL":        "DISCORD_WEBHOOK_URL",
	"DiscordUsername":   "DISCORD_USERNAME",
	"DiscordAvatarURL":  "DISCORD_AVATAR_URL",
	"WebhookRetries":    "WEBHOOK_MAX_RETRIES",
	"WebhookRetryBase":  "WEBHOOK_RETRY_DELAY_BASE_SECONDS",
	"StateBackend":      "STATE_BACKEND",
	"StateFilePath":     "STATE_FILE_PATH",
	"DatabaseURL":       "DATABASE_URL",
	"DBPoolMaxConns":    "DB_POOL_MAX_CONNS",
	"RateLimitRequests": "RATE_LIMIT_REQUESTS",
	"RateLimitWindow":   "RATE_LIMIT_WINDOW",
}

func describe(fe validator.FieldError) string {
	name := envNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "required", "required_if":
		return name + " must be set"
	case "url":
		return name + " must be an absolute URL"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	default:
		return fmt.Sprintf("%s must satisfy %s=%s", name, fe.Tag(), fe.Param())
	}
}

func parseLevel(v string) (slog.Level, error) {
	name := strings.ToUpper(v)
	if name == "WARNING" {
		name = "WARN"
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: unknown level %q", v)
	}
	return l, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envSet is envOr for settings where an explicitly empty value means "off".
func envSet(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(key string, fallback int, errs *[]error) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: not an integer: %q", key, v))
			return fallback
		}
		return n
	}
	return fallback
}

func envSeconds(key string, fallback float64, errs *[]error) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: not a number of seconds: %q", key, v))
		} else {
			fallback = f
		}
	}
	return time.Duration(fallback * float64(time.Second))
}

func envBool(key string, fallback bool, errs *[]error) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s: not a boolean: %q", key, v))
			return fallback
		}
		return b
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

func problems(errs []error) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}
