// Package config reads the settings shared by the fetch, serve and stats
// subcommands from the environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	// ErrMissingCredentials is returned when DISCORD_TOKEN or GUILD_ID is unset.
	ErrMissingCredentials = errors.New("missing DISCORD_TOKEN or GUILD_ID")

	// ErrInvalidGuildID is returned when GUILD_ID is not a positive integer.
	ErrInvalidGuildID = errors.New("GUILD_ID must be an integer")
)

// DiscordConfig holds the bot credentials and the scanned guild.
type DiscordConfig struct {
	Token   string // DISCORD_TOKEN
	GuildID string // GUILD_ID
}

// CORSConfig lists the origins allowed to read the manifest browser.
// Empty allows any origin.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS, comma-separated
}

// SecurityConfig controls Strict-Transport-Security on HTTPS requests.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures OTLP trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "discord-media")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config is the full process configuration.
type Config struct {
	Discord DiscordConfig

	DownloadDir     string // DOWNLOAD_DIR
	DBPath          string // DB_PATH, the SQLite manifest
	StrictRepair    bool   // STRICT_REPAIR: size-check files found on disk before recording them
	MetricsTextfile string // METRICS_TEXTFILE, written after each fetch when set

	LogLevel    string // LOG_LEVEL
	LogPretty   bool   // LOG_PRETTY: console writer instead of JSON
	SentryDSN   string // SENTRY_DSN, empty disables reporting
	Environment string // APP_ENV

	// serve only
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	GinMode           string
	APIBasePath       string

	RateRPS   float64 // per client IP
	RateBurst int

	CORS     CORSConfig
	Security SecurityConfig
	OTEL     OTELConfig
}

// LoadDotEnv copies KEY=VALUE pairs from ./.env into the process environment
// without overriding variables that are already set. It reports whether a
// file was found.
func LoadDotEnv() bool {
	return godotenv.Load() == nil
}

// Load builds a Config from the environment. Unset or empty variables take
// their defaults; a variable that is set but malformed is an error, and all
// such errors are reported together.
//
// Discord credentials are only checked by Discord.Validate since serve and
// stats run without them.
func Load() (Config, error) {
	e := &env{}

	cfg := Config{
		Discord: DiscordConfig{
			Token:   e.str("DISCORD_TOKEN", ""),
			GuildID: e.str("GUILD_ID", ""),
		},

		DownloadDir:     e.str("DOWNLOAD_DIR", "discord-downloads"),
		DBPath:          e.str("DB_PATH", "discord-downloads.db"),
		StrictRepair:    e.flag("STRICT_REPAIR", false),
		MetricsTextfile: e.str("METRICS_TEXTFILE", ""),

		LogLevel:    logLevel(e.str("LOG_LEVEL", "info")),
		LogPretty:   e.flag("LOG_PRETTY", true),
		SentryDSN:   e.str("SENTRY_DSN", ""),
		Environment: e.str("APP_ENV", "production"),

		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.duration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.duration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.duration("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.duration("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           ginMode(e.str("GIN_MODE", "release")),
		APIBasePath:       basePath(e.str("API_BASE_PATH", "/api/v1")),

		RateRPS:   e.float("RATE_RPS", 5),
		RateBurst: e.integer("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS: e.flag("ENABLE_HSTS", false),
			HSTSMaxAge: e.duration("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     e.flag("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "discord-media"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	if err := errors.Join(append(e.errs, cfg.validate()...)...); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q: want debug, info, warn, error, fatal or panic", c.LogLevel))
	}
	check(c.DownloadDir != "", "DOWNLOAD_DIR must not be empty")
	check(c.DBPath != "", "DB_PATH must not be empty")
	check(c.Port != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"server timeouts must be positive")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be positive")
	check(c.RateRPS >= 0, "RATE_RPS must not be negative")
	check(c.RateBurst >= 1, "RATE_BURST must be at least 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must not be negative")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be within [0,1]")
	return errs
}

// Validate checks the credentials the fetch subcommand needs.
func (d DiscordConfig) Validate() error {
	if d.Token == "" || d.GuildID == "" {
		return ErrMissingCredentials
	}
	if _, err := strconv.ParseUint(d.GuildID, 10, 64); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidGuildID, d.GuildID)
	}
	return nil
}

// env reads trimmed variables and remembers the ones it could not parse.
type env struct {
	errs []error
}

func (e *env) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (e *env) bad(key, raw string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok {
		return v
	}
	return def
}

func (e *env) flag(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.bad(key, v, errors.New("not a boolean"))
	return def
}

func (e *env) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.bad(key, v, errors.New("not an integer"))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.bad(key, v, errors.New("not a number"))
		return def
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.bad(key, v, errors.New("not a duration"))
		return def
	}
	return d
}

// list splits a comma-separated variable, dropping blank entries.
func (e *env) list(key string) []string {
	v, ok := e.lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func logLevel(s string) string {
	s = strings.ToLower(s)
	if s == "warning" {
		return "warn"
	}
	return s
}

// ginMode maps unknown modes to release.
func ginMode(s string) string {
	switch s = strings.ToLower(s); s {
	case "debug", "release", "test":
		return s
	}
	return "release"
}

// basePath returns p with exactly one leading slash and no trailing slash.
// An empty or all-slash value mounts at the root.
func basePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}
