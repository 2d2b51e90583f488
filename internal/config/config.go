// Package config loads process configuration from defaults, an optional YAML file, .env and the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
)

// AppConfig contains process configuration.
type AppConfig struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	NASAAPIKey  string `koanf:"nasa_api_key"`
	NASABaseURL string `koanf:"nasa_base_url"`
	// HTTPTimeout bounds one HTTP round trip to NeoWs.
	HTTPTimeout time.Duration `koanf:"http_timeout"`
	// FetchTimeout bounds one cache fill, retries included.
	FetchTimeout time.Duration `koanf:"fetch_timeout"`

	FeedTTL             time.Duration `koanf:"feed_ttl"`
	LookupTTL           time.Duration `koanf:"lookup_ttl"`
	FeedWindowDays      int           `koanf:"feed_window_days"`
	UpcomingDefaultDays int           `koanf:"upcoming_default_days"`

	// WarmInterval schedules feed refreshes; zero disables them.
	WarmInterval time.Duration `koanf:"warm_interval"`

	// PostgresDSN enables the Postgres sink when set.
	PostgresDSN string `koanf:"postgres_dsn"`

	// NATSURL enables risk alerts when set.
	NATSURL       string `koanf:"nats_url"`
	AlertSubject  string `koanf:"alert_subject"`
	AlertMinLevel string `koanf:"alert_min_level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *AppConfig {
	return &AppConfig{
		Addr:                ":8080",
		LogLevel:            "info",
		NASAAPIKey:          "DEMO_KEY",
		NASABaseURL:         "https://api.nasa.gov/neo/rest/v1",
		HTTPTimeout:         10 * time.Second,
		FetchTimeout:        30 * time.Second,
		FeedTTL:             neo.DefaultFeedTTL,
		LookupTTL:           neo.DefaultLookupTTL,
		FeedWindowDays:      neo.DefaultFeedWindowDays,
		UpcomingDefaultDays: neo.DefaultUpcomingDays,
		WarmInterval:        15 * time.Minute,
		AlertSubject:        "neo.alerts",
		AlertMinLevel:       string(neo.RiskHigh),
	}
}

// Validate checks ranges and enumerations.
func (c *AppConfig) Validate() error {
	var problems []string
	if c.Addr == "" {
		problems = append(problems, "addr must not be empty")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if c.NASAAPIKey == "" {
		problems = append(problems, "nasa_api_key must not be empty")
	}
	if c.NASABaseURL == "" {
		problems = append(problems, "nasa_base_url must not be empty")
	}
	if c.HTTPTimeout <= 0 {
		problems = append(problems, "http_timeout must be positive")
	}
	if c.FetchTimeout <= 0 {
		problems = append(problems, "fetch_timeout must be positive")
	}
	if c.FeedTTL <= 0 || c.LookupTTL <= 0 {
		problems = append(problems, "feed_ttl and lookup_ttl must be positive")
	}
	if c.FeedWindowDays < 1 || c.FeedWindowDays > neo.MaxUpcomingDays {
		problems = append(problems, fmt.Sprintf("feed_window_days must be between 1 and %d", neo.MaxUpcomingDays))
	}
	if c.UpcomingDefaultDays < 1 || c.UpcomingDefaultDays > neo.MaxUpcomingDays {
		problems = append(problems, fmt.Sprintf("upcoming_default_days must be between 1 and %d", neo.MaxUpcomingDays))
	}
	if c.WarmInterval < 0 {
		problems = append(problems, "warm_interval must not be negative")
	}
	if _, ok := neo.ParseRiskLevel(c.AlertMinLevel); !ok {
		problems = append(problems, fmt.Sprintf("alert_min_level %q is not a risk level", c.AlertMinLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
