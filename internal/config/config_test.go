package config

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *AppConfig){
		"empty addr":       func(c *AppConfig) { c.Addr = "" },
		"bad log level":    func(c *AppConfig) { c.LogLevel = "loud" },
		"empty api key":    func(c *AppConfig) { c.NASAAPIKey = "" },
		"zero ttl":         func(c *AppConfig) { c.FeedTTL = 0 },
		"window too wide":  func(c *AppConfig) { c.FeedWindowDays = 400 },
		"negative warm":    func(c *AppConfig) { c.WarmInterval = -time.Second },
		"unknown level":    func(c *AppConfig) { c.AlertMinLevel = "meh" },
		"zero fetch bound": func(c *AppConfig) { c.FetchTimeout = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
