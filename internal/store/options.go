package store

import (
	"time"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
)

// Option configures an UpstreamCache.
type Option func(*UpstreamCache)

// WithClock sets the clock used for TTL checks and enrichment.
func WithClock(clock neo.Clock) Option {
	return func(c *UpstreamCache) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithFetchTimeout bounds each upstream fetch. Non-positive values keep the default.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *UpstreamCache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *UpstreamCache) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRefreshHook registers fn to run after every stored refresh. fn receives its own copy.
func WithRefreshHook(fn func(key string, objs []neo.NearEarthObject)) Option {
	return func(c *UpstreamCache) {
		c.onRefresh = fn
	}
}
