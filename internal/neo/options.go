package neo

import (
	"time"

	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithFeedTTL sets how long the shared feed entry stays fresh.
func WithFeedTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.feedTTL = ttl
		}
	}
}

// WithLookupTTL sets how long single-object lookups stay fresh.
func WithLookupTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lookupTTL = ttl
		}
	}
}

// WithFeedWindowDays sets how many days after today the feed covers.
func WithFeedWindowDays(days int) Option {
	return func(s *Service) {
		if days > 0 {
			s.feedWindowDays = days
		}
	}
}

// WithUpcomingDefaultDays sets the window used when GetUpcoming is called with zero days.
func WithUpcomingDefaultDays(days int) Option {
	return func(s *Service) {
		if days > 0 && days <= MaxUpcomingDays {
			s.upcomingDefaultDays = days
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}
