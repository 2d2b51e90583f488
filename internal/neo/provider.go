package neo

import (
	"context"
	"time"
)

// Fetcher abstracts the upstream NEO data source (e.g. NASA NeoWs).
type Fetcher interface {
	// FetchRange returns every object with a close approach between start and end (inclusive days).
	FetchRange(ctx context.Context, start, end time.Time) ([]RawRecord, error)
}

// Lookuper is implemented by fetchers that can resolve a single object by id.
type Lookuper interface {
	FetchByID(ctx context.Context, id string) (RawRecord, error)
}

// FetchFunc produces the raw records for one cache key.
type FetchFunc func(ctx context.Context) ([]RawRecord, error)

// Clock is injected wherever time matters.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// Cache is the contract the upstream cache satisfies.
type Cache interface {
	// Get serves a fresh entry or fetches, enriches and stores a new one. On fetch failure a prior
	// entry is served with Stale set; without one the call fails with ErrUpstreamUnavailable.
	Get(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (Lookup, error)
	// Refresh behaves like Get but fetches even when the entry is still fresh.
	Refresh(ctx context.Context, key string, ttl time.Duration, fetch FetchFunc) (Lookup, error)
	Invalidate(key string)
	InvalidateAll()
}

// Sink receives every freshly fetched, enriched batch.
type Sink interface {
	Name() string
	Save(ctx context.Context, objs []NearEarthObject) error
}
