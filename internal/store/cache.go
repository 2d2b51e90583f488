package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
	"github.com/Franciscooxz/Neo-Tracker/pkg/metrics"
)

var _ neo.Cache = (*UpstreamCache)(nil)

// DefaultFetchTimeout bounds a single upstream fetch.
const DefaultFetchTimeout = 30 * time.Second

// entry is one cached value. It is never handed out; readers get deep copies.
type entry struct {
	key      string
	value    []neo.NearEarthObject
	storedAt time.Time
	ttl      time.Duration
}

// fresh reports whether the entry is younger than ttl. Readers pass their own ttl; the stored one
// only backs Entries.
func (e *entry) fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.storedAt) < ttl
}

func (e *entry) lookup(stale bool) neo.Lookup {
	return neo.Lookup{
		Objects:   neo.CloneAll(e.value),
		Freshness: neo.Freshness{StoredAt: e.storedAt, Stale: stale},
	}
}

// EntryInfo describes a cached key without exposing its value.
type EntryInfo struct {
	Key      string        `json:"key"`
	StoredAt time.Time     `json:"storedAt"`
	TTL      time.Duration `json:"ttl"`
	Fresh    bool          `json:"fresh"`
	Objects  int           `json:"objects"`
}

// UpstreamCache is a TTL cache in front of the upstream provider. Concurrent misses for one key share
// a single fetch, every fetched record is enriched once before it is stored, and a failed refresh
// falls back to the previous entry.
type UpstreamCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	// versions change on invalidation so an in-flight fetch started earlier does not store.
	versions map[string]uint64
	epoch    uint64

	flights singleflight.Group

	clock        neo.Clock
	fetchTimeout time.Duration
	onRefresh    func(key string, objs []neo.NearEarthObject)
	log          logger.Logger
}

// NewUpstreamCache creates an empty cache.
func NewUpstreamCache(opts ...Option) *UpstreamCache {
	c := &UpstreamCache{
		entries:      make(map[string]*entry),
		versions:     make(map[string]uint64),
		clock:        neo.SystemClock{},
		fetchTimeout: DefaultFetchTimeout,
		log:          logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key while it is younger than ttl, otherwise fetches a new one.
func (c *UpstreamCache) Get(ctx context.Context, key string, ttl time.Duration, fetch neo.FetchFunc) (neo.Lookup, error) {
	return c.get(ctx, key, ttl, fetch, false)
}

// Refresh fetches key even if the entry is fresh. Concurrent Gets join the same fetch.
func (c *UpstreamCache) Refresh(ctx context.Context, key string, ttl time.Duration, fetch neo.FetchFunc) (neo.Lookup, error) {
	return c.get(ctx, key, ttl, fetch, true)
}

// generation identifies the invalidation state a flight started under.
type generation struct {
	version uint64
	epoch   uint64
}

// covers reports whether a flight started under g saw every invalidation that preceded other.
func (g generation) covers(other generation) bool {
	return g.version >= other.version && g.epoch >= other.epoch
}

type flightResult struct {
	lookup neo.Lookup
	gen    generation
}

func (c *UpstreamCache) generationOf(key string) generation {
	return generation{version: c.versions[key], epoch: c.epoch}
}

func (c *UpstreamCache) get(ctx context.Context, key string, ttl time.Duration, fetch neo.FetchFunc, force bool) (neo.Lookup, error) {
	if fetch == nil {
		return neo.Lookup{}, fmt.Errorf("%w: nil fetch func for %q", neo.ErrInvalidArgument, key)
	}

	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !force && e.fresh(c.clock.Now(), ttl) {
		res := e.lookup(false)
		c.mu.Unlock()
		metrics.RecordCacheHit()
		return res, nil
	}
	arrived := c.generationOf(key)
	c.mu.Unlock()
	metrics.RecordCacheMiss()

	for {
		ch := c.flights.DoChan(key, func() (any, error) {
			return c.fill(key, ttl, fetch, force)
		})

		select {
		case res := <-ch:
			fr, _ := res.Val.(flightResult)
			if !fr.gen.covers(arrived) {
				// Joined a flight that an invalidation has since detached. It has finished now, so the
				// next DoChan starts at most one fresh flight for every caller in the same position.
				continue
			}
			if res.Err != nil {
				return neo.Lookup{}, res.Err
			}
			// The flight result is shared by every waiter.
			return fr.lookup.Clone(), nil
		case <-ctx.Done():
			// The flight keeps running for the other waiters and still stores its result.
			return neo.Lookup{}, ctx.Err()
		}
	}
}

// fill runs inside the single flight for key.
func (c *UpstreamCache) fill(key string, ttl time.Duration, fetch neo.FetchFunc, force bool) (flightResult, error) {
	c.mu.Lock()
	gen := c.generationOf(key)
	if e, ok := c.entries[key]; ok && !force && e.fresh(c.clock.Now(), ttl) {
		// stored by a flight that finished after our freshness check
		res := e.lookup(false)
		c.mu.Unlock()
		return flightResult{lookup: res, gen: gen}, nil
	}
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	started := time.Now()
	records, err := c.fetchWithWatchdog(ctx, fetch)
	latencyMs := float64(time.Since(started).Microseconds()) / 1000

	if err != nil {
		metrics.RecordUpstreamFetch("error", latencyMs)
		res, err := c.fallback(ctx, key, err)
		return flightResult{lookup: res, gen: gen}, err
	}
	metrics.RecordUpstreamFetch("success", latencyMs)

	now := c.clock.Now()
	objs := neo.EnrichAll(records, now)
	e := &entry{key: key, value: objs, storedAt: now, ttl: ttl}

	c.mu.Lock()
	stored := c.generationOf(key) == gen
	if stored {
		c.entries[key] = e
	}
	size := len(c.entries)
	c.mu.Unlock()

	if !stored {
		c.log.Debug(ctx, "discarding fetch result for invalidated key", logger.String("key", key))
		return flightResult{lookup: e.lookup(false), gen: gen}, nil
	}

	metrics.UpdateCacheEntries(size)
	c.log.Debug(ctx, "cache refreshed",
		logger.String("key", key),
		logger.Int("objects", len(objs)),
		logger.Float64("latency_ms", latencyMs))

	if c.onRefresh != nil {
		c.onRefresh(key, neo.CloneAll(objs))
	}
	return flightResult{lookup: e.lookup(false), gen: gen}, nil
}

func (c *UpstreamCache) fallback(ctx context.Context, key string, fetchErr error) (neo.Lookup, error) {
	if errors.Is(fetchErr, neo.ErrNotFound) {
		return neo.Lookup{}, fetchErr
	}

	c.mu.Lock()
	prior, ok := c.entries[key]
	var res neo.Lookup
	if ok {
		res = prior.lookup(true)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Error(ctx, "upstream fetch failed with nothing cached",
			logger.String("key", key),
			logger.Error(fetchErr))
		return neo.Lookup{}, fmt.Errorf("%w: %s: %w", neo.ErrUpstreamUnavailable, key, fetchErr)
	}

	metrics.RecordStaleServed()
	c.log.Warn(ctx, "serving stale entry after failed refresh",
		logger.String("key", key),
		logger.Time("stored_at", res.StoredAt),
		logger.Error(fetchErr))
	return res, nil
}

type fetchResult struct {
	records []neo.RawRecord
	err     error
}

// fetchWithWatchdog returns when fetch does or when ctx expires, whichever is first, so a fetcher
// that ignores its context cannot pin the flight.
func (c *UpstreamCache) fetchWithWatchdog(ctx context.Context, fetch neo.FetchFunc) ([]neo.RawRecord, error) {
	done := make(chan fetchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResult{err: fmt.Errorf("%w: fetch panicked: %v", neo.ErrUpstream, r)}
			}
		}()
		records, err := fetch(ctx)
		done <- fetchResult{records: records, err: err}
	}()

	select {
	case r := <-done:
		return r.records, r.err
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: fetch timed out after %s: %w", neo.ErrUpstream, c.fetchTimeout, ctx.Err())
	}
}

// Invalidate removes key. It is idempotent. A fetch already in flight for key still answers the
// callers that arrived before the invalidation but does not store; later callers wait for it to end
// and then share one new fetch.
func (c *UpstreamCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.versions[key]++
	size := len(c.entries)
	c.mu.Unlock()

	metrics.RecordCacheInvalidation()
	metrics.UpdateCacheEntries(size)
}

// InvalidateAll removes every entry.
func (c *UpstreamCache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.epoch++
	c.mu.Unlock()

	metrics.RecordCacheInvalidation()
	metrics.UpdateCacheEntries(0)
}

// Entries reports metadata for every cached key, sorted by key.
func (c *UpstreamCache) Entries() []EntryInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	out := make([]EntryInfo, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, EntryInfo{
			Key:      e.key,
			StoredAt: e.storedAt,
			TTL:      e.ttl,
			Fresh:    e.fresh(now, e.ttl),
			Objects:  len(e.value),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
