package neo

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
)

// FeedKey is the cache key of the shared feed entry. Hazardous, upcoming, largest and statistics
// views are filters over it and share its TTL window.
const FeedKey = "feed"

const lookupKeyPrefix = "neo:"

// Defaults and limits for the query surface.
const (
	DefaultFeedTTL        = 15 * time.Minute
	DefaultLookupTTL      = time.Hour
	DefaultFeedWindowDays = 7
	DefaultUpcomingDays   = 90
	MaxUpcomingDays       = 365
	MaxPageSize           = 100
	largeDiameterKm       = 1.0
)

// Service answers NEO queries from the upstream cache.
type Service struct {
	cache   Cache
	fetcher Fetcher
	clock   Clock
	log     logger.Logger

	feedTTL             time.Duration
	lookupTTL           time.Duration
	feedWindowDays      int
	upcomingDefaultDays int
}

// NewService creates a new Service.
func NewService(cache Cache, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		cache:               cache,
		fetcher:             fetcher,
		clock:               SystemClock{},
		log:                 logger.Discard(),
		feedTTL:             DefaultFeedTTL,
		lookupTTL:           DefaultLookupTTL,
		feedWindowDays:      DefaultFeedWindowDays,
		upcomingDefaultDays: DefaultUpcomingDays,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetAll returns every object in the current feed window.
func (s *Service) GetAll(ctx context.Context) (Lookup, error) {
	return s.cache.Get(ctx, FeedKey, s.feedTTL, s.fetchFeed)
}

// Warm forces a feed refresh. A failed refresh still leaves the previous entry in place.
func (s *Service) Warm(ctx context.Context) (Lookup, error) {
	return s.cache.Refresh(ctx, FeedKey, s.feedTTL, s.fetchFeed)
}

func (s *Service) fetchFeed(ctx context.Context) ([]RawRecord, error) {
	now := s.clock.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, s.feedWindowDays)
	return s.fetcher.FetchRange(ctx, start, end)
}

// GetByID finds an object in the feed, falling back to a direct upstream lookup when the fetcher
// supports it.
func (s *Service) GetByID(ctx context.Context, id string) (NearEarthObject, Freshness, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return NearEarthObject{}, Freshness{}, fmt.Errorf("%w: empty id", ErrInvalidArgument)
	}

	feed, feedErr := s.GetAll(ctx)
	if feedErr == nil {
		for _, obj := range feed.Objects {
			if obj.ID == id {
				return obj, feed.Freshness, nil
			}
		}
	} else if !errors.Is(feedErr, ErrUpstreamUnavailable) {
		return NearEarthObject{}, Freshness{}, feedErr
	}

	lk, ok := s.fetcher.(Lookuper)
	if !ok {
		if feedErr != nil {
			return NearEarthObject{}, Freshness{}, feedErr
		}
		return NearEarthObject{}, Freshness{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	res, err := s.cache.Get(ctx, lookupKeyPrefix+id, s.lookupTTL, func(ctx context.Context) ([]RawRecord, error) {
		r, err := lk.FetchByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return []RawRecord{r}, nil
	})
	if err != nil {
		return NearEarthObject{}, Freshness{}, err
	}
	if len(res.Objects) == 0 {
		return NearEarthObject{}, Freshness{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return res.Objects[0], res.Freshness, nil
}

// GetHazardous returns the potentially hazardous objects of the feed in feed order.
func (s *Service) GetHazardous(ctx context.Context) (Lookup, error) {
	feed, err := s.GetAll(ctx)
	if err != nil {
		return Lookup{}, err
	}
	out := make([]NearEarthObject, 0, len(feed.Objects))
	for _, obj := range feed.Objects {
		if obj.IsPotentiallyHazardous {
			out = append(out, obj)
		}
	}
	return Lookup{Objects: out, Freshness: feed.Freshness}, nil
}

// GetUpcoming returns objects with an approach in [now, now+withinDays], approaches trimmed to that
// window, sorted by their earliest approach in it. Zero days selects the configured default.
func (s *Service) GetUpcoming(ctx context.Context, withinDays int) (Lookup, error) {
	if withinDays == 0 {
		withinDays = s.upcomingDefaultDays
	}
	if withinDays < 0 || withinDays > MaxUpcomingDays {
		return Lookup{}, fmt.Errorf("%w: withinDays must be between 1 and %d", ErrInvalidArgument, MaxUpcomingDays)
	}

	feed, err := s.GetAll(ctx)
	if err != nil {
		return Lookup{}, err
	}

	now := s.clock.Now()
	return Lookup{Objects: upcoming(feed.Objects, now, now.AddDate(0, 0, withinDays)), Freshness: feed.Freshness}, nil
}

func upcoming(objs []NearEarthObject, from, to time.Time) []NearEarthObject {
	out := make([]NearEarthObject, 0, len(objs))
	for _, obj := range objs {
		var window []CloseApproach
		for _, a := range obj.CloseApproaches {
			if !a.Date.Before(from) && !a.Date.After(to) {
				window = append(window, a)
			}
		}
		if len(window) == 0 {
			continue
		}
		obj.CloseApproaches = window
		out = append(out, obj)
	}

	slices.SortStableFunc(out, func(a, b NearEarthObject) int {
		if c := earliest(a).Compare(earliest(b)); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func earliest(obj NearEarthObject) time.Time {
	first := obj.CloseApproaches[0].Date
	for _, a := range obj.CloseApproaches[1:] {
		if a.Date.Before(first) {
			first = a.Date
		}
	}
	return first
}

// GetLargest returns up to limit objects ordered by average diameter, largest first.
func (s *Service) GetLargest(ctx context.Context, limit int) (Lookup, error) {
	if limit < 0 {
		return Lookup{}, fmt.Errorf("%w: negative limit", ErrInvalidArgument)
	}
	feed, err := s.GetAll(ctx)
	if err != nil {
		return Lookup{}, err
	}

	out := feed.Objects
	slices.SortStableFunc(out, func(a, b NearEarthObject) int {
		return cmp.Compare(b.DiameterAvgKm(), a.DiameterAvgKm())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return Lookup{Objects: out, Freshness: feed.Freshness}, nil
}

// Query filters and paginates the feed.
type Query struct {
	Name      string
	Hazardous *bool
	RiskLevel RiskLevel
	Page      int
	PageSize  int
}

// Page is one page of a Search.
type Page struct {
	Items      []NearEarthObject `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
	HasNext    bool              `json:"hasNext"`
	HasPrev    bool              `json:"hasPrev"`
	Freshness
}

// Search applies name (case-insensitive substring), hazardous and risk level filters to the feed.
func (s *Service) Search(ctx context.Context, q Query) (Page, error) {
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 20
	}
	if q.PageSize > MaxPageSize {
		return Page{}, fmt.Errorf("%w: page size above %d", ErrInvalidArgument, MaxPageSize)
	}
	if q.RiskLevel != "" && q.RiskLevel.Rank() < 0 {
		return Page{}, fmt.Errorf("%w: unknown risk level %q", ErrInvalidArgument, q.RiskLevel)
	}

	feed, err := s.GetAll(ctx)
	if err != nil {
		return Page{}, err
	}

	name := strings.ToLower(strings.TrimSpace(q.Name))
	matched := make([]NearEarthObject, 0, len(feed.Objects))
	for _, obj := range feed.Objects {
		if name != "" && !strings.Contains(strings.ToLower(obj.Name), name) {
			continue
		}
		if q.Hazardous != nil && obj.IsPotentiallyHazardous != *q.Hazardous {
			continue
		}
		if q.RiskLevel != "" && obj.RiskLevel != q.RiskLevel {
			continue
		}
		matched = append(matched, obj)
	}

	total := len(matched)
	totalPages := (total + q.PageSize - 1) / q.PageSize
	items := []NearEarthObject{}
	// Compare page numbers before multiplying so a huge page cannot overflow.
	if q.Page <= totalPages {
		start := (q.Page - 1) * q.PageSize
		items = matched[start:min(start+q.PageSize, total)]
	}

	return Page{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
		HasNext:    q.Page < totalPages,
		HasPrev:    q.Page > 1,
		Freshness:  feed.Freshness,
	}, nil
}

// Stats summarizes the feed.
type Stats struct {
	Total       int               `json:"total"`
	Hazardous   int               `json:"potentiallyHazardous"`
	Sentry      int               `json:"sentryObjects"`
	Large       int               `json:"largeAsteroids"`
	Upcoming    int               `json:"upcomingApproaches"`
	ByRiskLevel map[RiskLevel]int `json:"byRiskLevel"`
	Freshness
}

// Statistics counts feed objects by category. Upcoming uses the default upcoming window.
func (s *Service) Statistics(ctx context.Context) (Stats, error) {
	feed, err := s.GetAll(ctx)
	if err != nil {
		return Stats{}, err
	}

	st := Stats{
		Total:       len(feed.Objects),
		ByRiskLevel: make(map[RiskLevel]int, len(RiskLevels)),
		Freshness:   feed.Freshness,
	}
	for _, obj := range feed.Objects {
		if obj.IsPotentiallyHazardous {
			st.Hazardous++
		}
		if obj.IsSentryObject {
			st.Sentry++
		}
		if obj.DiameterAvgKm() >= largeDiameterKm {
			st.Large++
		}
		st.ByRiskLevel[obj.RiskLevel]++
	}

	now := s.clock.Now()
	st.Upcoming = len(upcoming(feed.Objects, now, now.AddDate(0, 0, s.upcomingDefaultDays)))
	return st, nil
}

// ClearCache drops every cached entry.
func (s *Service) ClearCache(ctx context.Context) {
	s.cache.InvalidateAll()
	s.log.Info(ctx, "cache cleared")
}
