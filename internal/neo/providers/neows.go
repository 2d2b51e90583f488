package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Franciscooxz/Neo-Tracker/internal/common"
	"github.com/Franciscooxz/Neo-Tracker/internal/neo"
	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
)

const (
	DefaultNeoWsBaseURL = "https://api.nasa.gov/neo/rest/v1"
	DefaultAPIKey       = "DEMO_KEY"

	// maxFeedSpanDays is the widest start..end span the feed endpoint accepts.
	maxFeedSpanDays = 7

	feedDateLayout     = "2006-01-02"
	approachFullLayout = "2006-Jan-02 15:04"
)

var (
	_ neo.Fetcher  = (*NeoWsProvider)(nil)
	_ neo.Lookuper = (*NeoWsProvider)(nil)
)

// NeoWsConfig configures the NASA NeoWs client.
type NeoWsConfig struct {
	BaseURL string
	APIKey  string
	HTTP    HTTPClientConfig
}

// NeoWsProvider fetches and normalizes records from NASA NeoWs.
type NeoWsProvider struct {
	name    string
	baseURL string
	apiKey  string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	log     logger.Logger
}

// NewNeoWsProvider builds a client. Empty fields fall back to the public endpoint, DEMO_KEY and
// three retries starting at 500ms.
func NewNeoWsProvider(cfg NeoWsConfig, log logger.Logger) *NeoWsProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNeoWsBaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = DefaultAPIKey
	}
	if cfg.HTTP.Client == nil {
		cfg.HTTP.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.HTTP.Backoff == (BackoffConfig{}) {
		cfg.HTTP.Backoff = BackoffConfig{
			MaxRetries:      3,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		}
	}
	if log == nil {
		log = logger.Discard()
	}

	return &NeoWsProvider{
		name:    "neows",
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpCfg: cfg.HTTP,
		circuit: newCircuitBreaker("neows"),
		log:     log.Named("neows"),
	}
}

func (p *NeoWsProvider) Name() string {
	return p.name
}

// FetchRange returns every object approaching between start and end, both days inclusive. Ranges
// wider than the feed limit are split into consecutive requests.
func (p *NeoWsProvider) FetchRange(ctx context.Context, start, end time.Time) ([]neo.RawRecord, error) {
	start, end = truncateDay(start), truncateDay(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", neo.ErrInvalidArgument,
			end.Format(feedDateLayout), start.Format(feedDateLayout))
	}

	var merged []neoWsObject
	index := make(map[string]int)

	for from := start; !from.After(end); {
		to := from.AddDate(0, 0, maxFeedSpanDays)
		if to.After(end) {
			to = end
		}

		objs, err := p.fetchFeedChunk(ctx, from, to)
		if err != nil {
			return nil, err
		}
		for _, o := range objs {
			if i, ok := index[o.ID]; ok {
				merged[i].CloseApproachData = append(merged[i].CloseApproachData, o.CloseApproachData...)
				continue
			}
			index[o.ID] = len(merged)
			merged = append(merged, o)
		}

		from = to.AddDate(0, 0, 1)
	}

	out := make([]neo.RawRecord, 0, len(merged))
	for _, o := range merged {
		out = append(out, o.normalize())
	}
	p.log.Debug(ctx, "feed fetched",
		logger.String("start", start.Format(feedDateLayout)),
		logger.String("end", end.Format(feedDateLayout)),
		logger.Int("objects", len(out)))
	return out, nil
}

func (p *NeoWsProvider) fetchFeedChunk(ctx context.Context, from, to time.Time) ([]neoWsObject, error) {
	values := url.Values{}
	values.Set("start_date", from.Format(feedDateLayout))
	values.Set("end_date", to.Format(feedDateLayout))

	var payload struct {
		ElementCount     int                      `json:"element_count"`
		NearEarthObjects map[string][]neoWsObject `json:"near_earth_objects"`
	}
	if err := p.getJSON(ctx, "feed", values, &payload); err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(payload.NearEarthObjects))
	for d := range payload.NearEarthObjects {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	objs := make([]neoWsObject, 0, payload.ElementCount)
	for _, d := range dates {
		objs = append(objs, payload.NearEarthObjects[d]...)
	}
	return objs, nil
}

// FetchByID resolves a single object. An unknown id yields neo.ErrNotFound.
func (p *NeoWsProvider) FetchByID(ctx context.Context, id string) (neo.RawRecord, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return neo.RawRecord{}, fmt.Errorf("%w: empty id", neo.ErrInvalidArgument)
	}

	var obj neoWsObject
	if err := p.getJSON(ctx, "neo/"+url.PathEscape(id), url.Values{}, &obj); err != nil {
		if errors.Is(err, neo.ErrNotFound) {
			return neo.RawRecord{}, fmt.Errorf("%w: %s", neo.ErrNotFound, id)
		}
		return neo.RawRecord{}, err
	}
	if obj.ID == "" {
		return neo.RawRecord{}, fmt.Errorf("%w: %s", neo.ErrNotFound, id)
	}
	return obj.normalize(), nil
}

func (p *NeoWsProvider) getJSON(ctx context.Context, endpoint string, values url.Values, dst any) error {
	values.Set("api_key", p.apiKey)
	u := fmt.Sprintf("%s/%s?%s", p.baseURL, endpoint, values.Encode())

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		if !errors.Is(err, neo.ErrNotFound) {
			p.log.Warn(ctx, "neows request failed", logger.String("endpoint", endpoint), logger.Error(err))
		}
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: decode %s: %w", neo.ErrUpstream, endpoint, err)
	}
	return nil
}

type neoWsDiameter struct {
	Min common.FlexFloat `json:"estimated_diameter_min"`
	Max common.FlexFloat `json:"estimated_diameter_max"`
}

type neoWsApproach struct {
	Date             string `json:"close_approach_date"`
	DateFull         string `json:"close_approach_date_full"`
	EpochMillis      int64  `json:"epoch_date_close_approach"`
	RelativeVelocity struct {
		KmPerHour common.FlexFloat `json:"kilometers_per_hour"`
	} `json:"relative_velocity"`
	MissDistance struct {
		Kilometers common.FlexFloat `json:"kilometers"`
	} `json:"miss_distance"`
	OrbitingBody string `json:"orbiting_body"`
}

type neoWsObject struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	NasaJplURL         string           `json:"nasa_jpl_url"`
	AbsoluteMagnitudeH common.FlexFloat `json:"absolute_magnitude_h"`
	EstimatedDiameter  struct {
		Kilometers *neoWsDiameter `json:"kilometers"`
	} `json:"estimated_diameter"`
	IsPotentiallyHazardous bool            `json:"is_potentially_hazardous_asteroid"`
	IsSentryObject         bool            `json:"is_sentry_object"`
	CloseApproachData      []neoWsApproach `json:"close_approach_data"`
}

// normalize converts the wire shape into a neo.RawRecord.
func (o neoWsObject) normalize() neo.RawRecord {
	r := neo.RawRecord{
		ID:                     o.ID,
		Name:                   common.StripAny(o.Name, "(", ")"),
		NasaJplURL:             o.NasaJplURL,
		IsPotentiallyHazardous: o.IsPotentiallyHazardous,
		IsSentryObject:         o.IsSentryObject,
		AbsoluteMagnitudeH:     float64(o.AbsoluteMagnitudeH),
	}

	switch d := o.EstimatedDiameter.Kilometers; {
	case d != nil:
		r.DiameterMinKm, r.DiameterMaxKm = float64(d.Min), float64(d.Max)
	case r.AbsoluteMagnitudeH > 0:
		est := neo.EstimateDiameterKm(r.AbsoluteMagnitudeH)
		r.DiameterMinKm, r.DiameterMaxKm = est, est
	}
	r.DiameterMinKm, r.DiameterMaxKm = max(r.DiameterMinKm, 0), max(r.DiameterMaxKm, 0)
	if r.DiameterMinKm > r.DiameterMaxKm {
		r.DiameterMinKm, r.DiameterMaxKm = r.DiameterMaxKm, r.DiameterMinKm
	}

	seen := make(map[string]bool, len(o.CloseApproachData))
	approaches := make([]neo.CloseApproach, 0, len(o.CloseApproachData))
	for _, a := range o.CloseApproachData {
		body, ok := neo.ParseOrbitingBody(a.OrbitingBody)
		if !ok {
			continue
		}
		date, ok := a.date()
		if !ok {
			continue
		}
		k := date.Format(time.RFC3339) + "|" + string(body)
		if seen[k] {
			continue
		}
		seen[k] = true
		approaches = append(approaches, neo.CloseApproach{
			Date:                date,
			MissDistanceKm:      max(float64(a.MissDistance.Kilometers), 0),
			RelativeVelocityKmH: max(float64(a.RelativeVelocity.KmPerHour), 0),
			OrbitingBody:        body,
		})
	}
	slices.SortStableFunc(approaches, func(a, b neo.CloseApproach) int {
		return a.Date.Compare(b.Date)
	})
	r.CloseApproaches = approaches
	return r
}

func (a neoWsApproach) date() (time.Time, bool) {
	if a.EpochMillis != 0 {
		return time.UnixMilli(a.EpochMillis).UTC(), true
	}
	if t, err := time.Parse(approachFullLayout, a.DateFull); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(feedDateLayout, a.Date); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
