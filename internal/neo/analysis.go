package neo

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Franciscooxz/Neo-Tracker/pkg/logger"
)

const (
	DefaultClosestLimit = 10
	MaxClosestLimit     = 50
)

// GetClosest returns up to limit objects ordered by their closest approach, nearest first. Objects
// without approaches are skipped. Zero selects DefaultClosestLimit.
func (s *Service) GetClosest(ctx context.Context, limit int) (Lookup, error) {
	if limit == 0 {
		limit = DefaultClosestLimit
	}
	if limit < 1 || limit > MaxClosestLimit {
		return Lookup{}, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidArgument, MaxClosestLimit)
	}
	feed, err := s.GetAll(ctx)
	if err != nil {
		return Lookup{}, err
	}

	out := make([]NearEarthObject, 0, len(feed.Objects))
	for _, obj := range feed.Objects {
		if _, ok := obj.ClosestApproach(); ok {
			out = append(out, obj)
		}
	}
	slices.SortStableFunc(out, func(a, b NearEarthObject) int {
		ca, _ := a.ClosestApproach()
		cb, _ := b.ClosestApproach()
		return cmp.Compare(ca.MissDistanceKm, cb.MissDistanceKm)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return Lookup{Objects: out, Freshness: feed.Freshness}, nil
}

// ApproachStats summarizes close approaches across the feed. Pointer fields are nil when the feed
// has nothing to measure.
type ApproachStats struct {
	ThisMonth          int      `json:"thisMonth"`
	NextMonth          int      `json:"nextMonth"`
	ThisYear           int      `json:"thisYear"`
	ClosestApproachKm  *float64 `json:"closestApproachKm"`
	FastestVelocityKmH *float64 `json:"fastestVelocityKmh"`
	LargestDiameterKm  *float64 `json:"largestDiameterKm"`
	Freshness
}

// ApproachStatistics counts approaches by calendar month of the service clock and reports extremes.
func (s *Service) ApproachStatistics(ctx context.Context) (ApproachStats, error) {
	feed, err := s.GetAll(ctx)
	if err != nil {
		return ApproachStats{}, err
	}

	now := s.clock.Now()
	thisMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	nextMonth := thisMonth.AddDate(0, 1, 0)

	st := ApproachStats{Freshness: feed.Freshness}
	for _, obj := range feed.Objects {
		if d := obj.DiameterAvgKm(); d > 0 && (st.LargestDiameterKm == nil || d > *st.LargestDiameterKm) {
			st.LargestDiameterKm = &d
		}
		for _, a := range obj.CloseApproaches {
			date := a.Date.In(now.Location())
			switch {
			case sameMonth(date, thisMonth):
				st.ThisMonth++
			case sameMonth(date, nextMonth):
				st.NextMonth++
			}
			if date.Year() == now.Year() {
				st.ThisYear++
			}

			km, kmh := a.MissDistanceKm, a.RelativeVelocityKmH
			if st.ClosestApproachKm == nil || km < *st.ClosestApproachKm {
				st.ClosestApproachKm = &km
			}
			if st.FastestVelocityKmH == nil || kmh > *st.FastestVelocityKmH {
				st.FastestVelocityKmH = &kmh
			}
		}
	}
	return st, nil
}

func sameMonth(t, month time.Time) bool {
	return t.Year() == month.Year() && t.Month() == month.Month()
}

// Sync forces a feed refresh and reports what is now cached. A failed refresh over an existing
// entry comes back stale rather than as an error.
func (s *Service) Sync(ctx context.Context) (Lookup, error) {
	res, err := s.Warm(ctx)
	if err != nil {
		s.log.Error(ctx, "manual sync failed", logger.Error(err))
		return Lookup{}, err
	}
	s.log.Info(ctx, "manual sync completed",
		logger.Int("objects", len(res.Objects)),
		logger.Bool("stale", res.Stale))
	return res, nil
}

// RiskReport explains how an object's risk was derived.
type RiskReport struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	RiskScore            int       `json:"riskScore"`
	RiskLevel            RiskLevel `json:"riskLevel"`
	Points               Breakdown `json:"points"`
	MonitoringPriority   string    `json:"monitoringPriority"`
	ObservationFrequency string    `json:"observationFrequency"`
	ImpactEnergyMt       float64   `json:"impactEnergyMt"`
	Freshness
}

// CalculateRisk scores one object again from its stored attributes. Monitoring uses the current
// clock, so the recommendation can differ from the one computed when the object was cached.
func (s *Service) CalculateRisk(ctx context.Context, id string) (RiskReport, error) {
	obj, fresh, err := s.GetByID(ctx, id)
	if err != nil {
		return RiskReport{}, err
	}

	f := FactorsFor(RawRecord{
		DiameterMinKm:          obj.DiameterMinKm,
		DiameterMaxKm:          obj.DiameterMaxKm,
		IsPotentiallyHazardous: obj.IsPotentiallyHazardous,
		CloseApproaches:        obj.CloseApproaches,
	})
	a := Score(f)
	priority, frequency := Monitoring(a.Level, obj.CloseApproaches, s.clock.Now())

	report := RiskReport{
		ID:                   obj.ID,
		Name:                 obj.Name,
		RiskScore:            a.Score,
		RiskLevel:            a.Level,
		Points:               f.Breakdown(),
		MonitoringPriority:   priority,
		ObservationFrequency: frequency,
		Freshness:            fresh,
	}
	if c, ok := obj.ClosestApproach(); ok {
		report.ImpactEnergyMt = ImpactEnergyMt(obj.DiameterAvgKm(), c.RelativeVelocityKmH)
	}
	return report, nil
}
