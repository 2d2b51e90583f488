package neo

import (
	"math"
	"time"
)

// LunarDistanceKm is the mean Earth-Moon distance.
const LunarDistanceKm = 384400.0

// Point scale thresholds. Diameter and velocity tiers are inclusive lower bounds, distance tiers are
// inclusive upper bounds.
const (
	diameterExtinctionKm = 10.0
	diameterRegionalKm   = 1.0
	diameterPHOKm        = 0.14
	diameterLocalKm      = 0.05

	distanceCriticalKm = 100000.0
	distanceLunarKm    = LunarDistanceKm
	distance5LDKm      = 1926000.0
	distance20LDKm     = 7704000.0

	velocityCriticalKmH = 200000.0
	velocityVeryHighKmH = 100000.0
	velocityHighKmH     = 50000.0

	hazardousBonus = 10
	maxScore       = 100
)

// DiameterRange holds estimated diameter bounds in kilometres.
type DiameterRange struct {
	MinKm float64
	MaxKm float64
}

// AvgKm is the midpoint of the bounds.
func (d DiameterRange) AvgKm() float64 { return (d.MinKm + d.MaxKm) / 2 }

// Factors are the scorer inputs. Nil pointers mean the input is absent and contribute nothing.
type Factors struct {
	Diameter       *DiameterRange
	MissDistanceKm *float64
	VelocityKmH    *float64
	Hazardous      bool
}

// Assessment is the scorer output.
type Assessment struct {
	Score int
	Level RiskLevel
}

// Breakdown holds the points each factor contributed before clamping.
type Breakdown struct {
	Diameter  int `json:"diameter"`
	Distance  int `json:"distance"`
	Velocity  int `json:"velocity"`
	Hazardous int `json:"hazardous"`
}

// Breakdown scores each factor on its own. Absent factors contribute zero.
func (f Factors) Breakdown() Breakdown {
	var b Breakdown
	if f.Diameter != nil {
		b.Diameter = diameterPoints(f.Diameter.AvgKm())
	}
	if f.MissDistanceKm != nil {
		b.Distance = distancePoints(*f.MissDistanceKm)
	}
	if f.VelocityKmH != nil {
		b.Velocity = velocityPoints(*f.VelocityKmH)
	}
	if f.Hazardous {
		b.Hazardous = hazardousBonus
	}
	return b
}

// Score maps factors to a risk score in [0,100] and its level. It is pure.
func Score(f Factors) Assessment {
	b := f.Breakdown()
	total := b.Diameter + b.Distance + b.Velocity + b.Hazardous

	total = max(0, min(total, maxScore))
	return Assessment{Score: total, Level: LevelFor(total)}
}

func diameterPoints(km float64) int {
	switch {
	case km >= diameterExtinctionKm:
		return 40
	case km >= diameterRegionalKm:
		return 30
	case km >= diameterPHOKm:
		return 20
	case km >= diameterLocalKm:
		return 10
	default:
		return 5
	}
}

func distancePoints(km float64) int {
	switch {
	case km <= distanceCriticalKm:
		return 30
	case km <= distanceLunarKm:
		return 25
	case km <= distance5LDKm:
		return 15
	case km <= distance20LDKm:
		return 10
	default:
		return 5
	}
}

func velocityPoints(kmh float64) int {
	switch {
	case kmh >= velocityCriticalKmH:
		return 20
	case kmh >= velocityVeryHighKmH:
		return 15
	case kmh >= velocityHighKmH:
		return 10
	default:
		return 5
	}
}

// LevelFor buckets a score. Cut points: <20 very_low, <40 low, <60 medium, <80 high, <95 very_high,
// otherwise critical.
func LevelFor(score int) RiskLevel {
	switch {
	case score < 20:
		return RiskVeryLow
	case score < 40:
		return RiskLow
	case score < 60:
		return RiskMedium
	case score < 80:
		return RiskHigh
	case score < 95:
		return RiskVeryHigh
	default:
		return RiskCritical
	}
}

// Monitoring priorities and observation frequencies.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"

	FrequencyYearly  = "yearly"
	FrequencyMonthly = "monthly"
	FrequencyWeekly  = "weekly"
	FrequencyDaily   = "daily"
)

const imminentApproachWindow = 30 * 24 * time.Hour

// Monitoring recommends a priority and observation frequency. An approach within 30 days after now
// forces daily observation and lifts a low priority to medium.
func Monitoring(level RiskLevel, approaches []CloseApproach, now time.Time) (priority, frequency string) {
	switch level {
	case RiskCritical, RiskVeryHigh:
		priority, frequency = PriorityCritical, FrequencyDaily
	case RiskHigh:
		priority, frequency = PriorityHigh, FrequencyWeekly
	case RiskMedium:
		priority, frequency = PriorityMedium, FrequencyMonthly
	default:
		priority, frequency = PriorityLow, FrequencyYearly
	}

	for _, a := range approaches {
		until := a.Date.Sub(now)
		if until > 0 && until < imminentApproachWindow {
			frequency = FrequencyDaily
			if priority == PriorityLow {
				priority = PriorityMedium
			}
			break
		}
	}
	return priority, frequency
}

// EstimateDiameterKm derives a diameter from absolute magnitude H assuming an albedo of 0.25.
func EstimateDiameterKm(h float64) float64 {
	const albedo = 0.25
	return (1329 / math.Sqrt(albedo)) * math.Pow(10, -0.2*h)
}

// ImpactEnergyMt is the kinetic energy in megatons of TNT of a sphere of the given diameter
// travelling at velocityKmH, with a density of 2000 kg/m3.
func ImpactEnergyMt(diameterKm, velocityKmH float64) float64 {
	const (
		densityKgM3   = 2000.0
		joulesPerMton = 4.184e15
	)
	if diameterKm <= 0 || velocityKmH <= 0 {
		return 0
	}
	radiusM := diameterKm * 1000 / 2
	massKg := (4.0 / 3.0) * math.Pi * math.Pow(radiusM, 3) * densityKgM3
	velocityMS := velocityKmH / 3.6
	return 0.5 * massKg * velocityMS * velocityMS / joulesPerMton
}
