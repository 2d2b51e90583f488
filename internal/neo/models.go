package neo

import (
	"encoding/json"
	"strings"
	"time"
)

// OrbitingBody is the body an approach is measured against.
type OrbitingBody string

const (
	BodyEarth   OrbitingBody = "Earth"
	BodyMars    OrbitingBody = "Mars"
	BodyVenus   OrbitingBody = "Venus"
	BodyJupiter OrbitingBody = "Jupiter"
)

// ParseOrbitingBody maps upstream body names, including NeoWs abbreviations, onto the supported set.
func ParseOrbitingBody(s string) (OrbitingBody, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "earth":
		return BodyEarth, true
	case "mars":
		return BodyMars, true
	case "venus":
		return BodyVenus, true
	case "jupiter", "juptr":
		return BodyJupiter, true
	default:
		return "", false
	}
}

// RiskLevel is the categorical bucket of a risk score.
type RiskLevel string

const (
	RiskVeryLow  RiskLevel = "very_low"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
	RiskCritical RiskLevel = "critical"
)

// RiskLevels lists every level in ascending order.
var RiskLevels = []RiskLevel{RiskVeryLow, RiskLow, RiskMedium, RiskHigh, RiskVeryHigh, RiskCritical}

// Rank returns the position of the level in RiskLevels, or -1 for unknown values.
func (l RiskLevel) Rank() int {
	for i, v := range RiskLevels {
		if v == l {
			return i
		}
	}
	return -1
}

// ParseRiskLevel validates a level name.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	l := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Rank() >= 0
}

// CloseApproach is one pass of an object near an orbiting body.
type CloseApproach struct {
	Date                time.Time    `json:"date"`
	MissDistanceKm      float64      `json:"missDistanceKm"`
	RelativeVelocityKmH float64      `json:"relativeVelocityKmH"`
	OrbitingBody        OrbitingBody `json:"orbitingBody"`
}

// MissDistanceLunar expresses the miss distance in lunar distances.
func (a CloseApproach) MissDistanceLunar() float64 {
	return a.MissDistanceKm / LunarDistanceKm
}

// RawRecord is the normalized shape every fetcher returns. It carries no derived risk data.
type RawRecord struct {
	ID                     string
	Name                   string
	NasaJplURL             string
	DiameterMinKm          float64
	DiameterMaxKm          float64
	IsPotentiallyHazardous bool
	IsSentryObject         bool
	AbsoluteMagnitudeH     float64
	CloseApproaches        []CloseApproach // chronological, as supplied upstream
}

// NearEarthObject is an enriched, immutable record. Values handed to callers are always copies.
type NearEarthObject struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	NasaJplURL             string          `json:"nasaJplUrl,omitempty"`
	DiameterMinKm          float64         `json:"diameterMinKm"`
	DiameterMaxKm          float64         `json:"diameterMaxKm"`
	IsPotentiallyHazardous bool            `json:"isPotentiallyHazardous"`
	IsSentryObject         bool            `json:"isSentryObject"`
	AbsoluteMagnitudeH     float64         `json:"absoluteMagnitudeH"`
	CloseApproaches        []CloseApproach `json:"closeApproaches"`

	RiskScore            int       `json:"riskScore"`
	RiskLevel            RiskLevel `json:"riskLevel"`
	MonitoringPriority   string    `json:"monitoringPriority"`
	ObservationFrequency string    `json:"observationFrequency"`
	ImpactEnergyMt       float64   `json:"impactEnergyMt"`
}

// DiameterAvgKm is derived from the bounds on every call.
func (n NearEarthObject) DiameterAvgKm() float64 {
	return (n.DiameterMinKm + n.DiameterMaxKm) / 2
}

// ClosestApproach returns the approach with the smallest miss distance.
func (n NearEarthObject) ClosestApproach() (CloseApproach, bool) {
	return closestApproach(n.CloseApproaches)
}

// MarshalJSON adds the derived average diameter to the wire form.
func (n NearEarthObject) MarshalJSON() ([]byte, error) {
	type plain NearEarthObject
	return json.Marshal(struct {
		plain
		DiameterAvgKm float64 `json:"diameterAvgKm"`
	}{plain: plain(n), DiameterAvgKm: n.DiameterAvgKm()})
}

// Clone returns a deep copy.
func (n NearEarthObject) Clone() NearEarthObject {
	if n.CloseApproaches != nil {
		approaches := make([]CloseApproach, len(n.CloseApproaches))
		copy(approaches, n.CloseApproaches)
		n.CloseApproaches = approaches
	}
	return n
}

// CloneAll deep-copies a slice of objects.
func CloneAll(objs []NearEarthObject) []NearEarthObject {
	if objs == nil {
		return nil
	}
	out := make([]NearEarthObject, len(objs))
	for i := range objs {
		out[i] = objs[i].Clone()
	}
	return out
}

// Freshness describes where a served value came from.
type Freshness struct {
	StoredAt time.Time `json:"storedAt"`
	// Stale is set when the entry had expired and the refresh failed.
	Stale bool `json:"stale"`
}

// Lookup is the result of a cache read.
type Lookup struct {
	Objects []NearEarthObject
	Freshness
}

// Clone deep-copies the lookup so callers cannot reach cached state.
func (l Lookup) Clone() Lookup {
	return Lookup{Objects: CloneAll(l.Objects), Freshness: l.Freshness}
}

func closestApproach(approaches []CloseApproach) (CloseApproach, bool) {
	if len(approaches) == 0 {
		return CloseApproach{}, false
	}
	best := approaches[0]
	for _, a := range approaches[1:] {
		if a.MissDistanceKm < best.MissDistanceKm {
			best = a
		}
	}
	return best, true
}
