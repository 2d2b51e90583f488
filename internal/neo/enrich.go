package neo

import "time"

// FactorsFor extracts scorer inputs from a raw record. The diameter is absent when upstream supplied
// no estimate; the miss distance and velocity come from the closest approach.
func FactorsFor(r RawRecord) Factors {
	f := Factors{Hazardous: r.IsPotentiallyHazardous}
	if r.DiameterMaxKm > 0 {
		f.Diameter = &DiameterRange{MinKm: r.DiameterMinKm, MaxKm: r.DiameterMaxKm}
	}
	if a, ok := closestApproach(r.CloseApproaches); ok {
		dist, vel := a.MissDistanceKm, a.RelativeVelocityKmH
		f.MissDistanceKm = &dist
		f.VelocityKmH = &vel
	}
	return f
}

// Enrich scores a raw record and derives its monitoring recommendation and impact energy.
// now only influences the monitoring frequency.
func Enrich(r RawRecord, now time.Time) NearEarthObject {
	a := Score(FactorsFor(r))
	approaches := make([]CloseApproach, len(r.CloseApproaches))
	copy(approaches, r.CloseApproaches)

	obj := NearEarthObject{
		ID:                     r.ID,
		Name:                   r.Name,
		NasaJplURL:             r.NasaJplURL,
		DiameterMinKm:          r.DiameterMinKm,
		DiameterMaxKm:          r.DiameterMaxKm,
		IsPotentiallyHazardous: r.IsPotentiallyHazardous,
		IsSentryObject:         r.IsSentryObject,
		AbsoluteMagnitudeH:     r.AbsoluteMagnitudeH,
		CloseApproaches:        approaches,
		RiskScore:              a.Score,
		RiskLevel:              a.Level,
	}
	obj.MonitoringPriority, obj.ObservationFrequency = Monitoring(a.Level, obj.CloseApproaches, now)
	if c, ok := obj.ClosestApproach(); ok {
		obj.ImpactEnergyMt = ImpactEnergyMt(obj.DiameterAvgKm(), c.RelativeVelocityKmH)
	}
	return obj
}

// EnrichAll enriches every record in order.
func EnrichAll(records []RawRecord, now time.Time) []NearEarthObject {
	out := make([]NearEarthObject, 0, len(records))
	for _, r := range records {
		out = append(out, Enrich(r, now))
	}
	return out
}
