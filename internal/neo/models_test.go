package neo

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestParseOrbitingBody(t *testing.T) {
	cases := map[string]OrbitingBody{"Earth": BodyEarth, "mars": BodyMars, "Venus": BodyVenus, "Juptr": BodyJupiter, "Jupiter": BodyJupiter}
	for in, want := range cases {
		got, ok := ParseOrbitingBody(in)
		if !ok || got != want {
			t.Errorf("ParseOrbitingBody(%q) = %q, %v", in, got, ok)
		}
	}
	for _, in := range []string{"Merc", "Moon", ""} {
		if _, ok := ParseOrbitingBody(in); ok {
			t.Errorf("ParseOrbitingBody(%q) should be rejected", in)
		}
	}
}

func TestParseRiskLevel(t *testing.T) {
	if l, ok := ParseRiskLevel(" Very_High "); !ok || l != RiskVeryHigh {
		t.Fatalf("unexpected level %q ok=%v", l, ok)
	}
	if _, ok := ParseRiskLevel("extreme"); ok {
		t.Fatal("unknown level accepted")
	}
	if RiskCritical.Rank() <= RiskHigh.Rank() {
		t.Fatal("levels should be ordered")
	}
}

func TestMarshalIncludesAverageDiameter(t *testing.T) {
	obj := NearEarthObject{ID: "1", DiameterMinKm: 0.2, DiameterMaxKm: 0.6, CloseApproaches: []CloseApproach{}}
	b, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := out["diameterAvgKm"].(float64); got < 0.3999 || got > 0.4001 {
		t.Fatalf("diameterAvgKm = %v", got)
	}
	if !strings.Contains(string(b), `"closeApproaches":[]`) {
		t.Fatalf("empty approaches should encode as a list: %s", b)
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := NearEarthObject{ID: "1", CloseApproaches: []CloseApproach{{MissDistanceKm: 10}}}
	cp := orig.Clone()
	cp.CloseApproaches[0].MissDistanceKm = 99
	if orig.CloseApproaches[0].MissDistanceKm != 10 {
		t.Fatal("clone shares approaches with the original")
	}

	empty := NearEarthObject{CloseApproaches: []CloseApproach{}}.Clone()
	if empty.CloseApproaches == nil {
		t.Fatal("clone turned an empty list into nil")
	}
}

func TestEnrichUsesClosestApproach(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	r := RawRecord{
		ID:            "1",
		DiameterMinKm: 0.27,
		DiameterMaxKm: 0.61,
		CloseApproaches: []CloseApproach{
			{Date: now.Add(-365 * 24 * time.Hour), MissDistanceKm: 9e6, RelativeVelocityKmH: 250000, OrbitingBody: BodyEarth},
			{Date: now.Add(24 * time.Hour), MissDistanceKm: 31000, RelativeVelocityKmH: 23800, OrbitingBody: BodyEarth},
		},
	}

	obj := Enrich(r, now)
	// 20 diameter + 30 distance + 5 velocity taken from the same approach
	if obj.RiskScore != 55 || obj.RiskLevel != RiskMedium {
		t.Fatalf("unexpected assessment %d/%s", obj.RiskScore, obj.RiskLevel)
	}
	if obj.ObservationFrequency != FrequencyDaily {
		t.Fatalf("approach tomorrow should force daily observation, got %s", obj.ObservationFrequency)
	}
	if obj.ImpactEnergyMt <= 0 {
		t.Fatal("impact energy should be positive")
	}

	r.CloseApproaches[1].MissDistanceKm = 1
	if obj.CloseApproaches[1].MissDistanceKm != 31000 {
		t.Fatal("enriched object shares approaches with the raw record")
	}
}

func TestFactorsForMissingInputs(t *testing.T) {
	f := FactorsFor(RawRecord{ID: "1"})
	if f.Diameter != nil || f.MissDistanceKm != nil || f.VelocityKmH != nil {
		t.Fatalf("absent inputs should stay nil: %+v", f)
	}
	if a := Score(f); a.Score != 0 {
		t.Fatalf("score = %d, want 0", a.Score)
	}
}
