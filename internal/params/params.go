// Package params implements the Params Engine (spec.md §4.5): the velocity
// coefficient C², the skill-velocity correlation α, and the suggested bond
// TTL, derived from a user's last-30-day emissions and closed circuits.
package params

import (
	"math"

	"troczen/internal/statutil"
)

// Defaults and clamp bounds, named exactly as spec.md §4.5 states them.
const (
	C2Min     = 0.02
	C2Max     = 0.25
	C2Default = 0.07

	AlphaMin     = 0
	AlphaMax     = 1
	AlphaDefault = 0.3

	TTLMin     = 7
	TTLMax     = 365
	TTLDefault = 28
)

// Window is spec.md §4.5's 30-day lookback.
const Window = 30 * 24 * 3600

// Snapshot is the pre-fetched input ComputeAllParams needs. Callers (the
// thin I/O layer in engine.go) build this from relay queries; every field
// here is already scoped to the user+market+window the caller asked for.
type Snapshot struct {
	// ClosedCircuitAges are age_days of circuits closed in the last 30 days
	// where issued_by = user.
	ClosedCircuitAges []float64
	// PrevWindowClosedCount is the number of such circuits in the preceding
	// 30-day window (for n1Growth).
	PrevWindowClosedCount int
	// BondTTLDays are (expires-issued_at)/86400 for bonds emitted by user in
	// the last 30 days.
	BondTTLDays []float64
	// ExpiredWithoutCircuit is the count of bonds emitted by user in the
	// last 30 days that expired with no associated circuit event.
	ExpiredWithoutCircuit int
	// SkillCircuits are circuits of the last 30 days carrying a skill_cert,
	// with Level parsed from the cert (1 if absent) and AgeDays as closed.
	SkillCircuits []SkillCircuit
}

// SkillCircuit is one closed circuit's skill level and return time, used by
// the α correlation.
type SkillCircuit struct {
	Level   int
	AgeDays float64
}

// AllParams is spec.md §4.5's AllParams result: the three parameters plus
// the intermediate metrics that produced them.
type AllParams struct {
	C2           float64 `json:"c2"`
	Alpha        float64 `json:"alpha"`
	TTLOptimal   int     `json:"ttl_optimal"`
	HealthRatio  float64 `json:"health_ratio"`
	N1Growth     float64 `json:"n1_growth"`
	LoopCount    int     `json:"loop_count"`
	ExpiredCount int     `json:"expired_count"`
	Correlation  float64 `json:"correlation"`
	AvgLevel     float64 `json:"avg_level"`
}

// ComputeC2 is spec.md §4.5's C²(user, market).
func ComputeC2(s Snapshot) (c2, medianReturn, medianTTL, healthRatio, n1Growth float64) {
	medianReturn = statutil.Median(s.ClosedCircuitAges)

	medianTTL = statutil.Median(s.BondTTLDays)
	if len(s.BondTTLDays) == 0 {
		medianTTL = TTLDefault
	}

	loopCount := float64(len(s.ClosedCircuitAges))
	healthRatio = statutil.Clamp(loopCount/math.Max(float64(s.ExpiredWithoutCircuit), 0.1), 0, 2)

	prev := math.Max(float64(s.PrevWindowClosedCount), 1)
	n1Growth = statutil.Clamp((loopCount-float64(s.PrevWindowClosedCount))/prev, 0, 0.5)

	if medianReturn > 0 && medianTTL > 0 {
		c2 = statutil.Clamp((medianReturn/medianTTL)*healthRatio*(1+n1Growth), C2Min, C2Max)
	} else {
		c2 = C2Default
	}
	return c2, medianReturn, medianTTL, healthRatio, n1Growth
}

// ComputeAlpha is spec.md §4.5's α(user, market).
func ComputeAlpha(skillCircuits []SkillCircuit) (alpha, correlation, avgLevel float64) {
	if len(skillCircuits) < 5 {
		return AlphaDefault, 0, avgLevelOf(skillCircuits)
	}

	levels := make([]float64, len(skillCircuits))
	returns := make([]float64, len(skillCircuits))
	for i, sc := range skillCircuits {
		level := sc.Level
		if level <= 0 {
			level = 1
		}
		levels[i] = float64(level)
		returns[i] = -sc.AgeDays
	}
	avgLevel = statutil.Mean(levels)

	if len(skillCircuits) >= 3 {
		r := statutil.Pearson(levels, returns)
		return statutil.Clamp(0.8*r, AlphaMin, AlphaMax), r, avgLevel
	}
	return AlphaDefault, 0, avgLevel
}

func avgLevelOf(skillCircuits []SkillCircuit) float64 {
	if len(skillCircuits) == 0 {
		return 0
	}
	levels := make([]float64, len(skillCircuits))
	for i, sc := range skillCircuits {
		level := sc.Level
		if level <= 0 {
			level = 1
		}
		levels[i] = float64(level)
	}
	return statutil.Mean(levels)
}

// ComputeTTLOptimal is spec.md §4.5's TTLOptimal(user, market).
func ComputeTTLOptimal(medianReturn float64) int {
	if medianReturn == 0 {
		return TTLDefault
	}
	ttl := math.Round(1.5 * medianReturn)
	return int(statutil.Clamp(ttl, TTLMin, TTLMax))
}

// ComputeAllParams is the pure compute core behind AllParams: no network
// access, operating entirely over a pre-fetched Snapshot.
func ComputeAllParams(s Snapshot) AllParams {
	c2, medianReturn, _, healthRatio, n1Growth := ComputeC2(s)
	alpha, correlation, avgLevel := ComputeAlpha(s.SkillCircuits)
	ttl := ComputeTTLOptimal(medianReturn)

	return AllParams{
		C2:           c2,
		Alpha:        alpha,
		TTLOptimal:   ttl,
		HealthRatio:  healthRatio,
		N1Growth:     n1Growth,
		LoopCount:    len(s.ClosedCircuitAges),
		ExpiredCount: s.ExpiredWithoutCircuit,
		Correlation:  correlation,
		AvgLevel:     avgLevel,
	}
}
