package dashboard

import (
	"troczen/internal/circuit"
	"troczen/internal/du"
	"troczen/internal/params"
)

// SignalThresholds holds the configurable cutoffs behind Signals. Spec.md
// §4.7: "Implementers MUST keep these thresholds configurable but MUST NOT
// change the default values in the reference without a migration note."
type SignalThresholds struct {
	HealthRatioLow  float64
	C2High          float64
	C2Low           float64
	TTLLow          int
	TTLHigh         int
	AlphaHigh       float64
	AlphaLow        float64
	DUHigh          float64
	LoopsHigh       int
}

// DefaultThresholds are the reference implementation's fixed defaults.
var DefaultThresholds = SignalThresholds{
	HealthRatioLow: 1,
	C2High:         0.12,
	C2Low:          0.05,
	TTLLow:         14,
	TTLHigh:        60,
	AlphaHigh:      0.5,
	AlphaLow:       0.1,
	DUHigh:         20,
	LoopsHigh:      10,
}

// Signals evaluates the deterministic textual predicates of spec.md §4.7
// against DefaultThresholds. If none trigger, the default "stable" signal
// is emitted.
func Signals(d du.Result, p params.AllParams, circ circuit.UserCirculation) []string {
	return SignalsWithThresholds(d, p, circ, DefaultThresholds)
}

// SignalsWithThresholds evaluates the predicates against explicit
// thresholds, for callers that override the reference defaults.
func SignalsWithThresholds(d du.Result, p params.AllParams, circ circuit.UserCirculation, th SignalThresholds) []string {
	var signals []string

	if p.HealthRatio < th.HealthRatioLow {
		signals = append(signals, "health_ratio_low")
	}
	if p.C2 > th.C2High {
		signals = append(signals, "c2_high")
	}
	if p.C2 < th.C2Low {
		signals = append(signals, "c2_low")
	}
	if p.TTLOptimal < th.TTLLow {
		signals = append(signals, "ttl_optimal_low")
	}
	if p.TTLOptimal > th.TTLHigh {
		signals = append(signals, "ttl_optimal_high")
	}
	if p.Alpha > th.AlphaHigh {
		signals = append(signals, "alpha_high")
	}
	if p.Alpha < th.AlphaLow {
		signals = append(signals, "alpha_low")
	}
	if !d.Active {
		signals = append(signals, "du_inactive")
	}
	if d.DU > th.DUHigh {
		signals = append(signals, "du_high")
	}
	if circ.LoopCount > th.LoopsHigh {
		signals = append(signals, "loops_high")
	}
	if circ.LoopCount == 0 {
		signals = append(signals, "loops_zero")
	}

	if len(signals) == 0 {
		return []string{"stable"}
	}
	return signals
}
