// Package dashboard implements the Dashboard Builder (spec.md §4.7):
// aggregates DU, Params, circulation stats, and credential summaries across
// every market a user participates in, and derives a deterministic Signals
// list plus a reciprocal-graph category.
package dashboard

import (
	"troczen/internal/circuit"
	"troczen/internal/du"
	"troczen/internal/paf"
	"troczen/internal/params"
)

// MarketBlock is one market's entry in the dashboard response.
type MarketBlock struct {
	Market      string                  `json:"market"`
	DU          du.Result               `json:"du"`
	Params      params.AllParams        `json:"params"`
	Circulation circuit.UserCirculation `json:"circulation"`
	Credentials CredentialSummary       `json:"credentials"`
	Position    PositionBlock           `json:"position"`
	PAF         paf.Result              `json:"paf"`
	Signals     []string                `json:"signals"`
}

// CredentialSummary is the count-plus-sample block spec.md §4.7 names.
type CredentialSummary struct {
	Count int           `json:"count"`
	First []CredentialRef `json:"first"`
}

// CredentialRef is a minimal projection of a credential for the dashboard's
// sample list.
type CredentialRef struct {
	ID       string `json:"id"`
	PermitID string `json:"permit_id"`
	Level    int    `json:"level"`
	Expires  int64  `json:"expires"`
}

// PositionBlock is spec.md §4.7's "position block (percentile
// placeholders)" — the reference implementation has no population-wide
// ranking data source, so every field is an explicit placeholder rather
// than a silently wrong number (spec.md §9 Open Question: ranking is left
// unimplemented pending a population index).
type PositionBlock struct {
	Method     string `json:"method"`
	Percentile any    `json:"percentile"`
}

func unavailablePosition() PositionBlock {
	return PositionBlock{Method: "unavailable", Percentile: nil}
}

// NetworkBlock is the dashboard's top-level reciprocal-graph summary.
type NetworkBlock struct {
	N1       int     `json:"n1"`
	N2       int     `json:"n2"`
	N2PerN1  float64 `json:"n2_per_n1"`
	Category string  `json:"category"`
}

// Response is spec.md §4.7's overall dashboard shape.
type Response struct {
	Npub      string        `json:"npub"`
	ComputedAt int64        `json:"computed_at"`
	Network   NetworkBlock  `json:"network"`
	Markets   []MarketBlock `json:"markets"`
	Summary   string        `json:"summary"`
}

// Category maps (n1, n2) to spec.md §4.7's four reciprocal-graph tiers.
func Category(n1, n2 int) string {
	switch {
	case n1 >= 10 && n2 >= 50:
		return "Tisseur"
	case n1 >= 5:
		return "Actif"
	case n1 >= 2:
		return "Emergent"
	default:
		return "Starter"
	}
}

func n2PerN1(n1, n2 int) float64 {
	if n1 == 0 {
		return 0
	}
	return float64(n2) / float64(n1)
}

// BuildNetwork assembles the top-level network block.
func BuildNetwork(n1, n2 int) NetworkBlock {
	return NetworkBlock{
		N1:       n1,
		N2:       n2,
		N2PerN1:  n2PerN1(n1, n2),
		Category: Category(n1, n2),
	}
}

// BuildMarketBlock assembles one market's block, computing its Signals list
// from the already-computed DU/Params/Circulation values (spec.md §4.7).
// pafResult is the market's infrastructure-fee estimate (spec.md §9); it is
// informational only and never feeds Signals.
func BuildMarketBlock(marketName string, duResult du.Result, p params.AllParams, circ circuit.UserCirculation, creds CredentialSummary, pafResult paf.Result) MarketBlock {
	return MarketBlock{
		Market:      marketName,
		DU:          duResult,
		Params:      p,
		Circulation: circ,
		Credentials: creds,
		Position:    unavailablePosition(),
		PAF:         pafResult,
		Signals:     Signals(duResult, p, circ),
	}
}
