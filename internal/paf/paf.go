// Package paf computes the infrastructure-fee (Participation aux Frais)
// estimate (spec.md §9): an approximate per-user monthly cost share derived
// from active-bond count as a proxy for active users. This is explicitly a
// heuristic, not a load-bearing economic invariant, and is kept trivially
// replaceable (spec.md §9: "document as such and keep the formula trivially
// replaceable").
package paf

// BondsPerUser is the rough active-bonds-per-user divisor the heuristic
// uses to estimate the number of active users from active_bonds_count.
const BondsPerUser = 3

// Result is the PAF estimate for one market.
type Result struct {
	MarketID              string  `json:"market_id"`
	MonthlyPAFZen         float64 `json:"monthly_paf_zen"`
	MonthlyPAFEur         float64 `json:"monthly_paf_eur"`
	ZenEurRate            float64 `json:"zen_eur_rate"`
	EstimatedUsers        int     `json:"estimated_users"`
	InfrastructureCostEur float64 `json:"infrastructure_cost_eur"`
	ComputedAt            int64   `json:"computed_at"`
}

// Compute derives Result from the market's active bond count and the
// configured monthly server cost / Zen-EUR rate.
func Compute(marketID string, activeBondsCount int, monthlyServerCostEur, zenEurRate float64, now int64) Result {
	estimatedUsers := activeBondsCount / BondsPerUser
	if estimatedUsers < 1 {
		estimatedUsers = 1
	}

	monthlyPAFEur := monthlyServerCostEur / float64(estimatedUsers)
	monthlyPAFZen := monthlyPAFEur / zenEurRate

	return Result{
		MarketID:              marketID,
		MonthlyPAFZen:         round2(monthlyPAFZen),
		MonthlyPAFEur:         round2(monthlyPAFEur),
		ZenEurRate:            zenEurRate,
		EstimatedUsers:        estimatedUsers,
		InfrastructureCostEur: monthlyServerCostEur,
		ComputedAt:            now,
	}
}

func round2(x float64) float64 {
	return float64(int(x*100+0.5)) / 100
}
