package circuit

import (
	"troczen/internal/domain"
	"troczen/internal/statutil"
)

// ComputeMarketStats derives Stats from an already-fetched bond/circuit
// snapshot for one market (spec.md §4.4). bonds must already be filtered to
// the market; circuits must already be filtered to the market and to the
// window the caller wants loops_30d/avg age computed over (30 days plus
// enough margin to compute the average correctly — callers pass every
// circuit they have for the market and ComputeMarketStats applies the
// 30-day loops_30d filter itself).
func ComputeMarketStats(bonds []domain.Bond, circuits []domain.Circuit, now int64) Stats {
	active := ActiveBondsOnly(bonds, now)

	var activeValue float64
	for _, b := range active {
		activeValue += b.Value
	}

	cutoff := now - windowSeconds
	loops30d := 0
	var ages []float64
	skillDist := make(map[string]int)
	for _, c := range circuits {
		if int64(c.CreatedAt) >= cutoff {
			loops30d++
		}
		ages = append(ages, c.AgeDays)
		skill := c.SkillCert
		if skill == "" {
			skill = "none"
		}
		skillDist[skill]++
	}

	avgAge := statutil.Mean(ages)

	// health_ratio: active circulation relative to outstanding active mass;
	// guards the zero-mass case to avoid a division by zero.
	healthRatio := 0.0
	if activeValue > 0 {
		var loopsValue float64
		for _, c := range circuits {
			if int64(c.CreatedAt) >= cutoff {
				loopsValue += c.ValueZen
			}
		}
		healthRatio = loopsValue / activeValue
	}

	return Stats{
		ActiveBondsCount:  len(active),
		ActiveBondsValue:  activeValue,
		Loops30d:          loops30d,
		AvgCircuitAgeDays: avgAge,
		SkillDistribution: skillDist,
		HealthRatio:       healthRatio,
		ComputedAt:        now,
	}
}

// ComputeIntermarketRates derives the rate matrix from every circuit of the
// last 30 days whose content names a dest_market_id distinct from its own
// content market_id (spec.md §4.4's IntermarketRates paragraph). Both sides
// of the pairing come from the circuit's content JSON, not the normalized
// `market` tag, so they share a namespace. Market pairs with zero total flow
// are omitted. Both directions of a populated pair always sum to 1.
func ComputeIntermarketRates(circuits []domain.Circuit, now int64) RateMatrix {
	cutoff := now - windowSeconds
	flow := make(map[[2]string]float64) // [from, to] -> value

	for _, c := range circuits {
		if int64(c.CreatedAt) < cutoff {
			continue
		}
		if c.DestMarketID == "" || c.DestMarketID == c.MarketID {
			continue
		}
		flow[[2]string{c.MarketID, c.DestMarketID}] += c.ValueZen
	}

	pairs := make(map[[2]string]struct{})
	for k := range flow {
		a, b := k[0], k[1]
		if a > b {
			a, b = b, a
		}
		pairs[[2]string{a, b}] = struct{}{}
	}

	rates := make(RateMatrix)
	for pair := range pairs {
		a, b := pair[0], pair[1]
		aToB := flow[[2]string{a, b}]
		bToA := flow[[2]string{b, a}]
		total := aToB + bToA
		if total <= 0 {
			continue
		}
		if rates[a] == nil {
			rates[a] = make(map[string]float64)
		}
		if rates[b] == nil {
			rates[b] = make(map[string]float64)
		}
		rates[a][b] = aToB / total
		rates[b][a] = bToA / total
	}
	return rates
}

// ComputeUserCirculationStats derives UserCirculation from the user's
// 30-day closed circuits and their currently active bonds (spec.md §4.4).
func ComputeUserCirculationStats(userCircuits []domain.Circuit, userActiveBonds []domain.Bond, now int64) UserCirculation {
	var ages, hops, value []float64
	for _, c := range userCircuits {
		ages = append(ages, c.AgeDays)
		hops = append(hops, float64(c.HopCount))
		value = append(value, c.ValueZen)
	}

	var summed float64
	for _, v := range value {
		summed += v
	}

	var inTransitCount int
	var inTransitValue float64
	var ttls []float64
	for _, b := range userActiveBonds {
		if b.Expires <= now {
			continue
		}
		residualDays := float64(b.Expires-now) / 86400
		ttls = append(ttls, residualDays)
		if b.HopCount > 0 {
			inTransitCount++
			inTransitValue += b.Value
		}
	}

	return UserCirculation{
		LoopCount:           len(userCircuits),
		SummedValue:         summed,
		MedianCircuitAge:    statutil.Median(ages),
		MeanHopCount:        statutil.Mean(hops),
		InTransitCount:      inTransitCount,
		InTransitValue:      inTransitValue,
		MeanResidualTTLDays: statutil.Mean(ttls),
	}
}
