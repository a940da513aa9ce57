package circuit

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"troczen/internal/domain"
)

func TestComputeMarketStats_ExcludesExpiredBonds(t *testing.T) {
	now := int64(1_000_000)
	bonds := []domain.Bond{
		{ID: "a", Value: 10, Expires: now + 100},
		{ID: "b", Value: 5, Expires: now - 100}, // expired
	}
	circuits := []domain.Circuit{
		{CreatedAt: 0, AgeDays: 2, ValueZen: 3, SkillCert: "PERMIT_X"},
	}

	stats := ComputeMarketStats(bonds, circuits, now)
	require.Equal(t, 1, stats.ActiveBondsCount)
	require.Equal(t, 10.0, stats.ActiveBondsValue)
}

func TestComputeMarketStats_Loops30dCountsOnlyRecentCircuits(t *testing.T) {
	now := int64(100 * 24 * 3600)
	recent := now - 1000
	old := now - windowSeconds - 1000

	circuits := []domain.Circuit{
		{CreatedAt: nostr.Timestamp(recent), AgeDays: 1, ValueZen: 5},
		{CreatedAt: nostr.Timestamp(old), AgeDays: 1, ValueZen: 5},
	}

	stats := ComputeMarketStats(nil, circuits, now)
	require.Equal(t, 1, stats.Loops30d)
}

func TestComputeMarketStats_SkillDistributionDefaultsToNone(t *testing.T) {
	circuits := []domain.Circuit{
		{SkillCert: ""},
		{SkillCert: "PERMIT_A"},
		{SkillCert: "PERMIT_A"},
	}
	stats := ComputeMarketStats(nil, circuits, 0)
	require.Equal(t, 1, stats.SkillDistribution["none"])
	require.Equal(t, 2, stats.SkillDistribution["PERMIT_A"])
}

func TestComputeIntermarketRates_SplitsShareByDirection(t *testing.T) {
	now := int64(100 * 24 * 3600)
	recent := now - 1000

	circuits := []domain.Circuit{
		{CreatedAt: nostr.Timestamp(recent), MarketID: "paris", DestMarketID: "lyon", ValueZen: 30},
		{CreatedAt: nostr.Timestamp(recent), MarketID: "lyon", DestMarketID: "paris", ValueZen: 10},
	}

	rates := ComputeIntermarketRates(circuits, now)
	require.InDelta(t, 0.75, rates["paris"]["lyon"], 1e-9)
	require.InDelta(t, 0.25, rates["lyon"]["paris"], 1e-9)
}

func TestComputeIntermarketRates_OmitsSameMarketAndEmptyDest(t *testing.T) {
	now := int64(100 * 24 * 3600)
	recent := now - 1000
	circuits := []domain.Circuit{
		{CreatedAt: nostr.Timestamp(recent), MarketID: "paris", DestMarketID: "", ValueZen: 30},
		{CreatedAt: nostr.Timestamp(recent), MarketID: "paris", DestMarketID: "paris", ValueZen: 30},
	}
	rates := ComputeIntermarketRates(circuits, now)
	require.Empty(t, rates)
}

func TestComputeIntermarketRates_ViaParsedContent(t *testing.T) {
	now := int64(100 * 24 * 3600)
	recent := int64(now - 1000)

	ev := &nostr.Event{
		Kind:      30304,
		CreatedAt: nostr.Timestamp(recent),
		Tags: nostr.Tags{
			{"d", "c1"}, {"bon_id", "b1"}, {"market", "market_paris"}, {"issued_by", "u1"},
		},
		Content: `{"market_id":"paris","dest_market_id":"lyon","value_zen":30}`,
	}
	c := domain.ParseCircuit(ev)

	rates := ComputeIntermarketRates([]domain.Circuit{c}, now)
	require.InDelta(t, 1.0, rates["paris"]["lyon"], 1e-9)
	require.InDelta(t, 0.0, rates["lyon"]["paris"], 1e-9)
}

func TestComputeUserCirculationStats(t *testing.T) {
	now := int64(1_000_000)
	circuits := []domain.Circuit{
		{AgeDays: 2, HopCount: 3, ValueZen: 10},
		{AgeDays: 4, HopCount: 5, ValueZen: 20},
	}
	bonds := []domain.Bond{
		{Value: 7, Expires: now + 86400, HopCount: 2}, // 1 day residual, in transit
		{Value: 3, Expires: now - 10},                 // already expired, excluded
	}

	stats := ComputeUserCirculationStats(circuits, bonds, now)
	require.Equal(t, 2, stats.LoopCount)
	require.Equal(t, 30.0, stats.SummedValue)
	require.Equal(t, 3.0, stats.MedianCircuitAge)
	require.Equal(t, 4.0, stats.MeanHopCount)
	require.Equal(t, 1, stats.InTransitCount)
	require.Equal(t, 7.0, stats.InTransitValue)
}
