package circuit

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"troczen/internal/domain"
	"troczen/internal/market"
	"troczen/internal/nostrmodel"
	"troczen/internal/relay"
)

// Indexer is the I/O wrapper around relay.Client for every Circuit Indexer
// query (spec.md §4.4). Each method is a thin fetch-then-compute shell; the
// arithmetic itself lives in compute.go where it can be tested without a
// relay.
type Indexer struct {
	client relay.Querier
}

// New wraps an already-dialed relay client.
func New(client relay.Querier) *Indexer {
	return &Indexer{client: client}
}

// ActiveBonds returns every non-expired bond tagged with the given market.
func (ix *Indexer) ActiveBonds(ctx context.Context, marketName string) ([]domain.Bond, error) {
	bonds, err := ix.bondsByMarket(ctx, marketName)
	if err != nil {
		return nil, err
	}
	return ActiveBondsOnly(bonds, int64(nostr.Now())), nil
}

// BondByID fetches the single bond addressed by id (the "zen-" prefixed
// d-tag value), or ok=false if the relay has no such bond.
func (ix *Indexer) BondByID(ctx context.Context, id string) (domain.Bond, bool, error) {
	events, err := ix.client.Query(ctx, nostr.Filters{{
		Kinds: []int{nostrmodel.KindBond},
		Tags:  nostr.TagMap{"d": []string{"zen-" + id, id}},
		Limit: 1,
	}})
	if err != nil {
		return domain.Bond{}, false, err
	}
	if len(events) == 0 {
		return domain.Bond{}, false, nil
	}
	return domain.ParseBond(events[0]), true, nil
}

// CircuitByBondID returns every circuit closed against the given bond id.
func (ix *Indexer) CircuitByBondID(ctx context.Context, bondID string) ([]domain.Circuit, error) {
	events, err := ix.client.QueryPaginated(ctx, []int{nostrmodel.KindCircuit}, 0, 0, nostr.Filter{
		Tags: nostr.TagMap{"bon_id": []string{bondID}},
	})
	if err != nil {
		return nil, err
	}
	return parseCircuits(events), nil
}

// Circuits returns every circuit tagged with the given market.
func (ix *Indexer) Circuits(ctx context.Context, marketName string) ([]domain.Circuit, error) {
	tag := market.Tag(marketName)
	events, err := ix.client.QueryPaginated(ctx, []int{nostrmodel.KindCircuit}, 0, 0, nostr.Filter{
		Tags: nostr.TagMap{"market": []string{tag}},
	})
	if err != nil {
		return nil, err
	}
	return parseCircuits(events), nil
}

// MarketStats fetches bonds and circuits for marketName and returns Stats.
func (ix *Indexer) MarketStats(ctx context.Context, marketName string) (Stats, error) {
	bonds, err := ix.bondsByMarket(ctx, marketName)
	if err != nil {
		return Stats{}, err
	}
	circuits, err := ix.Circuits(ctx, marketName)
	if err != nil {
		return Stats{}, err
	}
	return ComputeMarketStats(bonds, circuits, int64(nostr.Now())), nil
}

// IntermarketRates fetches every circuit across every market and derives the
// rate matrix (spec.md §4.4). Unlike MarketStats this is necessarily global:
// a rate between two markets can't be computed from one market's circuits
// alone.
func (ix *Indexer) IntermarketRates(ctx context.Context) (RateMatrix, error) {
	events, err := ix.client.QueryPaginated(ctx, []int{nostrmodel.KindCircuit}, 0, 0, nostr.Filter{})
	if err != nil {
		return nil, err
	}
	circuits := parseCircuits(events)
	return ComputeIntermarketRates(circuits, int64(nostr.Now())), nil
}

// UserCirculationStats fetches the user's circuits closed in the last 30
// days (by author, over every market) and currently active bonds they hold,
// then derives UserCirculation.
func (ix *Indexer) UserCirculationStats(ctx context.Context, pubkey string) (UserCirculation, error) {
	since := nostr.Timestamp(int64(nostr.Now()) - windowSeconds)
	circuitEvents, err := ix.client.QueryPaginated(ctx, []int{nostrmodel.KindCircuit}, 0, 0, nostr.Filter{
		Authors: []string{pubkey},
		Since:   &since,
	})
	if err != nil {
		return UserCirculation{}, err
	}
	circuits := parseCircuits(circuitEvents)

	bondEvents, err := ix.client.QueryPaginated(ctx, []int{nostrmodel.KindBond}, 0, 0, nostr.Filter{
		Authors: []string{pubkey},
	})
	if err != nil {
		return UserCirculation{}, err
	}
	var bonds []domain.Bond
	for _, ev := range bondEvents {
		bonds = append(bonds, domain.ParseBond(ev))
	}
	active := ActiveBondsOnly(bonds, int64(nostr.Now()))

	return ComputeUserCirculationStats(circuits, active, int64(nostr.Now())), nil
}

func (ix *Indexer) bondsByMarket(ctx context.Context, marketName string) ([]domain.Bond, error) {
	tag := market.Tag(marketName)
	events, err := ix.client.QueryPaginated(ctx, []int{nostrmodel.KindBond}, 0, 0, nostr.Filter{
		Tags: nostr.TagMap{"market": []string{tag}},
	})
	if err != nil {
		return nil, err
	}
	var bonds []domain.Bond
	for _, ev := range events {
		bonds = append(bonds, domain.ParseBond(ev))
	}
	return bonds, nil
}

func parseCircuits(events []*nostr.Event) []domain.Circuit {
	var circuits []domain.Circuit
	for _, ev := range events {
		circuits = append(circuits, domain.ParseCircuit(ev))
	}
	return circuits
}
