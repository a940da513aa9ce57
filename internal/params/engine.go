package params

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"troczen/internal/domain"
	"troczen/internal/market"
	"troczen/internal/nostrmodel"
	"troczen/internal/permit"
	"troczen/internal/relay"
)

// Engine is the I/O wrapper around relay.Client for AllParams (spec.md
// §4.5). The arithmetic lives in params.go, fully testable without a relay.
type Engine struct {
	client relay.Querier
}

// New wraps an already-dialed relay client.
func New(client relay.Querier) *Engine {
	return &Engine{client: client}
}

// AllParams fetches the market's circuits of the last 60 days (30 days
// current plus 30 days prior, needed for n1Growth) and the user's bonds of
// the last 30 days for market, and computes AllParams.
func (e *Engine) AllParams(ctx context.Context, user, marketName string) (AllParams, error) {
	now := int64(nostr.Now())
	tag := market.Tag(marketName)

	circuitEvents, err := e.client.QueryPaginated(ctx, []int{nostrmodel.KindCircuit}, 0, 0, nostr.Filter{
		Tags:  nostr.TagMap{"market": []string{tag}},
		Since: ts(now - 2*Window),
	})
	if err != nil {
		return AllParams{}, err
	}

	bondEvents, err := e.client.QueryPaginated(ctx, []int{nostrmodel.KindBond}, 0, 0, nostr.Filter{
		Authors: []string{user},
		Tags:    nostr.TagMap{"market": []string{tag}},
		Since:   ts(now - Window),
	})
	if err != nil {
		return AllParams{}, err
	}

	snap := buildSnapshot(circuitEvents, bondEvents, user, now)
	return ComputeAllParams(snap), nil
}

func ts(sec int64) *nostr.Timestamp {
	t := nostr.Timestamp(sec)
	return &t
}

// buildSnapshot turns raw events into the pure-compute Snapshot.
func buildSnapshot(circuitEvents, bondEvents []*nostr.Event, user string, now int64) Snapshot {
	var closedAges, prevAges []float64
	var skillCircuits []SkillCircuit
	cutoff := now - Window
	prevCutoff := now - 2*Window

	bondIDsWithCircuit := make(map[string]struct{})

	for _, ev := range circuitEvents {
		c := domain.ParseCircuit(ev)
		if c.IssuedBy != user {
			continue
		}
		bondIDsWithCircuit[c.BondID] = struct{}{}

		created := int64(c.CreatedAt)
		switch {
		case created >= cutoff:
			closedAges = append(closedAges, c.AgeDays)
			if c.SkillCert != "" {
				level := permit.ExtractLevel(c.SkillCert)
				if level <= 0 {
					level = 1
				}
				skillCircuits = append(skillCircuits, SkillCircuit{Level: level, AgeDays: c.AgeDays})
			}
		case created >= prevCutoff:
			prevAges = append(prevAges, c.AgeDays)
		}
	}

	var ttls []float64
	expiredWithoutCircuit := 0
	for _, ev := range bondEvents {
		b := domain.ParseBond(ev)
		if int64(b.CreatedAt) < cutoff {
			continue
		}
		ttlDays := float64(b.Expires-int64(b.CreatedAt)) / 86400
		ttls = append(ttls, ttlDays)

		if b.Expires <= now {
			if _, hasCircuit := bondIDsWithCircuit[b.ID]; !hasCircuit {
				expiredWithoutCircuit++
			}
		}
	}

	return Snapshot{
		ClosedCircuitAges:     closedAges,
		PrevWindowClosedCount: len(prevAges),
		BondTTLDays:           ttls,
		ExpiredWithoutCircuit: expiredWithoutCircuit,
		SkillCircuits:         skillCircuits,
	}
}
