package dashboard

import (
	"context"

	"github.com/nbd-wtf/go-nostr"

	"troczen/internal/circuit"
	"troczen/internal/domain"
	"troczen/internal/du"
	"troczen/internal/nostrmodel"
	"troczen/internal/paf"
	"troczen/internal/params"
	"troczen/internal/relay"
)

// DefaultMarket is used when the user has authored no bond carrying a
// market tag (spec.md §4.7: "fallback: a single default market when none").
const DefaultMarket = "default"

// CredentialSampleSize bounds the "first N credentials" summary.
const CredentialSampleSize = 5

// Builder assembles the dashboard response across every market a user
// participates in (spec.md §4.7).
type Builder struct {
	client            relay.Querier
	duEng             *du.Engine
	paramsEng         *params.Engine
	issuer            string
	monthlyServerCost float64
	zenEurRate        float64
}

// New wraps the engines the dashboard aggregates over. monthlyServerCost and
// zenEurRate feed the per-market PAF estimate (spec.md §9, config MONTHLY_
// SERVER_COST / ZEN_EUR_RATE).
func New(client relay.Querier, duEng *du.Engine, paramsEng *params.Engine, issuerPubkey string, monthlyServerCost, zenEurRate float64) *Builder {
	return &Builder{
		client:            client,
		duEng:             duEng,
		paramsEng:         paramsEng,
		issuer:            issuerPubkey,
		monthlyServerCost: monthlyServerCost,
		zenEurRate:        zenEurRate,
	}
}

// Build is spec.md §4.7's Dashboard Builder entry point.
func (b *Builder) Build(ctx context.Context, npub, userPubkey string) (Response, error) {
	markets, err := b.userMarkets(ctx, userPubkey)
	if err != nil {
		return Response{}, err
	}
	if len(markets) == 0 {
		markets = []string{DefaultMarket}
	}

	n1, err := b.duEng.N1(ctx, userPubkey)
	if err != nil {
		return Response{}, err
	}
	n2, err := b.duEng.N2(ctx, userPubkey)
	if err != nil {
		return Response{}, err
	}
	network := BuildNetwork(len(n1), len(n2))

	circIndexer := circuit.New(b.client)

	var blocks []MarketBlock
	for _, m := range markets {
		duResult, err := b.duEng.DU(ctx, userPubkey, m)
		if err != nil {
			return Response{}, err
		}
		allParams, err := b.paramsEng.AllParams(ctx, userPubkey, m)
		if err != nil {
			return Response{}, err
		}
		circStats, err := circIndexer.UserCirculationStats(ctx, userPubkey)
		if err != nil {
			return Response{}, err
		}
		creds, err := b.credentialSummary(ctx, userPubkey)
		if err != nil {
			return Response{}, err
		}
		marketStats, err := circIndexer.MarketStats(ctx, m)
		if err != nil {
			return Response{}, err
		}
		pafResult := paf.Compute(m, marketStats.ActiveBondsCount, b.monthlyServerCost, b.zenEurRate, int64(nostr.Now()))

		blocks = append(blocks, BuildMarketBlock(m, duResult, allParams, circStats, creds, pafResult))
	}

	return Response{
		Npub:       npub,
		ComputedAt: int64(nostr.Now()),
		Network:    network,
		Markets:    blocks,
		Summary:    summaryOf(network, blocks),
	}, nil
}

// userMarkets discovers every market tag present on bonds the user authored.
func (b *Builder) userMarkets(ctx context.Context, userPubkey string) ([]string, error) {
	events, err := b.client.QueryPaginated(ctx, []int{nostrmodel.KindBond}, 0, 0, nostr.Filter{
		Authors: []string{userPubkey},
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var markets []string
	for _, ev := range events {
		bnd := domain.ParseBond(ev)
		if bnd.Market == "" {
			continue
		}
		if _, ok := seen[bnd.Market]; ok {
			continue
		}
		seen[bnd.Market] = struct{}{}
		markets = append(markets, bnd.Market)
	}
	return markets, nil
}

// credentialSummary fetches the user's credentials issued by the Oracle and
// returns a count plus a bounded sample.
func (b *Builder) credentialSummary(ctx context.Context, userPubkey string) (CredentialSummary, error) {
	events, err := b.client.QueryPaginated(ctx, []int{nostrmodel.KindCredential}, 0, 0, nostr.Filter{
		Authors: []string{b.issuer},
		Tags:    nostr.TagMap{"p": []string{userPubkey}},
	})
	if err != nil {
		return CredentialSummary{}, err
	}

	summary := CredentialSummary{Count: len(events)}
	limit := CredentialSampleSize
	if limit > len(events) {
		limit = len(events)
	}
	for _, ev := range events[:limit] {
		cred := domain.ParseCredential(ev)
		summary.First = append(summary.First, CredentialRef{
			ID:       cred.ID,
			PermitID: cred.PermitID,
			Level:    cred.Level,
			Expires:  cred.Expires,
		})
	}
	return summary, nil
}

func summaryOf(network NetworkBlock, blocks []MarketBlock) string {
	if len(blocks) == 0 {
		return network.Category
	}
	anyActive := false
	for _, bl := range blocks {
		if bl.DU.Active {
			anyActive = true
			break
		}
	}
	if !anyActive {
		return network.Category + ", no active dividend yet"
	}
	return network.Category + ", dividend active"
}
