package du

import (
	"context"

	"github.com/nbd-wtf/go-nostr"
	"golang.org/x/sync/errgroup"

	"troczen/internal/domain"
	"troczen/internal/market"
	"troczen/internal/nostrmodel"
	"troczen/internal/params"
	"troczen/internal/permit"
	"troczen/internal/relay"
)

// batchSize is spec.md §4.6's ActiveMass batching limit.
const batchSize = 50

// Engine is the I/O wrapper around relay.Client for N1/N2, ActiveMass,
// SkillScore and the overall DU computation (spec.md §4.6).
type Engine struct {
	client    relay.Querier
	issuer    string
	paramsEng *params.Engine
	prevDU    PrevDUProvider
}

// New wraps a relay client. issuerPubkey is the Oracle's public key, used to
// scope SkillScore's credential lookup.
func New(client relay.Querier, issuerPubkey string, paramsEng *params.Engine, prevDU PrevDUProvider) *Engine {
	if prevDU == nil {
		prevDU = NullPrevDUProvider{}
	}
	return &Engine{client: client, issuer: issuerPubkey, paramsEng: paramsEng, prevDU: prevDU}
}

// N1 returns the user's reciprocal follow set (spec.md §4.6).
func (e *Engine) N1(ctx context.Context, user string) ([]string, error) {
	graph, err := e.graph(ctx, user)
	if err != nil {
		return nil, err
	}
	return graph.N1, nil
}

// N2 returns the user's second-degree reciprocal set (spec.md §4.6).
func (e *Engine) N2(ctx context.Context, user string) ([]string, error) {
	graph, err := e.graph(ctx, user)
	if err != nil {
		return nil, err
	}
	return graph.N2, nil
}

// graph fetches the user's kind-3 follow set, batch-queries kind-3 for every
// follow, and builds the reciprocal graph.
func (e *Engine) graph(ctx context.Context, user string) (ReciprocalGraph, error) {
	own, err := e.client.Query(ctx, nostr.Filters{{
		Kinds:   []int{nostrmodel.KindContactList},
		Authors: []string{user},
		Limit:   1,
	}})
	if err != nil {
		return ReciprocalGraph{}, err
	}
	if len(own) == 0 {
		return ReciprocalGraph{}, nil
	}
	follows := domain.ParseContactList(own[0]).Follows
	if len(follows) == 0 {
		return ReciprocalGraph{}, nil
	}

	peerFollows, err := e.batchContactLists(ctx, follows)
	if err != nil {
		return ReciprocalGraph{}, err
	}

	n1 := ComputeReciprocalGraph(user, follows, peerFollows).N1

	n1PeerFollows, err := e.batchContactLists(ctx, n1)
	if err != nil {
		return ReciprocalGraph{}, err
	}
	// N2 unions every N1 member's follow set (already fetched above as part
	// of peerFollows when a follow happened to also be reciprocal; re-fetch
	// defensively in case n1 pulls in pubkeys not present in follows' own
	// superset, e.g. when the batch was capped).
	for k, v := range n1PeerFollows {
		peerFollows[k] = v
	}

	return ComputeReciprocalGraph(user, follows, peerFollows), nil
}

// batchContactLists queries kind-3 for every author in pubkeys in one
// request and returns each author's follow set.
func (e *Engine) batchContactLists(ctx context.Context, pubkeys []string) (map[string]map[string]struct{}, error) {
	result := make(map[string]map[string]struct{})
	if len(pubkeys) == 0 {
		return result, nil
	}

	events, err := e.client.Query(ctx, nostr.Filters{{
		Kinds:   []int{nostrmodel.KindContactList},
		Authors: pubkeys,
	}})
	if err != nil {
		return nil, err
	}

	for _, ev := range events {
		cl := domain.ParseContactList(ev)
		set, ok := result[cl.Pubkey]
		if !ok {
			set = make(map[string]struct{})
		}
		for p := range cl.FollowSet() {
			set[p] = struct{}{}
		}
		result[cl.Pubkey] = set
	}
	return result, nil
}

// ActiveMass is spec.md §4.6's ActiveMass(pubkeys, market): sums `value`
// over non-expired bonds authored by any of pubkeys, batched at 50 pubkeys
// per relay query and fetched concurrently via errgroup.
func (e *Engine) ActiveMass(ctx context.Context, pubkeys []string, marketName string) (float64, error) {
	if len(pubkeys) == 0 {
		return 0, nil
	}
	tag := market.Tag(marketName)

	var batches [][]string
	for i := 0; i < len(pubkeys); i += batchSize {
		end := i + batchSize
		if end > len(pubkeys) {
			end = len(pubkeys)
		}
		batches = append(batches, pubkeys[i:end])
	}

	sums := make([]float64, len(batches))
	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			events, err := e.client.Query(gctx, nostr.Filters{{
				Kinds:   []int{nostrmodel.KindBond},
				Authors: batch,
				Tags:    nostr.TagMap{"market": []string{tag}},
			}})
			if err != nil {
				return err
			}
			now := int64(nostr.Now())
			var sum float64
			for _, ev := range events {
				b := domain.ParseBond(ev)
				if b.Active(now) {
					sum += b.Value
				}
			}
			sums[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var total float64
	for _, s := range sums {
		total += s
	}
	return total, nil
}

// SkillScore is spec.md §4.6's SkillScore(user): the mean permit level over
// every credential the issuer has granted to user.
func (e *Engine) SkillScore(ctx context.Context, user string) (float64, error) {
	events, err := e.client.QueryPaginated(ctx, []int{nostrmodel.KindCredential}, 0, 0, nostr.Filter{
		Authors: []string{e.issuer},
		Tags:    nostr.TagMap{"p": []string{user}},
	})
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	var sum float64
	for _, ev := range events {
		cred := domain.ParseCredential(ev)
		level := permit.ExtractLevel(cred.PermitID)
		if level <= 0 {
			level = 1
		}
		sum += float64(level)
	}
	return sum / float64(len(events)), nil
}

// DU is spec.md §4.6's full DU(user, market) orchestration.
func (e *Engine) DU(ctx context.Context, user, marketName string) (Result, error) {
	graph, err := e.graph(ctx, user)
	if err != nil {
		return Result{}, err
	}
	n1, n2 := len(graph.N1), len(graph.N2)
	if n1 < MinN1 {
		return Result{DU: 0, Active: false, Reason: "N1<5", N1: n1, N2: n2}, nil
	}

	m1, err := e.ActiveMass(ctx, graph.N1, marketName)
	if err != nil {
		return Result{}, err
	}
	m2, err := e.ActiveMass(ctx, graph.N2, marketName)
	if err != nil {
		return Result{}, err
	}

	allParams, err := e.paramsEng.AllParams(ctx, user, marketName)
	if err != nil {
		return Result{}, err
	}

	skillScore, err := e.SkillScore(ctx, user)
	if err != nil {
		return Result{}, err
	}

	prev := e.prevDU.PrevDU(user, marketName)
	return ComputeDU(n1, n2, m1, m2, prev, allParams.C2, allParams.Alpha, skillScore), nil
}
