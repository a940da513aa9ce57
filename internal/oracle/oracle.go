// Package oracle implements the Oracle Service (spec.md §4.9): the
// per-attestation pipeline that verifies eligibility, aggregates unique
// attesters, and issues credentials back to the relay.
package oracle

import (
	"context"
	"fmt"
	"sort"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"troczen/internal/credential"
	"troczen/internal/domain"
	"troczen/internal/nostrmodel"
	"troczen/internal/permit"
	"troczen/internal/relay"
	"troczen/internal/telemetry"
)

// Outcome classifies how ProcessAttestation disposed of an incoming event,
// for logging and tests — never part of the wire protocol (spec.md §4.9
// drops are silent from the relay's perspective).
type Outcome string

const (
	OutcomeDropped    Outcome = "dropped"
	OutcomeIdempotent Outcome = "idempotent"
	OutcomeIssued     Outcome = "issued"
	OutcomePending    Outcome = "pending"
)

// Result reports what ProcessAttestation did with one attestation event.
type Result struct {
	Outcome    Outcome
	Reason     string
	Credential *nostr.Event
}

// Service is the I/O wrapper that ties relay queries to the pure
// eligibility/threshold decisions of spec.md §4.9. One Service instance is
// shared across attestations for one issuer identity; the singleflight
// group collapses concurrent threshold re-checks for the same request-id
// into one call whose result every waiting caller receives
// (spec.md §4.9's "ordering note").
type Service struct {
	client        relay.Querier
	issuerNsecHex string
	issuerPubkey  string
	log           zerolog.Logger

	flight singleflight.Group
}

// New builds a Service for one issuer identity.
func New(client relay.Querier, issuerNsecHex, issuerPubkey string) *Service {
	return &Service{
		client:        client,
		issuerNsecHex: issuerNsecHex,
		issuerPubkey:  issuerPubkey,
		log:           telemetry.Logger("oracle"),
	}
}

// ProcessAttestation runs the six-step algorithm of spec.md §4.9 against one
// raw kind-30502 event.
func (s *Service) ProcessAttestation(ctx context.Context, ev *nostr.Event) (Result, error) {
	att := domain.ParseAttestation(ev)

	// Step 1: resolve request-id.
	if att.RequestID == "" {
		s.log.Warn().Str("event_id", ev.ID).Msg("attestation missing request reference")
		return Result{Outcome: OutcomeDropped, Reason: "no request-id"}, nil
	}

	// Step 2: idempotence — a credential already issued for this request by
	// this issuer short-circuits everything else.
	existing, err := s.client.Query(ctx, nostr.Filters{{
		Kinds:   []int{nostrmodel.KindCredential},
		Authors: []string{s.issuerPubkey},
		Tags:    nostr.TagMap{"e": []string{att.RequestID}},
		Limit:   1,
	}})
	if err != nil {
		return Result{}, err
	}
	if len(existing) > 0 {
		s.log.Info().Str("request_id", att.RequestID).Msg("credential already issued, skipping")
		return Result{Outcome: OutcomeIdempotent}, nil
	}

	// Step 3: resolve the permit request.
	reqEvents, err := s.client.Query(ctx, nostr.Filters{{
		Kinds: []int{nostrmodel.KindPermitReq},
		IDs:   []string{att.RequestID},
		Limit: 1,
	}})
	if err != nil {
		return Result{}, err
	}
	if len(reqEvents) == 0 {
		// RequestID may have been an addressable (`a`) reference rather
		// than an event id; fall back to a `d`-tag lookup.
		reqEvents, err = s.client.Query(ctx, nostr.Filters{{
			Kinds: []int{nostrmodel.KindPermitReq},
			Tags:  nostr.TagMap{"d": []string{att.RequestID}},
			Limit: 1,
		}})
		if err != nil {
			return Result{}, err
		}
	}
	if len(reqEvents) == 0 {
		s.log.Warn().Str("request_id", att.RequestID).Msg("permit request not found")
		return Result{Outcome: OutcomeDropped, Reason: "request not found"}, nil
	}
	req := domain.ParsePermitReq(reqEvents[0])

	// Step 4: self-attestation forbidden.
	if att.Attester == req.Pubkey {
		s.log.Info().Str("attester", att.Attester).Msg("self-attestation rejected")
		return Result{Outcome: OutcomeDropped, Reason: "self-attestation"}, nil
	}

	// Step 5: for level > 1, the attester must hold the parent credential.
	level := permit.ExtractLevel(req.PermitID)
	if level > 1 {
		parentID, ok := permit.ParentID(req.PermitID)
		if !ok {
			s.log.Warn().Str("permit_id", req.PermitID).Msg("level > 1 permit has no derivable parent")
			return Result{Outcome: OutcomeDropped, Reason: "no parent permit"}, nil
		}
		parentCreds, err := s.client.Query(ctx, nostr.Filters{{
			Kinds: []int{nostrmodel.KindCredential},
			Tags:  nostr.TagMap{"p": []string{att.Attester}, "permit_id": []string{parentID}},
			Limit: 1,
		}})
		if err != nil {
			return Result{}, err
		}
		if len(parentCreds) == 0 {
			s.log.Info().Str("attester", att.Attester).Str("parent_permit_id", parentID).Msg("attester lacks parent credential")
			return Result{Outcome: OutcomeDropped, Reason: "missing parent credential"}, nil
		}
	}

	// Step 6: aggregate attesters and, if the threshold is met, issue.
	return s.checkThresholdAndIssue(ctx, req, att)
}

// checkThresholdAndIssue is guarded by singleflight keyed on request-id so
// that two attestations arriving concurrently for the same request collapse
// into one threshold check (spec.md §4.9's ordering note; the idempotence
// check in step 2 is the actual safety net — this just avoids redundant
// relay round-trips).
func (s *Service) checkThresholdAndIssue(ctx context.Context, req domain.PermitReq, att domain.Attestation) (Result, error) {
	type outcome struct {
		result Result
		err    error
	}

	v, err, _ := s.flight.Do(att.RequestID, func() (any, error) {
		permitDefs, err := s.client.Query(ctx, nostr.Filters{{
			Kinds: []int{nostrmodel.KindPermitDef},
			Tags:  nostr.TagMap{"d": []string{req.PermitID}},
			Limit: 1,
		}})
		if err != nil {
			return outcome{err: err}, nil
		}
		defRequired := 0
		var permitName string
		if len(permitDefs) > 0 {
			def := domain.ParsePermitDef(permitDefs[0])
			defRequired = def.RequiredAttestations
			permitName = def.Name
		}
		required := permit.RequiredAttestations(req.PermitID, defRequired)

		attEvents, err := s.client.QueryPaginated(ctx, []int{nostrmodel.KindAttestation}, 0, 0, nostr.Filter{
			Tags: nostr.TagMap{"e": []string{att.RequestID}},
		})
		if err != nil {
			return outcome{err: err}, nil
		}

		attesters := make(map[string]struct{})
		attesters[att.Attester] = struct{}{}
		for _, ev := range attEvents {
			a := domain.ParseAttestation(ev)
			attesters[a.Attester] = struct{}{}
		}

		if len(attesters) < required {
			return outcome{result: Result{Outcome: OutcomePending, Reason: fmt.Sprintf("%d/%d attestations", len(attesters), required)}}, nil
		}

		sorted := make([]string, 0, len(attesters))
		for a := range attesters {
			sorted = append(sorted, a)
		}
		sort.Strings(sorted)

		signedEv, err := credential.Issue(ctx, s.client, s.issuerNsecHex, req.Pubkey, req.PermitID, att.RequestID, permitName, sorted, nil, nil)
		if err != nil {
			return outcome{err: err}, nil
		}
		s.log.Info().Str("request_id", att.RequestID).Str("credential_id", signedEv.ID).Msg("credential issued")
		return outcome{result: Result{Outcome: OutcomeIssued, Credential: &signedEv}}, nil
	})
	if err != nil {
		return Result{}, err
	}

	o := v.(outcome)
	if o.err != nil {
		return Result{}, o.err
	}
	return o.result, nil
}
