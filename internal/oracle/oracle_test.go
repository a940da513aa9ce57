package oracle

import (
	"context"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"

	"troczen/internal/nostrmodel"
)

// fakeRelay is a minimal in-memory relay.Querier: Query and QueryPaginated
// both filter a flat event slice, Publish appends to it. Good enough to
// drive ProcessAttestation's six-step algorithm without a WebSocket.
type fakeRelay struct {
	events []*nostr.Event
}

func (f *fakeRelay) Query(_ context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	var out []*nostr.Event
	for _, ev := range f.events {
		for _, filt := range filters {
			if matches(ev, filt) {
				out = append(out, ev)
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRelay) QueryPaginated(ctx context.Context, kinds []int, _, _ int, extra nostr.Filter) ([]*nostr.Event, error) {
	extra.Kinds = kinds
	return f.Query(ctx, nostr.Filters{extra})
}

func (f *fakeRelay) Publish(_ context.Context, ev nostr.Event) error {
	f.events = append(f.events, &ev)
	return nil
}

func matches(ev *nostr.Event, filt nostr.Filter) bool {
	if len(filt.Kinds) > 0 && !containsInt(filt.Kinds, ev.Kind) {
		return false
	}
	if len(filt.Authors) > 0 && !containsStr(filt.Authors, ev.PubKey) {
		return false
	}
	if len(filt.IDs) > 0 && !containsStr(filt.IDs, ev.ID) {
		return false
	}
	for name, vals := range filt.Tags {
		found := false
		for _, tag := range ev.Tags {
			if len(tag) >= 2 && tag[0] == name && containsStr(vals, tag[1]) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func containsStr(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func mustSign(t *testing.T, sk string, ev nostr.Event) *nostr.Event {
	t.Helper()
	require.NoError(t, ev.Sign(sk))
	return &ev
}

// newPermitReq builds a signed kind-30501 event requesting permitID.
func newPermitReq(t *testing.T, requesterSk, id, permitID string) *nostr.Event {
	return mustSign(t, requesterSk, nostr.Event{
		Kind:      nostrmodel.KindPermitReq,
		CreatedAt: nostr.Now(),
		Tags: nostr.Tags{
			{"d", id},
			{"permit_id", permitID},
		},
	})
}

// newAttestation builds a signed kind-30502 event attesting requestEventID.
func newAttestation(t *testing.T, attesterSk, requestEventID string) *nostr.Event {
	return mustSign(t, attesterSk, nostr.Event{
		Kind:      nostrmodel.KindAttestation,
		CreatedAt: nostr.Now(),
		Tags: nostr.Tags{
			{"e", requestEventID},
		},
	})
}

func newPermitDef(t *testing.T, issuerSk, permitID string, required int) *nostr.Event {
	return mustSign(t, issuerSk, nostr.Event{
		Kind:      nostrmodel.KindPermitDef,
		CreatedAt: nostr.Now(),
		Content:   `{"required_attestations":` + itoa(required) + `}`,
		Tags: nostr.Tags{
			{"d", permitID},
			{"name", "Test Permit"},
		},
	})
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

const (
	requesterSk = "0000000000000000000000000000000000000000000000000000000000000001"
	attesterSk1 = "0000000000000000000000000000000000000000000000000000000000000002"
	attesterSk2 = "0000000000000000000000000000000000000000000000000000000000000003"
	issuerSk    = "0000000000000000000000000000000000000000000000000000000000000004"
)

// TestProcessAttestation_CommunityPermitIssuesOnFirstAttestation mirrors
// spec.md §8 scenario 5: a community (X) permit requires one attestation,
// so the first attestation issues the credential immediately.
func TestProcessAttestation_CommunityPermitIssuesOnFirstAttestation(t *testing.T) {
	req := newPermitReq(t, requesterSk, "req-1", "PERMIT_MARAICHAGE_X1")
	att := newAttestation(t, attesterSk1, req.ID)

	issuerPubkey, err := nostr.GetPublicKey(issuerSk)
	require.NoError(t, err)

	relay := &fakeRelay{events: []*nostr.Event{req}}
	svc := New(relay, issuerSk, issuerPubkey)

	result, err := svc.ProcessAttestation(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, OutcomeIssued, result.Outcome)
	require.NotNil(t, result.Credential)
	require.Equal(t, nostrmodel.KindCredential, result.Credential.Kind)
}

// TestProcessAttestation_OfficialPermitRequiresTwoAttestations mirrors
// spec.md §8 scenario 6: an official (V) permit with required_attestations=2
// stays pending after one attestation, issues after the second with a
// sorted attestor list, and the third (duplicate request) is idempotent.
func TestProcessAttestation_OfficialPermitRequiresTwoAttestations(t *testing.T) {
	req := newPermitReq(t, requesterSk, "req-2", "PERMIT_SAFETY_V1")
	def := newPermitDef(t, issuerSk, "PERMIT_SAFETY_V1", 2)
	att1 := newAttestation(t, attesterSk2, req.ID)
	att2 := newAttestation(t, attesterSk1, req.ID)

	issuerPubkey, err := nostr.GetPublicKey(issuerSk)
	require.NoError(t, err)

	relay := &fakeRelay{events: []*nostr.Event{req, def}}
	svc := New(relay, issuerSk, issuerPubkey)

	result1, err := svc.ProcessAttestation(context.Background(), att1)
	require.NoError(t, err)
	require.Equal(t, OutcomePending, result1.Outcome)

	relay.events = append(relay.events, att1)

	result2, err := svc.ProcessAttestation(context.Background(), att2)
	require.NoError(t, err)
	require.Equal(t, OutcomeIssued, result2.Outcome)
	require.NotNil(t, result2.Credential)

	var attestorTags []string
	for _, tag := range result2.Credential.Tags {
		if tag[0] == "attestor" {
			attestorTags = append(attestorTags, tag[1])
		}
	}
	require.Len(t, attestorTags, 2)
	require.True(t, attestorTags[0] < attestorTags[1], "attestors must be sorted")

	relay.events = append(relay.events, result2.Credential)
	att3 := newAttestation(t, attesterSk2, req.ID)
	result3, err := svc.ProcessAttestation(context.Background(), att3)
	require.NoError(t, err)
	require.Equal(t, OutcomeIdempotent, result3.Outcome)
}

func TestProcessAttestation_DropsWhenRequestIDMissing(t *testing.T) {
	att := mustSign(t, attesterSk1, nostr.Event{Kind: nostrmodel.KindAttestation, CreatedAt: nostr.Now()})
	issuerPubkey, _ := nostr.GetPublicKey(issuerSk)
	svc := New(&fakeRelay{}, issuerSk, issuerPubkey)

	result, err := svc.ProcessAttestation(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, OutcomeDropped, result.Outcome)
	require.Equal(t, "no request-id", result.Reason)
}

func TestProcessAttestation_DropsSelfAttestation(t *testing.T) {
	req := newPermitReq(t, requesterSk, "req-3", "PERMIT_MARAICHAGE_X1")
	att := newAttestation(t, requesterSk, req.ID)
	issuerPubkey, _ := nostr.GetPublicKey(issuerSk)
	relay := &fakeRelay{events: []*nostr.Event{req}}
	svc := New(relay, issuerSk, issuerPubkey)

	result, err := svc.ProcessAttestation(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, OutcomeDropped, result.Outcome)
	require.Equal(t, "self-attestation", result.Reason)
}

func TestProcessAttestation_DropsWhenRequestNotFound(t *testing.T) {
	att := newAttestation(t, attesterSk1, "missing-event-id")
	issuerPubkey, _ := nostr.GetPublicKey(issuerSk)
	svc := New(&fakeRelay{}, issuerSk, issuerPubkey)

	result, err := svc.ProcessAttestation(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, OutcomeDropped, result.Outcome)
	require.Equal(t, "request not found", result.Reason)
}

// TestProcessAttestation_Level2RequiresParentCredential mirrors spec.md
// §4.9 step 5: an attester with no credential for the parent permit is
// rejected even though the community threshold of 1 would otherwise be met.
func TestProcessAttestation_Level2RequiresParentCredential(t *testing.T) {
	req := newPermitReq(t, requesterSk, "req-4", "PERMIT_MARAICHAGE_X2")
	att := newAttestation(t, attesterSk1, req.ID)
	issuerPubkey, err := nostr.GetPublicKey(issuerSk)
	require.NoError(t, err)
	relay := &fakeRelay{events: []*nostr.Event{req}}
	svc := New(relay, issuerSk, issuerPubkey)

	result, err := svc.ProcessAttestation(context.Background(), att)
	require.NoError(t, err)
	require.Equal(t, OutcomeDropped, result.Outcome)
	require.Equal(t, "missing parent credential", result.Reason)
}
