package domain

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/require"
)

func TestParseBond_ZenPrefixStripped(t *testing.T) {
	tests := []struct {
		name     string
		dTag     string
		wantID   string
	}{
		{name: "bare id", dTag: "bond123", wantID: "bond123"},
		{name: "zen- prefix stripped", dTag: "zen-bond123", wantID: "bond123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &nostr.Event{
				PubKey: "author1",
				Kind:   30303,
				Tags: nostr.Tags{
					{"d", tt.dTag},
					{"market", "market_toulouse"},
					{"value", "12.5"},
					{"expires", "1700000000"},
				},
			}
			b := ParseBond(ev)
			require.Equal(t, tt.wantID, b.ID)
			require.Equal(t, "market_toulouse", b.Market)
			require.Equal(t, 12.5, b.Value)
		})
	}
}

func TestParseBond_IssuerFallsBackToAuthor(t *testing.T) {
	ev := &nostr.Event{
		PubKey: "author1",
		Kind:   30303,
		Tags:   nostr.Tags{{"d", "bond123"}},
	}
	b := ParseBond(ev)
	require.Equal(t, "author1", b.Issuer)
}

func TestParseBond_HopCountFromUnencryptedContent(t *testing.T) {
	ev := &nostr.Event{
		PubKey:  "author1",
		Kind:    30303,
		Tags:    nostr.Tags{{"d", "bond123"}},
		Content: `{"hop_count":3,"path":["a","b","c"]}`,
	}
	b := ParseBond(ev)
	require.Equal(t, 3, b.HopCount)
}

func TestParseBond_HopCountZeroWhenEncrypted(t *testing.T) {
	ev := &nostr.Event{
		PubKey:  "author1",
		Kind:    30303,
		Tags:    nostr.Tags{{"d", "bond123"}},
		Content: "nip44:ciphertextblob==",
	}
	b := ParseBond(ev)
	require.Equal(t, 0, b.HopCount)
}

func TestParseBond_IssuerTagWins(t *testing.T) {
	ev := &nostr.Event{
		PubKey: "author1",
		Kind:   30303,
		Tags:   nostr.Tags{{"d", "bond123"}, {"issuer", "merchant1"}},
	}
	b := ParseBond(ev)
	require.Equal(t, "merchant1", b.Issuer)
}

func TestParseCircuit_ReadsBonIDTagAndLeavesMarketTagVerbatim(t *testing.T) {
	ev := &nostr.Event{
		PubKey: "closer1",
		Kind:   30304,
		Tags: nostr.Tags{
			{"d", "circuit1"},
			{"bon_id", "bond123"},
			{"market", "market_toulouse"},
			{"issued_by", "author1"},
		},
		Content: `{"market_id":"toulouse","dest_market_id":"paris","value_zen":10}`,
	}
	c := ParseCircuit(ev)
	require.Equal(t, "bond123", c.BondID)
	require.Equal(t, "market_toulouse", c.Market)
	require.Equal(t, "toulouse", c.MarketID)
	require.Equal(t, "paris", c.DestMarketID)
}

func TestBondActive(t *testing.T) {
	tests := []struct {
		name    string
		expires int64
		now     int64
		active  bool
	}{
		{name: "future expiry is active", expires: 200, now: 100, active: true},
		{name: "exact now is inactive", expires: 100, now: 100, active: false},
		{name: "past expiry is inactive", expires: 50, now: 100, active: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Bond{Expires: tt.expires}
			require.Equal(t, tt.active, b.Active(tt.now))
		})
	}
}

func TestParseAttestation_ResolvesRequestIDFromEThenA(t *testing.T) {
	withE := &nostr.Event{Kind: 30502, PubKey: "v1", Tags: nostr.Tags{{"e", "req1"}, {"a", "addr1"}}}
	require.Equal(t, "req1", ParseAttestation(withE).RequestID)

	withAOnly := &nostr.Event{Kind: 30502, PubKey: "v1", Tags: nostr.Tags{{"a", "addr1"}}}
	require.Equal(t, "addr1", ParseAttestation(withAOnly).RequestID)
}

func TestParseCredential_MultiValuedTags(t *testing.T) {
	ev := &nostr.Event{
		Kind:   30503,
		PubKey: "oracle1",
		Tags: nostr.Tags{
			{"d", "vc_abc"},
			{"e", "req1"},
			{"p", "holder1"},
			{"permit_id", "PERMIT_MARAICHAGE_X1"},
			{"level", "1"},
			{"expires", "9999999999"},
			{"attestor", "v1"},
			{"attestor", "v2"},
			{"skill", "maraichage"},
		},
	}
	c := ParseCredential(ev)
	require.Equal(t, []string{"v1", "v2"}, c.Attestors)
	require.Equal(t, []string{"maraichage"}, c.Skills)
	require.Equal(t, 1, c.Level)
	require.True(t, c.Valid(1000))
}

func TestParsePermitDef_DefaultsRequiredAttestations(t *testing.T) {
	ev := &nostr.Event{Kind: 30500, Tags: nostr.Tags{{"d", "PERMIT_SAFETY_V1"}}, Content: "{}"}
	d := ParsePermitDef(ev)
	require.Equal(t, 2, d.RequiredAttestations)
}

func TestParseProfile_MalformedContentYieldsEmptySubject(t *testing.T) {
	ev := &nostr.Event{Kind: 0, PubKey: "p1", Content: "not json"}
	p := ParseProfile(ev)
	require.Equal(t, "p1", p.Pubkey)
	require.Equal(t, "", p.Name)
}

func TestDedupeProfiles_KeepsNewest(t *testing.T) {
	profiles := []Profile{
		{Pubkey: "a", CreatedAt: 100, Name: "old"},
		{Pubkey: "a", CreatedAt: 200, Name: "new"},
		{Pubkey: "b", CreatedAt: 50, Name: "only"},
	}
	out := DedupeProfiles(profiles)
	byPubkey := make(map[string]Profile)
	for _, p := range out {
		byPubkey[p.Pubkey] = p
	}
	require.Equal(t, "new", byPubkey["a"].Name)
	require.Equal(t, "only", byPubkey["b"].Name)
}

func TestMerchantsWithBonds_GroupsByIssuerAndAttachesProfile(t *testing.T) {
	bonds := []Bond{
		{ID: "b1", Issuer: "merchant1", Value: 10},
		{ID: "b2", Issuer: "merchant1", Value: 5},
		{ID: "b3", Issuer: "merchant2", Value: 7},
	}
	profiles := []Profile{{Pubkey: "merchant1", Name: "Ferme Bio"}}

	views := MerchantsWithBonds(bonds, profiles)
	require.Len(t, views, 2)

	var m1 MerchantView
	for _, v := range views {
		if v.Pubkey == "merchant1" {
			m1 = v
		}
	}
	require.True(t, m1.HasProfile)
	require.Equal(t, "Ferme Bio", m1.Profile.Name)
	require.Len(t, m1.Bonds, 2)
}
