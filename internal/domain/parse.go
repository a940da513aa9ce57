package domain

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"troczen/internal/nostrmodel"
	"troczen/internal/telemetry"
)

var log = telemetry.Logger("domain")

// Parse dispatches a raw event to the typed record for its kind. Unknown
// kinds are dropped (returns nil, nil) per spec.md §9 "Unknown kinds are
// dropped". Parsing never panics: a known kind always yields its record; when
// its content is malformed JSON a warning is logged and the content-derived
// fields are left empty, while the tag-derived fields are still filled.
func Parse(ev *nostr.Event) (any, error) {
	switch ev.Kind {
	case nostrmodel.KindProfile:
		return ParseProfile(ev), nil
	case nostrmodel.KindContactList:
		return ParseContactList(ev), nil
	case nostrmodel.KindBond:
		return ParseBond(ev), nil
	case nostrmodel.KindCircuit:
		return ParseCircuit(ev), nil
	case nostrmodel.KindPermitDef:
		return ParsePermitDef(ev), nil
	case nostrmodel.KindPermitReq:
		return ParsePermitReq(ev), nil
	case nostrmodel.KindAttestation:
		return ParseAttestation(ev), nil
	case nostrmodel.KindCredential:
		return ParseCredential(ev), nil
	default:
		logDrop(log, ev, "unknown kind")
		return nil, nil
	}
}

func logDrop(l zerolog.Logger, ev *nostr.Event, reason string) {
	l.Warn().Str("event_id", ev.ID).Int("kind", ev.Kind).Str("reason", reason).Msg("dropping event")
}

// ParseProfile decodes a kind-0 event. Malformed JSON yields an empty
// subject rather than an error, per spec.md §4.2.
func ParseProfile(ev *nostr.Event) Profile {
	p := Profile{Pubkey: ev.PubKey, CreatedAt: ev.CreatedAt}
	if err := json.Unmarshal([]byte(ev.Content), &p); err != nil {
		logDrop(log, ev, "malformed profile content")
		return Profile{Pubkey: ev.PubKey, CreatedAt: ev.CreatedAt}
	}
	p.Pubkey = ev.PubKey
	p.CreatedAt = ev.CreatedAt
	return p
}

// ParseContactList decodes a kind-3 event's `p` tags.
func ParseContactList(ev *nostr.Event) ContactList {
	return ContactList{
		Pubkey:    ev.PubKey,
		CreatedAt: ev.CreatedAt,
		Follows:   nostrmodel.All(ev.Tags, "p"),
	}
}

// ParseBond decodes a kind-30303 event. The `d` tag may be either the bare
// bond-id or the "zen-<id>" legacy prefix form; both are tolerated (spec.md
// §4.2). If the `issuer` tag is absent, the fallback holder is the author.
func ParseBond(ev *nostr.Event) Bond {
	tags := nostrmodel.FirstMap(ev.Tags)

	id := tags["d"]
	id = strings.TrimPrefix(id, "zen-")

	issuer, ok := tags["issuer"]
	if !ok || issuer == "" {
		issuer = ev.PubKey
	}

	value, _ := strconv.ParseFloat(tags["value"], 64)
	expires, _ := strconv.ParseInt(tags["expires"], 10, 64)

	return Bond{
		ID:        id,
		EventID:   ev.ID,
		Pubkey:    ev.PubKey,
		Issuer:    issuer,
		Market:    tags["market"],
		Value:     value,
		Expires:   expires,
		Status:    tags["status"],
		SkillCert: tags["skill_cert"],
		HopCount:  bondHopCount(ev.Content),
		CreatedAt: ev.CreatedAt,
		Content:   ev.Content,
	}
}

// bondHopCount best-effort decodes hop_count from a bond's content. Content
// is normally encrypted (spec.md §3); decoding only succeeds for the
// unencrypted case the spec calls out ("hop_count and path observable in
// content when unencrypted"). Encrypted or absent content silently yields 0,
// matching ParseBond's "never throws" contract.
func bondHopCount(content string) int {
	if content == "" {
		return 0
	}
	var payload struct {
		HopCount int `json:"hop_count"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return 0
	}
	return payload.HopCount
}

// ParseCircuit decodes a kind-30304 event: tags plus JSON content.
func ParseCircuit(ev *nostr.Event) Circuit {
	tags := nostrmodel.FirstMap(ev.Tags)

	c := Circuit{
		ID:        tags["d"],
		BondID:    tags["bon_id"],
		Market:    tags["market"],
		IssuedBy:  tags["issued_by"],
		CreatedAt: ev.CreatedAt,
	}
	if err := json.Unmarshal([]byte(ev.Content), &c); err != nil {
		logDrop(log, ev, "malformed circuit content")
	}
	return c
}

// ParsePermitDef decodes a kind-30500 event.
func ParsePermitDef(ev *nostr.Event) PermitDef {
	tags := nostrmodel.FirstMap(ev.Tags)

	d := PermitDef{
		ID:        tags["d"],
		Name:      tags["name"],
		Category:  tags["category"],
		Parent:    tags["parent"],
		Market:    tags["market"],
		SkillTags: nostrmodel.All(ev.Tags, "skill"),
		CreatedAt: ev.CreatedAt,
	}
	if err := json.Unmarshal([]byte(ev.Content), &d); err != nil {
		logDrop(log, ev, "malformed permit definition content")
	}
	if d.RequiredAttestations <= 0 {
		d.RequiredAttestations = 2 // spec.md §4.3 default for official permits
	}
	return d
}

// ParsePermitReq decodes a kind-30501 event.
func ParsePermitReq(ev *nostr.Event) PermitReq {
	tags := nostrmodel.FirstMap(ev.Tags)
	return PermitReq{
		ID:        tags["d"],
		EventID:   ev.ID,
		Pubkey:    ev.PubKey,
		PermitID:  tags["permit_id"],
		CreatedAt: ev.CreatedAt,
		Content:   ev.Content,
	}
}

// ParseAttestation decodes a kind-30502 event, resolving the request-id from
// the `e` tag (by event id) or the `a` tag (addressable reference) in that
// order, per spec.md §3.
func ParseAttestation(ev *nostr.Event) Attestation {
	tags := nostrmodel.FirstMap(ev.Tags)

	requestID := tags["e"]
	if requestID == "" {
		requestID = tags["a"]
	}

	return Attestation{
		EventID:        ev.ID,
		Attester:       ev.PubKey,
		RequestID:      requestID,
		AddressableRef: tags["a"],
		CreatedAt:      ev.CreatedAt,
		Content:        ev.Content,
	}
}

// ParseCredential decodes a kind-30503 event.
func ParseCredential(ev *nostr.Event) Credential {
	tags := nostrmodel.FirstMap(ev.Tags)

	level, _ := strconv.Atoi(tags["level"])
	expires, _ := strconv.ParseInt(tags["expires"], 10, 64)

	return Credential{
		ID:          tags["d"],
		EventID:     ev.ID,
		Issuer:      ev.PubKey,
		RequestID:   tags["e"],
		Holder:      tags["p"],
		PermitID:    tags["permit_id"],
		Level:       level,
		Expires:     expires,
		Attestation: nostrmodel.All(ev.Tags, "attestation"),
		Skills:      nostrmodel.All(ev.Tags, "skill"),
		Attestors:   nostrmodel.All(ev.Tags, "attestor"),
		CreatedAt:   ev.CreatedAt,
		Content:     ev.Content,
	}
}
