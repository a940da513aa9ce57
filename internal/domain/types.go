// Package domain holds TrocZen's typed projections of Nostr events (spec.md
// §3) and the parser that builds them (spec.md §4.2, "one discriminated
// variant per kind, parsed once at ingress").
package domain

import "github.com/nbd-wtf/go-nostr"

// Profile is a kind-0 event (spec.md §3).
type Profile struct {
	Pubkey    string
	CreatedAt nostr.Timestamp
	Name      string `json:"name"`
	About     string `json:"about"`
	Picture   string `json:"picture"`
	Banner    string `json:"banner"`
	Nip05     string `json:"nip05"`
	Lud16     string `json:"lud16"`
	Website   string `json:"website"`
}

// ContactList is a kind-3 event: the author's `p`-tagged follow set.
type ContactList struct {
	Pubkey    string
	CreatedAt nostr.Timestamp
	Follows   []string
}

// FollowSet returns Follows as a set for reciprocity checks.
func (c ContactList) FollowSet() map[string]struct{} {
	s := make(map[string]struct{}, len(c.Follows))
	for _, p := range c.Follows {
		s[p] = struct{}{}
	}
	return s
}

// Bond is a kind-30303 event (spec.md §3): a transferable value unit.
type Bond struct {
	ID        string // the bond-id, with any "zen-" prefix stripped
	EventID   string
	Pubkey    string // author of the bond event
	Issuer    string // holder fallback: event author if the `issuer` tag is absent
	Market    string // normalized market tag
	Value     float64
	Expires   int64
	Status    string
	SkillCert string // optional
	HopCount  int    // best-effort, parsed from Content when unencrypted; 0 if unknown
	CreatedAt nostr.Timestamp
	Content   string // normally encrypted; the parser only reads hop_count from it
}

// Active reports whether the bond has not yet expired (spec.md §3 invariant:
// "A bond with expires ≤ now is inactive and contributes zero mass").
func (b Bond) Active(now int64) bool {
	return b.Expires > now
}

// Circuit is a kind-30304 event (spec.md §3): a closed bond loop.
type Circuit struct {
	ID           string          `json:"-"`
	BondID       string          `json:"-"`
	Market       string          `json:"-"` // normalized market tag
	IssuedBy     string          `json:"-"`
	CreatedAt    nostr.Timestamp `json:"-"` // treated as closed_at
	AgeDays      float64         `json:"age_days"`
	HopCount     int             `json:"hop_count"`
	ValueZen     float64         `json:"value_zen"`
	SkillCert    string          `json:"skill_cert,omitempty"`
	// MarketID is the circuit content's own raw market_id, in the same
	// namespace as DestMarketID (spec.md §4.4's IntermarketRates pairs both
	// from content, never the normalized Market tag).
	MarketID     string `json:"market_id,omitempty"`
	DestMarketID string `json:"dest_market_id,omitempty"`
}

// PermitDef is a kind-30500 event: the definition of a named permit.
type PermitDef struct {
	ID                   string          `json:"-"`
	Name                 string          `json:"-"`
	Category             string          `json:"-"`
	Parent               string          `json:"-"`
	Market               string          `json:"-"`
	SkillTags            []string        `json:"-"`
	CreatedAt            nostr.Timestamp `json:"-"`
	Description          string          `json:"description"`
	Skills               []string        `json:"skills"`
	RequiredAttestations int             `json:"required_attestations"`
	Level                int             `json:"level"`
	Type                 string          `json:"type"`
}

// PermitReq is a kind-30501 event: a request to be attested for a permit.
type PermitReq struct {
	ID        string // the request-id, from the `d` tag
	EventID   string
	Pubkey    string // requester
	PermitID  string
	CreatedAt nostr.Timestamp
	Content   string
}

// Attestation is a kind-30502 event endorsing a permit request.
type Attestation struct {
	EventID       string
	Attester      string // event author
	RequestID     string // resolved from `e` or `a`, see ParseAttestation
	AddressableRef string // raw `a` tag value, if present
	CreatedAt     nostr.Timestamp
	Content       string
}

// Credential is a kind-30503 event: the Nostr envelope of a W3C VC.
type Credential struct {
	ID          string
	EventID     string
	Issuer      string // event author (the Oracle's pubkey)
	RequestID   string
	Holder      string
	PermitID    string
	Level       int
	Expires     int64
	Attestation []string
	Skills      []string
	Attestors   []string
	CreatedAt   nostr.Timestamp
	Content     string // minified VC JSON
}

// Valid reports whether the credential has not yet expired (spec.md §3:
// "a credential is valid iff now < expires").
func (c Credential) Valid(now int64) bool {
	return now < c.Expires
}
