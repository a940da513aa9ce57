// Package credential implements the Credential Generator (spec.md §4.8): the
// W3C Verifiable Credential payload and its Nostr kind-30503 envelope.
package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"troczen/internal/nostrmodel"
	"troczen/internal/permit"
)

// Default validity windows in days, by permit-id substring (spec.md §4.8).
const (
	ValiditySkillDays     = 365
	ValidityLicenseDays   = 1825
	ValidityAuthorityDays = 3650
)

// IssuerName is the fixed issuer display name embedded in every credential.
const IssuerName = "TrocZen Oracle"

// Context is the W3C VC @context used by every credential.
var Context = []string{"https://www.w3.org/2018/credentials/v1"}

// VC is the W3C Verifiable Credential content, minified into the kind-30503
// event's content field.
type VC struct {
	Context           []string          `json:"@context"`
	Type              []string          `json:"type"`
	Issuer            VCIssuer          `json:"issuer"`
	IssuanceDate      string            `json:"issuanceDate"`
	ExpirationDate    string            `json:"expirationDate"`
	CredentialSubject VCSubject         `json:"credentialSubject"`
}

// VCIssuer identifies the Oracle as a Nostr DID.
type VCIssuer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// VCSubject is the holder and the permit they were credentialed for.
type VCSubject struct {
	ID            string         `json:"id"`
	Permit        VCPermit       `json:"permit"`
	Skills        []string       `json:"skills"`
	Attestations  VCAttestations `json:"attestations"`
}

// VCPermit names the permit the credential attests to.
type VCPermit struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
	Name  string `json:"name"`
}

// VCAttestations summarizes the attesters behind this credential.
type VCAttestations struct {
	Count     int      `json:"count"`
	Attestors []string `json:"attestors"`
}

// defaultValidityDays picks the validity window from the permit id, per
// spec.md §4.8 step 1.
func defaultValidityDays(permitID string) int {
	if containsAny(permitID, "AUTHORITY", "ADMIN") {
		return ValidityAuthorityDays
	}
	if containsAny(permitID, "LICENSE", "DRIVER") {
		return ValidityLicenseDays
	}
	return ValiditySkillDays
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ID is spec.md §4.8 step 5's credential id derivation:
// "vc_" + sha256(holder:permit:issued_at)[:16].
func ID(holder, permitID string, issuedAt int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", holder, permitID, issuedAt)))
	return "vc_" + hex.EncodeToString(sum[:])[:16]
}

// Generate builds the VC and its unsigned Nostr envelope (spec.md §4.8).
// validityDays, when nil, falls back to defaultValidityDays(permitID).
// permitName is the permit definition's human name, embedded in the VC
// payload (empty is tolerated — the permit id alone still identifies it).
func Generate(issuer, holder, permitID, requestID, permitName string, attestors, skills []string, validityDays *int, now int64) (VC, nostr.Event) {
	days := defaultValidityDays(permitID)
	if validityDays != nil && *validityDays > 0 {
		days = *validityDays
	}

	expires := now + int64(days)*86400
	level := permit.ExtractLevel(permitID)

	sortedAttestors := append([]string(nil), attestors...)
	sort.Strings(sortedAttestors)

	dids := make([]string, len(sortedAttestors))
	for i, a := range sortedAttestors {
		dids[i] = "did:nostr:" + a
	}

	vc := VC{
		Context: Context,
		Type:    []string{"VerifiableCredential", "TrocZenPermitCredential"},
		Issuer:  VCIssuer{ID: "did:nostr:" + issuer, Name: IssuerName},
		IssuanceDate:   isoDate(now),
		ExpirationDate: isoDate(expires),
		CredentialSubject: VCSubject{
			ID:     "did:nostr:" + holder,
			Permit: VCPermit{ID: permitID, Level: level, Name: permitName},
			Skills: skills,
			Attestations: VCAttestations{
				Count:     len(sortedAttestors),
				Attestors: dids,
			},
		},
	}

	content, _ := json.Marshal(vc)
	credID := ID(holder, permitID, now)

	tags := nostr.Tags{
		{"d", credID},
		{"e", requestID},
		{"p", holder},
		{"permit_id", permitID},
		{"level", strconv.Itoa(level)},
		{"expires", strconv.FormatInt(expires, 10)},
		{"attestations", strconv.Itoa(len(sortedAttestors))},
	}
	for _, a := range sortedAttestors {
		tags = append(tags, nostr.Tag{"attestor", a})
	}
	for _, s := range skills {
		tags = append(tags, nostr.Tag{"skill", s})
	}

	ev := nostr.Event{
		PubKey:    issuer,
		CreatedAt: nostr.Timestamp(now),
		Kind:      nostrmodel.KindCredential,
		Tags:      tags,
		Content:   string(content),
	}

	return vc, ev
}

func isoDate(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(time.RFC3339)
}

// GenerateBadge builds the optional badge-award envelope spec.md §2 item 8
// names alongside the credential ("kinds 30008/8"): a kind-8 award event
// referencing the badge definition (kind 30008, identified by badgeDefID and
// its defining author) and tagging the holder. Unlike Generate's kind-30503
// credential, publishing this is entirely optional — callers that don't want
// badges simply never call it.
func GenerateBadge(issuer, holder, badgeDefID string, now int64) nostr.Event {
	aTag := fmt.Sprintf("%d:%s:%s", nostrmodel.KindBadgeDef, issuer, badgeDefID)
	return nostr.Event{
		PubKey:    issuer,
		CreatedAt: nostr.Timestamp(now),
		Kind:      nostrmodel.KindBadgeAward,
		Tags: nostr.Tags{
			{"a", aTag},
			{"p", holder},
		},
	}
}
