// Package nostrmodel holds small helpers over go-nostr's Tags type shared by
// the event parser and the credential generator: first-occurrence lookup and
// multi-valued tag collection (spec.md §4.2).
package nostrmodel

import "github.com/nbd-wtf/go-nostr"

// Kinds used by TrocZen, named per the spec.md §3 table.
const (
	KindProfile      = 0
	KindContactList  = 3
	KindBond         = 30303
	KindCircuit      = 30304
	KindPermitDef    = 30500
	KindPermitReq    = 30501
	KindAttestation  = 30502
	KindCredential   = 30503
	KindBadgeDef     = 30008
	KindBadgeAward   = 8
)

// First returns the value of the first tag whose name matches, and whether
// it was found.
func First(tags nostr.Tags, name string) (string, bool) {
	for _, t := range tags {
		if len(t) >= 2 && t[0] == name {
			return t[1], true
		}
	}
	return "", false
}

// All returns every value for tags whose name matches, in event order — used
// for semantically multi-valued tags (p, attestor, skill).
func All(tags nostr.Tags, name string) []string {
	var out []string
	for _, t := range tags {
		if len(t) >= 2 && t[0] == name {
			out = append(out, t[1])
		}
	}
	return out
}

// FirstMap extracts the first occurrence of every tag name present into a
// map, mirroring the spec's "first occurrence of each tag name into a map".
func FirstMap(tags nostr.Tags) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		if len(t) < 2 {
			continue
		}
		if _, exists := m[t[0]]; !exists {
			m[t[0]] = t[1]
		}
	}
	return m
}
