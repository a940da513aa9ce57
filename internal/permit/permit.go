// Package permit implements the pure permit-id logic of spec.md §4.3: no
// network access, no state — parsing, level/base extraction, and
// parent/next-level derivation over the id string alone.
package permit

import (
	"fmt"
	"regexp"
	"strconv"
)

// Type distinguishes official (threshold ≥ 2, V-suffix) permits from
// community WoTx2 (threshold 1, X-suffix) permits.
type Type int

const (
	Unknown Type = iota
	Official
	Community
)

func (t Type) String() string {
	switch t {
	case Official:
		return "official"
	case Community:
		return "wotx2"
	default:
		return "unknown"
	}
}

// idPattern matches PERMIT_<NAME>_(X|V)<level>, level a positive integer.
var idPattern = regexp.MustCompile(`^PERMIT_([A-Z0-9]+)_(X|V)([1-9][0-9]*)$`)

// IsValidID reports whether s matches the permit-id grammar.
func IsValidID(s string) bool {
	return idPattern.MatchString(s)
}

// ExtractLevel returns the integer level suffix, or 0 if s is not a valid id.
func ExtractLevel(s string) int {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	level, _ := strconv.Atoi(m[3])
	return level
}

// ExtractBase returns "PERMIT_<NAME>" without the suffix/level, or "" if s
// is not a valid id.
func ExtractBase(s string) string {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return "PERMIT_" + m[1]
}

// PermitType classifies s as Official (V) or Community (X), or Unknown if
// s is not a valid id.
func PermitType(s string) Type {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return Unknown
	}
	if m[2] == "V" {
		return Official
	}
	return Community
}

// NextLevelID always returns the community-suffix next level, "<base>_X<n+1>",
// even when s was an official (V) permit — spec.md §4.3: "always returns
// <base>_X<n+1>, even when the input was official".
func NextLevelID(s string) (string, error) {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("permit: invalid id %q", s)
	}
	level, _ := strconv.Atoi(m[3])
	return fmt.Sprintf("PERMIT_%s_X%d", m[1], level+1), nil
}

// ParentID returns the parent permit id and true, or "", false when s has no
// parent (level 1, or an invalid id). The parent of "<base>_<suffix><n>"
// (n ≥ 2) is "<base>_<suffix><n-1>", preserving the X/V suffix — spec.md
// §4.3 names the X-suffix case explicitly; the V case is the same
// derivation since official permits form the same kind of level ladder.
func ParentID(s string) (string, bool) {
	m := idPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	level, _ := strconv.Atoi(m[3])
	if level < 2 {
		return "", false
	}
	return fmt.Sprintf("PERMIT_%s_%s%d", m[1], m[2], level-1), true
}

// RequiredAttestations returns the attestation threshold for a permit:
// 1 for community (X) permits, or defRequired (falling back to 2 when
// defRequired <= 0) for official (V) permits — spec.md §4.3.
func RequiredAttestations(s string, defRequired int) int {
	if PermitType(s) == Community {
		return 1
	}
	if defRequired <= 0 {
		return 2
	}
	return defRequired
}
