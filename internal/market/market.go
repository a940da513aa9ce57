// Package market normalizes human market names into the stable relay tag
// used by every event that carries a `market` tag (spec.md §4.4). Every
// component that reads or writes a `market` tag goes through Tag so
// the mapping is applied exactly once, consistently.
package market

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Tag normalizes a human-readable market name into the relay tag form:
// Unicode NFKD, strip diacritics, lower-case, replace non-alphanumeric runs
// with a single underscore, trim leading/trailing underscores, prefix
// "market_". The raw market name is never used as a relay tag directly.
//
// Tag is idempotent: a name that already carries the "market_" prefix (as
// every `market` tag read back off a relay does, spec.md §4.4) is returned
// unchanged rather than double-prefixed.
func Tag(name string) string {
	if strings.HasPrefix(name, "market_") {
		return name
	}
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	lastUnderscore := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	normalized := strings.Trim(b.String(), "_")
	if normalized == "" {
		return "market_"
	}
	return "market_" + normalized
}
