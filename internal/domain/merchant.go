package domain

// DedupeProfiles keeps the newest profile per pubkey, matching the original
// TrocZen client's get_merchant_profiles behavior (supplemented from
// original_source/api/nostr_client.py, not present in spec.md but not
// excluded by any Non-goal).
func DedupeProfiles(profiles []Profile) []Profile {
	byPubkey := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		existing, ok := byPubkey[p.Pubkey]
		if !ok || p.CreatedAt > existing.CreatedAt {
			byPubkey[p.Pubkey] = p
		}
	}
	out := make([]Profile, 0, len(byPubkey))
	for _, p := range byPubkey {
		out = append(out, p)
	}
	return out
}

// MerchantView joins a merchant's Profile to the Bonds they issued, mirroring
// original_source/api/nostr_client.py's get_merchants_with_bons — expressed
// here as a pure function over already-fetched data rather than a fresh
// network round trip, so it adds no persistent state.
type MerchantView struct {
	Pubkey     string
	Profile    Profile // zero value if no kind-0 event was found
	HasProfile bool
	Bonds      []Bond
}

// MerchantsWithBonds groups bonds by issuer and attaches each issuer's
// profile when one is known. Bonds without a resolvable issuer (neither an
// `issuer` tag nor, by the parser's fallback, an author) are omitted.
func MerchantsWithBonds(bonds []Bond, profiles []Profile) []MerchantView {
	profileByPubkey := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		profileByPubkey[p.Pubkey] = p
	}

	order := make([]string, 0)
	grouped := make(map[string][]Bond)
	for _, b := range bonds {
		if b.Issuer == "" {
			continue
		}
		if _, seen := grouped[b.Issuer]; !seen {
			order = append(order, b.Issuer)
		}
		grouped[b.Issuer] = append(grouped[b.Issuer], b)
	}

	views := make([]MerchantView, 0, len(order))
	for _, issuer := range order {
		profile, ok := profileByPubkey[issuer]
		views = append(views, MerchantView{
			Pubkey:     issuer,
			Profile:    profile,
			HasProfile: ok,
			Bonds:      grouped[issuer],
		})
	}
	return views
}
