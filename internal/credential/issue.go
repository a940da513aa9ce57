package credential

import (
	"context"
	"fmt"

	"github.com/nbd-wtf/go-nostr"

	"troczen/internal/apierr"
	"troczen/internal/relay"
)

// Issue builds the credential via Generate, signs the event with the
// issuer's Schnorr key, and publishes it to the relay (spec.md §4.8 plus
// §4.9 step 6's "sign it... and publish"). It returns the signed event so
// callers can log its id.
func Issue(ctx context.Context, client relay.Querier, issuerNsecHex, holder, permitID, requestID, permitName string, attestors, skills []string, validityDays *int) (nostr.Event, error) {
	issuerPubkey, err := nostr.GetPublicKey(issuerNsecHex)
	if err != nil {
		return nostr.Event{}, fmt.Errorf("%w: derive issuer pubkey: %v", apierr.ErrSigning, err)
	}

	now := int64(nostr.Now())
	_, ev := Generate(issuerPubkey, holder, permitID, requestID, permitName, attestors, skills, validityDays, now)

	if err := ev.Sign(issuerNsecHex); err != nil {
		return nostr.Event{}, fmt.Errorf("%w: sign credential event: %v", apierr.ErrSigning, err)
	}

	if err := client.Publish(ctx, ev); err != nil {
		return nostr.Event{}, err
	}
	return ev, nil
}
