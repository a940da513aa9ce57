// Package relay implements TrocZen's single relay-client abstraction (spec
// §4.1): one WebSocket connection, paginated queries, publish. DRAGON
// callers open and close their own short-lived client per request. The
// Oracle daemon keeps one client per connection: it carries the attestation
// subscription and also serves the Oracle Service's queries and publishes.
package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"troczen/internal/apierr"
	"troczen/internal/telemetry"
)

const (
	// DefaultPageSize is spec.md §4.1's default page size for QueryPaginated.
	DefaultPageSize = 500
	// DefaultMaxResults is spec.md §4.1's default cap on paginated results.
	DefaultMaxResults = 10000
)

// Querier is the subset of Client's behavior every engine depends on.
// Engines accept a Querier rather than *Client so tests can substitute a
// fake relay instead of dialing a real WebSocket.
type Querier interface {
	Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error)
	QueryPaginated(ctx context.Context, kinds []int, pageSize, maxResults int, extra nostr.Filter) ([]*nostr.Event, error)
	Publish(ctx context.Context, ev nostr.Event) error
}

// Client speaks the relay's JSON-framed protocol over one WebSocket,
// delegating wire framing to go-nostr and adding TrocZen's pagination and
// best-effort error semantics on top.
type Client struct {
	url    string
	relay  *nostr.Relay
	log    zerolog.Logger

	PageSize   int
	MaxResults int
}

// Dial opens the WebSocket connection. Callers are responsible for calling
// Close when done. A DRAGON client lives for one request; the Oracle
// daemon's client lives as long as its relay connection.
func Dial(ctx context.Context, url string) (*Client, error) {
	r, err := nostr.RelayConnect(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to %s: %v", apierr.ErrTransport, url, err)
	}
	return &Client{
		url:        url,
		relay:      r,
		log:        telemetry.Logger("relay"),
		PageSize:   DefaultPageSize,
		MaxResults: DefaultMaxResults,
	}, nil
}

// Close closes the underlying WebSocket connection.
func (c *Client) Close() error {
	return c.relay.Close()
}

// Query sends a REQ with the given filters, collects every EVENT until EOSE
// or CLOSED, then closes the subscription. Per spec.md §4.1 it is
// best-effort: on failure it returns whatever events were already received
// alongside the error, never silently discarding partial progress.
func (c *Client) Query(ctx context.Context, filters nostr.Filters) ([]*nostr.Event, error) {
	subID := "troczen-" + uuid.NewString()
	sub, err := c.relay.Subscribe(ctx, filters, nostr.WithLabel(subID))
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe: %v", apierr.ErrTransport, err)
	}
	defer sub.Unsub()

	var events []*nostr.Event
	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return events, nil
			}
			events = append(events, ev)

		case <-sub.EndOfStoredEvents:
			return events, nil

		case reason := <-sub.ClosedReason:
			c.log.Warn().Str("reason", reason).Msg("subscription closed by relay")
			return events, fmt.Errorf("%w: subscription closed: %s", apierr.ErrTransport, reason)

		case <-ctx.Done():
			return events, fmt.Errorf("%w: %v", apierr.ErrTransport, ctx.Err())
		}
	}
}

// Subscribe opens a long-lived subscription for callers that want to stream
// events as they arrive rather than collect a bounded page — the Oracle
// Daemon's continuous kind-30502 listener (spec.md §4.10), as opposed to
// Query's one-shot "collect until EOSE" semantics used by the engines.
// The caller owns the returned subscription and must call sub.Unsub() when
// done (cancelling ctx also tears it down).
func (c *Client) Subscribe(ctx context.Context, filters nostr.Filters) (*nostr.Subscription, error) {
	subID := "troczen-" + uuid.NewString()
	sub, err := c.relay.Subscribe(ctx, filters, nostr.WithLabel(subID))
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe: %v", apierr.ErrTransport, err)
	}
	return sub, nil
}

// QueryPaginated repeatedly issues Query with a decreasing `until` cursor
// until a page returns fewer than pageSize events, the cursor fails to
// advance, or maxResults events have been collected — exactly spec.md
// §4.1's cursor rule.
func (c *Client) QueryPaginated(ctx context.Context, kinds []int, pageSize, maxResults int, extra nostr.Filter) ([]*nostr.Event, error) {
	if pageSize <= 0 {
		pageSize = c.PageSize
	}
	if maxResults <= 0 {
		maxResults = c.MaxResults
	}

	var all []*nostr.Event
	var until *nostr.Timestamp

	for len(all) < maxResults {
		remaining := maxResults - len(all)
		limit := pageSize
		if remaining < limit {
			limit = remaining
		}

		filter := extra
		filter.Kinds = kinds
		filter.Limit = limit
		if until != nil {
			filter.Until = until
		}

		page, err := c.Query(ctx, nostr.Filters{filter})
		if err != nil {
			return all, err
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)

		oldest := page[0].CreatedAt
		for _, ev := range page[1:] {
			if ev.CreatedAt < oldest {
				oldest = ev.CreatedAt
			}
		}
		next := oldest - 1
		if until != nil && next >= *until {
			// Cursor failed to advance: stop to avoid an infinite loop.
			break
		}
		until = &next

		if len(page) < limit {
			break
		}
	}

	if len(all) > maxResults {
		all = all[:maxResults]
	}
	return all, nil
}

// Publish sends the signed event through go-nostr's Relay.Publish, which
// waits for the relay's OK reply (or for ctx to end) before returning; a
// rejection or a missing OK is returned as a transport error.
func (c *Client) Publish(ctx context.Context, ev nostr.Event) error {
	if err := c.relay.Publish(ctx, ev); err != nil {
		return fmt.Errorf("%w: publish %s: %v", apierr.ErrTransport, ev.ID, err)
	}
	return nil
}

// QueryTimeout derives a context from ctx that ends after d; callers pass
// the configured per-query timeout (NOSTR_QUERY_TIMEOUT, 30s by default).
func QueryTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}
