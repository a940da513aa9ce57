// Command oracle-daemon is the long-lived process that subscribes to
// attestation events (kind 30502) and dispatches each one to the Oracle
// Service (spec.md §4.10).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/rs/zerolog"

	"troczen/internal/config"
	"troczen/internal/nostrmodel"
	"troczen/internal/oracle"
	"troczen/internal/relay"
	"troczen/internal/telemetry"
)

const (
	// maxReconnectTries caps the exponential backoff before the daemon
	// gives up and exits (spec.md §4.10: "exponential backoff capped at
	// 10 tries, delay = 5*tries seconds").
	maxReconnectTries = 10

	exitOK             = 0
	exitConfigError    = 1
	exitRelayExhausted = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		telemetry.Logger("oracle-daemon").Error().Err(err).Msg("failed to load configuration")
		return exitConfigError
	}
	if err := cfg.RequireIssuerKey(); err != nil {
		telemetry.Logger("oracle-daemon").Error().Err(err).Msg("missing issuer key")
		return exitConfigError
	}

	telemetry.Init(telemetry.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFile,
		Production: cfg.Production,
	})
	log := telemetry.Logger("oracle-daemon")

	issuerPubkey := cfg.OraclePubkeyHex
	if issuerPubkey == "" {
		issuerPubkey, err = nostr.GetPublicKey(cfg.OracleNsecHex)
		if err != nil {
			log.Error().Err(err).Msg("failed to derive issuer pubkey from ORACLE_NSEC_HEX")
			return exitConfigError
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("relay", cfg.NostrRelay).Str("issuer_pubkey", issuerPubkey).Msg("starting oracle daemon")

	if err := runWithReconnect(ctx, cfg, issuerPubkey, log); err != nil {
		log.Error().Err(err).Msg("relay unreachable after retry budget")
		return exitRelayExhausted
	}

	log.Info().Msg("oracle daemon shut down cleanly")
	return exitOK
}

// runWithReconnect dials the relay, subscribes to attestations, and on
// transport failure reconnects with exponential backoff (5*tries seconds,
// capped at maxReconnectTries, reset on a successful open) until ctx is
// cancelled or the retry budget is exhausted.
func runWithReconnect(ctx context.Context, cfg config.Config, issuerPubkey string, log zerolog.Logger) error {
	tries := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		opened, err := subscribeAndDispatch(ctx, cfg, issuerPubkey, log)
		if err == nil {
			return nil // ctx cancelled: graceful shutdown
		}
		if ctx.Err() != nil {
			return nil
		}
		if opened {
			tries = 0 // successful open resets the backoff, per spec.md §4.10
		}

		tries++
		log.Warn().Err(err).Int("try", tries).Msg("relay subscription failed")
		if tries >= maxReconnectTries {
			return err
		}

		delay := time.Duration(5*tries) * time.Second
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// subscribeAndDispatch opens one WebSocket connection, subscribes to
// {kinds:[30502], limit:0} (future-only), and dispatches every inbound event
// to the Oracle Service until the connection fails or ctx is cancelled. The
// bool return reports whether the connection was ever successfully opened,
// so the caller can reset its backoff counter even if the subscription later
// breaks mid-stream.
func subscribeAndDispatch(ctx context.Context, cfg config.Config, issuerPubkey string, log zerolog.Logger) (bool, error) {
	client, err := relay.Dial(ctx, cfg.NostrRelay)
	if err != nil {
		return false, err
	}
	defer client.Close()
	client.PageSize = cfg.NostrPageSize
	client.MaxResults = cfg.NostrMaxResults

	sub, err := client.Subscribe(ctx, nostr.Filters{{Kinds: []int{nostrmodel.KindAttestation}, LimitZero: true}})
	if err != nil {
		return false, err
	}
	defer sub.Unsub()

	svc := oracle.New(client, cfg.OracleNsecHex, issuerPubkey)

	for {
		select {
		case <-ctx.Done():
			return true, nil

		case reason := <-sub.ClosedReason:
			return true, &subscriptionClosedError{reason: reason}

		case ev, ok := <-sub.Events:
			if !ok {
				return true, &subscriptionClosedError{reason: "event stream ended"}
			}
			dispatch(ctx, cfg, svc, ev, log)
		}
	}
}

// dispatch runs the Oracle Service against one inbound attestation event,
// bounding the call with the configured per-query timeout (spec.md §5).
func dispatch(ctx context.Context, cfg config.Config, svc *oracle.Service, ev *nostr.Event, log zerolog.Logger) {
	processCtx, cancel := relay.QueryTimeout(ctx, cfg.NostrQueryTimeout)
	defer cancel()

	result, err := svc.ProcessAttestation(processCtx, ev)
	if err != nil {
		log.Error().Err(err).Str("event_id", ev.ID).Msg("failed to process attestation")
		return
	}
	log.Info().
		Str("event_id", ev.ID).
		Str("outcome", string(result.Outcome)).
		Str("reason", result.Reason).
		Msg("attestation processed")
}

type subscriptionClosedError struct {
	reason string
}

func (e *subscriptionClosedError) Error() string {
	return "subscription closed by relay: " + e.reason
}
