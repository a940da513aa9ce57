// Package config loads TrocZen's process configuration from the environment.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the relay client, engines, and daemon need at
// startup. It is loaded once and never mutated afterward.
type Config struct {
	// NostrRelay is the WebSocket URL of the relay that is the single
	// source of truth for every event TrocZen reads or writes.
	NostrRelay string

	// NostrPageSize and NostrMaxResults bound QueryPaginated (spec §4.1).
	NostrPageSize   int
	NostrMaxResults int

	// NostrQueryTimeout bounds a single relay query (spec §5, default 30s).
	NostrQueryTimeout time.Duration
	// NostrConnectTimeout is read from NOSTR_CONNECT_TIMEOUT; no caller in
	// this module applies it when dialing the relay.
	NostrConnectTimeout time.Duration

	// OracleNsecHex is the issuer's 32-byte private key, hex encoded.
	OracleNsecHex string
	// OraclePubkeyHex is derived from OracleNsecHex when left empty.
	OraclePubkeyHex string

	// MonthlyServerCost and ZenEurRate feed the PAF heuristic (spec §9).
	MonthlyServerCost float64
	ZenEurRate        float64

	// LogLevel, LogFile, Production configure internal/telemetry.
	LogLevel   string
	LogFile    string
	Production bool
}

// Load reads Config from the environment, applying the defaults named in
// spec.md §6. It does not validate the issuer key; callers that need a
// signing identity must call Load then derive/validate separately so that
// read-only DRAGON-only deployments are not forced to hold a key.
func Load() (Config, error) {
	// Best-effort .env load, mirroring the teacher's loadConfig: local dev
	// convenience only, production deployments set real env vars.
	_ = godotenv.Load()

	cfg := Config{
		NostrRelay:          getEnvString("NOSTR_RELAY", "ws://127.0.0.1:7777"),
		NostrPageSize:       getEnvInt("NOSTR_PAGE_SIZE", 500),
		NostrMaxResults:     getEnvInt("NOSTR_MAX_RESULTS", 10000),
		NostrQueryTimeout:   getEnvDuration("NOSTR_QUERY_TIMEOUT", 30*time.Second),
		NostrConnectTimeout: getEnvDuration("NOSTR_CONNECT_TIMEOUT", 10*time.Second),
		OracleNsecHex:       os.Getenv("ORACLE_NSEC_HEX"),
		OraclePubkeyHex:     os.Getenv("ORACLE_PUBKEY"),
		MonthlyServerCost:   getEnvFloat("MONTHLY_SERVER_COST", 42),
		ZenEurRate:          getEnvFloat("ZEN_EUR_RATE", 1),
		LogLevel:            getEnvString("LOG_LEVEL", "info"),
		LogFile:             os.Getenv("LOG_FILE"),
		Production:          getEnvBool("PRODUCTION", false),
	}

	if cfg.NostrPageSize <= 0 {
		return Config{}, fmt.Errorf("config: NOSTR_PAGE_SIZE must be positive, got %d", cfg.NostrPageSize)
	}
	if cfg.NostrMaxResults <= 0 {
		return Config{}, fmt.Errorf("config: NOSTR_MAX_RESULTS must be positive, got %d", cfg.NostrMaxResults)
	}

	return cfg, nil
}

// RequireIssuerKey validates that OracleNsecHex is present and well formed.
// Call it from entrypoints that sign and publish (the Oracle daemon); DRAGON
// read-only handlers never need it.
func (c Config) RequireIssuerKey() error {
	if c.OracleNsecHex == "" {
		return fmt.Errorf("config: ORACLE_NSEC_HEX is required")
	}
	if len(c.OracleNsecHex) != 64 {
		return fmt.Errorf("config: ORACLE_NSEC_HEX must be 32 bytes hex-encoded (64 chars), got %d chars", len(c.OracleNsecHex))
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
		log.Printf("config: invalid value for %s: %q, using default %v", key, v, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
		log.Printf("config: invalid value for %s: %q, using default %v", key, v, defaultValue)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return time.Duration(parsed) * time.Second
		}
		log.Printf("config: invalid value for %s: %q, using default %v", key, v, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		log.Printf("config: invalid value for %s: %q, using default %t", key, value, defaultValue)
		return defaultValue
	}
}
