// Package config holds the relayer's process-wide configuration: the
// ambient settings (listen addresses, database path, log level, tracing)
// read from the environment per the teacher's pkg/config/config.go idiom,
// plus the chain-topology file loaded by chains.go.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the relayer's env-var-driven process configuration (spec.md
// §6.3's admin server address, §6.5's db path, §6.4's top-level metrics
// and tracing settings).
type Config struct {
	// AdminListenAddr serves /metrics, /list_operations, /message_retry and
	// /eigen/node* (spec.md §6.3).
	AdminListenAddr string

	// DBPath is the root directory the Store's key-value backend persists
	// under (spec.md §6.5).
	DBPath string

	// ChainsConfigPath points at the YAML chain-topology file chains.go
	// loads (spec.md §6.4).
	ChainsConfigPath string

	// RelayChains restricts which configured chains actually run; empty
	// means every chain in ChainsConfigPath relays.
	RelayChains []string

	// LogLevel and LogFormat drive the ambient logger's verbosity and
	// encoding ("text" | "json").
	LogLevel  string
	LogFormat string

	// TracingLevel and TracingFormat mirror spec.md §6.4's tracing.{level,fmt}.
	TracingLevel  string
	TracingFormat string

	MetricsEnabled bool

	// AllowLocalCheckpointSyncers permits file:// checkpoint syncers,
	// otherwise refused outside of tests (spec.md §6.4).
	AllowLocalCheckpointSyncers bool

	// DefaultChunkSize bounds how many blocks a single indexer tick scans.
	DefaultChunkSize uint64

	// FinalityPollInterval, StaleAfter and GasEscalationPercent tune every
	// destination's submitter.Pipeline (spec.md §4.8); there is no
	// per-chain override.
	FinalityPollInterval time.Duration
	StaleAfter           time.Duration
	GasEscalationPercent int64
}

// Load builds a Config from the process environment, following the
// teacher's getEnv*-helper-plus-struct-literal idiom.
func Load() (*Config, error) {
	cfg := &Config{
		AdminListenAddr:             getEnv("RELAYER_ADMIN_ADDR", "0.0.0.0:9090"),
		DBPath:                      getEnv("RELAYER_DB_PATH", "./hyperlane_db"),
		ChainsConfigPath:            getEnv("RELAYER_CHAINS_CONFIG", "./chains.yaml"),
		RelayChains:                 parseCSV(getEnv("RELAYER_RELAY_CHAINS", "")),
		LogLevel:                    getEnv("RELAYER_LOG_LEVEL", "info"),
		LogFormat:                   getEnv("RELAYER_LOG_FORMAT", "text"),
		TracingLevel:                getEnv("RELAYER_TRACING_LEVEL", "info"),
		TracingFormat:               getEnv("RELAYER_TRACING_FORMAT", "text"),
		MetricsEnabled:              getEnvBool("RELAYER_METRICS_ENABLED", true),
		AllowLocalCheckpointSyncers: getEnvBool("RELAYER_ALLOW_LOCAL_CHECKPOINT_SYNCERS", false),
		DefaultChunkSize:            uint64(getEnvInt64("RELAYER_DEFAULT_CHUNK_SIZE", 1000)),
		FinalityPollInterval:        getEnvDuration("RELAYER_FINALITY_POLL_INTERVAL", 5*time.Second),
		StaleAfter:                  getEnvDuration("RELAYER_STALE_AFTER", 2*time.Minute),
		GasEscalationPercent:        getEnvInt64("RELAYER_GAS_ESCALATION_PERCENT", 20),
	}
	return cfg, nil
}

// Validate reports every missing or malformed required setting at once,
// mirroring the teacher's accumulate-then-join error idiom.
func (c *Config) Validate() error {
	var errs []string

	if c.AdminListenAddr == "" {
		errs = append(errs, "RELAYER_ADMIN_ADDR is required but not set")
	}
	if c.DBPath == "" {
		errs = append(errs, "RELAYER_DB_PATH is required but not set")
	}
	if c.ChainsConfigPath == "" {
		errs = append(errs, "RELAYER_CHAINS_CONFIG is required but not set")
	}
	if c.DefaultChunkSize == 0 {
		errs = append(errs, "RELAYER_DEFAULT_CHUNK_SIZE must be greater than zero")
	}
	if c.FinalityPollInterval <= 0 {
		errs = append(errs, "RELAYER_FINALITY_POLL_INTERVAL must be greater than zero")
	}
	if c.GasEscalationPercent < 0 {
		errs = append(errs, "RELAYER_GAS_ESCALATION_PERCENT must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func parseCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
