// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - Load layers defaults, an optional YAML file and XSR_* environment variables.
// - External errors are wrapped with this package's sentinel kinds.
package config

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Ledger drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// WorkerCount sets the number of record workers used inside one batch.
	WorkerCount int `koanf:"worker_count"`

	// JobQueueSize bounds pending workflow jobs.
	JobQueueSize int `koanf:"job_queue_size"`

	// DedupeSize bounds the in-batch duplicate suppressor.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures lock shards of the in-memory ledger.
	ShardCount int `koanf:"shard_count"`

	// Publisher is the source-system discriminator merged into every record.
	// It is part of every identity key, so it is required once sources exist.
	Publisher string `koanf:"publisher"`

	// LedgerDriver is "memory" or "postgres".
	LedgerDriver string `koanf:"ledger_driver"`

	// LedgerDSN is the postgres connection string.
	LedgerDSN string `koanf:"ledger_dsn"`

	// KafkaBrokers enables the mutation stream when non-empty.
	KafkaBrokers []string `koanf:"kafka_brokers"`
	KafkaTopic   string   `koanf:"kafka_topic"`

	// HTTPTimeout bounds a single connector request.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// SFTPKnownHosts points at a known_hosts file; empty disables host key checks.
	SFTPKnownHosts string `koanf:"sftp_known_hosts"`

	// Sources is the source registry; usually only set from the YAML file.
	Sources []Source `koanf:"sources"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		Addr:         ":9080",
		WorkerCount:  runtime.NumCPU() * 2,
		JobQueueSize: 16,
		DedupeSize:   100_000,
		ShardCount:   32,
		LedgerDriver: DriverMemory,
		KafkaTopic:   "xsr.ledger.mutations",
		HTTPTimeout:  60 * time.Second,
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate(_ context.Context) error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch strings.ToLower(c.LedgerDriver) {
	case DriverMemory:
	case DriverPostgres:
		if c.LedgerDSN == "" {
			return fmt.Errorf("%w: ledger_dsn is required for the postgres driver", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown ledger_driver %q", ErrInvalidConfig, c.LedgerDriver)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("%w: kafka_topic is required when kafka_brokers is set", ErrInvalidConfig)
	}
	if len(c.Sources) > 0 && strings.TrimSpace(c.Publisher) == "" {
		return fmt.Errorf("%w: publisher is required when sources are configured", ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]
		if err := s.validate(); err != nil {
			return fmt.Errorf("%w: sources[%d]: %w", ErrInvalidConfig, i, err)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate source name %q", ErrInvalidConfig, s.Name)
		}
		seen[s.Name] = struct{}{}
	}
	return nil
}

// Source returns the registry entry with the given name.
func (c *Config) Source(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}
