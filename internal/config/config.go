// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

// Package config loads and validates service configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables, in increasing order of precedence.
package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the root configuration for the stats service.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Snapshot SnapshotConfig `koanf:"snapshot"`
	Catalog  CatalogConfig  `koanf:"catalog"`
	Enrich   EnrichConfig   `koanf:"enrich"`
	Refresh  RefreshConfig  `koanf:"refresh"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP boundary adapter.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// DatabaseConfig configures the DuckDB event store.
type DatabaseConfig struct {
	// Path is the DuckDB database file. An empty path opens an
	// in-memory database (used by tests).
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB thread count; 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// SnapshotConfig configures the badger store holding precomputed
// per-artist KPI snapshots.
type SnapshotConfig struct {
	// Path is the badger directory. An empty path opens an in-memory
	// store (used by tests).
	Path string `koanf:"path"`
}

// CatalogConfig configures the resilient client for the external content
// catalog service.
type CatalogConfig struct {
	// BaseURL is the catalog service root, e.g. http://content:8080.
	BaseURL string `koanf:"base_url"`
	// Timeout bounds every individual catalog request attempt.
	Timeout time.Duration `koanf:"timeout"`
	// RetryAttempts is the total number of attempts per logical call
	// for transient failures (timeouts, connection errors).
	RetryAttempts int `koanf:"retry_attempts"`
	// RetryDelay is the initial backoff delay; it doubles per attempt.
	RetryDelay time.Duration `koanf:"retry_delay"`
	Breaker    BreakerConfig `koanf:"breaker"`
}

// BreakerConfig tunes the per-target circuit breaker.
type BreakerConfig struct {
	// FailureRatio opens the circuit when at least this fraction of the
	// calls in the current evaluation interval failed.
	FailureRatio float64 `koanf:"failure_ratio"`
	// MinRequests is the minimum call volume before FailureRatio is
	// evaluated at all.
	MinRequests uint32 `koanf:"min_requests"`
	// Interval resets the rolling counts while the circuit is closed.
	Interval time.Duration `koanf:"interval"`
	// Cooldown is how long the circuit stays open before allowing
	// half-open trial calls.
	Cooldown time.Duration `koanf:"cooldown"`
	// HalfOpenMax is the number of trial calls admitted in half-open
	// state; that many consecutive successes close the circuit again.
	HalfOpenMax uint32 `koanf:"half_open_max"`
}

// EnrichConfig tunes the enrichment orchestrator.
type EnrichConfig struct {
	// Concurrency caps in-flight catalog lookups per batch.
	Concurrency int `koanf:"concurrency"`
}

// RefreshConfig tunes the snapshot refresh queue.
type RefreshConfig struct {
	// Buffer is the in-process queue depth for accepted refresh jobs.
	Buffer int `koanf:"buffer"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns the built-in defaults. These are applied first
// and then overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8930,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/stats.duckdb",
			MaxMemory: "2GB",
			Threads:   0,
		},
		Snapshot: SnapshotConfig{
			Path: "/data/snapshots",
		},
		Catalog: CatalogConfig{
			BaseURL:       "",
			Timeout:       5 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    200 * time.Millisecond,
			Breaker: BreakerConfig{
				FailureRatio: 0.5,
				MinRequests:  5,
				Interval:     time.Minute,
				Cooldown:     30 * time.Second,
				HalfOpenMax:  2,
			},
		},
		Enrich: EnrichConfig{
			Concurrency: 8,
		},
		Refresh: RefreshConfig{
			Buffer: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}
	if c.Catalog.BaseURL == "" {
		return fmt.Errorf("catalog.base_url is required (CONTENT_SERVICE_URL)")
	}
	if _, err := url.Parse(c.Catalog.BaseURL); err != nil {
		return fmt.Errorf("catalog.base_url invalid: %w", err)
	}
	if c.Catalog.Timeout <= 0 {
		return fmt.Errorf("catalog.timeout must be positive")
	}
	if c.Catalog.RetryAttempts < 1 {
		return fmt.Errorf("catalog.retry_attempts must be at least 1")
	}
	if c.Catalog.Breaker.FailureRatio <= 0 || c.Catalog.Breaker.FailureRatio > 1 {
		return fmt.Errorf("catalog.breaker.failure_ratio must be in (0, 1]")
	}
	if c.Catalog.Breaker.MinRequests < 1 {
		return fmt.Errorf("catalog.breaker.min_requests must be at least 1")
	}
	if c.Catalog.Breaker.Cooldown <= 0 {
		return fmt.Errorf("catalog.breaker.cooldown must be positive")
	}
	if c.Catalog.Breaker.HalfOpenMax < 1 {
		return fmt.Errorf("catalog.breaker.half_open_max must be at least 1")
	}
	if c.Enrich.Concurrency < 1 {
		return fmt.Errorf("enrich.concurrency must be at least 1")
	}
	if c.Refresh.Buffer < 1 {
		return fmt.Errorf("refresh.buffer must be at least 1")
	}
	return nil
}
