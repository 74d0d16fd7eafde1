// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONTENT_SERVICE_URL", "http://content:8080")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 8930 {
		t.Errorf("expected default port 8930, got %d", cfg.Server.Port)
	}
	if cfg.Catalog.Timeout != 5*time.Second {
		t.Errorf("expected default catalog timeout 5s, got %v", cfg.Catalog.Timeout)
	}
	if cfg.Catalog.Breaker.FailureRatio != 0.5 {
		t.Errorf("expected default failure ratio 0.5, got %f", cfg.Catalog.Breaker.FailureRatio)
	}
	if cfg.Catalog.Breaker.MinRequests != 5 {
		t.Errorf("expected default min requests 5, got %d", cfg.Catalog.Breaker.MinRequests)
	}
	if cfg.Enrich.Concurrency != 8 {
		t.Errorf("expected default enrich concurrency 8, got %d", cfg.Enrich.Concurrency)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONTENT_SERVICE_URL", "http://catalog.internal:9000")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CATALOG_RETRY_ATTEMPTS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Catalog.BaseURL != "http://catalog.internal:9000" {
		t.Errorf("CONTENT_SERVICE_URL not applied, got %q", cfg.Catalog.BaseURL)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("HTTP_PORT not applied, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("LOG_LEVEL not applied, got %q", cfg.Logging.Level)
	}
	if cfg.Catalog.RetryAttempts != 5 {
		t.Errorf("CATALOG_RETRY_ATTEMPTS not applied, got %d", cfg.Catalog.RetryAttempts)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 8100\ncatalog:\n  base_url: http://file-content:8080\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 8100 {
		t.Errorf("config file port not applied, got %d", cfg.Server.Port)
	}
	if cfg.Catalog.BaseURL != "http://file-content:8080" {
		t.Errorf("config file base_url not applied, got %q", cfg.Catalog.BaseURL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing catalog url", func(c *Config) { c.Catalog.BaseURL = "" }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero retry attempts", func(c *Config) { c.Catalog.RetryAttempts = 0 }},
		{"failure ratio above one", func(c *Config) { c.Catalog.Breaker.FailureRatio = 1.5 }},
		{"zero min requests", func(c *Config) { c.Catalog.Breaker.MinRequests = 0 }},
		{"zero cooldown", func(c *Config) { c.Catalog.Breaker.Cooldown = 0 }},
		{"zero half open max", func(c *Config) { c.Catalog.Breaker.HalfOpenMax = 0 }},
		{"zero enrich concurrency", func(c *Config) { c.Enrich.Concurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Catalog.BaseURL = "http://content:8080"
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("Validate() accepted invalid config")
			}
		})
	}
}

func TestEnvTransformSkipsUnknown(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("unknown env var should map to empty path, got %q", got)
	}
	if got := envTransformFunc("CONTENT_SERVICE_URL"); got != "catalog.base_url" {
		t.Errorf("CONTENT_SERVICE_URL mapping wrong: %q", got)
	}
}
