// Undersounds Stats Service - Engagement Metrics and Recommendations
// Copyright 2026 Undersounds Team
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/undersounds/stats-service

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stats-service/config.yaml",
	"/etc/stats-service/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from layered sources:
//  1. built-in defaults
//  2. optional YAML config file
//  3. environment variables (highest priority)
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps environment variable names onto koanf config
// paths. Unmapped variables are skipped so arbitrary environment noise
// cannot reach the configuration.
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		"snapshot_path": "snapshot.path",

		// CONTENT_SERVICE_URL is the variable the platform has always
		// used for the catalog endpoint; keep it for compatibility.
		"content_service_url":            "catalog.base_url",
		"catalog_timeout":                "catalog.timeout",
		"catalog_retry_attempts":         "catalog.retry_attempts",
		"catalog_retry_delay":            "catalog.retry_delay",
		"catalog_breaker_failure_ratio":  "catalog.breaker.failure_ratio",
		"catalog_breaker_min_requests":   "catalog.breaker.min_requests",
		"catalog_breaker_interval":       "catalog.breaker.interval",
		"catalog_breaker_cooldown":       "catalog.breaker.cooldown",
		"catalog_breaker_half_open_max":  "catalog.breaker.half_open_max",

		"enrich_concurrency": "enrich.concurrency",
		"refresh_buffer":     "refresh.buffer",

		"log_level":  "logging.level",
		"log_format": "logging.format",
	}

	if mapped, ok := mappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
