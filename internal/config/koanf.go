// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/kv"
	"github.com/tomtom215/mediafeed/internal/repository"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/mediafeed/config.yaml",
	"/etc/mediafeed/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	engine := feed.DefaultConfig()
	breaker := repository.DefaultBreakerConfig()

	return &Config{
		Server: ServerConfig{
			Port:              8080,
			Host:              "0.0.0.0",
			Timeout:           30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Feed: FeedConfig{
			InitialBatchSize:    engine.InitialBatchSize,
			BackgroundBatchSize: engine.BackgroundBatchSize,
			MaxCorpusItems:      engine.MaxCorpusItems,
			BatchTimeout:        engine.BatchTimeout,
			SessionTTL:          engine.SessionTTL,
			DecayFactor:         engine.DecayFactor,
			HalfLifeDays:        engine.HalfLifeDays,
			WeightRecency:       engine.Weights.Recency,
			WeightEngagement:    engine.Weights.Engagement,
			WeightUnseen:        engine.Weights.Unseen,
			WeightJitter:        engine.Weights.Jitter,
			HistoryCapacity:     engine.HistoryCapacity,
			DefaultPageSize:     engine.DefaultPageSize,
			MaxPageSize:         engine.MaxPageSize,
			Seed:                0, // random stream per process
		},
		Storage: StorageConfig{
			Backend:             kv.BackendBadger,
			BadgerPath:          "/data/feed",
			BadgerGCRatio:       0.5,
			RedisAddr:           "127.0.0.1:6379",
			RedisKeyPrefix:      "mediafeed:",
			RedisTimeout:        5 * time.Second,
			MaintenanceInterval: 5 * time.Minute,
		},
		Repository: RepositoryConfig{
			Backend:             repository.BackendMemory,
			Timeout:             10 * time.Second,
			RequestsPerSecond:   0, // unlimited
			Burst:               1,
			BreakerEnabled:      true,
			BreakerMaxRequests:  breaker.MaxRequests,
			BreakerInterval:     breaker.Interval,
			BreakerTimeout:      breaker.Timeout,
			BreakerMinRequests:  breaker.MinRequests,
			BreakerFailureRatio: breaker.FailureRatio,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
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

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
// Unmapped variables are ignored so unrelated environment does not leak
// into the configuration.
var envMappings = map[string]string{
	// Server
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"shutdown_timeout":    "server.shutdown_timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Feed engine
	"feed_initial_batch_size":    "feed.initial_batch_size",
	"feed_background_batch_size": "feed.background_batch_size",
	"feed_max_corpus_items":      "feed.max_corpus_items",
	"feed_batch_timeout":         "feed.batch_timeout",
	"feed_session_ttl":           "feed.session_ttl",
	"feed_decay_factor":          "feed.decay_factor",
	"feed_half_life_days":        "feed.half_life_days",
	"feed_weight_recency":        "feed.weight_recency",
	"feed_weight_engagement":     "feed.weight_engagement",
	"feed_weight_unseen":         "feed.weight_unseen",
	"feed_weight_jitter":         "feed.weight_jitter",
	"feed_history_capacity":      "feed.history_capacity",
	"feed_default_page_size":     "feed.default_page_size",
	"feed_max_page_size":         "feed.max_page_size",
	"feed_seed":                  "feed.seed",

	// Storage
	"kv_backend":              "storage.backend",
	"badger_path":             "storage.badger_path",
	"badger_gc_ratio":         "storage.badger_gc_ratio",
	"redis_addr":              "storage.redis_addr",
	"redis_password":          "storage.redis_password",
	"redis_db":                "storage.redis_db",
	"redis_key_prefix":        "storage.redis_key_prefix",
	"redis_timeout":           "storage.redis_timeout",
	"kv_maintenance_interval": "storage.maintenance_interval",

	// Content repository
	"content_backend":               "repository.backend",
	"content_seed_file":             "repository.seed_file",
	"content_duckdb_path":           "repository.duckdb_path",
	"content_api_url":               "repository.url",
	"content_api_key":               "repository.api_key",
	"content_api_timeout":           "repository.timeout",
	"content_api_rps":               "repository.requests_per_second",
	"content_api_burst":             "repository.burst",
	"content_breaker_enabled":       "repository.breaker_enabled",
	"content_breaker_timeout":       "repository.breaker_timeout",
	"content_breaker_min_requests":  "repository.breaker_min_requests",
	"content_breaker_failure_ratio": "repository.breaker_failure_ratio",

	// Supervisor
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - FEED_INITIAL_BATCH_SIZE -> feed.initial_batch_size
//   - KV_BACKEND -> storage.backend
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
