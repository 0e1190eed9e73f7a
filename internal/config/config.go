// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package config

import (
	"time"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/kv"
	"github.com/tomtom215/mediafeed/internal/logging"
	"github.com/tomtom215/mediafeed/internal/repository"
)

// Config holds all application configuration.
//
// Loading order (Koanf v2): defaults, then the optional YAML file, then
// environment variables. See LoadWithKoanf.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Feed       FeedConfig       `koanf:"feed"`
	Storage    StorageConfig    `koanf:"storage"`
	Repository RepositoryConfig `koanf:"repository"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed browser origins. "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`

	// Per-IP request limit for the API.
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	// Default: false
	Caller bool `koanf:"caller"`
}

// FeedConfig holds ranking engine settings. It mirrors feed.Config with
// the weights flattened for environment mapping.
type FeedConfig struct {
	InitialBatchSize    int           `koanf:"initial_batch_size"`
	BackgroundBatchSize int           `koanf:"background_batch_size"`
	MaxCorpusItems      int           `koanf:"max_corpus_items"`
	BatchTimeout        time.Duration `koanf:"batch_timeout"`
	SessionTTL          time.Duration `koanf:"session_ttl"`
	DecayFactor         float64       `koanf:"decay_factor"`
	HalfLifeDays        float64       `koanf:"half_life_days"`
	WeightRecency       float64       `koanf:"weight_recency"`
	WeightEngagement    float64       `koanf:"weight_engagement"`
	WeightUnseen        float64       `koanf:"weight_unseen"`
	WeightJitter        float64       `koanf:"weight_jitter"`
	HistoryCapacity     int           `koanf:"history_capacity"`
	DefaultPageSize     int           `koanf:"default_page_size"`
	MaxPageSize         int           `koanf:"max_page_size"`

	// Seed pins the ranking seed stream. 0 = random per process.
	Seed uint64 `koanf:"seed"`
}

// StorageConfig selects the KV backend for sessions and watch history.
type StorageConfig struct {
	// Backend is memory, badger or redis.
	// Default: badger
	Backend string `koanf:"backend"`

	BadgerPath    string  `koanf:"badger_path"`
	BadgerGCRatio float64 `koanf:"badger_gc_ratio"`

	RedisAddr      string        `koanf:"redis_addr"`
	RedisPassword  string        `koanf:"redis_password"`
	RedisDB        int           `koanf:"redis_db"`
	RedisKeyPrefix string        `koanf:"redis_key_prefix"`
	RedisTimeout   time.Duration `koanf:"redis_timeout"`

	// MaintenanceInterval is how often the KV maintenance service runs
	// (memory sweep, badger value-log GC, expired corpus pruning).
	MaintenanceInterval time.Duration `koanf:"maintenance_interval"`
}

// RepositoryConfig selects the content backend.
type RepositoryConfig struct {
	// Backend is memory, http or duckdb.
	// Default: memory
	Backend string `koanf:"backend"`

	SeedFile   string `koanf:"seed_file"`
	DuckDBPath string `koanf:"duckdb_path"`

	URL               string        `koanf:"url"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`

	BreakerEnabled      bool          `koanf:"breaker_enabled"`
	BreakerMaxRequests  uint32        `koanf:"breaker_max_requests"`
	BreakerInterval     time.Duration `koanf:"breaker_interval"`
	BreakerTimeout      time.Duration `koanf:"breaker_timeout"`
	BreakerMinRequests  uint32        `koanf:"breaker_min_requests"`
	BreakerFailureRatio float64       `koanf:"breaker_failure_ratio"`
}

// SupervisorConfig holds suture tree settings.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// ToLoggingConfig converts to the logging package configuration.
func (c *LoggingConfig) ToLoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = c.Level
	cfg.Format = c.Format
	cfg.Caller = c.Caller
	return cfg
}

// ToEngineConfig converts to the feed engine configuration.
func (c *FeedConfig) ToEngineConfig() *feed.Config {
	return &feed.Config{
		InitialBatchSize:    c.InitialBatchSize,
		BackgroundBatchSize: c.BackgroundBatchSize,
		MaxCorpusItems:      c.MaxCorpusItems,
		BatchTimeout:        c.BatchTimeout,
		SessionTTL:          c.SessionTTL,
		DecayFactor:         c.DecayFactor,
		HalfLifeDays:        c.HalfLifeDays,
		Weights: feed.Weights{
			Recency:    c.WeightRecency,
			Engagement: c.WeightEngagement,
			Unseen:     c.WeightUnseen,
			Jitter:     c.WeightJitter,
		},
		HistoryCapacity: c.HistoryCapacity,
		DefaultPageSize: c.DefaultPageSize,
		MaxPageSize:     c.MaxPageSize,
		Seed:            c.Seed,
	}
}

// ToKVConfig converts to the kv.Open configuration.
func (c *StorageConfig) ToKVConfig() kv.Config {
	return kv.Config{
		Backend:        c.Backend,
		BadgerPath:     c.BadgerPath,
		BadgerGCRatio:  c.BadgerGCRatio,
		RedisAddr:      c.RedisAddr,
		RedisPassword:  c.RedisPassword,
		RedisDB:        c.RedisDB,
		RedisKeyPrefix: c.RedisKeyPrefix,
		RedisTimeout:   c.RedisTimeout,
	}
}

// ToRepositoryConfig converts to the repository.Open configuration.
func (c *RepositoryConfig) ToRepositoryConfig() repository.Config {
	return repository.Config{
		Backend:               c.Backend,
		SeedFile:              c.SeedFile,
		HTTPBaseURL:           c.URL,
		HTTPAPIKey:            c.APIKey,
		HTTPTimeout:           c.Timeout,
		HTTPRequestsPerSecond: c.RequestsPerSecond,
		HTTPBurst:             c.Burst,
		DuckDBPath:            c.DuckDBPath,
		BreakerEnabled:        c.BreakerEnabled,
		Breaker: repository.BreakerConfig{
			Name:         "content-repository",
			MaxRequests:  c.BreakerMaxRequests,
			Interval:     c.BreakerInterval,
			Timeout:      c.BreakerTimeout,
			MinRequests:  c.BreakerMinRequests,
			FailureRatio: c.BreakerFailureRatio,
		},
	}
}
