// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

/*
Package config loads Mediafeed configuration with Koanf v2.

# Configuration Sources

Sources are layered, later layers win:
  - Defaults: defaultConfig(), loaded through the structs provider
  - Config file: optional YAML (CONFIG_PATH, then config.yaml / config.yml,
    then /etc/mediafeed/config.yaml)
  - Environment variables: an explicit mapping table, unmapped variables
    are ignored

# Sections

  - server: HTTP listener, CORS, per-IP rate limit
  - logging: zerolog level, format, caller
  - feed: ranking engine (batch sizes, TTL, decay, weights, page sizes)
  - storage: KV backend for sessions and watch history (memory, badger, redis)
  - repository: content backend (memory, http, duckdb) and circuit breaker
  - supervisor: suture failure thresholds

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT, HTTP_TIMEOUT, SHUTDOWN_TIMEOUT
  - CORS_ORIGINS (comma-separated)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

Feed:
  - FEED_INITIAL_BATCH_SIZE, FEED_BACKGROUND_BATCH_SIZE, FEED_MAX_CORPUS_ITEMS
  - FEED_BATCH_TIMEOUT, FEED_SESSION_TTL
  - FEED_DECAY_FACTOR, FEED_HALF_LIFE_DAYS
  - FEED_WEIGHT_RECENCY, FEED_WEIGHT_ENGAGEMENT, FEED_WEIGHT_UNSEEN, FEED_WEIGHT_JITTER
  - FEED_HISTORY_CAPACITY, FEED_DEFAULT_PAGE_SIZE, FEED_MAX_PAGE_SIZE, FEED_SEED

Storage:
  - KV_BACKEND, BADGER_PATH, BADGER_GC_RATIO
  - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB, REDIS_KEY_PREFIX, REDIS_TIMEOUT
  - KV_MAINTENANCE_INTERVAL

Repository:
  - CONTENT_BACKEND, CONTENT_SEED_FILE, CONTENT_DUCKDB_PATH
  - CONTENT_API_URL, CONTENT_API_KEY, CONTENT_API_TIMEOUT
  - CONTENT_API_RPS, CONTENT_API_BURST
  - CONTENT_BREAKER_ENABLED, CONTENT_BREAKER_TIMEOUT,
    CONTENT_BREAKER_MIN_REQUESTS, CONTENT_BREAKER_FAILURE_RATIO

Supervisor:
  - SUPERVISOR_FAILURE_THRESHOLD, SUPERVISOR_FAILURE_DECAY,
    SUPERVISOR_FAILURE_BACKOFF, SUPERVISOR_SHUTDOWN_TIMEOUT

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	engineCfg := cfg.Feed.ToEngineConfig()
*/
package config
