// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/mediafeed/internal/kv"
	"github.com/tomtom215/mediafeed/internal/repository"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.Feed.ToEngineConfig().Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateRepository(); err != nil {
		return err
	}
	return c.validateSupervisor()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %v", c.Server.Timeout)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %v", c.Server.ShutdownTimeout)
	}
	if !c.Server.RateLimitDisabled {
		if c.Server.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.Server.RateLimitReqs)
		}
		if c.Server.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %v", c.Server.RateLimitWindow)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateStorage() error {
	s := &c.Storage
	switch s.Backend {
	case kv.BackendMemory:
	case kv.BackendBadger:
		if s.BadgerGCRatio <= 0 || s.BadgerGCRatio >= 1 {
			return fmt.Errorf("BADGER_GC_RATIO must be in (0, 1), got %f", s.BadgerGCRatio)
		}
	case kv.BackendRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when KV_BACKEND=redis")
		}
		if s.RedisDB < 0 {
			return fmt.Errorf("REDIS_DB must be non-negative, got %d", s.RedisDB)
		}
	default:
		return fmt.Errorf("KV_BACKEND must be memory, badger or redis, got %q", s.Backend)
	}
	if s.MaintenanceInterval <= 0 {
		return fmt.Errorf("KV_MAINTENANCE_INTERVAL must be positive, got %v", s.MaintenanceInterval)
	}
	return nil
}

func (c *Config) validateRepository() error {
	r := &c.Repository
	switch r.Backend {
	case repository.BackendMemory, repository.BackendDuckDB:
	case repository.BackendHTTP:
		if r.URL == "" {
			return fmt.Errorf("CONTENT_API_URL is required when CONTENT_BACKEND=http")
		}
		if err := validateHTTPURL(r.URL); err != nil {
			return fmt.Errorf("CONTENT_API_URL is invalid: %w", err)
		}
		if r.RequestsPerSecond < 0 {
			return fmt.Errorf("CONTENT_API_RPS must be non-negative, got %f", r.RequestsPerSecond)
		}
	default:
		return fmt.Errorf("CONTENT_BACKEND must be memory, http or duckdb, got %q", r.Backend)
	}
	if r.BreakerEnabled && (r.BreakerFailureRatio <= 0 || r.BreakerFailureRatio > 1) {
		return fmt.Errorf("CONTENT_BREAKER_FAILURE_RATIO must be in (0, 1], got %f", r.BreakerFailureRatio)
	}
	return nil
}

func (c *Config) validateSupervisor() error {
	s := &c.Supervisor
	if s.FailureThreshold <= 0 || s.FailureDecay <= 0 {
		return fmt.Errorf("supervisor failure threshold and decay must be positive")
	}
	if s.FailureBackoff <= 0 || s.ShutdownTimeout <= 0 {
		return fmt.Errorf("supervisor backoff and shutdown timeout must be positive")
	}
	return nil
}

// validateHTTPURL checks that raw is an absolute http(s) URL.
func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
