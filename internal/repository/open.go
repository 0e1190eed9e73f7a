// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package repository

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/logging"
)

// Backend names accepted by Open.
const (
	BackendMemory = backendMemory
	BackendHTTP   = backendHTTP
	BackendDuckDB = backendDuckDB
)

// Config selects and configures a content backend.
type Config struct {
	Backend string

	// SeedFile is a JSON array of items loaded into the memory or DuckDB
	// backend at startup.
	SeedFile string

	HTTPBaseURL           string
	HTTPAPIKey            string
	HTTPTimeout           time.Duration
	HTTPRequestsPerSecond float64
	HTTPBurst             int

	DuckDBPath string

	BreakerEnabled bool
	Breaker        BreakerConfig
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the repository named by cfg.Backend, wrapped in a circuit
// breaker when enabled. The returned closer releases backend resources.
func Open(ctx context.Context, cfg Config) (feed.ContentRepository, io.Closer, error) {
	var (
		repo   feed.ContentRepository
		closer io.Closer = nopCloser{}
	)

	switch cfg.Backend {
	case "", BackendMemory:
		mem := NewMemoryRepository(nil)
		if cfg.SeedFile != "" {
			items, err := ReadSeedFile(cfg.SeedFile)
			if err != nil {
				return nil, nil, err
			}
			mem.Upsert(items...)
		}
		logging.Info().Int("items", mem.Len()).Msg("Memory content repository ready")
		repo = mem
	case BackendHTTP:
		h, err := NewHTTPRepository(HTTPOptions{
			BaseURL:           cfg.HTTPBaseURL,
			APIKey:            cfg.HTTPAPIKey,
			Timeout:           cfg.HTTPTimeout,
			RequestsPerSecond: cfg.HTTPRequestsPerSecond,
			Burst:             cfg.HTTPBurst,
		})
		if err != nil {
			return nil, nil, err
		}
		repo = h
	case BackendDuckDB:
		d, err := OpenDuckDB(ctx, cfg.DuckDBPath)
		if err != nil {
			return nil, nil, err
		}
		if cfg.SeedFile != "" {
			items, err := ReadSeedFile(cfg.SeedFile)
			if err == nil {
				err = d.Upsert(ctx, items...)
			}
			if err != nil {
				_ = d.Close()
				return nil, nil, err
			}
		}
		repo, closer = d, d
	default:
		return nil, nil, fmt.Errorf("repository: unknown backend %q", cfg.Backend)
	}

	if cfg.BreakerEnabled {
		repo = NewBreakerRepository(repo, cfg.Breaker)
	}
	return repo, closer, nil
}
