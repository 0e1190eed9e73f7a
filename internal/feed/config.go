// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"fmt"
	"time"
)

// Weights are the composite score coefficients.
type Weights struct {
	Recency    float64 `json:"recency"`
	Engagement float64 `json:"engagement"`
	Unseen     float64 `json:"unseen"`
	Jitter     float64 `json:"jitter"`
}

// Config contains all configuration for the feed engine.
type Config struct {
	// InitialBatchSize is how many items are fetched and ranked before the
	// first page is served.
	InitialBatchSize int `json:"initial_batch_size"`

	// BackgroundBatchSize is the page size of each background fetch.
	BackgroundBatchSize int `json:"background_batch_size"`

	// MaxCorpusItems stops background fetching once a session knows this
	// many items. Zero means unlimited.
	MaxCorpusItems int `json:"max_corpus_items"`

	// BatchTimeout bounds every single repository fetch.
	BatchTimeout time.Duration `json:"batch_timeout"`

	// SessionTTL is how long a ranked session lives.
	SessionTTL time.Duration `json:"session_ttl"`

	// DecayFactor multiplies a channel's remaining scores each time one of
	// its items is picked. 1 disables diversity.
	DecayFactor float64 `json:"decay_factor"`

	// HalfLifeDays is the recency half-life.
	HalfLifeDays float64 `json:"half_life_days"`

	Weights Weights `json:"weights"`

	// HistoryCapacity is the number of watch history entries kept.
	HistoryCapacity int `json:"history_capacity"`

	DefaultPageSize int `json:"default_page_size"`
	MaxPageSize     int `json:"max_page_size"`

	// Seed fixes the seed stream. Zero picks a random stream per process.
	Seed uint64 `json:"seed"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		InitialBatchSize:    1000,
		BackgroundBatchSize: 500,
		MaxCorpusItems:      20000,
		BatchTimeout:        5 * time.Second,
		SessionTTL:          time.Hour,
		DecayFactor:         0.7,
		HalfLifeDays:        30,
		Weights: Weights{
			Recency:    0.25,
			Engagement: 0.30,
			Unseen:     0.15,
			Jitter:     0.10,
		},
		HistoryCapacity: 100,
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.InitialBatchSize < 1 {
		return fmt.Errorf("initial_batch_size must be positive, got %d", c.InitialBatchSize)
	}
	if c.BackgroundBatchSize < 1 {
		return fmt.Errorf("background_batch_size must be positive, got %d", c.BackgroundBatchSize)
	}
	if c.MaxCorpusItems < 0 {
		return fmt.Errorf("max_corpus_items must be non-negative, got %d", c.MaxCorpusItems)
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be positive, got %v", c.BatchTimeout)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive, got %v", c.SessionTTL)
	}
	if c.DecayFactor <= 0 || c.DecayFactor > 1 {
		return fmt.Errorf("decay_factor must be in (0, 1], got %f", c.DecayFactor)
	}
	if c.HalfLifeDays <= 0 {
		return fmt.Errorf("half_life_days must be positive, got %f", c.HalfLifeDays)
	}
	if c.Weights.Recency < 0 || c.Weights.Engagement < 0 || c.Weights.Unseen < 0 || c.Weights.Jitter < 0 {
		return fmt.Errorf("weights must be non-negative, got %+v", c.Weights)
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity must be positive, got %d", c.HistoryCapacity)
	}
	if c.MaxPageSize < 1 {
		return fmt.Errorf("max_page_size must be positive, got %d", c.MaxPageSize)
	}
	if c.DefaultPageSize < 1 || c.DefaultPageSize > c.MaxPageSize {
		return fmt.Errorf("default_page_size must be in [1, %d], got %d", c.MaxPageSize, c.DefaultPageSize)
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
