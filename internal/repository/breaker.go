// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package repository

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/logging"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

var _ feed.ContentRepository = (*BreakerRepository)(nil)

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	Name string

	// MaxRequests allowed through while half-open.
	MaxRequests uint32

	// Interval after which closed-state counts reset.
	Interval time.Duration

	// Timeout before an open breaker goes half-open.
	Timeout time.Duration

	// MinRequests before the failure ratio is considered.
	MinRequests uint32

	// FailureRatio at or above which the breaker opens.
	FailureRatio float64
}

// DefaultBreakerConfig returns settings tuned for the feed's 5s batches.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:         "content-repository",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.6,
	}
}

// withDefaults fills zero fields from DefaultBreakerConfig.
func (c BreakerConfig) withDefaults() BreakerConfig {
	d := DefaultBreakerConfig()
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = d.MaxRequests
	}
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.MinRequests == 0 {
		c.MinRequests = d.MinRequests
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = d.FailureRatio
	}
	return c
}

// BreakerRepository wraps a ContentRepository with a circuit breaker.
// While open, FetchPage fails immediately with gobreaker.ErrOpenState.
//
// The breaker uses real time (via sony/gobreaker) for its interval and
// timeout calculations.
type BreakerRepository struct {
	next feed.ContentRepository
	cb   *gobreaker.CircuitBreaker[feed.FetchResult]
	name string
}

// NewBreakerRepository wraps next.
func NewBreakerRepository(next feed.ContentRepository, cfg BreakerConfig) *BreakerRepository {
	cfg = cfg.withDefaults()
	name := cfg.Name

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[feed.FetchResult](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := ratio >= cfg.FailureRatio
			if shouldTrip {
				logging.Warn().
					Str("breaker", name).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).
					Msg("Opening content repository circuit")
			}
			return shouldTrip
		},
		// A caller giving up is not an upstream failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidRange)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateLabel(from), stateLabel(to)
			logging.Info().Str("breaker", name).Str("from", fromStr).Str("to", toStr).Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerRepository{next: next, cb: cb, name: name}
}

// FetchPage implements feed.ContentRepository.
func (r *BreakerRepository) FetchPage(ctx context.Context, scope feed.ScopeKey, offset, limit int) (feed.FetchResult, error) {
	result, err := r.cb.Execute(func() (feed.FetchResult, error) {
		return r.next.FetchPage(ctx, scope, offset, limit)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.RepositoryRequests.WithLabelValues(r.name, "rejected").Inc()
	}
	return result, err
}

// State returns the breaker state.
func (r *BreakerRepository) State() gobreaker.State {
	return r.cb.State()
}

func stateLabel(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
