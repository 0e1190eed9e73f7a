// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

// scriptedRepository fails while failing is set.
type scriptedRepository struct {
	failing atomic.Bool
	err     error
	calls   atomic.Int32
}

func (s *scriptedRepository) FetchPage(_ context.Context, _ feed.ScopeKey, _, _ int) (feed.FetchResult, error) {
	s.calls.Add(1)
	if s.failing.Load() {
		return feed.FetchResult{}, s.err
	}
	return feed.FetchResult{Items: []feed.ContentItem{{ID: "x"}}, TotalKnown: 1}, nil
}

func TestBreakerRepository_OpensAndRecovers(t *testing.T) {
	t.Parallel()

	inner := &scriptedRepository{err: errors.New("upstream down")}
	inner.failing.Store(true)
	repo := NewBreakerRepository(inner, BreakerConfig{
		Name:         "test-opens",
		MaxRequests:  1,
		Timeout:      50 * time.Millisecond,
		MinRequests:  3,
		FailureRatio: 0.5,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.FetchPage(ctx, feed.ScopeKey{}, 0, 1); err == nil {
			t.Fatalf("call %d should fail", i)
		}
	}
	if repo.State() != gobreaker.StateOpen {
		t.Fatalf("state = %v, want open", repo.State())
	}
	if got := testutil.ToFloat64(metrics.CircuitBreakerState.WithLabelValues("test-opens")); got != 2 {
		t.Errorf("state gauge = %v, want 2", got)
	}

	if _, err := repo.FetchPage(ctx, feed.ScopeKey{}, 0, 1); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("open breaker error = %v, want ErrOpenState", err)
	}
	if got := inner.calls.Load(); got != 3 {
		t.Errorf("inner calls = %d, want 3 (open breaker must not call through)", got)
	}
	if got := testutil.ToFloat64(metrics.RepositoryRequests.WithLabelValues("test-opens", "rejected")); got != 1 {
		t.Errorf("rejected counter = %v, want 1", got)
	}

	inner.failing.Store(false)
	time.Sleep(80 * time.Millisecond)

	res, err := repo.FetchPage(ctx, feed.ScopeKey{}, 0, 1)
	if err != nil {
		t.Fatalf("half-open probe: %v", err)
	}
	if len(res.Items) != 1 {
		t.Errorf("probe returned %d items", len(res.Items))
	}
	if repo.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", repo.State())
	}
}

func TestBreakerRepository_CancellationDoesNotTrip(t *testing.T) {
	t.Parallel()

	inner := &scriptedRepository{err: context.Canceled}
	inner.failing.Store(true)
	repo := NewBreakerRepository(inner, BreakerConfig{Name: "test-cancel", MinRequests: 2, FailureRatio: 0.5})

	for i := 0; i < 10; i++ {
		_, _ = repo.FetchPage(context.Background(), feed.ScopeKey{}, 0, 1)
	}
	if repo.State() != gobreaker.StateClosed {
		t.Errorf("state = %v, want closed", repo.State())
	}
}

func TestBreakerConfig_WithDefaults(t *testing.T) {
	t.Parallel()

	got := BreakerConfig{}.withDefaults()
	if got != DefaultBreakerConfig() {
		t.Errorf("withDefaults() = %+v, want %+v", got, DefaultBreakerConfig())
	}
	custom := BreakerConfig{Name: "x", FailureRatio: 0.9}.withDefaults()
	if custom.Name != "x" || custom.FailureRatio != 0.9 || custom.MinRequests != 5 {
		t.Errorf("custom values not kept: %+v", custom)
	}
}
