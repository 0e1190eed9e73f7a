// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mediafeed/internal/kv"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a settable clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testEpoch} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixedSeeds hands out 1, 2, 3, ...
type fixedSeeds struct{ next atomic.Uint64 }

func (s *fixedSeeds) NextSeed() uint64 { return s.next.Add(1) }

// mockRepository serves a fixed item list with offset/limit semantics.
type mockRepository struct {
	mu         sync.Mutex
	items      []ContentItem
	totalKnown bool
	calls      []fetchCall
	failAt     map[int]error // offset -> error
	block      chan struct{} // when non-nil, every fetch waits on it
	delay      time.Duration
}

type fetchCall struct {
	Scope  ScopeKey
	Offset int
	Limit  int
}

func newMockRepository(items []ContentItem) *mockRepository {
	return &mockRepository{items: items, failAt: make(map[int]error)}
}

func (m *mockRepository) FetchPage(ctx context.Context, scope ScopeKey, offset, limit int) (FetchResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, fetchCall{Scope: scope, Offset: offset, Limit: limit})
	block := m.block
	delay := m.delay
	failErr := m.failAt[offset]
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return FetchResult{}, ctx.Err()
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return FetchResult{}, ctx.Err()
		}
	}
	if failErr != nil {
		return FetchResult{}, failErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	total := TotalUnknown
	if m.totalKnown {
		total = len(m.items)
	}
	if offset >= len(m.items) {
		return FetchResult{Items: nil, TotalKnown: total}, nil
	}
	end := min(offset+limit, len(m.items))
	out := append([]ContentItem(nil), m.items[offset:end]...)
	return FetchResult{Items: out, TotalKnown: total}, nil
}

func (m *mockRepository) Calls() []fetchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fetchCall(nil), m.calls...)
}

func (m *mockRepository) failOffset(offset int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAt[offset] = err
}

// failingStore fails every write.
type failingStore struct {
	kv.Store
}

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("disk full")
}

// makeItems builds n items spread over channels, uploaded one hour apart.
func makeItems(n, channels int) []ContentItem {
	items := make([]ContentItem, n)
	for i := range items {
		items[i] = ContentItem{
			ID:              fmt.Sprintf("item-%04d", i),
			ChannelID:       fmt.Sprintf("ch-%d", i%channels),
			UploadedAt:      testEpoch.Add(-time.Duration(i) * time.Hour),
			ViewCount:       int64((i * 7919) % 10000),
			DurationSeconds: 60 + i%600,
		}
	}
	return items
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.InitialBatchSize = 50
	cfg.BackgroundBatchSize = 25
	cfg.BatchTimeout = 2 * time.Second
	return cfg
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}
