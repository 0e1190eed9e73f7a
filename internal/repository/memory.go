// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

const backendMemory = "memory"

var _ feed.ContentRepository = (*MemoryRepository)(nil)

// MemoryRepository serves items held in process. Items are re-sorted per
// request, which is fine for demo and test corpora.
type MemoryRepository struct {
	mu    sync.RWMutex
	items []feed.ContentItem
	byID  map[string]int
}

// NewMemoryRepository creates a repository holding items.
func NewMemoryRepository(items []feed.ContentItem) *MemoryRepository {
	r := &MemoryRepository{byID: make(map[string]int, len(items))}
	r.Upsert(items...)
	return r
}

// LoadMemoryRepository reads a JSON array of items from path.
func LoadMemoryRepository(path string) (*MemoryRepository, error) {
	items, err := ReadSeedFile(path)
	if err != nil {
		return nil, err
	}
	return NewMemoryRepository(items), nil
}

// ReadSeedFile decodes a JSON array of content items. Every item needs an id.
func ReadSeedFile(path string) ([]feed.ContentItem, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var items []feed.ContentItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	for i := range items {
		if items[i].ID == "" {
			return nil, fmt.Errorf("seed file %s: item %d has no id", path, i)
		}
	}
	return items, nil
}

// Upsert adds items, replacing any with the same ID.
func (r *MemoryRepository) Upsert(items ...feed.ContentItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range items {
		if idx, ok := r.byID[items[i].ID]; ok {
			r.items[idx] = items[i]
			continue
		}
		r.byID[items[i].ID] = len(r.items)
		r.items = append(r.items, items[i])
	}
}

// Len returns the number of items held.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// FetchPage implements feed.ContentRepository.
func (r *MemoryRepository) FetchPage(ctx context.Context, scope feed.ScopeKey, offset, limit int) (result feed.FetchResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryFetch(backendMemory, time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return feed.FetchResult{}, err
	}
	if err := checkRange(offset, limit); err != nil {
		return feed.FetchResult{}, err
	}
	scope = scope.Normalize()

	r.mu.RLock()
	matched := make([]feed.ContentItem, 0, len(r.items))
	for i := range r.items {
		if scope.ChannelID == "" || r.items[i].ChannelID == scope.ChannelID {
			matched = append(matched, r.items[i])
		}
	}
	r.mu.RUnlock()

	sortItems(matched, scope.Sort)
	return feed.FetchResult{
		Items:      window(matched, offset, limit),
		TotalKnown: len(matched),
	}, nil
}
