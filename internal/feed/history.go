// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mediafeed/internal/kv"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

const historyKey = "feed:history"

// WatchHistory is a bounded FIFO of recently played items. Recording an
// item that is already present moves it to the newest position.
//
// Persistence failures never reach the caller; playback must not depend on
// history tracking.
type WatchHistory struct {
	mu       sync.Mutex
	entries  []WatchHistoryEntry
	capacity int

	snapshot atomic.Pointer[ItemSet]
	failures atomic.Int64

	store  kv.Store
	clock  Clock
	logger zerolog.Logger
}

// NewWatchHistory creates a history and loads any persisted entries from
// store. A load failure is logged and the history starts empty.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewWatchHistory(ctx context.Context, store kv.Store, capacity int, clock Clock, logger zerolog.Logger) *WatchHistory {
	if capacity < 1 {
		capacity = 100
	}
	if clock == nil {
		clock = SystemClock{}
	}
	h := &WatchHistory{
		capacity: capacity,
		store:    store,
		clock:    clock,
		logger:   logger.With().Str("component", "watch-history").Logger(),
	}
	h.load(ctx)
	h.publish()
	return h
}

func (h *WatchHistory) load(ctx context.Context) {
	if h.store == nil {
		return
	}
	data, err := h.store.Get(ctx, historyKey)
	if errors.Is(err, kv.ErrNotFound) {
		return
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to load watch history, starting empty")
		return
	}

	var entries []WatchHistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		h.logger.Warn().Err(err).Msg("discarding undecodable watch history")
		return
	}
	if len(entries) > h.capacity {
		entries = entries[len(entries)-h.capacity:]
	}
	h.entries = entries
	h.logger.Debug().Int("entries", len(entries)).Msg("watch history loaded")
}

// Record appends itemID, evicting the oldest entries past capacity, and
// persists the result. Empty ids are ignored.
func (h *WatchHistory) Record(ctx context.Context, itemID string) {
	if itemID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for i := range h.entries {
		if h.entries[i].ItemID == itemID {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
	h.entries = append(h.entries, WatchHistoryEntry{ItemID: itemID, WatchedAt: h.clock.Now()})
	if over := len(h.entries) - h.capacity; over > 0 {
		// Copy so the evicted prefix does not pin the backing array.
		h.entries = append([]WatchHistoryEntry(nil), h.entries[over:]...)
	}
	h.publish()
	metrics.HistoryRecords.Inc()

	h.persist(ctx)
}

// persist writes the entry list. Caller must hold h.mu.
func (h *WatchHistory) persist(ctx context.Context) {
	if h.store == nil {
		return
	}
	data, err := json.Marshal(h.entries)
	if err == nil {
		err = h.store.Set(ctx, historyKey, data, 0)
	}
	if err != nil {
		h.failures.Add(1)
		metrics.HistoryPersistFailures.Inc()
		h.logger.Warn().Err(err).Msg("failed to persist watch history")
	}
}

// publish rebuilds the snapshot set. Caller must hold h.mu or be the
// constructor.
func (h *WatchHistory) publish() {
	set := make(ItemSet, len(h.entries))
	for _, e := range h.entries {
		set[e.ItemID] = struct{}{}
	}
	h.snapshot.Store(&set)
}

// Snapshot returns the set of recently watched ids. The set must not be
// modified.
func (h *WatchHistory) Snapshot() ItemSet {
	if p := h.snapshot.Load(); p != nil {
		return *p
	}
	return nil
}

// Entries returns the entries, oldest first.
func (h *WatchHistory) Entries() []WatchHistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]WatchHistoryEntry(nil), h.entries...)
}

// Len returns the number of entries.
func (h *WatchHistory) Len() int {
	return len(h.Snapshot())
}

// PersistFailures returns how many writes failed since construction.
func (h *WatchHistory) PersistFailures() int64 {
	return h.failures.Load()
}
