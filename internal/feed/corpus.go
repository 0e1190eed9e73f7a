// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"sync"
	"time"
)

// corpus is the append-only set of items fetched for one scope and epoch.
type corpus struct {
	epoch     int64
	expiresAt time.Time

	mu      sync.RWMutex
	items   []ContentItem
	byID    map[string]int
	fetched int // repository offset of the next batch
}

func newCorpus(epoch int64, expiresAt time.Time) *corpus {
	return &corpus{
		epoch:     epoch,
		expiresAt: expiresAt,
		byID:      make(map[string]int),
	}
}

// add appends items not seen before and returns how many were new. The
// fetch offset advances by the full batch length, duplicates included.
func (c *corpus) add(items []ContentItem) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fetched += len(items)
	added := 0
	for i := range items {
		id := items[i].ID
		if id == "" {
			continue
		}
		if _, ok := c.byID[id]; ok {
			continue
		}
		c.byID[id] = len(c.items)
		c.items = append(c.items, items[i])
		added++
	}
	return added
}

// snapshot returns the current items. The slice is capacity-limited, so
// later appends never write into it.
func (c *corpus) snapshot() []ContentItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.items[:len(c.items):len(c.items)]
}

func (c *corpus) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *corpus) offset() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetched
}

// resolve maps ids to items, skipping unknown ids.
func (c *corpus) resolve(ids []string) []ContentItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ContentItem, 0, len(ids))
	for _, id := range ids {
		if i, ok := c.byID[id]; ok {
			out = append(out, c.items[i])
		}
	}
	return out
}
