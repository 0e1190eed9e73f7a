// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package repository

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tomtom215/mediafeed/internal/feed"
)

// ErrInvalidRange is returned for a negative offset or limit.
var ErrInvalidRange = errors.New("invalid offset or limit")

func checkRange(offset, limit int) error {
	if offset < 0 || limit < 0 {
		return fmt.Errorf("%w: offset=%d limit=%d", ErrInvalidRange, offset, limit)
	}
	return nil
}

// compareItems orders two items for a sort mode.
func compareItems(mode feed.SortMode, a, b *feed.ContentItem) int {
	var c int
	switch mode {
	case feed.SortOldest:
		c = a.UploadedAt.Compare(b.UploadedAt)
	case feed.SortPopular:
		switch {
		case a.ViewCount > b.ViewCount:
			c = -1
		case a.ViewCount < b.ViewCount:
			c = 1
		}
	default:
		c = b.UploadedAt.Compare(a.UploadedAt)
	}
	if c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// sortItems sorts items in place for mode.
func sortItems(items []feed.ContentItem, mode feed.SortMode) {
	slices.SortStableFunc(items, func(a, b feed.ContentItem) int {
		return compareItems(mode, &a, &b)
	})
}

// window returns items[offset:offset+limit] clamped to the slice.
func window(items []feed.ContentItem, offset, limit int) []feed.ContentItem {
	if offset >= len(items) {
		return []feed.ContentItem{}
	}
	end := min(offset+limit, len(items))
	out := make([]feed.ContentItem, end-offset)
	copy(out, items[offset:end])
	return out
}

// orderClause maps a sort mode to a fixed SQL ORDER BY clause.
func orderClause(mode feed.SortMode) string {
	switch mode {
	case feed.SortOldest:
		return "uploaded_at ASC, id ASC"
	case feed.SortPopular:
		return "view_count DESC, id ASC"
	default:
		return "uploaded_at DESC, id ASC"
	}
}
