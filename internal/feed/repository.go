// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import "context"

// ContentRepository is the paginated content store.
//
// For SortForYou scopes the engine only needs a stable order so that
// consecutive offsets never overlap; adapters use upload time, newest first.
// Fewer than limit items means the scope is exhausted.
type ContentRepository interface {
	FetchPage(ctx context.Context, scope ScopeKey, offset, limit int) (FetchResult, error)
}
