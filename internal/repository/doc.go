// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

/*
Package repository provides feed.ContentRepository adapters.

Backends:
  - MemoryRepository: items held in process, optionally seeded from a JSON file
  - HTTPRepository: a remote content API, rate limited with x/time/rate
  - DuckDBRepository: a DuckDB table queried with LIMIT/OFFSET

BreakerRepository wraps any of them with a sony/gobreaker circuit breaker so a
failing upstream is rejected fast instead of eating the feed's batch timeout.

Every backend returns the same order for a scope:

	for_you, newest  uploaded_at DESC, id ASC
	oldest           uploaded_at ASC, id ASC
	popular          view_count DESC, id ASC

The id tiebreak keeps consecutive offsets from overlapping.
*/
package repository
