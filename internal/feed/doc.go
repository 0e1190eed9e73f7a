// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

// Package feed implements the "For You" feed ranking engine.
//
// # Architecture
//
// A feed is ranked per scope (channel filter + sort mode) and served page by
// page from a session persisted in a key-value store:
//
//   - Scorer: pure weighted blend of recency, engagement, an unseen bonus
//     and a per-session random jitter
//   - DiversityShuffler: greedy selection that multiplies a channel's
//     remaining scores by a decay factor every time the channel is picked
//   - SessionCache: TTL and epoch guarded ordered id list per scope
//   - Controller: ranks a small initial batch for fast first content, then
//     keeps fetching batches in the background and re-ranks the unserved tail
//   - WatchHistory: bounded FIFO of recently played items
//   - Service: the page-oriented facade used by the HTTP layer
//
// # Stability
//
// Ids already handed out to a caller (the served prefix) are frozen. Background
// passes only ever replace the tail after the prefix, and only while the
// session epoch they captured is still current. Refresh bumps the epoch, which
// turns every in-flight merge into a no-op.
//
// # Determinism
//
// Time and randomness are injected (Clock, SeedSource). Given the same seed
// and the same corpus, scoring and shuffling produce the same order.
//
// # Usage
//
//	cfg := feed.DefaultConfig()
//	svc, err := feed.NewService(cfg, repo, store, feed.SystemClock{}, feed.NewSeedSource(0), logger)
//	page, err := svc.GetPage(ctx, feed.ScopeKey{Sort: feed.SortForYou}, 0, 20)
package feed
