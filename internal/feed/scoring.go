// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"
)

// CorpusStats are the corpus-wide aggregates the scorer normalizes against.
type CorpusStats struct {
	MaxViewCount int64
}

// ComputeStats scans items for the aggregates.
func ComputeStats(items []ContentItem) CorpusStats {
	var stats CorpusStats
	for i := range items {
		if items[i].ViewCount > stats.MaxViewCount {
			stats.MaxViewCount = items[i].ViewCount
		}
	}
	return stats
}

// ItemSet is an immutable set of item ids.
type ItemSet map[string]struct{}

// Contains reports whether id is in the set. A nil set is empty.
func (s ItemSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Scorer computes ScoreComponents. It holds no mutable state.
type Scorer struct {
	weights      Weights
	halfLifeDays float64
	clock        Clock
}

// NewScorer creates a scorer from cfg.
func NewScorer(cfg *Config, clock Clock) *Scorer {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scorer{
		weights:      cfg.Weights,
		halfLifeDays: cfg.HalfLifeDays,
		clock:        clock,
	}
}

// Score scores one item at the current time.
func (s *Scorer) Score(item *ContentItem, stats CorpusStats, seen ItemSet, seed uint64) ScoreComponents {
	return s.scoreAt(item, stats, seen, seed, s.clock.Now())
}

// ScoreAll scores items against stats computed over the same slice. The
// clock is read once so every item shares the same notion of now.
func (s *Scorer) ScoreAll(items []ContentItem, seen ItemSet, seed uint64) []ScoredItem {
	stats := ComputeStats(items)
	now := s.clock.Now()

	out := make([]ScoredItem, len(items))
	for i := range items {
		out[i] = ScoredItem{
			Item:  items[i],
			Score: s.scoreAt(&items[i], stats, seen, seed, now),
		}
	}
	return out
}

func (s *Scorer) scoreAt(item *ContentItem, stats CorpusStats, seen ItemSet, seed uint64, now time.Time) ScoreComponents {
	c := ScoreComponents{
		Recency:      recency(item.UploadedAt, now, s.halfLifeDays),
		Engagement:   engagement(item.ViewCount, stats.MaxViewCount),
		RandomJitter: jitter(seed, item.ID),
	}
	if !seen.Contains(item.ID) {
		c.UnseenBonus = 1
	}
	c.Composite = s.weights.Recency*c.Recency +
		s.weights.Engagement*c.Engagement +
		s.weights.Unseen*c.UnseenBonus +
		s.weights.Jitter*c.RandomJitter
	return c
}

// recency decays exponentially with the given half-life. Future uploads and
// a zero upload time count as age zero.
func recency(uploadedAt, now time.Time, halfLifeDays float64) float64 {
	if uploadedAt.IsZero() {
		return 1
	}
	ageDays := now.Sub(uploadedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-math.Ln2 * ageDays / halfLifeDays)
}

func engagement(views, maxViews int64) float64 {
	if views <= 0 {
		return 0
	}
	if maxViews < 1 {
		maxViews = 1
	}
	e := float64(views) / float64(maxViews)
	if e > 1 {
		return 1
	}
	return e
}

// jitter draws a uniform [0,1) value from a PCG stream keyed by the session
// seed and the item id, so an item keeps its jitter across passes.
func jitter(seed uint64, id string) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	r := rand.New(rand.NewPCG(seed, h.Sum64())) //nolint:gosec // ranking jitter
	return r.Float64()
}
