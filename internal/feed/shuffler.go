// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"math"
	"math/rand/v2"
)

// shuffleStream separates the tie-break stream from the jitter streams,
// which are keyed by item id hashes.
const shuffleStream = 0x5bd1e9955bd1e995

// DiversityShuffler orders scored items by greedy selection with cumulative
// per-channel decay: after a channel has been picked k times, its remaining
// items compete with composite * decay^k.
type DiversityShuffler struct {
	decay float64
}

// NewDiversityShuffler creates a shuffler with the given decay factor.
func NewDiversityShuffler(decay float64) *DiversityShuffler {
	if decay <= 0 || decay > 1 {
		decay = 0.7
	}
	return &DiversityShuffler{decay: decay}
}

// Shuffle returns items in selection order with Score.DiversityPenalty set
// to the penalty applied when each item was picked. Ties are broken by
// random keys drawn from a PRNG seeded with seed, so the result depends only
// on the items, their order and the seed.
//
// Decay only ever lowers a candidate's score, so a stale heap entry is an
// upper bound of its true score. The top entry is re-evaluated until it is
// current; a current top is the true maximum.
func (d *DiversityShuffler) Shuffle(items []ScoredItem, seed uint64) []ScoredItem {
	if len(items) == 0 {
		return nil
	}

	rng := rand.New(rand.NewPCG(seed, shuffleStream)) //nolint:gosec // ranking tie breaks
	pool := make([]*candidate, len(items))
	for i := range items {
		pool[i] = &candidate{
			item:      i,
			effective: items[i].Score.Composite,
			tieKey:    rng.Uint64(),
		}
	}
	h := newCandidateHeap(pool)

	picks := make(map[string]int)
	out := make([]ScoredItem, 0, len(items))
	for h.Len() > 0 {
		top := h.peek()
		channel := items[top.item].Item.ChannelID
		if k := picks[channel]; top.evaluated != k {
			top.effective = items[top.item].Score.Composite * d.factor(k)
			top.evaluated = k
			h.fix(top.index)
			continue
		}

		h.pop()
		selected := items[top.item]
		selected.Score.DiversityPenalty = 1 - d.factor(top.evaluated)
		out = append(out, selected)
		picks[channel]++
	}
	return out
}

// factor returns decay^k.
func (d *DiversityShuffler) factor(k int) float64 {
	if k == 0 {
		return 1
	}
	return math.Pow(d.decay, float64(k))
}

// IDs extracts the ordered ids.
func IDs(items []ScoredItem) []string {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].Item.ID
	}
	return ids
}
