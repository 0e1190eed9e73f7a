// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

// candidate is a pool entry of the diversity shuffler.
type candidate struct {
	item      int     // index into the shuffler input
	effective float64 // composite * decay^evaluatedAt
	evaluated int     // channel pick count when effective was computed
	tieKey    uint64  // random tie breaker
	index     int     // position in the heap array
}

// candidateHeap is a binary max-heap ordered by effective score, then by
// tieKey. Not safe for concurrent use.
type candidateHeap struct {
	heap []*candidate
}

func newCandidateHeap(cs []*candidate) *candidateHeap {
	h := &candidateHeap{}
	h.buildFrom(cs)
	return h
}

func (h *candidateHeap) Len() int { return len(h.heap) }

// buildFrom replaces the heap contents and heapifies in O(n).
func (h *candidateHeap) buildFrom(cs []*candidate) {
	h.heap = cs
	for i, c := range cs {
		c.index = i
	}
	for i := len(cs)/2 - 1; i >= 0; i-- {
		h.bubbleDown(i)
	}
}

func (h *candidateHeap) peek() *candidate {
	if len(h.heap) == 0 {
		return nil
	}
	return h.heap[0]
}

func (h *candidateHeap) pop() *candidate {
	if len(h.heap) == 0 {
		return nil
	}
	return h.removeAt(0)
}

// fix restores heap order after the entry at index i changed its score.
func (h *candidateHeap) fix(i int) {
	if !h.bubbleUp(i) {
		h.bubbleDown(i)
	}
}

func (h *candidateHeap) removeAt(i int) *candidate {
	last := len(h.heap) - 1
	c := h.heap[i]
	if i != last {
		h.swap(i, last)
	}
	h.heap[last] = nil
	h.heap = h.heap[:last]
	if i < len(h.heap) {
		h.fix(i)
	}
	c.index = -1
	return c
}

func (h *candidateHeap) less(i, j int) bool {
	a, b := h.heap[i], h.heap[j]
	if a.effective != b.effective {
		return a.effective > b.effective
	}
	return a.tieKey > b.tieKey
}

func (h *candidateHeap) swap(i, j int) {
	h.heap[i], h.heap[j] = h.heap[j], h.heap[i]
	h.heap[i].index = i
	h.heap[j].index = j
}

// bubbleUp moves the entry at i up and reports whether it moved.
func (h *candidateHeap) bubbleUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !h.less(i, parent) {
			break
		}
		h.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (h *candidateHeap) bubbleDown(i int) {
	n := len(h.heap)
	for {
		best := i
		left, right := 2*i+1, 2*i+2
		if left < n && h.less(left, best) {
			best = left
		}
		if right < n && h.less(right, best) {
			best = right
		}
		if best == i {
			return
		}
		h.swap(i, best)
		i = best
	}
}
