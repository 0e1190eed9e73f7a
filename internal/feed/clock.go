// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Clock abstracts time so expiry and recency can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// SeedSource hands out the per-epoch PRNG seed.
type SeedSource interface {
	NextSeed() uint64
}

// PCGSeedSource draws seeds from a PCG stream. Safe for concurrent use.
type PCGSeedSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeedSource creates a seed source. A zero seed draws the stream seed
// from the runtime's random source, so every process gets different
// sessions; a non-zero seed makes the whole sequence reproducible.
func NewSeedSource(seed uint64) *PCGSeedSource {
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // ranking jitter, not security sensitive
	}
	return &PCGSeedSource{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // see above
	}
}

// NextSeed returns the next seed in the stream.
func (s *PCGSeedSource) NextSeed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Uint64()
}
