// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

// Package kv provides the key-value persistence substrate used by the feed
// engine for sessions, epoch counters and watch history.
//
// Three backends are available:
//   - MemoryStore: process-local TTL map (default, tests, single instance)
//   - BadgerStore: embedded persistent store with native TTL entries
//   - RedisStore: shared store for multi-instance deployments
//
// All backends treat an expired key exactly like a missing one and return
// ErrNotFound.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("kv: store closed")

// Store is the minimal get / set-with-TTL / delete contract.
// A ttl <= 0 means the key never expires.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Maintainer is implemented by backends that need periodic housekeeping
// (expired entry sweeps, value-log garbage collection). The supervisor runs
// Maintain on a ticker.
type Maintainer interface {
	Maintain(ctx context.Context) error
}
