// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mediafeed/internal/kv"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

// Key prefixes in the KV store
const (
	sessionKeyPrefix = "feed:session:"
	epochKeyPrefix   = "feed:epoch:"
)

// SessionCache stores one FeedSession per scope in a kv.Store. All state
// lives in the store; the cache only keeps per-scope mutexes so that
// read-modify-write operations from this process do not interleave.
type SessionCache struct {
	store  kv.Store
	clock  Clock
	logger zerolog.Logger
	locks  sync.Map // scope string -> *sync.Mutex
}

// NewSessionCache creates a session cache over store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewSessionCache(store kv.Store, clock Clock, logger zerolog.Logger) *SessionCache {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SessionCache{
		store:  store,
		clock:  clock,
		logger: logger.With().Str("component", "session-cache").Logger(),
	}
}

func (c *SessionCache) lock(scope ScopeKey) func() {
	v, _ := c.locks.LoadOrStore(scope.String(), &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Get returns the session for scope. Missing and expired sessions are both
// reported as absent.
func (c *SessionCache) Get(ctx context.Context, scope ScopeKey) (*FeedSession, bool, error) {
	sess, result, err := c.load(ctx, scope)
	metrics.RecordCacheLookup(result)
	if err != nil {
		return nil, false, err
	}
	return sess, sess != nil, nil
}

// load reads and decodes the session. result is one of hit, miss, expired
// or error.
func (c *SessionCache) load(ctx context.Context, scope ScopeKey) (*FeedSession, string, error) {
	data, err := c.store.Get(ctx, sessionKeyPrefix+scope.String())
	if errors.Is(err, kv.ErrNotFound) {
		return nil, "miss", nil
	}
	if err != nil {
		return nil, "error", fmt.Errorf("get session %s: %w", scope, err)
	}

	var sess FeedSession
	if err := json.Unmarshal(data, &sess); err != nil {
		// Treated as a miss; the next build overwrites it.
		c.logger.Warn().Err(err).Str("scope", scope.String()).Msg("discarding undecodable session")
		return nil, "error", nil
	}
	if sess.Expired(c.clock.Now()) {
		return nil, "expired", nil
	}
	return &sess, "hit", nil
}

// save writes sess with a TTL matching its expiry. An already expired
// session is deleted instead.
func (c *SessionCache) save(ctx context.Context, sess *FeedSession) error {
	key := sessionKeyPrefix + sess.Scope.String()
	ttl := sess.ExpiresAt.Sub(c.clock.Now())
	if ttl <= 0 {
		if err := c.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("delete expired session %s: %w", sess.Scope, err)
		}
		return nil
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("set session %s: %w", sess.Scope, err)
	}
	return nil
}

// Put stores session under scope. Duplicate ids are dropped (first
// occurrence wins) and ServedCount is clamped to the list length. A session
// whose epoch is older than the scope's epoch counter is rejected with
// ErrStaleSession.
func (c *SessionCache) Put(ctx context.Context, scope ScopeKey, session *FeedSession) error {
	unlock := c.lock(scope)
	defer unlock()

	current, err := c.CurrentEpoch(ctx, scope)
	if err != nil {
		return err
	}
	if session.Epoch < current {
		return fmt.Errorf("%w: session epoch %d, scope epoch %d", ErrStaleSession, session.Epoch, current)
	}

	sess := session.Clone()
	sess.Scope = scope
	sess.OrderedIDs = dedupe(sess.OrderedIDs, nil)
	sess.ServedCount = clamp(sess.ServedCount, 0, len(sess.OrderedIDs))
	return c.save(ctx, sess)
}

// CurrentEpoch returns the scope's epoch counter, zero if never invalidated.
func (c *SessionCache) CurrentEpoch(ctx context.Context, scope ScopeKey) (int64, error) {
	data, err := c.store.Get(ctx, epochKeyPrefix+scope.String())
	if errors.Is(err, kv.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get epoch %s: %w", scope, err)
	}
	epoch, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse epoch %s: %w", scope, err)
	}
	return epoch, nil
}

// Invalidate bumps the scope's epoch and deletes its session. Background
// work that captured the previous epoch can no longer merge.
func (c *SessionCache) Invalidate(ctx context.Context, scope ScopeKey) (int64, error) {
	unlock := c.lock(scope)
	defer unlock()

	epoch, err := c.CurrentEpoch(ctx, scope)
	if err != nil {
		return 0, err
	}
	// A session may carry a newer epoch than the counter if the counter key
	// was lost; never hand out an epoch that was already used.
	if sess, _, err := c.load(ctx, scope); err == nil && sess != nil && sess.Epoch > epoch {
		epoch = sess.Epoch
	}
	epoch++

	if err := c.store.Set(ctx, epochKeyPrefix+scope.String(), []byte(strconv.FormatInt(epoch, 10)), 0); err != nil {
		return 0, fmt.Errorf("set epoch %s: %w", scope, err)
	}
	if err := c.store.Delete(ctx, sessionKeyPrefix+scope.String()); err != nil {
		return 0, fmt.Errorf("delete session %s: %w", scope, err)
	}

	c.logger.Debug().Str("scope", scope.String()).Int64("epoch", epoch).Msg("session invalidated")
	return epoch, nil
}

// MergeTail replaces OrderedIDs[ServedCount:] with tail, but only while the
// session is still at epoch. Tail ids that are already served, and repeated
// tail ids, are dropped. A stale or missing session is a silent no-op that
// reports applied == false.
func (c *SessionCache) MergeTail(ctx context.Context, scope ScopeKey, epoch int64, tail []string) (bool, error) {
	unlock := c.lock(scope)
	defer unlock()

	sess, _, err := c.load(ctx, scope)
	if err != nil {
		return false, err
	}
	if sess == nil || sess.Epoch != epoch {
		ev := c.logger.Debug().Str("scope", scope.String()).Int64("epoch", epoch)
		if sess != nil {
			ev = ev.Int64("session_epoch", sess.Epoch)
		}
		ev.Msg("stale tail merge ignored")
		metrics.RecordTailMerge(false)
		return false, nil
	}

	prefix := sess.ServedPrefix()
	served := make(map[string]struct{}, len(prefix))
	for _, id := range prefix {
		served[id] = struct{}{}
	}

	ordered := make([]string, 0, len(prefix)+len(tail))
	ordered = append(ordered, prefix...)
	ordered = append(ordered, dedupe(tail, served)...)
	sess.OrderedIDs = ordered

	if err := c.save(ctx, sess); err != nil {
		return false, err
	}
	metrics.RecordTailMerge(true)
	return true, nil
}

// MarkServed advances ServedCount by delta, clamped to the list length, and
// returns the new count.
func (c *SessionCache) MarkServed(ctx context.Context, scope ScopeKey, delta int) (int, error) {
	unlock := c.lock(scope)
	defer unlock()

	sess, _, err := c.load(ctx, scope)
	if err != nil {
		return 0, err
	}
	if sess == nil {
		return 0, ErrNoSession
	}
	if delta <= 0 {
		return sess.ServedCount, nil
	}

	sess.ServedCount = clamp(sess.ServedCount+delta, 0, len(sess.OrderedIDs))
	if err := c.save(ctx, sess); err != nil {
		return 0, err
	}
	return sess.ServedCount, nil
}

// ServeRange returns OrderedIDs[start:start+count] and freezes everything up
// to the end of that range, in one locked step. The returned session is the
// state the ids were read from.
func (c *SessionCache) ServeRange(ctx context.Context, scope ScopeKey, start, count int) ([]string, *FeedSession, error) {
	unlock := c.lock(scope)
	defer unlock()

	sess, _, err := c.load(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		return nil, nil, ErrNoSession
	}

	start = clamp(start, 0, len(sess.OrderedIDs))
	end := clamp(start+count, start, len(sess.OrderedIDs))
	ids := append([]string(nil), sess.OrderedIDs[start:end]...)

	if end > sess.ServedCount {
		sess.ServedCount = end
		if err := c.save(ctx, sess); err != nil {
			return nil, nil, err
		}
	}
	return ids, sess, nil
}

// SetExhausted marks the session's corpus as complete. Epoch checked like
// MergeTail.
func (c *SessionCache) SetExhausted(ctx context.Context, scope ScopeKey, epoch int64) (bool, error) {
	unlock := c.lock(scope)
	defer unlock()

	sess, _, err := c.load(ctx, scope)
	if err != nil {
		return false, err
	}
	if sess == nil || sess.Epoch != epoch {
		return false, nil
	}
	if sess.Exhausted {
		return true, nil
	}
	sess.Exhausted = true
	if err := c.save(ctx, sess); err != nil {
		return false, err
	}
	return true, nil
}

// dedupe returns ids without repeats and without anything in skip.
func dedupe(ids []string, skip map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
