// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/tomtom215/mediafeed/internal/kv"
)

var forYou = ScopeKey{Sort: SortForYou}

func newTestCache(t *testing.T) (*SessionCache, *fakeClock, *kv.MemoryStore) {
	t.Helper()
	clock := newFakeClock()
	store := kv.NewMemoryStore(kv.WithNow(clock.Now))
	t.Cleanup(func() { _ = store.Close() })
	return NewSessionCache(store, clock, testLogger()), clock, store
}

func putSession(t *testing.T, c *SessionCache, clock *fakeClock, epoch int64, ids ...string) {
	t.Helper()
	err := c.Put(context.Background(), forYou, &FeedSession{
		Scope:      forYou,
		OrderedIDs: ids,
		CreatedAt:  clock.Now(),
		ExpiresAt:  clock.Now().Add(time.Hour),
		Epoch:      epoch,
		Seed:       9,
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func mustGet(t *testing.T, c *SessionCache) *FeedSession {
	t.Helper()
	sess, ok, err := c.Get(context.Background(), forYou)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	return sess
}

func TestSessionCache_TTL(t *testing.T) {
	t.Parallel()

	c, clock, _ := newTestCache(t)
	putSession(t, c, clock, 0, "a", "b")

	clock.Advance(59*time.Minute + 59*time.Second)
	if _, ok, _ := c.Get(context.Background(), forYou); !ok {
		t.Fatal("session should be live before expiresAt")
	}

	clock.Advance(time.Second)
	if _, ok, _ := c.Get(context.Background(), forYou); ok {
		t.Fatal("session should be absent at expiresAt")
	}
}

func TestSessionCache_PutDedupesAndClamps(t *testing.T) {
	t.Parallel()

	c, clock, _ := newTestCache(t)
	err := c.Put(context.Background(), forYou, &FeedSession{
		OrderedIDs:  []string{"a", "b", "a", "c", "b"},
		ServedCount: 10,
		ExpiresAt:   clock.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	sess := mustGet(t, c)
	if !slices.Equal(sess.OrderedIDs, []string{"a", "b", "c"}) {
		t.Errorf("OrderedIDs = %v", sess.OrderedIDs)
	}
	if sess.ServedCount != 3 {
		t.Errorf("ServedCount = %d, want 3", sess.ServedCount)
	}
	if sess.Scope != forYou {
		t.Errorf("Scope = %v, want %v", sess.Scope, forYou)
	}
}

func TestSessionCache_PutRejectsStaleEpoch(t *testing.T) {
	t.Parallel()

	c, clock, _ := newTestCache(t)
	if _, err := c.Invalidate(context.Background(), forYou); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	err := c.Put(context.Background(), forYou, &FeedSession{
		OrderedIDs: []string{"a"},
		ExpiresAt:  clock.Now().Add(time.Hour),
		Epoch:      0,
	})
	if !errors.Is(err, ErrStaleSession) {
		t.Fatalf("Put(old epoch) = %v, want ErrStaleSession", err)
	}
}

func TestSessionCache_MergeTailKeepsServedPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	all := []string{"a", "b", "c", "d", "e", "f"}
	for k := 0; k <= len(all); k++ {
		c, clock, _ := newTestCache(t)
		putSession(t, c, clock, 0, all...)
		if _, err := c.MarkServed(ctx, forYou, k); err != nil {
			t.Fatalf("MarkServed: %v", err)
		}

		// Reverse order tail that also repeats served ids.
		tail := slices.Clone(all)
		slices.Reverse(tail)
		tail = append(tail, "g", "g")
		applied, err := c.MergeTail(ctx, forYou, 0, tail)
		if err != nil || !applied {
			t.Fatalf("k=%d: MergeTail applied=%v err=%v", k, applied, err)
		}

		sess := mustGet(t, c)
		if !slices.Equal(sess.OrderedIDs[:k], all[:k]) {
			t.Errorf("k=%d: prefix changed: %v", k, sess.OrderedIDs[:k])
		}
		if hasDuplicates(sess.OrderedIDs) {
			t.Errorf("k=%d: duplicates after merge: %v", k, sess.OrderedIDs)
		}
		if len(sess.OrderedIDs) != len(all)+1 {
			t.Errorf("k=%d: len = %d, want %d", k, len(sess.OrderedIDs), len(all)+1)
		}
	}
}

func TestSessionCache_EpochCancellation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("invalidate between merges", func(t *testing.T) {
		t.Parallel()
		c, clock, _ := newTestCache(t)
		putSession(t, c, clock, 0, "a", "b", "c")

		if ok, _ := c.MergeTail(ctx, forYou, 0, []string{"c", "b", "a"}); !ok {
			t.Fatal("first merge should apply")
		}
		epoch, err := c.Invalidate(ctx, forYou)
		if err != nil || epoch != 1 {
			t.Fatalf("Invalidate = %d, %v", epoch, err)
		}
		// Rebuilt session under the new epoch.
		putSession(t, c, clock, epoch, "x", "y")

		if ok, _ := c.MergeTail(ctx, forYou, 0, []string{"a", "b"}); ok {
			t.Fatal("merge with captured epoch 0 must be a no-op")
		}
		if sess := mustGet(t, c); !slices.Equal(sess.OrderedIDs, []string{"x", "y"}) {
			t.Errorf("session changed by stale merge: %v", sess.OrderedIDs)
		}
	})

	t.Run("invalidate before both merges", func(t *testing.T) {
		t.Parallel()
		c, clock, _ := newTestCache(t)
		putSession(t, c, clock, 0, "a", "b", "c")
		if _, err := c.Invalidate(ctx, forYou); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 2; i++ {
			if ok, _ := c.MergeTail(ctx, forYou, 0, []string{"z"}); ok {
				t.Fatalf("merge %d applied after invalidate", i)
			}
		}
		if _, ok, _ := c.Get(ctx, forYou); ok {
			t.Error("invalidate must delete the session")
		}
	})
}

func TestSessionCache_EpochPersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := kv.NewMemoryStore(kv.WithNow(clock.Now))
	ctx := context.Background()

	first := NewSessionCache(store, clock, testLogger())
	for i := 0; i < 3; i++ {
		if _, err := first.Invalidate(ctx, forYou); err != nil {
			t.Fatal(err)
		}
	}
	second := NewSessionCache(store, clock, testLogger())
	epoch, err := second.CurrentEpoch(ctx, forYou)
	if err != nil || epoch != 3 {
		t.Fatalf("CurrentEpoch = %d, %v; want 3", epoch, err)
	}
	other, _ := second.CurrentEpoch(ctx, ScopeKey{ChannelID: "ch-1"})
	if other != 0 {
		t.Errorf("epochs must be per scope, got %d", other)
	}
}

func TestSessionCache_MarkServed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, clock, _ := newTestCache(t)

	if _, err := c.MarkServed(ctx, forYou, 1); !errors.Is(err, ErrNoSession) {
		t.Fatalf("MarkServed without session = %v, want ErrNoSession", err)
	}

	putSession(t, c, clock, 0, "a", "b", "c")
	tests := []struct {
		delta int
		want  int
	}{
		{2, 2},
		{0, 2},
		{-1, 2},
		{5, 3},
	}
	for _, tt := range tests {
		got, err := c.MarkServed(ctx, forYou, tt.delta)
		if err != nil || got != tt.want {
			t.Errorf("MarkServed(%d) = %d, %v; want %d", tt.delta, got, err, tt.want)
		}
	}
}

func TestSessionCache_ServeRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, clock, _ := newTestCache(t)
	putSession(t, c, clock, 0, "a", "b", "c", "d", "e")

	ids, sess, err := c.ServeRange(ctx, forYou, 2, 2)
	if err != nil {
		t.Fatalf("ServeRange: %v", err)
	}
	if !slices.Equal(ids, []string{"c", "d"}) {
		t.Errorf("ids = %v", ids)
	}
	if sess.ServedCount != 4 {
		t.Errorf("ServedCount = %d, want 4", sess.ServedCount)
	}

	// An earlier page never moves the frozen boundary back.
	if _, sess, _ = c.ServeRange(ctx, forYou, 0, 2); sess.ServedCount != 4 {
		t.Errorf("ServedCount regressed to %d", sess.ServedCount)
	}

	ids, _, err = c.ServeRange(ctx, forYou, 10, 5)
	if err != nil || len(ids) != 0 {
		t.Errorf("out of range page = %v, %v", ids, err)
	}
}

func TestSessionCache_SetExhausted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c, clock, _ := newTestCache(t)
	putSession(t, c, clock, 0, "a")

	if ok, _ := c.SetExhausted(ctx, forYou, 5); ok {
		t.Error("SetExhausted with wrong epoch must be a no-op")
	}
	if ok, err := c.SetExhausted(ctx, forYou, 0); !ok || err != nil {
		t.Fatalf("SetExhausted = %v, %v", ok, err)
	}
	if !mustGet(t, c).Exhausted {
		t.Error("session not marked exhausted")
	}
}

func TestSessionCache_CorruptSessionIsMiss(t *testing.T) {
	t.Parallel()

	c, _, store := newTestCache(t)
	_ = store.Set(context.Background(), sessionKeyPrefix+forYou.String(), []byte("{not json"), 0)
	if _, ok, err := c.Get(context.Background(), forYou); ok || err != nil {
		t.Errorf("corrupt session: ok=%v err=%v, want miss", ok, err)
	}
}
