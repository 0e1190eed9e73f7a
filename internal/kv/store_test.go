// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package kv

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v4"
	goredis "github.com/redis/go-redis/v9"
)

// testStoreContract exercises the behavior every backend must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "feed:session:a", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "feed:session:a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Errorf("Get = %q, want %q", got, "v1")
	}

	if err := s.Set(ctx, "feed:session:a", []byte("v2"), time.Hour); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = s.Get(ctx, "feed:session:a")
	if !bytes.Equal(got, []byte("v2")) {
		t.Errorf("after overwrite Get = %q, want %q", got, "v2")
	}

	if err := s.Delete(ctx, "feed:session:a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "feed:session:a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}

func TestMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	testStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithNow(func() time.Time { return now }))
	ctx := context.Background()

	_ = s.Set(ctx, "short", []byte("x"), time.Minute)
	_ = s.Set(ctx, "forever", []byte("y"), 0)

	now = now.Add(59 * time.Second)
	if _, err := s.Get(ctx, "short"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	now = now.Add(time.Second)
	if _, err := s.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get at expiry error = %v, want ErrNotFound", err)
	}
	if _, err := s.Get(ctx, "forever"); err != nil {
		t.Errorf("non-expiring key: %v", err)
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithNow(func() time.Time { return now }))
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_ = s.Set(ctx, k, []byte(k), time.Second)
	}
	_ = s.Set(ctx, "keep", []byte("k"), 0)

	now = now.Add(2 * time.Second)
	if err := s.Maintain(ctx); err != nil {
		t.Fatalf("Maintain: %v", err)
	}
	stats := s.Stats()
	if stats.Keys != 1 {
		t.Errorf("Keys = %d, want 1", stats.Keys)
	}
	if stats.Evictions != 3 {
		t.Errorf("Evictions = %d, want 3", stats.Evictions)
	}
}

func TestMemoryStore_ValueIsolation(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	ctx := context.Background()
	buf := []byte("abc")
	_ = s.Set(ctx, "k", buf, 0)
	buf[0] = 'z'

	got, _ := s.Get(ctx, "k")
	if string(got) != "abc" {
		t.Errorf("stored value mutated through caller slice: %q", got)
	}
	got[1] = 'z'
	again, _ := s.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	t.Parallel()

	s := NewMemoryStore()
	_ = s.Close()
	if _, err := s.Get(context.Background(), "k"); !errors.Is(err, ErrClosed) {
		t.Errorf("Get after Close = %v, want ErrClosed", err)
	}
	if err := s.Set(context.Background(), "k", nil, 0); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after Close = %v, want ErrClosed", err)
	}
}

func setupTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewBadgerStore(db, 0.5)
}

func TestBadgerStore_Contract(t *testing.T) {
	t.Parallel()
	testStoreContract(t, setupTestBadger(t))
}

func TestBadgerStore_TTLApplied(t *testing.T) {
	t.Parallel()

	s := setupTestBadger(t)
	if err := s.Set(context.Background(), "ttl", []byte("x"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("ttl"))
		if err != nil {
			return err
		}
		if item.ExpiresAt() == 0 {
			t.Error("expected entry to carry an expiry")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestBadgerStore_MaintainInMemory(t *testing.T) {
	t.Parallel()

	s := setupTestBadger(t)
	if err := s.Maintain(context.Background()); err != nil {
		t.Errorf("Maintain on in-memory db = %v, want nil", err)
	}
}

func TestOpenBadger_OnDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := OpenBadger(dir, 0.5)
	if err != nil {
		t.Fatalf("OpenBadger: %v", err)
	}
	ctx := context.Background()
	if err := s.Set(ctx, "feed:history", []byte("[]"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Maintain(ctx); err != nil {
		t.Errorf("Maintain: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenBadger(dir, 0.5)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Get(ctx, "feed:history")
	if err != nil || string(got) != "[]" {
		t.Errorf("value not persisted: %q, %v", got, err)
	}
}

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "test:"), mr
}

func TestRedisStore_Contract(t *testing.T) {
	t.Parallel()
	s, _ := setupTestRedis(t)
	testStoreContract(t, s)
}

func TestRedisStore_PrefixAndTTL(t *testing.T) {
	t.Parallel()

	s, mr := setupTestRedis(t)
	ctx := context.Background()
	if err := s.Set(ctx, "feed:epoch:x", []byte("3"), 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !mr.Exists("test:feed:epoch:x") {
		t.Fatal("expected prefixed key in redis")
	}

	mr.FastForward(11 * time.Second)
	if _, err := s.Get(ctx, "feed:epoch:x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after TTL error = %v, want ErrNotFound", err)
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", Config{}, false},
		{"memory", Config{Backend: BackendMemory}, false},
		{"badger in-memory", Config{Backend: BackendBadger}, false},
		{"redis", Config{Backend: BackendRedis, RedisAddr: mr.Addr()}, false},
		{"redis missing addr", Config{Backend: BackendRedis}, true},
		{"unknown", Config{Backend: "etcd"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if s != nil {
				_ = s.Close()
			}
		})
	}
}
