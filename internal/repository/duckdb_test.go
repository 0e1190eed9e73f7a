// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tomtom215/mediafeed/internal/feed"
)

func newTestDuckDB(t *testing.T, path string) *DuckDBRepository {
	t.Helper()
	repo, err := OpenDuckDB(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenDuckDB: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestDuckDBRepository_Ordering(t *testing.T) {
	t.Parallel()

	repo := newTestDuckDB(t, "")
	if err := repo.Upsert(context.Background(), sampleItems()...); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	testRepositoryOrdering(t, repo)
}

func TestDuckDBRepository_RoundTripsFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestDuckDB(t, "")
	want := feed.ContentItem{
		ID:              "v1",
		ChannelID:       "UC1",
		UploadedAt:      baseTime,
		ViewCount:       12345,
		DurationSeconds: 600,
		Title:           "Title",
		ChannelName:     "Channel",
		ThumbnailURL:    "https://img.example/v1.jpg",
	}
	if err := repo.Upsert(ctx, want); err != nil {
		t.Fatal(err)
	}
	res, err := repo.FetchPage(ctx, feed.ScopeKey{}, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(res.Items))
	}
	got := res.Items[0]
	if !got.UploadedAt.Equal(want.UploadedAt) {
		t.Errorf("UploadedAt = %v, want %v", got.UploadedAt, want.UploadedAt)
	}
	got.UploadedAt = want.UploadedAt
	if got != want {
		t.Errorf("item = %+v, want %+v", got, want)
	}
}

func TestDuckDBRepository_UpsertReplaces(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newTestDuckDB(t, "")
	if err := repo.Upsert(ctx, sampleItems()...); err != nil {
		t.Fatal(err)
	}
	if err := repo.Upsert(ctx, feed.ContentItem{ID: "a2", ChannelID: "chA", UploadedAt: baseTime, ViewCount: 1}); err != nil {
		t.Fatal(err)
	}
	res, err := repo.FetchPage(ctx, feed.ScopeKey{}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.TotalKnown != 5 {
		t.Errorf("TotalKnown = %d, want 5", res.TotalKnown)
	}
	if res.Items[0].ID != "a2" {
		t.Errorf("first = %s, want updated a2", res.Items[0].ID)
	}
}

func TestDuckDBRepository_PersistsOnDisk(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "content.duckdb")

	first, err := OpenDuckDB(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Upsert(ctx, sampleItems()...); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second := newTestDuckDB(t, path)
	res, err := second.FetchPage(ctx, feed.ScopeKey{ChannelID: "chA"}, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got := ids(res.Items); !equalIDs(got, []string{"a1", "a2"}) {
		t.Errorf("ids = %v, want [a1 a2]", got)
	}
}
