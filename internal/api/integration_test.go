// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/kv"
	"github.com/tomtom215/mediafeed/internal/repository"
)

func newRealService(t *testing.T, n int) *feed.Service {
	t.Helper()
	now := time.Now()
	items := make([]feed.ContentItem, n)
	for i := range items {
		items[i] = feed.ContentItem{
			ID:         fmt.Sprintf("v%03d", i),
			ChannelID:  fmt.Sprintf("ch%d", i%4),
			UploadedAt: now.Add(-time.Duration(i) * time.Hour),
			ViewCount:  int64(i * 10),
		}
	}

	cfg := feed.DefaultConfig()
	cfg.InitialBatchSize = 30
	cfg.BackgroundBatchSize = 20

	svc, err := feed.NewService(cfg, repository.NewMemoryRepository(items), kv.NewMemoryStore(),
		feed.SystemClock{}, feed.NewSeedSource(7), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func decodePage(t *testing.T, resp APIResponse) feed.Page {
	t.Helper()
	data, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatal(err)
	}
	var page feed.Page
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	return page
}

func TestIntegration_FeedPagingIsStable(t *testing.T) {
	t.Parallel()

	h := newTestRouter(newRealService(t, 60))

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/feed?page=0&page_size=10", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	first := decodePage(t, resp)
	if len(first.Items) != 10 {
		t.Fatalf("got %d items, want 10", len(first.Items))
	}

	// Re-reading a served page returns the same items.
	_, resp = doRequest(t, h, http.MethodGet, "/api/v1/feed?page=0&page_size=10", "")
	again := decodePage(t, resp)
	for i := range first.Items {
		if first.Items[i].ID != again.Items[i].ID {
			t.Fatalf("item %d changed from %s to %s", i, first.Items[i].ID, again.Items[i].ID)
		}
	}

	seen := make(map[string]bool)
	for _, it := range first.Items {
		seen[it.ID] = true
	}
	_, resp = doRequest(t, h, http.MethodGet, "/api/v1/feed?page=1&page_size=10", "")
	for _, it := range decodePage(t, resp).Items {
		if seen[it.ID] {
			t.Errorf("item %s repeated across pages", it.ID)
		}
	}
}

func TestIntegration_RefreshAndPlayback(t *testing.T) {
	t.Parallel()

	h := newTestRouter(newRealService(t, 40))

	_, resp := doRequest(t, h, http.MethodGet, "/api/v1/feed", "")
	before := decodePage(t, resp)

	rec, _ := doRequest(t, h, http.MethodPost, "/api/v1/playback", `{"item_id":"v001"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("playback status = %d", rec.Code)
	}

	rec, resp = doRequest(t, h, http.MethodPost, "/api/v1/feed/refresh", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, body %s", rec.Code, rec.Body.String())
	}
	after := decodePage(t, resp)
	if after.Epoch <= before.Epoch {
		t.Errorf("epoch after refresh = %d, want > %d", after.Epoch, before.Epoch)
	}

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/feed/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint = %d", rec.Code)
	}
	var env struct {
		Data feed.Status `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatal(err)
	}
	if env.Data.HistorySize != 1 {
		t.Errorf("HistorySize = %d, want 1", env.Data.HistorySize)
	}
}

func TestIntegration_DirectSortBypassesRanking(t *testing.T) {
	t.Parallel()

	h := newTestRouter(newRealService(t, 12))
	_, resp := doRequest(t, h, http.MethodGet, "/api/v1/feed?sort=oldest&page_size=5", "")
	page := decodePage(t, resp)
	if len(page.Items) != 5 || page.Items[0].ID != "v011" {
		t.Errorf("oldest page = %+v", page.Items)
	}
}
