// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mediafeed/internal/feed"
)

// mockFeedService records calls and returns canned results.
type mockFeedService struct {
	mu        sync.Mutex
	page      *feed.Page
	status    *feed.Status
	err       error
	scopes    []feed.ScopeKey
	pages     [][2]int
	refreshed int
	played    []string
}

func (m *mockFeedService) GetPage(_ context.Context, scope feed.ScopeKey, pageIndex, pageSize int) (*feed.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes = append(m.scopes, scope)
	m.pages = append(m.pages, [2]int{pageIndex, pageSize})
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *mockFeedService) Refresh(_ context.Context, scope feed.ScopeKey) (*feed.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes = append(m.scopes, scope)
	m.refreshed++
	if m.err != nil {
		return nil, m.err
	}
	return m.page, nil
}

func (m *mockFeedService) RecordPlayback(_ context.Context, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.played = append(m.played, itemID)
	return nil
}

func (m *mockFeedService) Status(_ context.Context, scope feed.ScopeKey) (*feed.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes = append(m.scopes, scope)
	if m.err != nil {
		return nil, m.err
	}
	return m.status, nil
}

func newTestRouter(svc FeedService) http.Handler {
	mw := NewChiMiddleware(&ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"https://app.example"},
		CORSAllowedMethods: []string{"GET", "POST"},
		RateLimitDisabled:  true,
	})
	return NewRouter(NewHandler(svc), mw).SetupChi()
}

func doRequest(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func samplePage() *feed.Page {
	return &feed.Page{
		Items:       []feed.ContentItem{{ID: "v1", ChannelID: "c1"}, {ID: "v2", ChannelID: "c2"}},
		PageIndex:   0,
		PageSize:    20,
		TotalRanked: 2,
		Epoch:       3,
		Complete:    true,
	}
}

func TestFeed_Success(t *testing.T) {
	t.Parallel()

	svc := &mockFeedService{page: samplePage()}
	rec, resp := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/v1/feed?page=2&page_size=10&sort=for_you&channel_id=UC1", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Status != "success" {
		t.Errorf("envelope status = %q", resp.Status)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q, want no-store", rec.Header().Get("Cache-Control"))
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}

	data, _ := json.Marshal(resp.Data)
	var page feed.Page
	if err := json.Unmarshal(data, &page); err != nil {
		t.Fatal(err)
	}
	if len(page.Items) != 2 || page.Epoch != 3 {
		t.Errorf("page = %+v", page)
	}

	if got := svc.pages[0]; got != [2]int{2, 10} {
		t.Errorf("service got page %v, want [2 10]", got)
	}
	if got := svc.scopes[0]; got != (feed.ScopeKey{ChannelID: "UC1", Sort: feed.SortForYou}) {
		t.Errorf("scope = %+v", got)
	}
}

func TestFeed_DefaultsPassedThrough(t *testing.T) {
	t.Parallel()

	svc := &mockFeedService{page: samplePage()}
	rec, _ := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/v1/feed", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := svc.pages[0]; got != [2]int{0, 0} {
		t.Errorf("page args = %v, want [0 0] (service applies defaults)", got)
	}
	if svc.scopes[0].Sort != feed.SortForYou {
		t.Errorf("sort = %q, want for_you", svc.scopes[0].Sort)
	}
}

func TestFeed_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		target   string
		wantCode string
	}{
		{"non-numeric page", "/api/v1/feed?page=abc", CodeValidation},
		{"non-numeric size", "/api/v1/feed?page_size=x", CodeValidation},
		{"negative page", "/api/v1/feed?page=-1", CodeValidation},
		{"unknown sort", "/api/v1/feed?sort=trending", CodeValidation},
		{"reserved channel", "/api/v1/feed?channel_id=a%7Cb", CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockFeedService{page: samplePage()}
			rec, resp := doRequest(t, newTestRouter(svc), http.MethodGet, tt.target, "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
			if len(svc.pages) != 0 {
				t.Error("service must not be called for invalid input")
			}
		})
	}
}

func TestFeed_ServiceErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid page", fmt.Errorf("%w: -1", feed.ErrInvalidPage), http.StatusBadRequest, CodeInvalidPage},
		{"invalid scope", fmt.Errorf("%w: bad", feed.ErrInvalidScope), http.StatusBadRequest, CodeInvalidScope},
		{"fetch failed", &feed.FetchError{Err: errors.New("dial tcp")}, http.StatusBadGateway, CodeUpstream},
		{"closed", feed.ErrClosed, http.StatusServiceUnavailable, CodeUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockFeedService{err: tt.err}
			rec, resp := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/v1/feed", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
			if tt.wantStatus == http.StatusBadGateway && strings.Contains(resp.Error.Message, "dial tcp") {
				t.Error("upstream cause leaked to client")
			}
		})
	}
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	svc := &mockFeedService{page: samplePage()}
	h := newTestRouter(svc)

	rec, resp := doRequest(t, h, http.MethodPost, "/api/v1/feed/refresh?channel_id=UC9", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if resp.Status != "success" || svc.refreshed != 1 {
		t.Errorf("status %q, refreshed %d", resp.Status, svc.refreshed)
	}
	if svc.scopes[0].ChannelID != "UC9" {
		t.Errorf("scope = %+v", svc.scopes[0])
	}

	rec, _ = doRequest(t, h, http.MethodGet, "/api/v1/feed/refresh", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET refresh status = %d, want 405", rec.Code)
	}
}

func TestFeedStatus(t *testing.T) {
	t.Parallel()

	svc := &mockFeedService{status: &feed.Status{Scope: "channel:*|sort:for_you", State: feed.StateReady, Epoch: 2}}
	rec, _ := doRequest(t, newTestRouter(svc), http.MethodGet, "/api/v1/feed/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"state":"ready"`) {
		t.Errorf("body %s does not contain textual state", rec.Body.String())
	}
}

func TestPlayback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantPlayed bool
	}{
		{"valid", `{"item_id":"v42"}`, nil, http.StatusOK, true},
		{"missing id", `{}`, nil, http.StatusBadRequest, false},
		{"not json", `item=v42`, nil, http.StatusBadRequest, false},
		{"too large", `{"item_id":"` + strings.Repeat("x", 5000) + `"}`, nil, http.StatusBadRequest, false},
		{"service rejects", `{"item_id":"v1"}`, feed.ErrInvalidItem, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &mockFeedService{err: tt.svcErr}
			rec, _ := doRequest(t, newTestRouter(svc), http.MethodPost, "/api/v1/playback", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if played := len(svc.played) == 1; played != tt.wantPlayed {
				t.Errorf("played = %v, want %v", svc.played, tt.wantPlayed)
			}
		})
	}
}

func TestHealthLiveAndMetrics(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&mockFeedService{page: samplePage()})

	rec, resp := doRequest(t, h, http.MethodGet, "/api/v1/health/live", "")
	if rec.Code != http.StatusOK || resp.Status != "success" {
		t.Fatalf("live = %d %q", rec.Code, resp.Status)
	}

	// Produce at least one API metric sample.
	doRequest(t, h, http.MethodGet, "/api/v1/feed", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	mrec := httptest.NewRecorder()
	h.ServeHTTP(mrec, req)
	if mrec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", mrec.Code)
	}
	if !strings.Contains(mrec.Body.String(), `mediafeed_api_requests_total{endpoint="/api/v1/feed"`) {
		t.Error("metrics output missing route-pattern labeled API counter")
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	t.Parallel()

	rec, resp := doRequest(t, newTestRouter(&mockFeedService{}), http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	h := newTestRouter(&mockFeedService{})
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/feed", http.NoBody)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	mw := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 2, RateLimitWindow: time.Minute})
	h := NewRouter(NewHandler(&mockFeedService{page: samplePage()}), mw).SetupChi()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec, _ := doRequest(t, h, http.MethodGet, "/api/v1/feed", "")
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// Health is outside the limited group.
	rec, _ := doRequest(t, h, http.MethodGet, "/api/v1/health/live", "")
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d, want 200", rec.Code)
	}
}
