// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

const (
	backendHTTP = "http"

	// maxErrorBody caps how much of an error response is kept for the log.
	maxErrorBody = 512
)

var _ feed.ContentRepository = (*HTTPRepository)(nil)

// ErrUpstreamStatus is returned when the content API answers with a
// non-200 status.
var ErrUpstreamStatus = errors.New("unexpected upstream status")

// HTTPOptions configures an HTTPRepository.
type HTTPOptions struct {
	// BaseURL of the content API, e.g. https://content.internal
	BaseURL string

	// APIKey is sent as X-API-Key when set.
	APIKey string

	// Timeout for one HTTP request. Default: 10s
	Timeout time.Duration

	// RequestsPerSecond limits outgoing requests. Zero disables limiting.
	RequestsPerSecond float64

	// Burst for the limiter. Default: 1
	Burst int

	// Client overrides the HTTP client, mostly for tests.
	Client *http.Client
}

// HTTPRepository fetches pages from a remote content API:
//
//	GET {base}/api/v1/items?offset=0&limit=1000&sort=newest&channel_id=UC1
//	200 {"items": [...], "total": 4200}
//
// A missing or negative total is reported as feed.TotalUnknown. The
// for_you sort is requested as newest.
type HTTPRepository struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

type itemsResponse struct {
	Items []feed.ContentItem `json:"items"`
	Total *int               `json:"total"`
}

// NewHTTPRepository validates opts and creates the repository.
func NewHTTPRepository(opts HTTPOptions) (*HTTPRepository, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid content API base URL %q", opts.BaseURL)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &HTTPRepository{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		client:  client,
		limiter: rate.NewLimiter(limit, opts.Burst),
	}, nil
}

// FetchPage implements feed.ContentRepository.
func (r *HTTPRepository) FetchPage(ctx context.Context, scope feed.ScopeKey, offset, limit int) (result feed.FetchResult, err error) {
	start := time.Now()
	defer func() { metrics.RecordRepositoryFetch(backendHTTP, time.Since(start), err) }()

	if err := checkRange(offset, limit); err != nil {
		return feed.FetchResult{}, err
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return feed.FetchResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.pageURL(scope.Normalize(), offset, limit), http.NoBody)
	if err != nil {
		return feed.FetchResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("X-API-Key", r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return feed.FetchResult{}, fmt.Errorf("content API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return feed.FetchResult{}, fmt.Errorf("%w: %d: %s", ErrUpstreamStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload itemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return feed.FetchResult{}, fmt.Errorf("decode content API response: %w", err)
	}
	if payload.Items == nil {
		payload.Items = []feed.ContentItem{}
	}

	total := feed.TotalUnknown
	if payload.Total != nil && *payload.Total >= 0 {
		total = *payload.Total
	}
	return feed.FetchResult{Items: payload.Items, TotalKnown: total}, nil
}

func (r *HTTPRepository) pageURL(scope feed.ScopeKey, offset, limit int) string {
	sort := scope.Sort
	if sort == feed.SortForYou {
		sort = feed.SortNewest
	}
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", string(sort))
	if scope.ChannelID != "" {
		q.Set("channel_id", scope.ChannelID)
	}
	return r.baseURL + "/api/v1/items?" + q.Encode()
}
