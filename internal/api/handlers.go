// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/logging"
)

// maxPlaybackBody bounds the POST /playback request body.
const maxPlaybackBody = 4 << 10

// FeedService is the part of feed.Service the HTTP layer needs.
type FeedService interface {
	GetPage(ctx context.Context, scope feed.ScopeKey, pageIndex, pageSize int) (*feed.Page, error)
	Refresh(ctx context.Context, scope feed.ScopeKey) (*feed.Page, error)
	RecordPlayback(ctx context.Context, itemID string) error
	Status(ctx context.Context, scope feed.ScopeKey) (*feed.Status, error)
}

var _ FeedService = (*feed.Service)(nil)

// Handler serves the feed endpoints.
type Handler struct {
	feed      FeedService
	startTime time.Time
}

// NewHandler creates a handler backed by svc.
func NewHandler(svc FeedService) *Handler {
	return &Handler{feed: svc, startTime: time.Now()}
}

// Feed handles GET /api/v1/feed.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, apiErr := parseFeedRequest(r)
	if apiErr == nil {
		apiErr = validateRequest(&req)
	}
	if apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr)
		return
	}

	page, err := h.feed.GetPage(r.Context(), req.Scope(), req.Page, req.PageSize)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondSuccess(w, page, start)
}

// Refresh handles POST /api/v1/feed/refresh. It starts a new epoch for the
// scope and returns the first page of the rebuilt feed.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := parseScopeRequest(r)
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr)
		return
	}

	page, err := h.feed.Refresh(r.Context(), req.Scope())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	logging.Ctx(r.Context()).Info().
		Str("scope", req.Scope().String()).
		Int64("epoch", page.Epoch).
		Msg("Feed refreshed")
	respondSuccess(w, page, start)
}

// FeedStatus handles GET /api/v1/feed/status.
func (h *Handler) FeedStatus(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req := parseScopeRequest(r)
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr)
		return
	}

	status, err := h.feed.Status(r.Context(), req.Scope())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondSuccess(w, status, start)
}

// Playback handles POST /api/v1/playback.
func (h *Handler) Playback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req PlaybackRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPlaybackBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, CodeValidation, "Request body must be JSON: {\"item_id\": \"...\"}", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondErrorDetails(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.feed.RecordPlayback(r.Context(), req.ItemID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondSuccess(w, map[string]interface{}{
		"item_id":  req.ItemID,
		"recorded": true,
	}, start)
}

// HealthLive handles liveness probes.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, &APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: Metadata{Timestamp: time.Now()},
	})
}
