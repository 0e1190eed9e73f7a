// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/validation"
)

// ScopeRequest is the scope selected by query parameters.
type ScopeRequest struct {
	Sort      string `validate:"sort_mode"`
	ChannelID string `validate:"omitempty,max=256,channel_id"`
}

// Scope converts the validated request to a feed scope.
func (s *ScopeRequest) Scope() feed.ScopeKey {
	// Validation already accepted the sort mode.
	mode, _ := feed.ParseSortMode(s.Sort)
	return feed.ScopeKey{ChannelID: s.ChannelID, Sort: mode}
}

// FeedRequest holds the query parameters of GET /api/v1/feed.
// A page size of 0 selects the service default; sizes above the maximum
// are clamped by the service.
type FeedRequest struct {
	ScopeRequest
	Page     int `validate:"min=0,max=1000000"`
	PageSize int `validate:"min=0"`
}

// PlaybackRequest is the body of POST /api/v1/playback.
type PlaybackRequest struct {
	ItemID string `json:"item_id" validate:"required,max=256,printascii"`
}

// parseScopeRequest reads sort and channel_id.
func parseScopeRequest(r *http.Request) ScopeRequest {
	q := r.URL.Query()
	return ScopeRequest{
		Sort:      strings.TrimSpace(q.Get("sort")),
		ChannelID: strings.TrimSpace(q.Get("channel_id")),
	}
}

// parseFeedRequest reads the feed query parameters. Non-numeric page values
// are reported as validation errors rather than silently defaulted.
func parseFeedRequest(r *http.Request) (FeedRequest, *APIError) {
	req := FeedRequest{ScopeRequest: parseScopeRequest(r)}
	q := r.URL.Query()

	var ok bool
	if req.Page, ok = intParam(q.Get("page"), 0); !ok {
		return req, &APIError{Code: CodeValidation, Message: "page must be an integer"}
	}
	if req.PageSize, ok = intParam(q.Get("page_size"), 0); !ok {
		return req, &APIError{Code: CodeValidation, Message: "page_size must be an integer"}
	}
	return req, nil
}

func intParam(value string, defaultValue int) (int, bool) {
	if value == "" {
		return defaultValue, true
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}
	return n, true
}

// validateRequest validates a struct using go-playground/validator.
func validateRequest(v interface{}) *APIError {
	validationErr := validation.ValidateStruct(v)
	if validationErr == nil {
		return nil
	}
	apiErr := validationErr.ToAPIError()
	return &APIError{
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Details: apiErr.Details,
	}
}
