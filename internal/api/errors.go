// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/tomtom215/mediafeed/internal/feed"
)

// Error codes returned in APIError.Code.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeInvalidPage  = "INVALID_PAGE"
	CodeInvalidScope = "INVALID_SCOPE"
	CodeInvalidItem  = "INVALID_ITEM"
	CodeUpstream     = "UPSTREAM_ERROR"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeTimeout      = "TIMEOUT"
	CodeInternal     = "INTERNAL_ERROR"
)

// classifyError maps a feed service error to an HTTP status, code and
// client-safe message.
func classifyError(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, feed.ErrInvalidPage):
		return http.StatusBadRequest, CodeInvalidPage, err.Error()
	case errors.Is(err, feed.ErrInvalidScope):
		return http.StatusBadRequest, CodeInvalidScope, err.Error()
	case errors.Is(err, feed.ErrInvalidItem):
		return http.StatusBadRequest, CodeInvalidItem, err.Error()
	case errors.Is(err, feed.ErrFetchFailed):
		return http.StatusBadGateway, CodeUpstream, "Content repository unavailable, try again"
	case errors.Is(err, feed.ErrClosed):
		return http.StatusServiceUnavailable, CodeUnavailable, "Feed service is shutting down"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, CodeInternal, "Internal server error"
	}
}

// respondServiceError writes the envelope for a feed service error.
// Client errors are not logged as errors.
func respondServiceError(w http.ResponseWriter, err error) {
	status, code, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		respondError(w, status, code, message, err)
		return
	}
	respondError(w, status, code, message, nil)
}
