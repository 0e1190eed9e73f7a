// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

/*
Package api exposes the feed service over HTTP using the Chi router.

Endpoints:

	GET  /api/v1/feed?page=0&page_size=20&sort=for_you&channel_id=UC1
	POST /api/v1/feed/refresh?sort=for_you&channel_id=UC1
	GET  /api/v1/feed/status?sort=for_you&channel_id=UC1
	POST /api/v1/playback            {"item_id": "v123"}
	GET  /api/v1/health/live
	GET  /metrics

Every JSON response uses the same envelope:

	{
	  "status": "success" | "error",
	  "data": {...},
	  "metadata": {"timestamp": "...", "query_time_ms": 12},
	  "error": {"code": "INVALID_PAGE", "message": "..."}
	}

Error mapping:
  - VALIDATION_ERROR, INVALID_PAGE, INVALID_SCOPE, INVALID_ITEM: 400
  - UPSTREAM_ERROR (content repository failed): 502
  - SERVICE_UNAVAILABLE (engine shutting down): 503
  - TIMEOUT: 504
  - INTERNAL_ERROR: 500

Middleware order: request ID with logging context, real IP, panic
recovery, CORS, then per-IP rate limiting, security headers and Prometheus
metrics on the API routes.
*/
package api
