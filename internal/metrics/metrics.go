// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

// Package metrics holds the Prometheus collectors for Mediafeed.
//
// Collectors are package-level and registered with the default registry
// through promauto; the /metrics endpoint exposes them via promhttp.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Feed session cache
	FeedCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafeed_session_cache_lookups_total",
			Help: "Session cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss", "expired", "error"
	)

	FeedInitialBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediafeed_initial_build_duration_seconds",
			Help:    "Time to fetch, score and shuffle the initial batch of a new session",
			Buckets: prometheus.DefBuckets,
		},
	)

	FeedInitialBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafeed_initial_builds_total",
			Help: "Initial session builds by outcome",
		},
		[]string{"outcome"}, // "ok", "empty", "fetch_failed", "error"
	)

	FeedBackgroundBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafeed_background_batches_total",
			Help: "Background batch fetches by outcome",
		},
		[]string{"outcome"}, // "merged", "stale", "exhausted", "fetch_failed", "limit"
	)

	FeedTailMerges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafeed_tail_merges_total",
			Help: "Tail merge attempts by result",
		},
		[]string{"result"}, // "applied", "stale"
	)

	FeedCorpusSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mediafeed_corpus_size_items",
			Help:    "Number of items known to a session after each ranking pass",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8), // 10 .. 163840
		},
	)

	FeedActiveBackgroundTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediafeed_background_tasks_active",
			Help: "Background ranking loops currently running",
		},
	)

	FeedRefreshes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediafeed_refreshes_total",
			Help: "Explicit feed refreshes (epoch bumps)",
		},
	)

	FeedPagesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafeed_pages_served_total",
			Help: "Pages returned to callers by sort mode",
		},
		[]string{"sort"},
	)

	// Watch history
	HistoryRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediafeed_history_records_total",
			Help: "Playback events recorded into watch history",
		},
	)

	HistoryPersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediafeed_history_persist_failures_total",
			Help: "Watch history writes that failed to persist",
		},
	)

	// Content repository
	RepositoryRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafeed_repository_requests_total",
			Help: "Content repository page fetches by backend and outcome",
		},
		[]string{"backend", "outcome"}, // outcome: "ok", "error"
	)

	RepositoryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafeed_repository_request_duration_seconds",
			Help:    "Content repository page fetch latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mediafeed_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafeed_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// KV store
	KVMaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafeed_kv_maintenance_runs_total",
			Help: "KV maintenance passes by outcome",
		},
		[]string{"outcome"},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediafeed_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediafeed_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediafeed_api_active_requests",
			Help: "Number of API requests currently being processed",
		},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRepositoryFetch records one content repository page fetch.
func RecordRepositoryFetch(backend string, duration time.Duration, err error) {
	RepositoryRequestDuration.WithLabelValues(backend).Observe(duration.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RepositoryRequests.WithLabelValues(backend, outcome).Inc()
}

// RecordInitialBuild records the outcome and latency of a session build.
func RecordInitialBuild(outcome string, duration time.Duration) {
	FeedInitialBuilds.WithLabelValues(outcome).Inc()
	FeedInitialBuildDuration.Observe(duration.Seconds())
}

// RecordCacheLookup records a session cache lookup result.
func RecordCacheLookup(result string) {
	FeedCacheLookups.WithLabelValues(result).Inc()
}

// RecordTailMerge records whether a background merge was applied.
func RecordTailMerge(applied bool) {
	if applied {
		FeedTailMerges.WithLabelValues("applied").Inc()
		return
	}
	FeedTailMerges.WithLabelValues("stale").Inc()
}
