// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

// Package main is the entry point for the Mediafeed server.
//
// Mediafeed serves a personalized "For You" feed over a paginated content
// catalog. The first page is ranked from a small initial batch and returned
// immediately; the rest of the catalog is fetched in the background and
// merged into the not-yet-served tail of the session.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional config.yaml, environment (Koanf v2)
//  2. KV store: memory, BadgerDB or Redis for sessions and watch history
//  3. Content repository: memory/seed file, DuckDB or upstream HTTP API,
//     wrapped in a circuit breaker
//  4. Feed service: scoring, diversity shuffle, progressive ranking
//  5. HTTP API: chi router with CORS, rate limiting and Prometheus metrics
//  6. Supervisor tree: HTTP server and KV maintenance under suture
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
// in-flight requests, then background ranking stops and the repository and
// KV store are closed.
//
// # Example Usage
//
//	export KV_BACKEND=memory
//	export CONTENT_BACKEND=memory
//	export CONTENT_SEED_FILE=./testdata/catalog.json
//	./mediafeed
//
//	curl 'http://localhost:8080/api/v1/feed?page=0&page_size=20'
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/mediafeed/internal/config"
	"github.com/tomtom215/mediafeed/internal/logging"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Logging is not configured yet; the default logger is enough here.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(cfg.Logging.ToLoggingConfig())
	logging.Info().
		Str("kv_backend", cfg.Storage.Backend).
		Str("content_backend", cfg.Repository.Backend).
		Int("port", cfg.Server.Port).
		Msg("Starting Mediafeed")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := newApp(ctx, cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer app.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := app.tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := app.tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
