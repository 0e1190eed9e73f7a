// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/tomtom215/mediafeed/internal/api"
	"github.com/tomtom215/mediafeed/internal/config"
	"github.com/tomtom215/mediafeed/internal/feed"
	"github.com/tomtom215/mediafeed/internal/kv"
	"github.com/tomtom215/mediafeed/internal/logging"
	"github.com/tomtom215/mediafeed/internal/repository"
	"github.com/tomtom215/mediafeed/internal/supervisor"
	"github.com/tomtom215/mediafeed/internal/supervisor/services"
)

// app owns everything main has to close on the way out.
type app struct {
	store      kv.Store
	repo       feed.ContentRepository
	repoCloser io.Closer
	feed       *feed.Service
	server     *http.Server
	tree       *supervisor.SupervisorTree
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	store, err := kv.Open(ctx, cfg.Storage.ToKVConfig())
	if err != nil {
		return nil, fmt.Errorf("open kv store: %w", err)
	}
	a.store = store
	logging.Info().Str("backend", cfg.Storage.Backend).Msg("KV store opened")

	repo, closer, err := repository.Open(ctx, cfg.Repository.ToRepositoryConfig())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open content repository: %w", err)
	}
	a.repo, a.repoCloser = repo, closer
	logging.Info().
		Str("backend", cfg.Repository.Backend).
		Bool("circuit_breaker", cfg.Repository.BreakerEnabled).
		Msg("Content repository opened")

	svc, err := feed.NewService(
		cfg.Feed.ToEngineConfig(),
		repo,
		store,
		feed.SystemClock{},
		feed.NewSeedSource(cfg.Feed.Seed),
		logging.WithComponent("feed"),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create feed service: %w", err)
	}
	a.feed = svc

	mw := api.NewChiMiddleware(chiMiddlewareConfig(&cfg.Server))
	router := api.NewRouter(api.NewHandler(svc), mw)

	a.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create supervisor tree: %w", err)
	}
	a.tree = tree

	tree.AddDataService(services.NewMaintenanceService(
		cfg.Storage.MaintenanceInterval,
		services.MaintainerOf(store),
		svc,
	))
	tree.AddAPIService(services.NewHTTPServerService(a.server, cfg.Server.ShutdownTimeout))

	return a, nil
}

func chiMiddlewareConfig(s *config.ServerConfig) *api.ChiMiddlewareConfig {
	mw := api.DefaultChiMiddlewareConfig()
	mw.CORSAllowedOrigins = s.CORSOrigins
	mw.RateLimitRequests = s.RateLimitReqs
	mw.RateLimitWindow = s.RateLimitWindow
	mw.RateLimitDisabled = s.RateLimitDisabled
	return mw
}

// Close stops background ranking and releases storage. Safe on a
// partially built app.
func (a *app) Close() {
	if a.feed != nil {
		if err := a.feed.Close(); err != nil {
			logging.Error().Err(err).Msg("Error stopping feed service")
		}
	}
	if a.repoCloser != nil {
		if err := a.repoCloser.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing content repository")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing KV store")
		}
	}
}
