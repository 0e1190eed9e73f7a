// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/mediafeed/internal/kv"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

// Status describes the ranking state of one scope.
type Status struct {
	Scope          string `json:"scope"`
	State          State  `json:"state"`
	Epoch          int64  `json:"epoch"`
	HasSession     bool   `json:"has_session"`
	TotalRanked    int    `json:"total_ranked"`
	ServedCount    int    `json:"served_count"`
	CorpusSize     int    `json:"corpus_size"`
	Exhausted      bool   `json:"exhausted"`
	BackgroundBusy bool   `json:"background_busy"`
	HistorySize    int    `json:"history_size"`
}

// Service is the page-oriented facade over the engine.
type Service struct {
	cfg        *Config
	repo       ContentRepository
	cache      *SessionCache
	history    *WatchHistory
	controller *Controller
	logger     zerolog.Logger
}

// NewService builds the engine over repo and store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewService(cfg *Config, repo ContentRepository, store kv.Store, clock Clock, seeds SeedSource, logger zerolog.Logger) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil {
		return nil, errors.New("kv store is required")
	}
	if clock == nil {
		clock = SystemClock{}
	}

	cache := NewSessionCache(store, clock, logger)
	history := NewWatchHistory(context.Background(), store, cfg.HistoryCapacity, clock, logger)
	controller, err := NewController(cfg, repo, cache, history, clock, seeds, logger)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:        cfg,
		repo:       repo,
		cache:      cache,
		history:    history,
		controller: controller,
		logger:     logger.With().Str("component", "feed-service").Logger(),
	}, nil
}

// Controller exposes the progressive controller (state, maintenance).
func (s *Service) Controller() *Controller { return s.controller }

// History exposes the watch history.
func (s *Service) History() *WatchHistory { return s.history }

// normalizePage validates the page index and clamps the page size.
func (s *Service) normalizePage(pageIndex, pageSize int) (int, error) {
	if pageIndex < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPage, pageIndex)
	}
	switch {
	case pageSize <= 0:
		pageSize = s.cfg.DefaultPageSize
	case pageSize > s.cfg.MaxPageSize:
		pageSize = s.cfg.MaxPageSize
	}
	return pageSize, nil
}

// GetPage returns page pageIndex of scope. For the ranked sort the first
// call builds the session; every call freezes the ids it returns.
func (s *Service) GetPage(ctx context.Context, scope ScopeKey, pageIndex, pageSize int) (*Page, error) {
	scope = scope.Normalize()
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	pageSize, err := s.normalizePage(pageIndex, pageSize)
	if err != nil {
		return nil, err
	}

	var page *Page
	if scope.Ranked() {
		page, err = s.rankedPage(ctx, scope, pageIndex, pageSize)
	} else {
		page, err = s.directPage(ctx, scope, pageIndex, pageSize)
	}
	if err != nil {
		return nil, err
	}
	metrics.FeedPagesServed.WithLabelValues(string(scope.Sort)).Inc()
	return page, nil
}

func (s *Service) rankedPage(ctx context.Context, scope ScopeKey, pageIndex, pageSize int) (*Page, error) {
	start := pageIndex * pageSize

	// The session can expire between Ensure and ServeRange; one retry
	// rebuilds it.
	for attempt := 0; ; attempt++ {
		sess, err := s.controller.Ensure(ctx, scope)
		if err != nil {
			return nil, err
		}
		if len(sess.OrderedIDs) == 0 && sess.Exhausted {
			return &Page{
				Items:     []ContentItem{},
				PageIndex: pageIndex,
				PageSize:  pageSize,
				NoContent: true,
				Complete:  true,
				Epoch:     sess.Epoch,
			}, nil
		}

		ids, current, err := s.cache.ServeRange(ctx, scope, start, pageSize)
		if errors.Is(err, ErrNoSession) && attempt == 0 {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("serve page: %w", err)
		}

		items := s.controller.Resolve(scope, current.Epoch, ids)
		if len(items) != len(ids) {
			s.logger.Warn().
				Str("scope", scope.String()).
				Int("ids", len(ids)).
				Int("resolved", len(items)).
				Msg("page contains ids missing from the resident corpus")
		}

		total := len(current.OrderedIDs)
		complete := current.Exhausted || !s.controller.BackgroundRunning(scope, current.Epoch)
		return &Page{
			Items:       items,
			PageIndex:   pageIndex,
			PageSize:    pageSize,
			TotalRanked: total,
			HasMore:     start+len(ids) < total || !complete,
			Complete:    complete,
			Epoch:       current.Epoch,
		}, nil
	}
}

// directPage serves non-ranked sorts straight from the repository.
func (s *Service) directPage(ctx context.Context, scope ScopeKey, pageIndex, pageSize int) (*Page, error) {
	offset := pageIndex * pageSize
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.BatchTimeout)
	defer cancel()

	res, err := s.repo.FetchPage(fetchCtx, scope, offset, pageSize)
	if err != nil {
		return nil, &FetchError{Scope: scope, Offset: offset, Limit: pageSize, Err: err}
	}

	items := res.Items
	if items == nil {
		items = []ContentItem{}
	}
	total := offset + len(items)
	hasMore := len(items) == pageSize
	if res.TotalKnown >= 0 {
		total = res.TotalKnown
		hasMore = offset+len(items) < res.TotalKnown
	}
	return &Page{
		Items:       items,
		PageIndex:   pageIndex,
		PageSize:    pageSize,
		TotalRanked: total,
		HasMore:     hasMore,
		NoContent:   pageIndex == 0 && len(items) == 0,
		Complete:    !hasMore,
	}, nil
}

// Refresh discards the scope's session and returns the first page of a
// freshly ranked one.
func (s *Service) Refresh(ctx context.Context, scope ScopeKey) (*Page, error) {
	scope = scope.Normalize()
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if scope.Ranked() {
		epoch, err := s.cache.Invalidate(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("invalidate session: %w", err)
		}
		metrics.FeedRefreshes.Inc()
		s.logger.Info().Str("scope", scope.String()).Int64("epoch", epoch).Msg("feed refreshed")
	}
	return s.GetPage(ctx, scope, 0, s.cfg.DefaultPageSize)
}

// RecordPlayback adds itemID to the watch history.
func (s *Service) RecordPlayback(ctx context.Context, itemID string) error {
	if itemID == "" {
		return ErrInvalidItem
	}
	s.history.Record(ctx, itemID)
	return nil
}

// Status reports the state of scope without building anything.
func (s *Service) Status(ctx context.Context, scope ScopeKey) (*Status, error) {
	scope = scope.Normalize()
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	st := &Status{
		Scope:       scope.String(),
		State:       s.controller.State(scope),
		HistorySize: s.history.Len(),
	}
	if !scope.Ranked() {
		return st, nil
	}

	epoch, err := s.cache.CurrentEpoch(ctx, scope)
	if err != nil {
		return nil, err
	}
	st.Epoch = epoch

	sess, ok, err := s.cache.Get(ctx, scope)
	if err != nil {
		return nil, err
	}
	if ok {
		st.HasSession = true
		st.Epoch = sess.Epoch
		st.TotalRanked = len(sess.OrderedIDs)
		st.ServedCount = sess.ServedCount
		st.Exhausted = sess.Exhausted
		st.CorpusSize = s.controller.CorpusSize(scope, sess.Epoch)
		st.BackgroundBusy = s.controller.BackgroundRunning(scope, sess.Epoch)
	}
	return st, nil
}

// Maintain implements kv.Maintainer by pruning expired resident corpora.
func (s *Service) Maintain(ctx context.Context) error {
	return s.controller.Maintain(ctx)
}

// Close stops background work.
func (s *Service) Close() error {
	return s.controller.Close()
}
