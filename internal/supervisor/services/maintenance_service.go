// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/mediafeed/internal/kv"
	"github.com/tomtom215/mediafeed/internal/logging"
	"github.com/tomtom215/mediafeed/internal/metrics"
)

const defaultMaintenanceInterval = 5 * time.Minute

// MaintenanceService runs periodic housekeeping: expired-entry sweeps on the
// memory store, value-log GC on Badger, and pruning of resident corpora in
// the feed engine.
//
// A failing pass is logged and counted but does not stop the loop; the
// backends all treat a missed pass as harmless.
type MaintenanceService struct {
	interval time.Duration
	targets  []kv.Maintainer
	name     string

	// tick is replaced in tests.
	tick func(time.Duration) (<-chan time.Time, func())
}

// NewMaintenanceService creates the service. Nil targets are skipped, so
// callers can pass a kv.Store that may or may not implement kv.Maintainer
// through MaintainerOf.
func NewMaintenanceService(interval time.Duration, targets ...kv.Maintainer) *MaintenanceService {
	if interval <= 0 {
		interval = defaultMaintenanceInterval
	}
	live := make([]kv.Maintainer, 0, len(targets))
	for _, t := range targets {
		if t != nil {
			live = append(live, t)
		}
	}
	return &MaintenanceService{
		interval: interval,
		targets:  live,
		name:     "kv-maintenance",
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// MaintainerOf returns v as a kv.Maintainer, or nil if it is not one.
func MaintainerOf(v any) kv.Maintainer {
	if m, ok := v.(kv.Maintainer); ok {
		return m
	}
	return nil
}

// Serve implements suture.Service.
func (s *MaintenanceService) Serve(ctx context.Context) error {
	if len(s.targets) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticks, stop := s.tick(s.interval)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticks:
			_ = s.RunOnce(ctx) // logged and counted by RunOnce
		}
	}
}

// RunOnce runs every target once and reports the combined error.
func (s *MaintenanceService) RunOnce(ctx context.Context) error {
	start := time.Now()
	var errs []error
	for _, t := range s.targets {
		if err := t.Maintain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", t, err))
		}
	}
	err := errors.Join(errs...)

	switch {
	case err == nil:
		metrics.KVMaintenanceRuns.WithLabelValues("ok").Inc()
		logging.Debug().Dur("duration", time.Since(start)).Int("targets", len(s.targets)).Msg("Maintenance pass complete")
	case ctx.Err() != nil:
		metrics.KVMaintenanceRuns.WithLabelValues("canceled").Inc()
	default:
		metrics.KVMaintenanceRuns.WithLabelValues("error").Inc()
		logging.Warn().Err(err).Msg("Maintenance pass failed")
	}
	return err
}

// String implements fmt.Stringer for suture event logs.
func (s *MaintenanceService) String() string {
	return s.name
}
