// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

/*
Package supervisor provides process supervision for Mediafeed using suture v4.

The supervisor tree organizes long-running services into two layers:

	RootSupervisor ("mediafeed")
	├── DataSupervisor ("data-layer")
	│   └── MaintenanceService (KV sweeps, Badger value-log GC, corpus pruning)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

# Usage

	tree, err := supervisor.NewSupervisorTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddDataService(services.NewMaintenanceService(interval, store, feedService))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	errCh := tree.ServeBackground(ctx)

# Configuration

TreeConfig controls restart behavior. Zero values fall back to suture's
defaults: 5 failures before backoff, 30s decay, 15s backoff, 10s per-service
shutdown timeout.

# Service Interface

All services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Returning an error restarts the service. Returning after context
cancellation is a clean stop.

The content repository and the KV store are not supervised. They are
libraries owned by main and closed after the tree stops.

If services don't stop within the timeout, UnstoppedServiceReport lists them.
*/
package supervisor
