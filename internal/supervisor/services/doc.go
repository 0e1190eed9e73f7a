// Mediafeed - Personalized Media Feed Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/mediafeed

/*
Package services provides suture.Service wrappers for Mediafeed components.

Each wrapper translates a component's lifecycle into suture's context-aware
Serve pattern and implements fmt.Stringer so the supervisor can name it in
log events.

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe to Serve

Maintenance (MaintenanceService):
  - Runs kv.Maintainer implementations on a ticker
  - Records each pass in mediafeed_kv_maintenance_runs_total
  - Failed passes are logged and counted; the loop keeps running
*/
package services
