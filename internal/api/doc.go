// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package api exposes the broadcast hub over HTTP using the chi router.

Routes:

	POST /api/v1/events           ingest one envelope
	GET  /api/v1/events/stream    push over Server-Sent Events
	GET  /api/v1/events/ws        push over WebSocket
	GET  /api/v1/events/snapshot  pull the replay window, newest first
	GET  /api/v1/health           hub status
	GET  /api/v1/health/live      liveness probe
	GET  /api/v1/health/ready     readiness probe
	GET  /metrics                 Prometheus exposition

JSON responses share the APIResponse envelope written by ResponseWriter.
Push routes write wire frames instead and are exempt from the request
timeout applied to the other groups.
*/
package api
