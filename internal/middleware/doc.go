// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package middleware provides the infrastructure HTTP middleware shared by all
routes: request ID tracking and Prometheus instrumentation.

Both wrap http.Handler so they plug straight into chi:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)

Long-lived streams pass through unchanged. The metrics writer forwards
Flush and Hijack to the underlying writer and exposes Unwrap, so SSE
flushing, http.ResponseController deadlines and WebSocket upgrades all work
behind it.
*/
package middleware
