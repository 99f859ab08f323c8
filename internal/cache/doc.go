// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package cache provides the small in-memory structures used by feed
// consumers: SeenSet for envelope ID deduplication and RateWindow for
// trailing-window counts.
package cache
