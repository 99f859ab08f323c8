// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package stream

import "errors"

var (
	// ErrTransportClosed wraps every write failure. It is fatal to one
	// endpoint only; clients treat it as a reason to reconnect.
	ErrTransportClosed = errors.New("transport closed")

	// ErrStreamingUnsupported is returned when the response writer cannot flush.
	ErrStreamingUnsupported = errors.New("streaming unsupported")
)
