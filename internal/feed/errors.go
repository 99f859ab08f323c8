// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package feed

import (
	"errors"

	"github.com/tomtom215/threatfeed/internal/stream"
)

var (
	// ErrTransportClosed marks the push stream ending. It triggers a
	// reconnect and is never returned from Run.
	ErrTransportClosed = stream.ErrTransportClosed

	// ErrReconnectExhausted is logged when the retry bound is exceeded and
	// the session falls back to pulling.
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")

	// ErrUnexpectedStatus is returned when the server answers a dial or pull
	// with something other than 200.
	ErrUnexpectedStatus = errors.New("unexpected response status")

	// ErrAlreadyRunning is returned by Run when the session is already active.
	ErrAlreadyRunning = errors.New("feed session already running")
)
