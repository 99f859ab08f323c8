// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package feed

// State is the connection state of one feed session.
type State int32

const (
	// StateDisconnected is the initial and final state.
	StateDisconnected State = iota
	// StateConnecting means a push dial is in progress or being retried.
	StateConnecting
	// StateConnected means the push stream is live.
	StateConnected
	// StateDegraded means push is down and pull polling is active.
	StateDegraded
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}
