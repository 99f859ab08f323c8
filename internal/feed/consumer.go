// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package feed

import "github.com/tomtom215/threatfeed/internal/models"

// Consumer receives everything a session produces. Both methods are called
// from the supervisor's Run goroutine, never concurrently, and never after
// Run has returned.
//
// Envelopes may repeat across a reconnect or resync; consumers that keep
// state should key it by envelope ID.
type Consumer interface {
	OnEnvelope(models.EventEnvelope)
	OnConnectionStateChanged(State)
}

// ConsumerFuncs adapts plain functions to Consumer. Nil fields are skipped.
type ConsumerFuncs struct {
	Envelope     func(models.EventEnvelope)
	StateChanged func(State)
}

// OnEnvelope implements Consumer.
func (c ConsumerFuncs) OnEnvelope(env models.EventEnvelope) {
	if c.Envelope != nil {
		c.Envelope(env)
	}
}

// OnConnectionStateChanged implements Consumer.
func (c ConsumerFuncs) OnConnectionStateChanged(s State) {
	if c.StateChanged != nil {
		c.StateChanged(s)
	}
}
