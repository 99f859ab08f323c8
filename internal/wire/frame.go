// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

// Package wire encodes and decodes push frames. The format is Server-Sent
// Events text and is shared by the SSE and WebSocket transports:
//
//	data: {"id":"evt-1",...}\n\n                    one envelope
//	event: resync\ndata: [{...},{...}]\n\n         replacement state, oldest first
//	: keepalive\n\n                                no payload
//
// Lines starting with ':' are comments and carry nothing; that prefix is
// reserved for keepalives.
package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/threatfeed/internal/models"
)

// Kind identifies a decoded frame.
type Kind int

const (
	// KindEnvelope carries one envelope.
	KindEnvelope Kind = iota
	// KindResync carries the full replay window, oldest first.
	KindResync
	// KindKeepalive carries nothing.
	KindKeepalive
)

// String returns the metric label for k.
func (k Kind) String() string {
	switch k {
	case KindEnvelope:
		return "envelope"
	case KindResync:
		return "resync"
	case KindKeepalive:
		return "keepalive"
	default:
		return "unknown"
	}
}

// EventResync is the SSE event name of a resync frame.
const EventResync = "resync"

// KeepalivePrefix starts every keepalive frame.
const KeepalivePrefix = ":"

var keepaliveFrame = []byte(": keepalive\n\n")

// ErrMalformedFrame is returned for frames that cannot be decoded.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is one decoded push frame.
type Frame struct {
	Kind      Kind
	Envelopes []models.EventEnvelope
}

// EncodeEnvelope returns the frame for a single envelope.
func EncodeEnvelope(env *models.EventEnvelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", env.ID, err)
	}
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')
	return buf, nil
}

// EncodeResync returns a resync frame. envs must be oldest first.
func EncodeResync(envs []models.EventEnvelope) ([]byte, error) {
	if envs == nil {
		envs = []models.EventEnvelope{}
	}
	data, err := json.Marshal(envs)
	if err != nil {
		return nil, fmt.Errorf("encode resync: %w", err)
	}
	buf := make([]byte, 0, len(data)+24)
	buf = append(buf, "event: "+EventResync+"\n"...)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')
	return buf, nil
}

// Keepalive returns the keepalive frame. Callers must not modify it.
func Keepalive() []byte {
	return keepaliveFrame
}

// ParseFrame decodes one complete frame, with or without its trailing blank
// line. A frame made only of comment lines is a keepalive.
func ParseFrame(raw []byte) (Frame, error) {
	var (
		event   string
		data    [][]byte
		comment bool
	)

	for _, line := range bytes.Split(bytes.TrimRight(raw, "\r\n"), []byte("\n")) {
		line = bytes.TrimSuffix(line, []byte("\r"))
		switch {
		case len(line) == 0:
			continue
		case bytes.HasPrefix(line, []byte(KeepalivePrefix)):
			comment = true
		default:
			field, value, _ := bytes.Cut(line, []byte(":"))
			value = bytes.TrimPrefix(value, []byte(" "))
			switch string(field) {
			case "event":
				event = string(value)
			case "data":
				data = append(data, value)
			}
			// id, retry and unknown fields are ignored.
		}
	}

	if len(data) == 0 {
		if comment || event == "" {
			return Frame{Kind: KindKeepalive}, nil
		}
		return Frame{}, fmt.Errorf("%w: event %q without data", ErrMalformedFrame, event)
	}

	payload := bytes.Join(data, []byte("\n"))

	switch event {
	case "", "message", "envelope":
		var env models.EventEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
		}
		return Frame{Kind: KindEnvelope, Envelopes: []models.EventEnvelope{env}}, nil
	case EventResync:
		var envs []models.EventEnvelope
		if err := json.Unmarshal(payload, &envs); err != nil {
			return Frame{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
		}
		return Frame{Kind: KindResync, Envelopes: envs}, nil
	default:
		// Unknown events are treated as keepalives so newer servers can add
		// frame types without breaking older readers.
		return Frame{Kind: KindKeepalive}, nil
	}
}
