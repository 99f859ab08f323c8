// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package models

import (
	"maps"
	"time"
)

// Category is the coarse class of a security event.
type Category string

// Event categories.
const (
	CategoryNetwork     Category = "network"
	CategoryHost        Category = "host"
	CategoryApplication Category = "application"
	CategorySystem      Category = "system"
	CategoryOther       Category = "other"
)

// Categories lists every valid category in display order.
var Categories = []Category{
	CategoryNetwork,
	CategoryHost,
	CategoryApplication,
	CategorySystem,
	CategoryOther,
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryNetwork, CategoryHost, CategoryApplication, CategorySystem, CategoryOther:
		return true
	}
	return false
}

// EventEnvelope is the unit of distribution. The producer assigns ID and
// Timestamp; the hub treats Attributes as opaque.
//
// Example payload:
//
//	{
//	  "id": "evt-7f3a",
//	  "timestamp": "2026-03-01T12:00:00Z",
//	  "category": "network",
//	  "severity": "critical",
//	  "title": "Port scan detected",
//	  "description": "SYN sweep across 1024 ports",
//	  "attributes": {"source_ip": "203.0.113.9", "protocol": "tcp"}
//	}
type EventEnvelope struct {
	ID          string         `json:"id" validate:"required,max=128"`
	Timestamp   time.Time      `json:"timestamp" validate:"required"`
	Category    Category       `json:"category" validate:"category"`
	Severity    Severity       `json:"severity" validate:"severity"`
	Title       string         `json:"title" validate:"max=512"`
	Description string         `json:"description,omitempty" validate:"max=8192"`
	Attributes  map[string]any `json:"attributes,omitempty"`
}

// Normalize fills in the default category and severity.
func (e *EventEnvelope) Normalize() {
	if e.Category == "" {
		e.Category = CategoryOther
	}
	if e.Severity == "" {
		e.Severity = SeverityLow
	}
}

// Clone returns a copy that shares nothing mutable at the top level with e.
// Nested attribute values are shared.
func (e *EventEnvelope) Clone() EventEnvelope {
	c := *e
	if e.Attributes != nil {
		c.Attributes = maps.Clone(e.Attributes)
	}
	return c
}

// Reverse returns a new slice with the order of envs reversed. Snapshots are
// newest first; replays to consumers go oldest first.
func Reverse(envs []EventEnvelope) []EventEnvelope {
	out := make([]EventEnvelope, len(envs))
	for i, e := range envs {
		out[len(envs)-1-i] = e
	}
	return out
}
