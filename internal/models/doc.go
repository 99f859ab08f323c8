// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

/*
Package models defines the data shared by every ThreatFeed component.

EventEnvelope is the single unit the hub distributes. It carries a
producer-assigned ID, the instant the event occurred, a Category, an ordered
Severity, a title/description pair and free-form Attributes whose shape
depends on the category (addresses, protocol, port and so on).

The hub requires only ID and Timestamp. The HTTP ingest path additionally
normalizes empty Category/Severity values and rejects unknown ones.

JSON encoding is done with github.com/goccy/go-json by the callers; the
struct tags here define the wire field names.
*/
package models
