// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package supervisor

import (
	"time"

	"github.com/tomtom215/threatfeed/internal/models"
)

func envelopeForTest(id string) models.EventEnvelope {
	return models.EventEnvelope{
		ID:        id,
		Timestamp: time.Now().UTC(),
		Category:  models.CategorySystem,
		Severity:  models.SeverityMedium,
		Title:     "supervisor test",
	}
}
