// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package services

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/threatfeed/internal/logging"
)

// ClosingService runs an inner service and closes its resources once the
// supervisor stops it for good. Restarts after a failure reuse the
// resources; only a canceled context triggers Close.
//
// The NATS ingest bridge uses this: its subscriber survives restarts of
// Serve but must be closed on shutdown.
type ClosingService struct {
	inner  suture.Service
	closer io.Closer
	name   string
	once   sync.Once
}

// NewClosingService wraps inner. name is used in suture logs.
func NewClosingService(name string, inner suture.Service, closer io.Closer) *ClosingService {
	return &ClosingService{inner: inner, closer: closer, name: name}
}

// Serve implements suture.Service.
func (s *ClosingService) Serve(ctx context.Context) error {
	err := s.inner.Serve(ctx)
	if ctx.Err() == nil {
		return err
	}

	s.once.Do(func() {
		if cerr := s.closer.Close(); cerr != nil {
			logging.Warn().Err(cerr).Str("service", s.name).Msg("close after shutdown failed")
		}
	})
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ctx.Err()
	}
	return err
}

// String implements fmt.Stringer for suture logs.
func (s *ClosingService) String() string {
	return s.name
}
