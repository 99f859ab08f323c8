// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package services

import "context"

// ContextHub matches *hub.Hub's RunWithContext.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService supervises the broadcast hub's housekeeping loop. When ctx
// ends the hub is closed and every attached consumer handle is released.
type HubService struct {
	hub  ContextHub
	name string
}

// NewHubService wraps h.
func NewHubService(h ContextHub) *HubService {
	return &HubService{hub: h, name: "broadcast-hub"}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

// String implements fmt.Stringer for suture logs.
func (s *HubService) String() string {
	return s.name
}
