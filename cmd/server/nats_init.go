// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/threatfeed/internal/api"
	"github.com/tomtom215/threatfeed/internal/config"
	"github.com/tomtom215/threatfeed/internal/ingest"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/supervisor"
	"github.com/tomtom215/threatfeed/internal/supervisor/services"
)

// NATSComponents holds the optional NATS ingest path.
type NATSComponents struct {
	Server *ingest.EmbeddedServer // nil unless NATS_EMBEDDED=true
	Bridge *ingest.NATSBridge
}

// InitNATS starts the embedded server if configured and connects the
// bridge to sink. It returns nil, nil when NATS is disabled.
func InitNATS(cfg *config.Config, sink ingest.Submitter) (*NATSComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS ingest disabled, HTTP ingest only")
		return nil, nil
	}

	components := &NATSComponents{}
	url := cfg.NATS.URL

	if cfg.NATS.EmbeddedServer {
		serverCfg := ingest.DefaultServerConfig()
		serverCfg.Host = cfg.NATS.ServerHost
		serverCfg.Port = cfg.NATS.ServerPort
		serverCfg.StoreDir = cfg.NATS.StoreDir

		srv, err := ingest.NewEmbeddedServer(serverCfg)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS server: %w", err)
		}
		components.Server = srv
		url = srv.ClientURL()
	}

	bridgeCfg := ingest.DefaultBridgeConfig()
	bridgeCfg.URL = url
	bridgeCfg.Subject = cfg.NATS.Subject
	bridgeCfg.QueueGroup = cfg.NATS.QueueGroup
	bridgeCfg.SubscribersCount = cfg.NATS.SubscribersCount
	bridgeCfg.JetStream = cfg.NATS.JetStream
	bridgeCfg.DurableName = cfg.NATS.DurableName

	bridge, err := ingest.NewNATSBridge(bridgeCfg, sink)
	if err != nil {
		if components.Server != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = components.Server.Shutdown(ctx)
			cancel()
		}
		return nil, err
	}
	components.Bridge = bridge

	logging.Info().
		Str("url", url).
		Str("subject", bridgeCfg.Subject).
		Bool("embedded", components.Server != nil).
		Msg("NATS ingest initialized")
	return components, nil
}

// AddToSupervisor registers the NATS services in the ingest layer.
func (c *NATSComponents) AddToSupervisor(tree *supervisor.SupervisorTree) {
	if c == nil {
		return
	}
	if c.Server != nil {
		tree.AddIngestService(c.Server)
	}
	tree.AddIngestService(services.NewClosingService(c.Bridge.String(), c.Bridge, c.Bridge))
}

// HealthCheckers returns the components reported by /api/v1/health.
func (c *NATSComponents) HealthCheckers() []api.HealthChecker {
	if c == nil {
		return nil
	}
	checks := []api.HealthChecker{c.Bridge}
	if c.Server != nil {
		checks = append(checks, c.Server)
	}
	return checks
}
