// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/tomtom215/threatfeed/internal/config"
	"github.com/tomtom215/threatfeed/internal/hub"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/supervisor"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func TestInitNATS_Disabled(t *testing.T) {
	cfg := &config.Config{}
	components, err := InitNATS(cfg, hub.New(hub.DefaultConfig()))
	if err != nil || components != nil {
		t.Fatalf("InitNATS() = %v, %v; want nil, nil", components, err)
	}

	// nil components are safe to wire
	if checks := components.HealthCheckers(); len(checks) != 0 {
		t.Errorf("HealthCheckers() = %v", checks)
	}
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		t.Fatal(err)
	}
	components.AddToSupervisor(tree)
}

func TestInitNATS_Embedded(t *testing.T) {
	cfg := &config.Config{NATS: config.NATSConfig{
		Enabled:          true,
		EmbeddedServer:   true,
		ServerHost:       "127.0.0.1",
		ServerPort:       -1,
		Subject:          "test.cmd.events",
		QueueGroup:       "threatfeed-test",
		SubscribersCount: 1,
		DurableName:      "threatfeed-test",
	}}

	components, err := InitNATS(cfg, hub.New(hub.DefaultConfig()))
	if err != nil {
		t.Fatalf("InitNATS() error = %v", err)
	}
	if components.Server == nil || components.Bridge == nil {
		t.Fatalf("components = %+v", components)
	}

	checks := components.HealthCheckers()
	if len(checks) != 2 {
		t.Fatalf("HealthCheckers() = %d, want bridge and server", len(checks))
	}
	for _, c := range checks {
		if !c.Healthy() {
			t.Errorf("%s unhealthy", c.Name())
		}
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{ShutdownTimeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	components.AddToSupervisor(tree)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	select {
	case <-components.Bridge.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("bridge never subscribed")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(10 * time.Second):
		t.Fatal("tree did not stop")
	}
	if components.Server.IsRunning() {
		t.Error("embedded server still running after shutdown")
	}
}
