// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package config

import (
	"fmt"
	"time"
)

// MaxKeepaliveInterval is the longest idle gap a push stream may have.
// Feed clients treat a longer silence as a dead connection.
const MaxKeepaliveInterval = 30 * time.Second

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

var validTransports = map[string]bool{
	"sse":       true,
	"websocket": true,
}

var validSeverities = map[string]bool{
	"":         true,
	"low":      true,
	"medium":   true,
	"high":     true,
	"critical": true,
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateHub,
		c.validateStream,
		c.validateIngest,
		c.validateNATS,
		c.validateLogging,
		c.validateFeed,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateHub() error {
	if c.Hub.BufferSize < 1 {
		return fmt.Errorf("HUB_BUFFER_SIZE must be at least 1, got %d", c.Hub.BufferSize)
	}
	if c.Hub.ChannelSize < 1 {
		return fmt.Errorf("HUB_CHANNEL_SIZE must be at least 1, got %d", c.Hub.ChannelSize)
	}
	if c.Hub.StatsInterval <= 0 {
		return fmt.Errorf("HUB_STATS_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) validateStream() error {
	ka := c.Stream.KeepaliveInterval
	if ka <= 0 || ka > MaxKeepaliveInterval {
		return fmt.Errorf("STREAM_KEEPALIVE_INTERVAL must be in (0, %s], got %s", MaxKeepaliveInterval, ka)
	}
	if c.Stream.WriteTimeout <= 0 {
		return fmt.Errorf("STREAM_WRITE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateIngest() error {
	if c.Ingest.MaxBodyBytes < 1024 {
		return fmt.Errorf("INGEST_MAX_BODY_BYTES must be at least 1024, got %d", c.Ingest.MaxBodyBytes)
	}
	if c.Ingest.RateLimitDisabled {
		return nil
	}
	if c.Ingest.RateLimitRequests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1 when rate limiting is enabled")
	}
	if c.Ingest.RateLimitWindow < time.Second {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be at least 1s, got %s", c.Ingest.RateLimitWindow)
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if c.NATS.Subject == "" {
		return fmt.Errorf("NATS_SUBJECT is required when NATS_ENABLED=true")
	}
	if c.NATS.EmbeddedServer {
		if c.NATS.ServerPort < 1 || c.NATS.ServerPort > 65535 {
			return fmt.Errorf("NATS_SERVER_PORT must be between 1 and 65535")
		}
		if c.NATS.JetStream && c.NATS.StoreDir == "" {
			return fmt.Errorf("NATS_STORE_DIR is required for JetStream on the embedded server")
		}
		return nil
	}
	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

func (c *Config) validateFeed() error {
	f := c.Feed
	if err := validateHTTPURL(f.ServerURL, "FEED_SERVER_URL"); err != nil {
		return err
	}
	if !validTransports[f.Transport] {
		return fmt.Errorf("FEED_TRANSPORT must be one of: sse, websocket")
	}
	if f.MaxAttempts < 0 {
		return fmt.Errorf("FEED_MAX_ATTEMPTS must not be negative")
	}
	if f.RetryDelay <= 0 || f.MaxRetryDelay < f.RetryDelay {
		return fmt.Errorf("FEED_RETRY_DELAY must be positive and not exceed FEED_MAX_RETRY_DELAY")
	}
	if f.PollInterval <= 0 || f.PullTimeout <= 0 {
		return fmt.Errorf("FEED_POLL_INTERVAL and FEED_PULL_TIMEOUT must be positive")
	}
	if !validSeverities[f.MinSeverity] {
		return fmt.Errorf("FEED_MIN_SEVERITY must be one of: low, medium, high, critical")
	}
	return nil
}
