// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/tomtom215/threatfeed/internal/hub"
	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/metrics"
	"github.com/tomtom215/threatfeed/internal/models"
	"github.com/tomtom215/threatfeed/internal/validation"
)

// Submitter accepts envelopes. *hub.Hub implements it.
type Submitter interface {
	Submit(models.EventEnvelope) (int, error)
}

// BridgeConfig configures the NATS ingest bridge.
type BridgeConfig struct {
	URL        string
	Subject    string
	QueueGroup string

	SubscribersCount int
	MaxReconnects    int
	ReconnectWait    time.Duration
	AckWaitTimeout   time.Duration
	CloseTimeout     time.Duration

	// JetStream consumes through a durable JetStream consumer instead of a
	// core NATS queue subscription. The server must have JetStream enabled.
	JetStream   bool
	DurableName string
}

// DefaultBridgeConfig returns defaults for a local broker.
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		URL:              natsgo.DefaultURL,
		Subject:          "security.events",
		QueueGroup:       "threatfeed",
		SubscribersCount: 1,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		DurableName:      "threatfeed",
	}
}

// NATSBridge consumes envelopes from a NATS subject and submits them to
// the hub. It implements suture.Service.
type NATSBridge struct {
	cfg        BridgeConfig
	sink       Submitter
	subscriber message.Subscriber
	log        zerolog.Logger

	connected  atomic.Bool
	ready      chan struct{}
	readyOnce  sync.Once
	closeOnce  sync.Once
	closeError error
}

// NewNATSBridge connects to NATS and returns a bridge feeding sink.
func NewNATSBridge(cfg BridgeConfig, sink Submitter) (*NATSBridge, error) {
	def := DefaultBridgeConfig()
	if cfg.Subject == "" {
		cfg.Subject = def.Subject
	}
	if cfg.SubscribersCount <= 0 {
		cfg.SubscribersCount = def.SubscribersCount
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = def.ReconnectWait
	}
	if cfg.AckWaitTimeout <= 0 {
		cfg.AckWaitTimeout = def.AckWaitTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = def.CloseTimeout
	}

	b := &NATSBridge{
		cfg:   cfg,
		sink:  sink,
		log:   logging.WithComponent("ingest").With().Str("subject", cfg.Subject).Logger(),
		ready: make(chan struct{}),
	}
	wmLogger := newWatermillLogger(b.log)

	natsOpts := []natsgo.Option{
		natsgo.Name("threatfeed-ingest"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.ConnectHandler(func(*natsgo.Conn) { b.connected.Store(true) }),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			b.connected.Store(false)
			if err != nil {
				b.log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			b.connected.Store(true)
			b.log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	jsConfig := wmNats.JetStreamConfig{Disabled: true}
	if cfg.JetStream {
		jsConfig = wmNats.JetStreamConfig{
			Disabled:      false,
			AutoProvision: true,
			AckAsync:      false,
			DurablePrefix: cfg.DurableName,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.DeliverNew(),
				natsgo.AckWait(cfg.AckWaitTimeout),
			},
		}
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: cfg.SubscribersCount,
		AckWaitTimeout:   cfg.AckWaitTimeout,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        jsConfig,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber: %w", err)
	}
	b.subscriber = sub
	// NewSubscriber returns with an open connection.
	b.connected.Store(true)

	return b, nil
}

// Serve subscribes and submits messages until ctx ends.
func (b *NATSBridge) Serve(ctx context.Context) error {
	messages, err := b.subscriber.Subscribe(ctx, b.cfg.Subject)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", b.cfg.Subject, err)
	}
	b.readyOnce.Do(func() { close(b.ready) })
	b.log.Info().Str("queue_group", b.cfg.QueueGroup).Bool("jetstream", b.cfg.JetStream).Msg("NATS ingest bridge started")

	for {
		select {
		case <-ctx.Done():
			b.log.Info().Msg("NATS ingest bridge stopped")
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("NATS subscription closed")
			}
			b.handle(msg)
			msg.Ack()
		}
	}
}

// Ready is closed once the first subscription is in place.
func (b *NATSBridge) Ready() <-chan struct{} { return b.ready }

// handle submits one message. Every outcome is acknowledged.
func (b *NATSBridge) handle(msg *message.Message) {
	var env models.EventEnvelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		b.reject(msg, "decode", err)
		return
	}

	env.Normalize()
	if verr := validation.ValidateStruct(&env); verr != nil {
		b.reject(msg, "validation", verr)
		return
	}

	delivered, err := b.sink.Submit(env)
	switch {
	case err == nil:
		metrics.RecordNATSConsumed()
		b.log.Debug().Str("event_id", env.ID).Int("consumers", delivered).Msg("event ingested from NATS")
	case errors.Is(err, hub.ErrDuplicateEnvelope):
		b.reject(msg, "duplicate", err)
	case errors.Is(err, hub.ErrHubClosed):
		b.reject(msg, "closed", err)
	default:
		b.reject(msg, "invalid", err)
	}
}

func (b *NATSBridge) reject(msg *message.Message, reason string, err error) {
	metrics.RecordNATSRejected(reason)
	b.log.Warn().
		Err(err).
		Str("reason", reason).
		Str("message_uuid", msg.UUID).
		Msg("NATS message rejected")
}

// Close releases the subscriber. Safe to call more than once.
func (b *NATSBridge) Close() error {
	b.closeOnce.Do(func() {
		b.closeError = b.subscriber.Close()
	})
	return b.closeError
}

// Name implements api.HealthChecker.
func (b *NATSBridge) Name() string { return "nats" }

// Healthy implements api.HealthChecker.
func (b *NATSBridge) Healthy() bool { return b.connected.Load() }

// String implements fmt.Stringer for suture.
func (b *NATSBridge) String() string { return "nats-ingest-bridge" }
