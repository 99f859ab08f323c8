// ThreatFeed - Real-Time Security Event Distribution
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/threatfeed

package ingest

import (
	"errors"
	"fmt"
	"sync"
	"time"

	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/threatfeed/internal/logging"
	"github.com/tomtom215/threatfeed/internal/models"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher sends envelopes to the ingest subject.
type Publisher struct {
	publisher message.Publisher
	subject   string

	mu     sync.RWMutex
	closed bool
}

// NewPublisher connects to url and publishes to subject. With jetStream the
// broker deduplicates retries of the same envelope ID.
func NewPublisher(url, subject string, jetStream bool) (*Publisher, error) {
	if subject == "" {
		subject = DefaultBridgeConfig().Subject
	}

	log := logging.WithComponent("ingest-publisher")
	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL: url,
		NatsOptions: []natsgo.Option{
			natsgo.Name("threatfeed-publisher"),
			natsgo.RetryOnFailedConnect(true),
			natsgo.ReconnectWait(time.Second),
		},
		Marshaler: &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			Disabled:      !jetStream,
			AutoProvision: jetStream,
			TrackMsgId:    jetStream,
		},
	}, newWatermillLogger(log))
	if err != nil {
		return nil, fmt.Errorf("create NATS publisher: %w", err)
	}

	return &Publisher{publisher: pub, subject: subject}, nil
}

// Publish sends one envelope.
func (p *Publisher) Publish(env models.EventEnvelope) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope %s: %w", env.ID, err)
	}

	// The envelope ID doubles as the message UUID, which JetStream
	// tracking uses as the NATS message ID.
	msg := message.NewMessage(env.ID, payload)
	msg.Metadata.Set("event_category", string(env.Category))
	msg.Metadata.Set("event_severity", string(env.Severity))

	if err := p.publisher.Publish(p.subject, msg); err != nil {
		return fmt.Errorf("publish envelope %s: %w", env.ID, err)
	}
	return nil
}

// Close flushes and closes the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.publisher.Close()
}
