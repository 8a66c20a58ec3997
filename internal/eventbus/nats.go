/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/friendsincode/wayfarer/internal/events"
	"github.com/friendsincode/wayfarer/internal/telemetry"
)

// NATSBus implements a NATS-backed event bus. Subjects are
// "<prefix>.<event_type>"; local subscribers are served in-process.
type NATSBus struct {
	conn   *nats.Conn
	logger zerolog.Logger
	local  *events.Bus
	prefix string
	nodeID string

	mu   sync.Mutex
	refs map[events.EventType]int
	subs map[events.EventType]*nats.Subscription
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	URL           string
	Token         string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// DefaultNATSConfig returns default NATS configuration.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "wayfarer.events",
		MaxReconnects: -1, // Unlimited
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// NewNATSBus creates a NATS-backed event bus.
// Falls back to the in-memory bus if NATS is unavailable.
func NewNATSBus(cfg NATSConfig, nodeID string, logger zerolog.Logger) (*NATSBus, error) {
	logger = logger.With().Str("component", "eventbus").Str("backend", "nats").Logger()
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultNATSConfig().SubjectPrefix
	}

	nb := &NATSBus{
		logger: logger,
		local:  events.NewBus(),
		prefix: cfg.SubjectPrefix,
		nodeID: nodeID,
		refs:   make(map[events.EventType]int),
		subs:   make(map[events.EventType]*nats.Subscription),
	}

	opts := []nats.Option{
		nats.Name("wayfarer-" + nodeID),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		logger.Warn().Err(err).Msg("NATS connection failed, using in-memory fallback")
		return nb, nil
	}
	nb.conn = conn

	logger.Info().Str("url", cfg.URL).Str("node_id", nodeID).Msg("NATS event bus initialized")
	return nb, nil
}

func (nb *NATSBus) subject(eventType events.EventType) string {
	return fmt.Sprintf("%s.%s", nb.prefix, eventType)
}

// Subscribe registers a subscriber for an event type.
func (nb *NATSBus) Subscribe(eventType events.EventType) events.Subscriber {
	sub := nb.local.Subscribe(eventType)

	nb.mu.Lock()
	defer nb.mu.Unlock()
	nb.refs[eventType]++

	if nb.conn == nil {
		return sub
	}
	if _, exists := nb.subs[eventType]; !exists {
		s, err := nb.conn.Subscribe(nb.subject(eventType), func(msg *nats.Msg) {
			busMsg, err := unmarshalMessage(msg.Data)
			if err != nil {
				nb.logger.Error().Err(err).Msg("failed to unmarshal NATS message")
				return
			}
			if busMsg.NodeID == nb.nodeID {
				return
			}
			nb.local.Publish(eventType, busMsg.Payload)
		})
		if err != nil {
			nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("NATS subscribe failed")
			return sub
		}
		nb.subs[eventType] = s
	}
	return sub
}

// Publish sends an event payload to local subscribers and other instances.
func (nb *NATSBus) Publish(eventType events.EventType, payload events.Payload) {
	nb.local.Publish(eventType, payload)
	if nb.conn == nil {
		return
	}

	data, err := marshalMessage(eventType, payload, nb.nodeID)
	if err != nil {
		nb.logger.Error().Err(err).Msg("failed to marshal event")
		return
	}

	msg := nats.NewMsg(nb.subject(eventType))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, newMessageID())

	if err := nb.conn.PublishMsg(msg); err != nil {
		nb.logger.Error().Err(err).Str("event_type", string(eventType)).Msg("failed to publish to NATS")
		telemetry.EventPublishErrorsTotal.WithLabelValues("nats").Inc()
	}
}

// Unsubscribe removes a subscriber and closes its channel.
func (nb *NATSBus) Unsubscribe(eventType events.EventType, sub events.Subscriber) {
	nb.local.Unsubscribe(eventType, sub)

	nb.mu.Lock()
	defer nb.mu.Unlock()

	if nb.refs[eventType] > 0 {
		nb.refs[eventType]--
	}
	if nb.refs[eventType] == 0 {
		if s, exists := nb.subs[eventType]; exists {
			_ = s.Unsubscribe()
			delete(nb.subs, eventType)
		}
	}
}

// Fallback reports whether the bus is running in-process only.
func (nb *NATSBus) Fallback() bool {
	return nb.conn == nil
}

// Close drains the NATS connection.
func (nb *NATSBus) Close() error {
	if nb.conn == nil {
		return nil
	}
	if err := nb.conn.Drain(); err != nil {
		nb.conn.Close()
		return fmt.Errorf("drain nats: %w", err)
	}
	nb.logger.Info().Msg("NATS event bus closed")
	return nil
}
