/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package eventbus distributes run events between instances.
package eventbus

import (
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/wayfarer/internal/config"
	"github.com/friendsincode/wayfarer/internal/events"
)

// Bus is an event publisher that owns connections.
type Bus interface {
	events.Publisher
	Close() error
}

type memoryBus struct {
	*events.Bus
}

func (memoryBus) Close() error { return nil }

// NewMemory wraps an in-process bus.
func NewMemory() Bus {
	return memoryBus{Bus: events.NewBus()}
}

// New selects the event bus backend from configuration.
func New(cfg *config.Config, logger zerolog.Logger) (Bus, error) {
	nodeID := NodeID(cfg.InstanceID)

	switch cfg.EventBus {
	case config.EventBusRedis:
		rc := DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		rc.Password = cfg.RedisPassword
		rc.DB = cfg.RedisDB
		return NewRedisBus(rc, nodeID, logger)
	case config.EventBusNATS:
		nc := DefaultNATSConfig()
		nc.URL = cfg.NATSURL
		nc.SubjectPrefix = cfg.NATSSubject
		return NewNATSBus(nc, nodeID, logger)
	default:
		return NewMemory(), nil
	}
}

// NodeID returns instanceID, or the hostname with a random suffix.
func NodeID(instanceID string) string {
	if instanceID != "" {
		return instanceID
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "wayfarer"
	}
	return host + "-" + uuid.NewString()[:8]
}

func newMessageID() string {
	return uuid.NewString()
}
