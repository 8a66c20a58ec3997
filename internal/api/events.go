/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	ws "nhooyr.io/websocket"

	"github.com/friendsincode/wayfarer/internal/auth"
	"github.com/friendsincode/wayfarer/internal/events"
	"github.com/friendsincode/wayfarer/internal/telemetry"
)

const eventPingInterval = 15 * time.Second

type streamedEvent struct {
	eventType events.EventType
	payload   events.Payload
}

// handleEvents streams the caller's run events over a websocket. The
// optional types query parameter narrows the stream.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	eventTypes := streamTypes(parseEventTypes(r.URL.Query().Get("types")))
	if len(eventTypes) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	// Subscribe before the handshake completes so no event published after
	// the client sees the upgrade is lost.
	subscribers := make([]events.Subscriber, len(eventTypes))
	for i, eventType := range eventTypes {
		subscribers[i] = a.bus.Subscribe(eventType)
	}
	defer func() {
		for i, eventType := range eventTypes {
			a.bus.Unsubscribe(eventType, subscribers[i])
		}
	}()

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	telemetry.EventStreamConnections.Inc()
	defer telemetry.EventStreamConnections.Dec()

	// The client sends nothing; CloseRead handles control frames and
	// cancels ctx when the peer goes away.
	ctx, cancel := context.WithCancel(conn.CloseRead(r.Context()))
	defer cancel()

	merged := make(chan streamedEvent, 16)
	for i, eventType := range eventTypes {
		go forward(ctx, eventType, subscribers[i], merged)
	}

	ticker := time.NewTicker(eventPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Debug().Err(err).Msg("websocket ping failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		case evt := <-merged:
			if owner, _ := evt.payload["user_id"].(string); owner != userID {
				continue
			}
			if err := a.writeEvent(ctx, conn, evt.eventType, evt.payload); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// forward copies one subscription into the merged stream until ctx ends or
// the subscription is closed.
func forward(ctx context.Context, eventType events.EventType, sub events.Subscriber, out chan<- streamedEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload, ok := <-sub:
			if !ok {
				return
			}
			select {
			case out <- streamedEvent{eventType: eventType, payload: payload}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// streamTypes keeps the requested types clients may subscribe to; an empty
// request selects all of them.
func streamTypes(requested []events.EventType) []events.EventType {
	allowed := events.StreamTypes()
	if len(requested) == 0 {
		return allowed
	}
	out := make([]events.EventType, 0, len(requested))
	for _, t := range requested {
		if slices.Contains(allowed, t) && !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, bytes)
}
