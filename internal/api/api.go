/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/wayfarer/internal/auth"
	"github.com/friendsincode/wayfarer/internal/events"
	"github.com/friendsincode/wayfarer/internal/scheduler"
	"github.com/friendsincode/wayfarer/internal/scheduling"
	"github.com/friendsincode/wayfarer/internal/skeleton"
	"github.com/friendsincode/wayfarer/internal/trips"
	"github.com/friendsincode/wayfarer/internal/version"
)

// maxBodyBytes bounds request bodies; catalog batches are the largest.
const maxBodyBytes = 8 << 20

// API exposes HTTP handlers.
type API struct {
	jwtSecret []byte
	scheduler *scheduler.Service
	trips     *trips.Repository
	bus       events.Publisher
	limiter   *userLimiter
	logger    zerolog.Logger
}

// New creates the API router wrapper.
func New(jwtSecret []byte, svc *scheduler.Service, tripRepo *trips.Repository, bus events.Publisher, limits RateLimit, logger zerolog.Logger) *API {
	return &API{
		jwtSecret: jwtSecret,
		scheduler: svc,
		trips:     tripRepo,
		bus:       bus,
		limiter:   newUserLimiter(limits),
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the API under /api/v1.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Route("/trips", func(r chi.Router) {
				r.Get("/", a.handleTripsList)
				r.Route("/{title}", func(r chi.Router) {
					r.Get("/", a.handleTripGet)
					r.Post("/places", a.handlePlacesIngest)
					r.Post("/weights", a.handleWeightsSave)
					r.Put("/rating", a.handleTripRate)

					r.Group(func(r chi.Router) {
						r.Use(a.limiter.middleware)
						r.Post("/prepare_basic", a.handlePrepareBasic)
						r.Post("/prepare", a.handlePrepare)
						r.Post("/reschedule", a.handleReschedule)
					})
				})
			})

			pr.Get("/runs", a.handleRunsList)
			pr.Get("/events", a.handleEvents)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.jwtSecret)
}

// decodeJSON reads a JSON body. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// errorStatus maps planner errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, skeleton.ErrInvalidDateRange):
		return http.StatusBadRequest, "invalid_date_range"
	case errors.Is(err, skeleton.ErrAnchorUnresolved):
		return http.StatusUnprocessableEntity, "anchor_unresolved"
	case errors.Is(err, scheduling.ErrMalformedEdit):
		return http.StatusBadRequest, "malformed_edit"
	case errors.Is(err, scheduler.ErrInvalidRequest):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, trips.ErrInvalidRating):
		return http.StatusBadRequest, "invalid_rating"
	case errors.Is(err, trips.ErrTripNotFound):
		return http.StatusNotFound, "trip_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "plan_timeout"
	default:
		return http.StatusInternalServerError, "plan_failed"
	}
}

func (a *API) writePlannerError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		a.logger.Debug().Err(err).Str("code", code).Msg("request rejected")
	}
	writeError(w, status, code)
}

// tripTitle returns the unescaped {title} route parameter.
func tripTitle(r *http.Request) string {
	raw := chi.URLParam(r, "title")
	if v, err := url.PathUnescape(raw); err == nil {
		raw = v
	}
	return strings.TrimSpace(raw)
}

func parseEventTypes(raw string) []events.EventType {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
