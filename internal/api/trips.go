/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/friendsincode/wayfarer/internal/auth"
	"github.com/friendsincode/wayfarer/internal/catalog"
	"github.com/friendsincode/wayfarer/internal/itinerary"
	"github.com/friendsincode/wayfarer/internal/scheduler"
	"github.com/friendsincode/wayfarer/internal/weights"
)

type tripResponse struct {
	Title     string                  `json:"title"`
	Mode      string                  `json:"mode"`
	Revision  int                     `json:"revision"`
	Rating    *float64                `json:"rating"`
	StartDate string                  `json:"start_date"`
	EndDate   string                  `json:"end_date"`
	Tables    itinerary.Record        `json:"tables"`
	Timeline  []itinerary.TimelineDay `json:"timeline"`
}

func (a *API) handleTripsList(w http.ResponseWriter, r *http.Request) {
	list, err := a.trips.List(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		a.logger.Error().Err(err).Msg("list trips failed")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleTripGet(w http.ResponseWriter, r *http.Request) {
	trip, err := a.trips.Load(r.Context(), auth.UserID(r.Context()), tripTitle(r))
	if err != nil {
		a.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tripResponse{
		Title:     trip.Title,
		Mode:      trip.FocusMode,
		Revision:  trip.Revision,
		Rating:    trip.Rating,
		StartDate: trip.StartDate,
		EndDate:   trip.EndDate,
		Tables:    trip.Tables,
		Timeline:  itinerary.Timeline(trip.Tables),
	})
}

// handlePlacesIngest accepts either a bare array of places or
// {"places": [...]}.
func (a *API) handlePlacesIngest(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(w, r, &raw); err != nil || len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	var batch []catalog.Ingest
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
	} else {
		var body struct {
			Places []catalog.Ingest `json:"places"`
		}
		if err := json.Unmarshal(trimmed, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json")
			return
		}
		batch = body.Places
	}

	n, err := a.scheduler.IngestPlaces(r.Context(), auth.UserID(r.Context()), tripTitle(r), batch)
	if err != nil {
		a.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stored": n})
}

func (a *API) handleWeightsSave(w http.ResponseWriter, r *http.Request) {
	var v weights.Vector
	if err := decodeJSON(w, r, &v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	if err := a.scheduler.SaveWeights(r.Context(), auth.UserID(r.Context()), v); err != nil {
		a.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// handleTripRate stores the caller's score for a trip. {"rating": null}
// clears it.
func (a *API) handleTripRate(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Rating *float64 `json:"rating"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	title := tripTitle(r)
	if err := a.trips.Rate(r.Context(), auth.UserID(r.Context()), title, body.Rating); err != nil {
		a.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"title": title, "rating": body.Rating})
}

func (a *API) handlePrepareBasic(w http.ResponseWriter, r *http.Request) {
	a.handlePlan(w, r, a.scheduler.PrepareBasic)
}

func (a *API) handlePrepare(w http.ResponseWriter, r *http.Request) {
	a.handlePlan(w, r, a.scheduler.Prepare)
}

func (a *API) handlePlan(w http.ResponseWriter, r *http.Request, op func(context.Context, scheduler.PlanRequest) (*scheduler.Result, error)) {
	var req scheduler.PlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.UserID = auth.UserID(r.Context())
	req.Title = tripTitle(r)

	res, err := op(r.Context(), req)
	if err != nil {
		a.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleReschedule(w http.ResponseWriter, r *http.Request) {
	var req scheduler.RescheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}
	req.UserID = auth.UserID(r.Context())
	req.Title = tripTitle(r)

	res, err := a.scheduler.Reschedule(r.Context(), req)
	if err != nil {
		a.writePlannerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleRunsList(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, a.scheduler.Runs().Recent(auth.UserID(r.Context()), limit))
}
