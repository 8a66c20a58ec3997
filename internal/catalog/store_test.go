/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/wayfarer/internal/itinerary"
	"github.com/friendsincode/wayfarer/internal/models"
)

func newStoreTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Place{}))
	return db
}

func TestStoreSaveAndFetch(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newStoreTestDB(t), zerolog.Nop())

	trust := 3.5
	n, err := store.Save(ctx, "u1", "Seoul", []Ingest{
		{PlaceID: "g1", Name: "Gyeongbokgung", Category: "tourist_attraction", Lat: 37.57, Lng: 126.97, Rating: 4.0, ReviewCount: 1000},
		{PlaceID: "c1", Name: "Onion Cafe", Category: "cafe", TrustScore: &trust, BusinessStatus: "CLOSED_TEMPORARILY"},
		{PlaceID: "h1", Name: "Lotte Hotel", Category: "accommodation", Lat: 37.56, Lng: 126.98, Anchor: true},
		{Name: "  "},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := store.Fetch(ctx, "u1", "Seoul")
	require.NoError(t, err)
	require.Len(t, got, 2, "anchors are not candidates")

	byID := map[string]Candidate{}
	for _, c := range got {
		byID[c.ID] = c
	}
	assert.InDelta(t, 4.0, byID["g1"].TrustScore, 1e-9)
	assert.True(t, byID["g1"].Operational)
	assert.Equal(t, 3.5, byID["c1"].TrustScore)
	assert.False(t, byID["c1"].Operational)

	_, err = store.Save(ctx, "u1", "Seoul", []Ingest{
		{PlaceID: "c1", Name: "Onion Cafe", Category: "cafe", TrustScore: &trust, BusinessStatus: "OPERATIONAL"},
	})
	require.NoError(t, err)
	got, err = store.Fetch(ctx, "u1", "Seoul")
	require.NoError(t, err)
	assert.Len(t, got, 2, "upsert does not duplicate")
	for _, c := range got {
		assert.True(t, c.Operational, c.ID)
	}

	other, err := store.Fetch(ctx, "u2", "Seoul")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStoreSaveScores(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newStoreTestDB(t), zerolog.Nop())
	_, err := store.Save(ctx, "u1", "Busan", []Ingest{{PlaceID: "b1", Name: "Beach", Category: "tourist_attraction"}})
	require.NoError(t, err)

	require.NoError(t, store.SaveScores(ctx, "u1", "Busan", []Candidate{{ID: "b1", AffinityScore: 0.7, AversionScore: 0.2}}))

	got, err := store.Fetch(ctx, "u1", "Busan")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.7, got[0].AffinityScore)
	assert.Equal(t, 0.2, got[0].AversionScore)
}

func TestTripResolver(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newStoreTestDB(t), zerolog.Nop())
	_, err := store.Save(ctx, "u1", "Seoul", []Ingest{
		{PlaceID: "h1", Name: "Lotte Hotel", Category: "accommodation", Lat: 37.56, Lng: 126.98, Anchor: true},
	})
	require.NoError(t, err)

	resolver := store.Resolver("u1", "Seoul")
	loc, ok, err := resolver.ResolveAnchor(ctx, "lotte hotel")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, itinerary.Location{Name: "Lotte Hotel", Lat: 37.56, Lng: 126.98}, loc)

	_, ok, err = resolver.ResolveAnchor(ctx, "Nowhere Inn")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Resolver("u2", "Seoul").ResolveAnchor(ctx, "Lotte Hotel")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHTTPAnnotator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/annotate", r.URL.Path)
		var req annotateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "quiet museums", req.Profile)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"scores": map[string]any{"a": map[string]float64{"affinity": 0.9, "aversion": 0.1}},
		})
	}))
	defer srv.Close()

	ann := NewHTTPAnnotator(srv.URL+"/", time.Second, zerolog.Nop())
	in := []Candidate{{ID: "a", AffinityScore: 5}, {ID: "b", AffinityScore: 5}}
	out := ann.Annotate(context.Background(), in, "quiet museums")

	require.Len(t, out, 2)
	assert.Equal(t, 0.9, out[0].AffinityScore)
	assert.Equal(t, 0.1, out[0].AversionScore)
	assert.Equal(t, 0.0, out[1].AffinityScore, "missing entries fall back to zero")
	assert.Equal(t, 5.0, in[0].AffinityScore, "input is not mutated")
}

func TestHTTPAnnotatorFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ann := NewHTTPAnnotator(srv.URL, time.Second, zerolog.Nop())
	out := ann.Annotate(context.Background(), []Candidate{{ID: "a", AffinityScore: 3, AversionScore: 2}}, "")
	assert.Equal(t, 0.0, out[0].AffinityScore)
	assert.Equal(t, 0.0, out[0].AversionScore)
}
