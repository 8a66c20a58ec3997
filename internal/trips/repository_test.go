/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package trips

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/wayfarer/internal/catalog"
	"github.com/friendsincode/wayfarer/internal/itinerary"
	"github.com/friendsincode/wayfarer/internal/models"
)

func newTripsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Trip{}))
	return db
}

func strp(s string) *string { return &s }

func sampleRecord() itinerary.Record {
	return itinerary.Record{"2025-06-02": {
		Weekday:       "Monday",
		StartLocation: "Seoul Station",
		EndLocation:   "Lotte Hotel",
		Schedule: []itinerary.SlotRecord{
			{Start: "08:00", End: "09:00", Title: strp("Seoul Station"), Category: strp("start"),
				Location: &itinerary.Location{Name: "Seoul Station", Lat: 37.55, Lng: 126.97}},
			{Start: "09:00", End: "11:00", Title: strp("Gyeongbokgung"), Category: strp("tourist_attraction"), PlaceID: "g1"},
			{Start: "11:00", End: "13:00"},
		},
	}}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTripsTestDB(t), zerolog.Nop())

	trip := &models.Trip{UserID: "u1", Title: "Seoul", StartDate: "2025-06-02", EndDate: "2025-06-02", FocusMode: "attraction", Tables: sampleRecord()}
	require.NoError(t, repo.Save(ctx, trip))
	assert.Equal(t, 1, trip.Revision)
	firstID := trip.ID

	got, it, err := repo.LoadItinerary(ctx, "u1", "Seoul")
	require.NoError(t, err)
	assert.Equal(t, "attraction", got.FocusMode)
	require.Len(t, it.Days, 1)
	assert.Equal(t, itinerary.KindDayStart, it.Days[0].Slots[0].Kind)
	assert.Equal(t, sampleRecord(), got.Tables)

	again := &models.Trip{UserID: "u1", Title: "Seoul", FocusMode: "meal", Tables: sampleRecord()}
	require.NoError(t, repo.Save(ctx, again))
	assert.Equal(t, 2, again.Revision)
	assert.Equal(t, firstID, again.ID)

	got, err = repo.Load(ctx, "u1", "Seoul")
	require.NoError(t, err)
	assert.Equal(t, "meal", got.FocusMode)
	assert.Equal(t, 2, got.Revision)
}

func TestLoadMissingTrip(t *testing.T) {
	repo := NewRepository(newTripsTestDB(t), zerolog.Nop())
	_, err := repo.Load(context.Background(), "u1", "Nowhere")
	assert.ErrorIs(t, err, ErrTripNotFound)
}

func TestRate(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTripsTestDB(t), zerolog.Nop())
	require.NoError(t, repo.Save(ctx, &models.Trip{UserID: "u1", Title: "Seoul", Tables: sampleRecord()}))

	score := 4.5
	require.NoError(t, repo.Rate(ctx, "u1", "Seoul", &score))
	got, err := repo.Load(ctx, "u1", "Seoul")
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 4.5, *got.Rating)
	assert.Equal(t, 1, got.Revision, "rating does not bump the revision")

	require.NoError(t, repo.Save(ctx, &models.Trip{UserID: "u1", Title: "Seoul", Tables: sampleRecord()}))
	got, err = repo.Load(ctx, "u1", "Seoul")
	require.NoError(t, err)
	require.NotNil(t, got.Rating, "replanning keeps the rating")
	assert.Equal(t, 4.5, *got.Rating)

	list, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Rating)
	assert.Equal(t, 4.5, *list[0].Rating)

	require.NoError(t, repo.Rate(ctx, "u1", "Seoul", nil))
	got, err = repo.Load(ctx, "u1", "Seoul")
	require.NoError(t, err)
	assert.Nil(t, got.Rating)
}

func TestRateErrors(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTripsTestDB(t), zerolog.Nop())
	require.NoError(t, repo.Save(ctx, &models.Trip{UserID: "u1", Title: "Seoul"}))

	score := 3.0
	assert.ErrorIs(t, repo.Rate(ctx, "u1", "Nowhere", &score), ErrTripNotFound)
	assert.ErrorIs(t, repo.Rate(ctx, "u2", "Seoul", &score), ErrTripNotFound, "other users' trips are not rateable")

	for _, bad := range []float64{-0.5, 5.5} {
		assert.ErrorIs(t, repo.Rate(ctx, "u1", "Seoul", &bad), ErrInvalidRating)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(newTripsTestDB(t), zerolog.Nop())
	require.NoError(t, repo.Save(ctx, &models.Trip{UserID: "u1", Title: "Seoul"}))
	require.NoError(t, repo.Save(ctx, &models.Trip{UserID: "u1", Title: "Busan"}))
	require.NoError(t, repo.Save(ctx, &models.Trip{UserID: "u2", Title: "Jeju"}))

	list, err := repo.List(ctx, "u1")
	require.NoError(t, err)
	titles := []string{}
	for _, s := range list {
		titles = append(titles, s.Title)
	}
	assert.ElementsMatch(t, []string{"Seoul", "Busan"}, titles)
}

func TestConsumedSeed(t *testing.T) {
	it, err := itinerary.FromRecord(sampleRecord())
	require.NoError(t, err)
	cat := catalog.New([]catalog.Candidate{
		{ID: "x", Name: "Seoul Station"},
		{ID: "g1", Name: "Gyeongbokgung"},
	})

	set := ConsumedSeed(it, cat)
	assert.True(t, set.Has(1))
	assert.False(t, set.Has(0), "anchors do not consume catalog entries")
	assert.Equal(t, 1, set.Len())
}
