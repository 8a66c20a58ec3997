/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package trips is the itinerary document store, keyed by owner and title.
package trips

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/wayfarer/internal/catalog"
	"github.com/friendsincode/wayfarer/internal/itinerary"
	"github.com/friendsincode/wayfarer/internal/models"
)

var (
	// ErrTripNotFound is returned when no trip matches owner and title.
	ErrTripNotFound = errors.New("trip not found")
	// ErrInvalidRating is returned for ratings outside MinRating..MaxRating.
	ErrInvalidRating = errors.New("invalid rating")
)

// Bounds of a traveller's trip rating.
const (
	MinRating = 0.0
	MaxRating = 5.0
)

// Summary is a trip listing entry.
type Summary struct {
	Title     string    `json:"title"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	FocusMode string    `json:"focus_mode"`
	Revision  int       `json:"revision"`
	Rating    *float64  `json:"rating"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Repository persists trips through gorm.
type Repository struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewRepository creates a trip repository.
func NewRepository(db *gorm.DB, logger zerolog.Logger) *Repository {
	return &Repository{db: db, logger: logger.With().Str("component", "trips").Logger()}
}

// Load returns the stored trip.
func (r *Repository) Load(ctx context.Context, userID, title string) (*models.Trip, error) {
	var trip models.Trip
	err := r.db.WithContext(ctx).First(&trip, "user_id = ? AND title = ?", userID, title).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTripNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load trip: %w", err)
	}
	return &trip, nil
}

// LoadItinerary returns the stored itinerary of a trip.
func (r *Repository) LoadItinerary(ctx context.Context, userID, title string) (*models.Trip, *itinerary.Itinerary, error) {
	trip, err := r.Load(ctx, userID, title)
	if err != nil {
		return nil, nil, err
	}
	it, err := itinerary.FromRecord(trip.Tables)
	if err != nil {
		return nil, nil, fmt.Errorf("decode stored itinerary: %w", err)
	}
	return trip, it, nil
}

// Save upserts a trip and bumps its revision.
func (r *Repository) Save(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = now
	}
	trip.UpdatedAt = now

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Trip
		err := tx.Select("id", "revision", "created_at").First(&existing, "user_id = ? AND title = ?", trip.UserID, trip.Title).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			trip.Revision = 1
			if err := tx.Create(trip).Error; err != nil {
				return fmt.Errorf("create trip: %w", err)
			}
		case err != nil:
			return fmt.Errorf("check trip: %w", err)
		default:
			trip.ID = existing.ID
			trip.CreatedAt = existing.CreatedAt
			trip.Revision = existing.Revision + 1
			err := tx.Model(&models.Trip{}).Where("id = ?", existing.ID).
				Select(updatableColumns).
				Updates(trip).Error
			if err != nil {
				return fmt.Errorf("update trip: %w", err)
			}
		}
		r.logger.Debug().Str("user", trip.UserID).Str("trip", trip.Title).Int("revision", trip.Revision).Msg("trip saved")
		return nil
	})
}

// Rate stores the traveller's score for a trip. A nil rating clears it.
// Rating does not bump the revision; replanning keeps the rating.
func (r *Repository) Rate(ctx context.Context, userID, title string, rating *float64) error {
	if rating != nil && (*rating < MinRating || *rating > MaxRating) {
		return fmt.Errorf("%w: %v not in %v..%v", ErrInvalidRating, *rating, MinRating, MaxRating)
	}
	res := r.db.WithContext(ctx).Model(&models.Trip{}).
		Where("user_id = ? AND title = ?", userID, title).
		Updates(map[string]any{"rating": rating, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return fmt.Errorf("rate trip: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTripNotFound
	}
	return nil
}

var updatableColumns = []string{
	"query", "travel_method", "start_date", "end_date", "start_time", "end_time",
	"start_location", "end_location", "lodging", "focus_mode", "tables", "revision", "updated_at",
}

// List returns a user's trips, most recently updated first.
func (r *Repository) List(ctx context.Context, userID string) ([]Summary, error) {
	var rows []models.Trip
	err := r.db.WithContext(ctx).
		Select("title", "start_date", "end_date", "focus_mode", "revision", "rating", "updated_at").
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	out := make([]Summary, len(rows))
	for i, t := range rows {
		out[i] = Summary{
			Title:     t.Title,
			StartDate: t.StartDate,
			EndDate:   t.EndDate,
			FocusMode: t.FocusMode,
			Revision:  t.Revision,
			Rating:    t.Rating,
			UpdatedAt: t.UpdatedAt,
		}
	}
	return out, nil
}

// ConsumedSeed marks every catalog entry already placed in it.
func ConsumedSeed(it *itinerary.Itinerary, cat *catalog.Catalog) *catalog.ConsumedSet {
	set := catalog.NewConsumedSet(cat.Len())
	if it != nil {
		cat.SeedConsumed(it, set)
	}
	return set
}
