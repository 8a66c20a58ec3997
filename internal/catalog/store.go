/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/wayfarer/internal/itinerary"
	"github.com/friendsincode/wayfarer/internal/models"
)

// StatusOperational is the provider's business status for open places.
const StatusOperational = "OPERATIONAL"

// Ingest is one place delivered by the catalog provider.
type Ingest struct {
	PlaceID        string   `json:"place_id"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Lat            float64  `json:"lat"`
	Lng            float64  `json:"lng"`
	Rating         float64  `json:"rating"`
	ReviewCount    int      `json:"review_count"`
	LatestReview   string   `json:"latest_review,omitempty"`
	TrustScore     *float64 `json:"trust_score,omitempty"`
	OpenHours      []string `json:"open_hours,omitempty"`
	BusinessStatus string   `json:"business_status,omitempty"`
	Anchor         bool     `json:"anchor,omitempty"`
}

func (in Ingest) model(userID, tripTitle string) models.Place {
	trust := TrustScore(in.Rating, in.ReviewCount, in.LatestReview)
	if in.TrustScore != nil {
		trust = *in.TrustScore
	}
	placeID := in.PlaceID
	if placeID == "" {
		placeID = strings.ToLower(strings.TrimSpace(in.Name))
	}
	status := strings.ToUpper(strings.TrimSpace(in.BusinessStatus))
	return models.Place{
		ID:          uuid.NewString(),
		UserID:      userID,
		TripTitle:   tripTitle,
		PlaceID:     placeID,
		Name:        in.Name,
		Category:    in.Category,
		Lat:         in.Lat,
		Lng:         in.Lng,
		Rating:      in.Rating,
		ReviewCount: in.ReviewCount,
		TrustScore:  trust,
		OpenHours:   in.OpenHours,
		Operational: status == "" || status == StatusOperational,
		Anchor:      in.Anchor,
	}
}

// Store persists per-trip catalog snapshots.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a catalog store.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "catalog_store").Logger()}
}

// Save upserts an ingestion batch for a trip and returns the row count.
func (s *Store) Save(ctx context.Context, userID, tripTitle string, batch []Ingest) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	rows := make([]models.Place, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	for _, in := range batch {
		if strings.TrimSpace(in.Name) == "" {
			continue
		}
		row := in.model(userID, tripTitle)
		if seen[row.PlaceID] {
			continue
		}
		seen[row.PlaceID] = true
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "trip_title"}, {Name: "place_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "category", "lat", "lng", "rating", "review_count",
			"trust_score", "open_hours", "operational", "anchor", "updated_at",
		}),
	}).Create(&rows).Error
	if err != nil {
		return 0, fmt.Errorf("upsert places: %w", err)
	}

	s.logger.Debug().Str("user", userID).Str("trip", tripTitle).Int("count", len(rows)).Msg("catalog snapshot saved")
	return len(rows), nil
}

// Fetch returns the schedulable candidates of a trip, in insertion order.
func (s *Store) Fetch(ctx context.Context, userID, tripTitle string) ([]Candidate, error) {
	var rows []models.Place
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND trip_title = ? AND anchor = ?", userID, tripTitle, false).
		Order("created_at ASC, place_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("fetch places: %w", err)
	}

	out := make([]Candidate, len(rows))
	for i, r := range rows {
		out[i] = Candidate{
			ID:            r.PlaceID,
			Name:          r.Name,
			Category:      itinerary.Category(r.Category),
			Lat:           r.Lat,
			Lng:           r.Lng,
			TrustScore:    r.TrustScore,
			AffinityScore: r.AffinityScore,
			AversionScore: r.AversionScore,
			OpenHours:     r.OpenHours,
			Operational:   r.Operational,
		}
	}
	return out, nil
}

// SaveScores stores annotation results back onto the snapshot.
func (s *Store) SaveScores(ctx context.Context, userID, tripTitle string, candidates []Candidate) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range candidates {
			err := tx.Model(&models.Place{}).
				Where("user_id = ? AND trip_title = ? AND place_id = ?", userID, tripTitle, c.ID).
				Updates(map[string]any{"affinity_score": c.AffinityScore, "aversion_score": c.AversionScore}).Error
			if err != nil {
				return fmt.Errorf("update scores for %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

// Resolver returns an anchor resolver over a trip's snapshot.
func (s *Store) Resolver(userID, tripTitle string) *TripResolver {
	return &TripResolver{db: s.db, userID: userID, tripTitle: tripTitle}
}

// TripResolver matches anchor queries against place names of one trip.
type TripResolver struct {
	db        *gorm.DB
	userID    string
	tripTitle string
}

// ResolveAnchor finds a place whose name equals the query, ignoring case.
func (r *TripResolver) ResolveAnchor(ctx context.Context, query string) (itinerary.Location, bool, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return itinerary.Location{}, false, nil
	}
	var row models.Place
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND trip_title = ? AND LOWER(name) = ?", r.userID, r.tripTitle, strings.ToLower(q)).
		Order("anchor DESC").
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return itinerary.Location{}, false, nil
	}
	if err != nil {
		return itinerary.Location{}, false, fmt.Errorf("resolve anchor %q: %w", q, err)
	}
	return itinerary.Location{Name: row.Name, Lat: row.Lat, Lng: row.Lng}, true, nil
}
