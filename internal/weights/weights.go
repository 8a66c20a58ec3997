/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package weights stores the per-user scoring coefficients produced by the
// weight-learning service.
package weights

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/wayfarer/internal/models"
)

// Vector holds the scoring coefficients of one user.
type Vector struct {
	Dist      float64 `json:"w_dist" yaml:"w_dist"`
	Cluster   float64 `json:"w_cluster" yaml:"w_cluster"`
	Trust     float64 `json:"w_trust" yaml:"w_trust"`
	Nonhope   float64 `json:"w_nonhope" yaml:"w_nonhope"`
	Intercept float64 `json:"intercept" yaml:"intercept"`
}

// Default returns the coefficients used before any learning has happened.
func Default() Vector {
	return Vector{Dist: 0.5, Cluster: 0.4, Trust: 0.4, Nonhope: 0.3}
}

// Source loads a user's vector.
type Source interface {
	Load(ctx context.Context, userID string) (Vector, error)
}

// Store reads and writes the user_weights table.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a weight store.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{db: db, logger: logger.With().Str("component", "weights").Logger()}
}

// Load returns the stored vector, or Default when the user has none.
func (s *Store) Load(ctx context.Context, userID string) (Vector, error) {
	var row models.UserWeights
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Default(), nil
	}
	if err != nil {
		return Vector{}, fmt.Errorf("load weights: %w", err)
	}
	return Vector{
		Dist:      row.WDist,
		Cluster:   row.WCluster,
		Trust:     row.WTrust,
		Nonhope:   row.WNonhope,
		Intercept: row.Intercept,
	}, nil
}

// Save upserts a user's vector.
func (s *Store) Save(ctx context.Context, userID string, v Vector) error {
	row := models.UserWeights{
		UserID:    userID,
		WDist:     v.Dist,
		WCluster:  v.Cluster,
		WTrust:    v.Trust,
		WNonhope:  v.Nonhope,
		Intercept: v.Intercept,
		UpdatedAt: time.Now().UTC(),
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"w_dist", "w_cluster", "w_trust", "w_nonhope", "intercept", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save weights: %w", err)
	}
	s.logger.Debug().Str("user", userID).Msg("weights saved")
	return nil
}
