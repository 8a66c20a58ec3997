/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// Place is one candidate in a trip's catalog snapshot.
type Place struct {
	ID            string   `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string   `gorm:"type:varchar(128);not null;uniqueIndex:idx_place_trip" json:"user_id"`
	TripTitle     string   `gorm:"type:varchar(255);not null;uniqueIndex:idx_place_trip" json:"trip_title"`
	PlaceID       string   `gorm:"type:varchar(255);not null;uniqueIndex:idx_place_trip" json:"place_id"`
	Name          string   `gorm:"type:varchar(255);index" json:"name"`
	Category      string   `gorm:"type:varchar(32);index" json:"category"`
	Lat           float64  `json:"lat"`
	Lng           float64  `json:"lng"`
	Rating        float64  `json:"rating"`
	ReviewCount   int      `json:"review_count"`
	TrustScore    float64  `json:"trust_score"`
	AffinityScore float64  `json:"affinity_score"`
	AversionScore float64  `json:"aversion_score"`
	OpenHours     []string `gorm:"type:jsonb;serializer:json" json:"open_hours"`
	Operational   bool     `gorm:"not null" json:"operational"`
	// Anchor marks entries that only serve as start, end or lodging locations.
	Anchor    bool      `gorm:"not null;default:false" json:"anchor"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Place) TableName() string {
	return "places"
}

// UserWeights stores a user's learned scoring weights.
type UserWeights struct {
	UserID    string    `gorm:"type:varchar(128);primaryKey" json:"user_id"`
	WDist     float64   `gorm:"column:w_dist" json:"w_dist"`
	WCluster  float64   `gorm:"column:w_cluster" json:"w_cluster"`
	WTrust    float64   `gorm:"column:w_trust" json:"w_trust"`
	WNonhope  float64   `gorm:"column:w_nonhope" json:"w_nonhope"`
	Intercept float64   `json:"intercept"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (UserWeights) TableName() string {
	return "user_weights"
}
