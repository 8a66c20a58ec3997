/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"time"

	"github.com/friendsincode/wayfarer/internal/itinerary"
)

// Trip is a stored itinerary keyed by owner and title.
type Trip struct {
	ID            string           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string           `gorm:"type:varchar(128);not null;uniqueIndex:idx_trip_owner_title" json:"user_id"`
	Title         string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_trip_owner_title" json:"title"`
	Query         string           `gorm:"type:text" json:"query"`
	TravelMethod  int              `json:"travel_method"`
	StartDate     string           `gorm:"type:varchar(10)" json:"start_date"`
	EndDate       string           `gorm:"type:varchar(10)" json:"end_date"`
	StartTime     string           `gorm:"type:varchar(5)" json:"start_time"`
	EndTime       string           `gorm:"type:varchar(5)" json:"end_time"`
	StartLocation string           `gorm:"type:varchar(255)" json:"start_location"`
	EndLocation   string           `gorm:"type:varchar(255)" json:"end_location"`
	Lodging       string           `gorm:"type:varchar(255)" json:"lodging"`
	FocusMode     string           `gorm:"type:varchar(32)" json:"focus_mode"`
	Tables        itinerary.Record `gorm:"type:jsonb;serializer:json" json:"tables"`
	Revision      int              `gorm:"not null;default:0" json:"revision"`
	Rating        *float64         `json:"rating"` // traveller's own score, nil until rated
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (Trip) TableName() string {
	return "trips"
}
