/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"math"

	"github.com/friendsincode/wayfarer/internal/itinerary"
)

type coordKey struct {
	lat1, lng1, lat2, lng2 int64
}

func round6(v float64) int64 {
	return int64(math.Round(v * 1e6))
}

// Distances memoizes planar distances for one run. Coordinates are keyed
// at six decimal places. Not safe for concurrent use.
type Distances struct {
	memo map[coordKey]float64
}

// NewDistances returns an empty memo.
func NewDistances() *Distances {
	return &Distances{memo: make(map[coordKey]float64)}
}

// Squared returns the squared planar distance between two points.
func (d *Distances) Squared(a, b itinerary.Location) float64 {
	key := coordKey{round6(a.Lat), round6(a.Lng), round6(b.Lat), round6(b.Lng)}
	if v, ok := d.memo[key]; ok {
		return v
	}
	dLat := a.Lat - b.Lat
	dLng := a.Lng - b.Lng
	v := dLat*dLat + dLng*dLng
	d.memo[key] = v
	return v
}

// Euclid returns the planar distance between two points.
func (d *Distances) Euclid(a, b itinerary.Location) float64 {
	return math.Sqrt(d.Squared(a, b))
}

// Proximity is 1/(1+d); 0 when there is no previous location.
func (d *Distances) Proximity(prev *itinerary.Location, to itinerary.Location) float64 {
	if prev == nil {
		return 0
	}
	return 1 / (1 + d.Euclid(*prev, to))
}

// Len returns the number of memoized pairs.
func (d *Distances) Len() int { return len(d.memo) }
