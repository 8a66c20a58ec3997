/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package skeleton

import (
	"context"
	"strings"

	"github.com/friendsincode/wayfarer/internal/itinerary"
)

// StaticResolver resolves anchors from a fixed, case-insensitive name table.
type StaticResolver map[string]itinerary.Location

// NewStaticResolver indexes locations by name.
func NewStaticResolver(locs ...itinerary.Location) StaticResolver {
	r := make(StaticResolver, len(locs))
	for _, loc := range locs {
		r[strings.ToLower(strings.TrimSpace(loc.Name))] = loc
	}
	return r
}

// ResolveAnchor implements AnchorResolver.
func (r StaticResolver) ResolveAnchor(_ context.Context, query string) (itinerary.Location, bool, error) {
	loc, ok := r[strings.ToLower(strings.TrimSpace(query))]
	return loc, ok, nil
}
