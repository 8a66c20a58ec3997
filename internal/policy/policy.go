/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package policy decides which place categories may fill the next slot.
package policy

import (
	"sort"
	"strings"

	"github.com/friendsincode/wayfarer/internal/itinerary"
)

// Mode names a constraint profile.
type Mode string

const (
	ModeAttraction Mode = "attraction"
	ModeMeal       Mode = "meal"
	ModeCafe       Mode = "cafe"
	ModeShopping   Mode = "shopping"
)

var modeAliases = map[string]Mode{
	"attraction": ModeAttraction,
	"meal":       ModeMeal,
	"food":       ModeMeal,
	"cafe":       ModeCafe,
	"bakery":     ModeCafe,
	"shopping":   ModeShopping,
	"명소 중심":      ModeAttraction,
	"식사 중심":      ModeMeal,
	"카페, 빵집 중심":  ModeCafe,
	"쇼핑 중심":      ModeShopping,
}

// ParseMode maps a client focus value to a Mode. Unknown values fall back
// to ModeAttraction.
func ParseMode(s string) Mode {
	if m, ok := modeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m
	}
	return ModeAttraction
}

// Modes lists every mode in a fixed order.
func Modes() []Mode {
	return []Mode{ModeAttraction, ModeMeal, ModeCafe, ModeShopping}
}

// CategorySet is a sorted, duplicate-free list of categories.
type CategorySet []itinerary.Category

// NewCategorySet builds a normalized set.
func NewCategorySet(cs ...itinerary.Category) CategorySet {
	seen := make(map[itinerary.Category]struct{}, len(cs))
	out := make(CategorySet, 0, len(cs))
	for _, c := range cs {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contains reports membership.
func (s CategorySet) Contains(c itinerary.Category) bool {
	for _, x := range s {
		if x == c {
			return true
		}
	}
	return false
}

// Without returns a copy minus the given categories.
func (s CategorySet) Without(cs ...itinerary.Category) CategorySet {
	out := make(CategorySet, 0, len(s))
	for _, x := range s {
		drop := false
		for _, c := range cs {
			if x == c {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, x)
		}
	}
	return out
}

// Key is a stable string form for cache keys.
func (s CategorySet) Key() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

// Policy holds the profile of each mode.
type Policy struct {
	profiles map[Mode]Profile
	rules    map[Mode][]Rule
}

// Default returns the built-in profiles.
func Default() *Policy {
	return New(DefaultProfiles())
}

// New compiles the given profiles. Modes missing from the map use defaults.
func New(profiles map[Mode]Profile) *Policy {
	p := &Policy{
		profiles: DefaultProfiles(),
		rules:    make(map[Mode][]Rule),
	}
	for mode, prof := range profiles {
		p.profiles[mode] = prof
	}
	for mode, prof := range p.profiles {
		p.rules[mode] = prof.Rules()
	}
	return p
}

// Profile returns the profile of a mode.
func (p *Policy) Profile(mode Mode) Profile {
	if prof, ok := p.profiles[mode]; ok {
		return prof
	}
	return p.profiles[ModeAttraction]
}

// AllowedCategories evaluates the mode's rules for slot index of day.
// Rules run in order; a forcing rule ends evaluation.
func (p *Policy) AllowedCategories(day *itinerary.DaySchedule, index int, mode Mode) CategorySet {
	rules, ok := p.rules[mode]
	if !ok {
		rules = p.rules[ModeAttraction]
	}

	allowed := NewCategorySet(itinerary.Universe()...)
	ctx := Context{Day: day, Index: index}
	for _, rule := range rules {
		if !rule.When(ctx) {
			continue
		}
		switch rule.Then.kind {
		case actionForce:
			return NewCategorySet(rule.Then.categories...)
		case actionRemove:
			allowed = allowed.Without(rule.Then.categories...)
		}
	}
	return allowed
}
