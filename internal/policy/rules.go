/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package policy

import (
	"github.com/friendsincode/wayfarer/internal/itinerary"
)

// Profile parameterizes the rule table of one mode. Durations are minutes;
// a zero ShoppingInterval disables the shopping rule.
type Profile struct {
	AttractionRequired bool `yaml:"attraction_required"`
	AttractionEvery    int  `yaml:"attraction_every"`
	RequireMeal        bool `yaml:"require_meal"`
	MinBetweenMeals    int  `yaml:"min_between_meals"`
	DontEatWithin      int  `yaml:"dont_eat_within"`
	ShoppingInterval   int  `yaml:"shopping_interval"`
	AllowMultipleCafes bool `yaml:"allow_multiple_cafes"`
}

func baseProfile() Profile {
	return Profile{
		AttractionRequired: true,
		AttractionEvery:    240,
		RequireMeal:        true,
		MinBetweenMeals:    360,
		DontEatWithin:      240,
	}
}

// DefaultProfiles returns the built-in profile of every mode.
func DefaultProfiles() map[Mode]Profile {
	attraction := baseProfile()

	meal := baseProfile()
	meal.AttractionRequired = false
	meal.MinBetweenMeals = 240

	cafe := baseProfile()
	cafe.AttractionRequired = false
	cafe.RequireMeal = false
	cafe.AllowMultipleCafes = true

	shopping := baseProfile()
	shopping.AttractionRequired = false
	shopping.ShoppingInterval = 180

	return map[Mode]Profile{
		ModeAttraction: attraction,
		ModeMeal:       meal,
		ModeCafe:       cafe,
		ModeShopping:   shopping,
	}
}

type actionKind int

const (
	actionForce actionKind = iota + 1
	actionRemove
)

// Action is what a matching rule does to the allowed set.
type Action struct {
	kind       actionKind
	categories []itinerary.Category
}

// Force replaces the allowed set and stops evaluation.
func Force(cs ...itinerary.Category) Action {
	return Action{kind: actionForce, categories: cs}
}

// Remove drops categories from the allowed set.
func Remove(cs ...itinerary.Category) Action {
	return Action{kind: actionRemove, categories: cs}
}

// Forces reports whether the action is terminal.
func (a Action) Forces() bool { return a.kind == actionForce }

// Categories returns the categories the action names.
func (a Action) Categories() []itinerary.Category { return a.categories }

// Rule pairs a predicate with an action.
type Rule struct {
	Name string
	When func(Context) bool
	Then Action
}

// Context is the decision point a rule inspects.
type Context struct {
	Day   *itinerary.DaySchedule
	Index int
}

// Elapsed returns minutes from the end of the latest earlier slot of
// category c to the start of the current slot, or from the start of the
// day's first slot when none exists.
func (c Context) Elapsed(category itinerary.Category) int {
	current := c.Day.Slots[c.Index].Start
	for i := c.Index - 1; i >= 0; i-- {
		if c.Day.Slots[i].Category() == category {
			return current.Sub(c.Day.Slots[i].End)
		}
	}
	return current.Sub(c.Day.Slots[0].Start)
}

// Previous returns the category of the slot just before the current one.
func (c Context) Previous() itinerary.Category {
	if c.Index == 0 {
		return ""
	}
	return c.Day.Slots[c.Index-1].Category()
}

// Rules compiles the profile into its ordered rule table.
func (p Profile) Rules() []Rule {
	var rules []Rule

	if p.AttractionRequired {
		every := p.AttractionEvery
		rules = append(rules, Rule{
			Name: "attraction_due",
			When: func(c Context) bool { return c.Elapsed(itinerary.CategoryAttraction) >= every },
			Then: Force(itinerary.CategoryAttraction),
		})
	}

	if p.RequireMeal {
		tooSoon, due := p.DontEatWithin, p.MinBetweenMeals
		rules = append(rules,
			Rule{
				Name: "meal_too_soon",
				When: func(c Context) bool { return c.Elapsed(itinerary.CategoryMeal) <= tooSoon },
				Then: Remove(itinerary.CategoryMeal),
			},
			Rule{
				Name: "meal_due",
				When: func(c Context) bool { return c.Elapsed(itinerary.CategoryMeal) >= due },
				Then: Force(itinerary.CategoryMeal),
			},
		)
	}

	if p.ShoppingInterval > 0 {
		interval := p.ShoppingInterval
		rules = append(rules, Rule{
			Name: "shopping_due",
			When: func(c Context) bool { return c.Elapsed(itinerary.CategoryShopping) >= interval },
			Then: Force(itinerary.CategoryShopping),
		})
	}

	if !p.AllowMultipleCafes {
		rules = append(rules, Rule{
			Name: "no_back_to_back_cafes",
			When: func(c Context) bool {
				prev := c.Previous()
				return prev == itinerary.CategoryCafe || prev == itinerary.CategoryBakery
			},
			Then: Remove(itinerary.CategoryCafe, itinerary.CategoryBakery),
		})
	}

	return rules
}
