/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads profile overrides from YAML. Keys are mode names; fields
// left out of a mode keep their default value.
//
//	meal:
//	  min_between_meals: 300
//	shopping:
//	  shopping_interval: 120
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML profile overrides.
func Parse(data []byte) (*Policy, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}

	defaults := DefaultProfiles()
	profiles := make(map[Mode]Profile, len(raw))
	for name, node := range raw {
		mode := Mode(name)
		prof, ok := defaults[mode]
		if !ok {
			return nil, fmt.Errorf("parse policy: unknown mode %q", name)
		}
		if err := node.Decode(&prof); err != nil {
			return nil, fmt.Errorf("parse policy %s: %w", name, err)
		}
		profiles[mode] = prof
	}
	return New(profiles), nil
}
