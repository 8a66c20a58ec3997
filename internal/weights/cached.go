/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package weights

import (
	"context"

	"github.com/rs/zerolog"
)

// VectorCache is the slice of the Redis cache that holds weight vectors.
type VectorCache interface {
	GetWeights(ctx context.Context, userID string, dest any) bool
	SetWeights(ctx context.Context, userID string, v any) error
	InvalidateWeights(ctx context.Context, userID string) error
}

// Cached reads through the Redis cache before hitting the store.
type Cached struct {
	store  *Store
	cache  VectorCache
	logger zerolog.Logger
}

// NewCached wraps store with c. A nil or disabled cache passes through.
func NewCached(store *Store, c VectorCache, logger zerolog.Logger) *Cached {
	return &Cached{store: store, cache: c, logger: logger.With().Str("component", "weights").Logger()}
}

// Load returns the user's vector from cache or store.
func (c *Cached) Load(ctx context.Context, userID string) (Vector, error) {
	if c.cache != nil {
		var v Vector
		if c.cache.GetWeights(ctx, userID, &v) {
			return v, nil
		}
	}
	v, err := c.store.Load(ctx, userID)
	if err != nil {
		return Vector{}, err
	}
	if c.cache != nil {
		if err := c.cache.SetWeights(ctx, userID, v); err != nil {
			c.logger.Debug().Err(err).Str("user", userID).Msg("weights cache write failed")
		}
	}
	return v, nil
}

// Save writes through to the store and drops the cached copy.
func (c *Cached) Save(ctx context.Context, userID string, v Vector) error {
	if err := c.store.Save(ctx, userID, v); err != nil {
		return err
	}
	if c.cache != nil {
		if err := c.cache.InvalidateWeights(ctx, userID); err != nil {
			c.logger.Debug().Err(err).Str("user", userID).Msg("weights cache invalidation failed")
		}
	}
	return nil
}
