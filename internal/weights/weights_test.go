/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package weights

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/friendsincode/wayfarer/internal/cache"
	"github.com/friendsincode/wayfarer/internal/models"
)

func newWeightsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.UserWeights{}))
	return db
}

func TestLoadMissingUserReturnsDefaults(t *testing.T) {
	store := NewStore(newWeightsTestDB(t), zerolog.Nop())

	v, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, Default(), v)
	assert.Equal(t, Vector{Dist: 0.5, Cluster: 0.4, Trust: 0.4, Nonhope: 0.3}, v)
}

func TestSaveUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newWeightsTestDB(t), zerolog.Nop())

	require.NoError(t, store.Save(ctx, "u1", Vector{Dist: 1, Cluster: 2, Trust: 3, Nonhope: 4, Intercept: 0.5}))
	require.NoError(t, store.Save(ctx, "u1", Vector{Dist: 0.9, Cluster: 0.1, Trust: 0.2, Nonhope: 0.3, Intercept: -1}))

	v, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Vector{Dist: 0.9, Cluster: 0.1, Trust: 0.2, Nonhope: 0.3, Intercept: -1}, v)
}

func TestCachedPassesThroughDisabledCache(t *testing.T) {
	ctx := context.Background()
	cached := NewCached(NewStore(newWeightsTestDB(t), zerolog.Nop()), cache.Disabled(zerolog.Nop()), zerolog.Nop())

	v, err := cached.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Default(), v)

	want := Vector{Dist: 0.1, Trust: 1}
	require.NoError(t, cached.Save(ctx, "u1", want))
	v, err = cached.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want, v)
}

type failingCache struct{}

func (failingCache) GetWeights(context.Context, string, any) bool { return false }
func (failingCache) SetWeights(context.Context, string, any) error {
	return errors.New("redis: connection refused")
}
func (failingCache) InvalidateWeights(context.Context, string) error {
	return errors.New("redis: connection refused")
}

func TestCachedLogsCacheFailures(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	cached := NewCached(NewStore(newWeightsTestDB(t), zerolog.Nop()), failingCache{}, zerolog.New(&buf).Level(zerolog.DebugLevel))

	_, err := cached.Load(ctx, "u1")
	require.NoError(t, err, "cache errors do not fail a load")
	require.NoError(t, cached.Save(ctx, "u1", Default()), "cache errors do not fail a save")

	assert.Contains(t, buf.String(), "weights cache write failed")
	assert.Contains(t, buf.String(), "weights cache invalidation failed")
}
