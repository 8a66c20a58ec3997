/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for frequently accessed data.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values for different cache types
const (
	DefaultWeightsTTL = 30 * time.Minute
	DefaultCatalogTTL = 10 * time.Minute
)

// Key prefixes for Redis cache
const (
	keyRoot    = "wayfarer:cache:"
	KeyWeights = keyRoot + "weights:" // + user_id
	KeyCatalog = keyRoot + "catalog:" // + user_id + ":" + trip title + ":" + profile tag
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// TTL overrides
	WeightsTTL time.Duration
	CatalogTTL time.Duration

	// Fallback behavior
	DisableOnError bool // If true, disable caching on Redis errors
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:      "localhost:6379",
		WeightsTTL:     DefaultWeightsTTL,
		CatalogTTL:     DefaultCatalogTTL,
		DisableOnError: true,
	}
}

// Cache provides Redis-backed caching with graceful fallback.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool // Circuit breaker state
}

// Disabled returns a cache that never stores anything.
func Disabled(logger zerolog.Logger) *Cache {
	return &Cache{
		logger:   logger.With().Str("component", "cache").Logger(),
		config:   DefaultConfig(),
		disabled: true,
	}
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		_ = client.Close()
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAvailable returns true if the cache is operational.
func (c *Cache) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

// handleError handles Redis errors with circuit breaker logic.
func (c *Cache) handleError(err error, operation string) {
	if err == nil || err == redis.Nil {
		return
	}

	c.logger.Debug().Err(err).Str("operation", operation).Msg("cache operation failed")

	if c.config.DisableOnError {
		c.mu.Lock()
		c.disabled = true
		c.mu.Unlock()
		c.logger.Warn().Msg("disabling cache due to Redis error")
	}
}

// get retrieves a value from cache and unmarshals it.
func (c *Cache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.IsAvailable() {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		c.handleError(err, "get")
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("failed to unmarshal cached value")
		return false, nil
	}

	return true, nil
}

// set stores a value in cache with TTL.
func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.IsAvailable() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.handleError(err, "set")
		return err
	}

	return nil
}

// delete removes a key from cache.
func (c *Cache) delete(ctx context.Context, key string) error {
	if !c.IsAvailable() {
		return nil
	}

	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.handleError(err, "delete")
		return err
	}

	return nil
}

// deletePattern deletes all keys matching a pattern.
func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	if !c.IsAvailable() {
		return nil
	}

	// Use SCAN to find keys (safer than KEYS for production)
	var cursor uint64
	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			c.handleError(err, "scan")
			return err
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err, "delete_batch")
				return err
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return nil
}

// Weight vector caching methods

// GetWeights loads a user's cached weight vector into dest.
func (c *Cache) GetWeights(ctx context.Context, userID string, dest any) bool {
	found, err := c.get(ctx, KeyWeights+userID, dest)
	if err != nil || !found {
		return false
	}
	c.logger.Debug().Str("user", userID).Msg("weights cache hit")
	return true
}

// SetWeights caches a user's weight vector.
func (c *Cache) SetWeights(ctx context.Context, userID string, v any) error {
	return c.set(ctx, KeyWeights+userID, v, c.ttl(c.config.WeightsTTL, DefaultWeightsTTL))
}

// InvalidateWeights removes a user's cached weight vector.
func (c *Cache) InvalidateWeights(ctx context.Context, userID string) error {
	c.logger.Debug().Str("user", userID).Msg("invalidating weights cache")
	return c.delete(ctx, KeyWeights+userID)
}

// Catalog snapshot caching methods

// catalogKey scopes a snapshot to the preference profile that scored it.
func catalogKey(userID, tripTitle, profile string) string {
	return catalogPrefix(userID, tripTitle) + profileTag(profile)
}

func catalogPrefix(userID, tripTitle string) string {
	return KeyCatalog + userID + ":" + tripTitle + ":"
}

func profileTag(profile string) string {
	if profile == "" {
		return "none"
	}
	sum := sha256.Sum256([]byte(profile))
	return hex.EncodeToString(sum[:8])
}

var globEscaper = strings.NewReplacer(`\`, `\\`, "*", `\*`, "?", `\?`, "[", `\[`, "]", `\]`)

// GetCatalog loads a trip's cached candidate list for profile into dest.
func (c *Cache) GetCatalog(ctx context.Context, userID, tripTitle, profile string, dest any) bool {
	found, err := c.get(ctx, catalogKey(userID, tripTitle, profile), dest)
	if err != nil || !found {
		return false
	}
	c.logger.Debug().Str("user", userID).Str("trip", tripTitle).Msg("catalog cache hit")
	return true
}

// SetCatalog caches a trip's candidate list as scored for profile.
func (c *Cache) SetCatalog(ctx context.Context, userID, tripTitle, profile string, candidates any) error {
	return c.set(ctx, catalogKey(userID, tripTitle, profile), candidates, c.ttl(c.config.CatalogTTL, DefaultCatalogTTL))
}

// InvalidateCatalog removes a trip's cached candidates for every profile.
func (c *Cache) InvalidateCatalog(ctx context.Context, userID, tripTitle string) error {
	c.logger.Debug().Str("user", userID).Str("trip", tripTitle).Msg("invalidating catalog cache")
	return c.deletePattern(ctx, catalogPattern(userID, tripTitle))
}

func catalogPattern(userID, tripTitle string) string {
	return globEscaper.Replace(catalogPrefix(userID, tripTitle)) + "*"
}

// InvalidateUser removes every cached catalog of a user.
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	if err := c.InvalidateWeights(ctx, userID); err != nil {
		return err
	}
	return c.deletePattern(ctx, globEscaper.Replace(KeyCatalog+userID+":")+"*")
}

// FlushAll removes all cached data (use sparingly).
func (c *Cache) FlushAll(ctx context.Context) error {
	c.logger.Warn().Msg("flushing all cache data")
	return c.deletePattern(ctx, keyRoot+"*")
}

func (c *Cache) ttl(configured, fallback time.Duration) time.Duration {
	if configured > 0 {
		return configured
	}
	return fallback
}
