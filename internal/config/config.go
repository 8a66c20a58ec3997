/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/wayfarer/internal/clock"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Event bus backend selection.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment   string
	HTTPBind      string
	HTTPPort      int
	DBBackend     DatabaseBackend
	DBDSN         string
	JWTSigningKey string
	MetricsBind   string

	// Planner configuration
	LookaheadDepth   int
	BranchFactor     int
	DayStart         clock.TimeOfDay
	DayEnd           clock.TimeOfDay
	PolicyFile       string        // optional YAML focus-mode overrides
	RunTimeout       time.Duration // 0 disables the run deadline
	AnnotatorURL     string        // optional affinity/aversion scoring service
	AnnotatorTimeout time.Duration

	// Rate limiting for planning endpoints (requests per second per user)
	RateLimitRPS   float64
	RateLimitBurst int

	// S3 snapshot archive configuration
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO
	S3Prefix          string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	// Cache and event bus
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool
	EventBus      EventBusBackend
	NATSURL       string
	NATSSubject   string
	InstanceID    string

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment:   getEnvAny([]string{"WAYFARER_ENV", "APP_ENV"}, "development"),
		HTTPBind:      getEnvAny([]string{"WAYFARER_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:      getEnvIntAny([]string{"WAYFARER_HTTP_PORT", "PORT"}, 8080),
		DBBackend:     DatabaseBackend(getEnvAny([]string{"WAYFARER_DB_BACKEND"}, string(DatabasePostgres))),
		DBDSN:         getEnvAny([]string{"WAYFARER_DB_DSN", "DATABASE_URL"}, ""),
		JWTSigningKey: getEnvAny([]string{"WAYFARER_JWT_SIGNING_KEY"}, ""),
		MetricsBind:   getEnvAny([]string{"WAYFARER_METRICS_BIND"}, "127.0.0.1:9000"),

		LookaheadDepth:   getEnvIntAny([]string{"WAYFARER_LOOKAHEAD_DEPTH"}, 3),
		BranchFactor:     getEnvIntAny([]string{"WAYFARER_BRANCH_FACTOR"}, 5),
		PolicyFile:       getEnvAny([]string{"WAYFARER_POLICY_FILE"}, ""),
		RunTimeout:       getEnvDurationAny([]string{"WAYFARER_RUN_TIMEOUT"}, 30*time.Second),
		AnnotatorURL:     getEnvAny([]string{"WAYFARER_ANNOTATOR_URL"}, ""),
		AnnotatorTimeout: getEnvDurationAny([]string{"WAYFARER_ANNOTATOR_TIMEOUT"}, 10*time.Second),

		RateLimitRPS:   getEnvFloatAny([]string{"WAYFARER_RATE_LIMIT_RPS"}, 2),
		RateLimitBurst: getEnvIntAny([]string{"WAYFARER_RATE_LIMIT_BURST"}, 5),

		S3AccessKeyID:     getEnvAny([]string{"WAYFARER_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"WAYFARER_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"WAYFARER_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnvAny([]string{"WAYFARER_S3_BUCKET", "S3_BUCKET"}, ""),
		S3Endpoint:        getEnvAny([]string{"WAYFARER_S3_ENDPOINT", "S3_ENDPOINT"}, ""),
		S3UsePathStyle:    getEnvBoolAny([]string{"WAYFARER_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, false),
		S3Prefix:          getEnvAny([]string{"WAYFARER_S3_PREFIX"}, "itineraries"),

		TracingEnabled:    getEnvBoolAny([]string{"WAYFARER_TRACING_ENABLED"}, false),
		OTLPEndpoint:      getEnvAny([]string{"WAYFARER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT"}, "localhost:4317"),
		TracingSampleRate: getEnvFloatAny([]string{"WAYFARER_TRACING_SAMPLE_RATE"}, 1.0),

		RedisAddr:     getEnvAny([]string{"WAYFARER_REDIS_ADDR", "REDIS_ADDR"}, "localhost:6379"),
		RedisPassword: getEnvAny([]string{"WAYFARER_REDIS_PASSWORD", "REDIS_PASSWORD"}, ""),
		RedisDB:       getEnvIntAny([]string{"WAYFARER_REDIS_DB"}, 0),
		CacheEnabled:  getEnvBoolAny([]string{"WAYFARER_CACHE_ENABLED"}, false),
		EventBus:      EventBusBackend(strings.ToLower(getEnvAny([]string{"WAYFARER_EVENT_BUS"}, string(EventBusMemory)))),
		NATSURL:       getEnvAny([]string{"WAYFARER_NATS_URL", "NATS_URL"}, "nats://localhost:4222"),
		NATSSubject:   getEnvAny([]string{"WAYFARER_NATS_SUBJECT"}, "wayfarer.events"),
		InstanceID:    getEnvAny([]string{"WAYFARER_INSTANCE_ID", "HOSTNAME"}, ""),
	}

	var err error
	if cfg.DayStart, err = clock.Parse(getEnvAny([]string{"WAYFARER_DAY_START"}, "09:00")); err != nil {
		return nil, fmt.Errorf("WAYFARER_DAY_START: %w", err)
	}
	if cfg.DayEnd, err = clock.Parse(getEnvAny([]string{"WAYFARER_DAY_END"}, "23:00")); err != nil {
		return nil, fmt.Errorf("WAYFARER_DAY_END: %w", err)
	}
	if cfg.DayEnd <= cfg.DayStart {
		return nil, fmt.Errorf("day window %s-%s is inverted", cfg.DayStart, cfg.DayEnd)
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("WAYFARER_DB_DSN or DATABASE_URL must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("WAYFARER_JWT_SIGNING_KEY must be provided")
	}

	switch cfg.EventBus {
	case EventBusMemory, EventBusRedis, EventBusNATS:
	default:
		return nil, fmt.Errorf("unsupported event bus %q", cfg.EventBus)
	}

	if cfg.LookaheadDepth < 1 {
		return nil, fmt.Errorf("WAYFARER_LOOKAHEAD_DEPTH must be at least 1, got %d", cfg.LookaheadDepth)
	}
	if cfg.BranchFactor < 1 {
		return nil, fmt.Errorf("WAYFARER_BRANCH_FACTOR must be at least 1, got %d", cfg.BranchFactor)
	}

	if strings.EqualFold(cfg.Environment, "production") && len(cfg.JWTSigningKey) < 32 {
		return nil, fmt.Errorf("WAYFARER_JWT_SIGNING_KEY must be at least 32 bytes in production")
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":     "use WAYFARER_ENV",
		"JWT_SIGNING_KEY": "use WAYFARER_JWT_SIGNING_KEY",
		"TRACING_ENABLED": "use WAYFARER_TRACING_ENABLED",
		"LOOKAHEAD_DEPTH": "use WAYFARER_LOOKAHEAD_DEPTH",
		"DB_DSN":          "use WAYFARER_DB_DSN (or DATABASE_URL)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// HTTPAddr returns the API listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// ArchiveEnabled reports whether itinerary snapshots go to object storage.
func (c *Config) ArchiveEnabled() bool {
	return c != nil && c.S3Bucket != ""
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvDurationAny accepts Go duration strings or a bare number of seconds.
func getEnvDurationAny(keys []string, def time.Duration) time.Duration {
	for _, k := range keys {
		v := strings.TrimSpace(os.Getenv(k))
		if v == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return def
}
