/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/wayfarer/internal/api"
	"github.com/friendsincode/wayfarer/internal/cache"
	"github.com/friendsincode/wayfarer/internal/catalog"
	"github.com/friendsincode/wayfarer/internal/config"
	"github.com/friendsincode/wayfarer/internal/db"
	"github.com/friendsincode/wayfarer/internal/eventbus"
	"github.com/friendsincode/wayfarer/internal/events"
	"github.com/friendsincode/wayfarer/internal/filler"
	"github.com/friendsincode/wayfarer/internal/policy"
	"github.com/friendsincode/wayfarer/internal/scheduler"
	"github.com/friendsincode/wayfarer/internal/storage"
	"github.com/friendsincode/wayfarer/internal/telemetry"
	"github.com/friendsincode/wayfarer/internal/trips"
	"github.com/friendsincode/wayfarer/internal/version"
	"github.com/friendsincode/wayfarer/internal/weights"
)

// runHistoryTTL bounds how long run records stay in memory.
const runHistoryTTL = 24 * time.Hour

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db        *gorm.DB
	cache     *cache.Cache
	bus       eventbus.Bus
	api       *api.API
	scheduler *scheduler.Service

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	for _, warn := range cfg.LegacyEnvWarnings {
		logger.Warn().Msg(warn)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("wayfarer-api"))
	router.Use(telemetry.MetricsMiddleware)
	router.Use(timeoutMiddleware(requestTimeout(cfg)))

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
	}

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// Event streams are long lived; the middleware timeout covers the rest.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// requestTimeout leaves headroom over the planner run deadline.
func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.RunTimeout <= 0 {
		return 0
	}
	return cfg.RunTimeout + 15*time.Second
}

// timeoutMiddleware applies a request deadline except to websocket upgrades.
// A zero timeout disables it.
func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		timeout := middleware.Timeout(d)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout.ServeHTTP(w, r)
		})
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := db.Migrate(database); err != nil {
		return err
	}

	// Redis cache for weights and catalog snapshots
	s.cache = cache.Disabled(s.logger)
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.DeferClose(func() error { return entityCache.Close() })
		}
	}

	pol := policy.Default()
	if s.cfg.PolicyFile != "" {
		loaded, err := policy.LoadFile(s.cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("load policy: %w", err)
		}
		pol = loaded
		s.logger.Info().Str("path", s.cfg.PolicyFile).Msg("focus-mode policy loaded")
	}

	places := catalog.NewStore(database, s.logger)
	tripRepo := trips.NewRepository(database, s.logger)
	weightStore := weights.NewCached(weights.NewStore(database, s.logger), s.cache, s.logger)

	s.scheduler = scheduler.New(places, weightStore, tripRepo, filler.New(pol, s.logger), scheduler.Options{
		Depth:        s.cfg.LookaheadDepth,
		BranchFactor: s.cfg.BranchFactor,
		DayStart:     s.cfg.DayStart,
		DayEnd:       s.cfg.DayEnd,
		RunTimeout:   s.cfg.RunTimeout,
	}, s.logger)
	s.scheduler.SetCache(s.cache)

	if s.cfg.AnnotatorURL != "" {
		s.scheduler.SetAnnotator(catalog.NewHTTPAnnotator(s.cfg.AnnotatorURL, s.cfg.AnnotatorTimeout, s.logger))
	}

	if s.cfg.ArchiveEnabled() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Bucket:          s.cfg.S3Bucket,
			Region:          s.cfg.S3Region,
			Endpoint:        s.cfg.S3Endpoint,
			AccessKeyID:     s.cfg.S3AccessKeyID,
			SecretAccessKey: s.cfg.S3SecretAccessKey,
			UsePathStyle:    s.cfg.S3UsePathStyle,
		}, s.logger)
		cancel()
		if err != nil {
			return fmt.Errorf("init snapshot archive: %w", err)
		}
		s.scheduler.SetArchive(storage.NewArchive(store, s.cfg.S3Prefix))
	}

	bus, err := eventbus.New(s.cfg, s.logger)
	if err != nil {
		return fmt.Errorf("init event bus: %w", err)
	}
	s.bus = bus
	s.DeferClose(bus.Close)
	s.scheduler.SetBus(bus)

	s.api = api.New([]byte(s.cfg.JWTSigningKey), s.scheduler, tripRepo, bus, api.RateLimit{
		RPS:   s.cfg.RateLimitRPS,
		Burst: s.cfg.RateLimitBurst,
	}, s.logger)

	s.logger.Info().
		Str("db_backend", string(s.cfg.DBBackend)).
		Str("event_bus", string(s.cfg.EventBus)).
		Bool("cache", s.cache.IsAvailable()).
		Bool("archive", s.cfg.ArchiveEnabled()).
		Int("depth", s.cfg.LookaheadDepth).
		Int("branch_factor", s.cfg.BranchFactor).
		Msg("dependencies ready")
	return nil
}

// HTTPServer returns the configured API server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router exposes the root router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Close stops background work and releases resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup function run by Close.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Database pool metrics
	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}

	// Run history pruning
	if s.scheduler != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case now := <-ticker.C:
					s.scheduler.Runs().Prune(now.Add(-runHistoryTTL))
				}
			}
		}()
	}

	// Catalog cache invalidation for writes made by other instances
	if s.cache != nil && s.cache.IsAvailable() && s.bus != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached entries when ingest or weight
// events arrive.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	ingested := s.bus.Subscribe(events.EventCatalogIngested)
	updated := s.bus.Subscribe(events.EventWeightsUpdated)
	defer func() {
		s.bus.Unsubscribe(events.EventCatalogIngested, ingested)
		s.bus.Unsubscribe(events.EventWeightsUpdated, updated)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return

		case payload, ok := <-ingested:
			if !ok {
				return
			}
			userID, _ := payload["user_id"].(string)
			title, _ := payload["title"].(string)
			if userID != "" && title != "" {
				if err := s.cache.InvalidateCatalog(ctx, userID, title); err != nil {
					s.logger.Debug().Err(err).Str("user_id", userID).Str("title", title).Msg("catalog cache invalidation failed")
				}
			}

		case payload, ok := <-updated:
			if !ok {
				return
			}
			if userID, _ := payload["user_id"].(string); userID != "" {
				if err := s.cache.InvalidateWeights(ctx, userID); err != nil {
					s.logger.Debug().Err(err).Str("user_id", userID).Msg("weights cache invalidation failed")
				}
			}
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		_, _ = w.Write([]byte(`{"status":"ok","version":"` + version.Version + `"}`))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
