/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scheduler runs planning requests end to end: skeleton, edits,
// fill, validation, persistence and notification.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/friendsincode/wayfarer/internal/cache"
	"github.com/friendsincode/wayfarer/internal/catalog"
	"github.com/friendsincode/wayfarer/internal/clock"
	"github.com/friendsincode/wayfarer/internal/events"
	"github.com/friendsincode/wayfarer/internal/filler"
	"github.com/friendsincode/wayfarer/internal/itinerary"
	"github.com/friendsincode/wayfarer/internal/models"
	"github.com/friendsincode/wayfarer/internal/policy"
	"github.com/friendsincode/wayfarer/internal/scheduler/state"
	"github.com/friendsincode/wayfarer/internal/scheduling"
	"github.com/friendsincode/wayfarer/internal/skeleton"
	"github.com/friendsincode/wayfarer/internal/storage"
	"github.com/friendsincode/wayfarer/internal/telemetry"
	"github.com/friendsincode/wayfarer/internal/trips"
	"github.com/friendsincode/wayfarer/internal/weights"
)

// Operation names used in metrics, events and run history.
const (
	OpPrepareBasic = "prepare_basic"
	OpPrepare      = "prepare"
	OpReschedule   = "reschedule"
)

// ErrInvalidRequest indicates a request with missing or unparseable fields.
var ErrInvalidRequest = errors.New("invalid request")

// WeightStore loads and stores weight vectors.
type WeightStore interface {
	weights.Source
	Save(ctx context.Context, userID string, v weights.Vector) error
}

// CatalogCache holds per-profile candidate snapshots of a trip.
type CatalogCache interface {
	GetCatalog(ctx context.Context, userID, title, profile string, dest any) bool
	SetCatalog(ctx context.Context, userID, title, profile string, candidates any) error
	InvalidateCatalog(ctx context.Context, userID, title string) error
}

// Options tunes planning runs.
type Options struct {
	Depth        int
	BranchFactor int
	DayStart     clock.TimeOfDay
	DayEnd       clock.TimeOfDay
	RunTimeout   time.Duration
}

// DefaultOptions returns depth 3, K 5 and a 09:00-23:00 day.
func DefaultOptions() Options {
	return Options{
		Depth:        filler.DefaultDepth,
		BranchFactor: catalog.DefaultBranchFactor,
		DayStart:     clock.At(9, 0),
		DayEnd:       clock.At(23, 0),
		RunTimeout:   30 * time.Second,
	}
}

// PlanRequest asks for a new itinerary.
type PlanRequest struct {
	UserID        string `json:"-"`
	Title         string `json:"-"`
	Query         string `json:"query"`
	TravelMethod  int    `json:"travel_method"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	StartLocation string `json:"start_location"`
	EndLocation   string `json:"end_location"`
	Lodging       string `json:"lodging"`
	FocusMode     string `json:"focus_mode"`
	Profile       string `json:"profile"`
	Depth         int    `json:"depth,omitempty"`
	BranchFactor  int    `json:"branch_factor,omitempty"`
}

// RescheduleRequest edits and refills a stored itinerary.
type RescheduleRequest struct {
	UserID    string           `json:"-"`
	Title     string           `json:"-"`
	FocusMode string           `json:"focus_mode"`
	Profile   string           `json:"profile"`
	Edits     scheduling.Edits `json:"edits"`
	// RemergeAfterFill applies merges to the filled itinerary instead of
	// before the fill, so merged slots keep the filler's winner.
	RemergeAfterFill bool `json:"remerge_after_fill"`
	Depth            int  `json:"depth,omitempty"`
	BranchFactor     int  `json:"branch_factor,omitempty"`
}

// Result is the outcome of a run.
type Result struct {
	RunID      string                       `json:"run_id"`
	Operation  string                       `json:"operation"`
	Title      string                       `json:"title"`
	Revision   int                          `json:"revision"`
	Mode       policy.Mode                  `json:"mode"`
	Tables     itinerary.Record             `json:"tables"`
	Timeline   []itinerary.TimelineDay      `json:"timeline"`
	Filled     int                          `json:"filled"`
	Skipped    int                          `json:"skipped"`
	Decisions  []filler.Decision            `json:"decisions,omitempty"`
	Edits      *scheduling.Report           `json:"edits,omitempty"`
	Validation *scheduling.ValidationResult `json:"validation"`
	ArchiveKey string                       `json:"archive_key,omitempty"`

	Itinerary *itinerary.Itinerary `json:"-"`
}

// Service orchestrates planning runs.
type Service struct {
	places     *catalog.Store
	weights    WeightStore
	trips      *trips.Repository
	engine     *filler.Engine
	reconciler *scheduling.Reconciler
	validator  *scheduling.Validator
	annotator  catalog.Annotator
	cache      CatalogCache
	archive    *storage.Archive
	bus        events.Publisher
	runs       *state.Store
	opts       Options
	logger     zerolog.Logger
}

// New constructs the scheduler service.
func New(places *catalog.Store, w WeightStore, tripRepo *trips.Repository, engine *filler.Engine, opts Options, logger zerolog.Logger) *Service {
	def := DefaultOptions()
	if opts.Depth <= 0 {
		opts.Depth = def.Depth
	}
	if opts.BranchFactor <= 0 {
		opts.BranchFactor = def.BranchFactor
	}
	if opts.DayEnd <= opts.DayStart {
		opts.DayStart, opts.DayEnd = def.DayStart, def.DayEnd
	}
	logger = logger.With().Str("component", "scheduler").Logger()
	return &Service{
		places:     places,
		weights:    w,
		trips:      tripRepo,
		engine:     engine,
		reconciler: scheduling.NewReconciler(logger),
		validator:  scheduling.NewValidator(logger),
		annotator:  catalog.NopAnnotator{},
		cache:      cache.Disabled(logger),
		bus:        events.NewBus(),
		runs:       state.NewStore(),
		opts:       opts,
		logger:     logger,
	}
}

// SetCache sets the cache used for catalog snapshots.
func (s *Service) SetCache(c CatalogCache) {
	if c != nil {
		s.cache = c
	}
}

// SetAnnotator sets the affinity/aversion scoring client.
func (s *Service) SetAnnotator(a catalog.Annotator) {
	if a != nil {
		s.annotator = a
	}
}

// SetArchive enables snapshot archiving.
func (s *Service) SetArchive(a *storage.Archive) {
	s.archive = a
}

// SetBus sets the event publisher.
func (s *Service) SetBus(bus events.Publisher) {
	if bus != nil {
		s.bus = bus
	}
}

// Runs returns the run history.
func (s *Service) Runs() *state.Store {
	return s.runs
}

// Options returns the effective planner options.
func (s *Service) Options() Options {
	return s.opts
}

// IngestPlaces stores a batch of candidate places for a trip and drops the
// cached snapshot.
func (s *Service) IngestPlaces(ctx context.Context, userID, title string, batch []catalog.Ingest) (int, error) {
	if userID == "" || title == "" {
		return 0, fmt.Errorf("%w: user and title are required", ErrInvalidRequest)
	}
	n, err := s.places.Save(ctx, userID, title, batch)
	if err != nil {
		return 0, err
	}
	if err := s.cache.InvalidateCatalog(ctx, userID, title); err != nil {
		s.logger.Debug().Err(err).Str("trip", title).Msg("catalog cache invalidation failed")
	}
	s.bus.Publish(events.EventCatalogIngested, events.Payload{
		"user_id": userID,
		"title":   title,
		"count":   n,
	})
	return n, nil
}

// SaveWeights stores a user's weight vector.
func (s *Service) SaveWeights(ctx context.Context, userID string, v weights.Vector) error {
	if userID == "" {
		return fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}
	if err := s.weights.Save(ctx, userID, v); err != nil {
		return err
	}
	s.bus.Publish(events.EventWeightsUpdated, events.Payload{"user_id": userID})
	return nil
}

// PrepareBasic compiles and stores the empty skeleton.
func (s *Service) PrepareBasic(ctx context.Context, req PlanRequest) (*Result, error) {
	return s.run(ctx, OpPrepareBasic, req.UserID, req.Title, func(ctx context.Context, rc *runContext) error {
		tr, err := s.tripRequest(req)
		if err != nil {
			return err
		}
		it, err := traced(ctx, "skeleton", func(ctx context.Context) (*itinerary.Itinerary, error) {
			return s.planner(req.UserID, req.Title).Compile(ctx, tr)
		})
		if err != nil {
			return err
		}
		rc.mode = policy.ParseMode(req.FocusMode)
		rc.itinerary = it
		rc.trip = tripFromRequest(req, rc.mode)
		return nil
	})
}

// Prepare compiles the skeleton and fills it.
func (s *Service) Prepare(ctx context.Context, req PlanRequest) (*Result, error) {
	return s.run(ctx, OpPrepare, req.UserID, req.Title, func(ctx context.Context, rc *runContext) error {
		tr, err := s.tripRequest(req)
		if err != nil {
			return err
		}
		rc.mode = policy.ParseMode(req.FocusMode)

		var (
			skel *itinerary.Itinerary
			cat  *catalog.Catalog
			w    weights.Vector
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			skel, err = traced(gctx, "skeleton", func(ctx context.Context) (*itinerary.Itinerary, error) {
				return s.planner(req.UserID, req.Title).Compile(ctx, tr)
			})
			return err
		})
		g.Go(func() error {
			var err error
			cat, err = traced(gctx, "catalog", func(ctx context.Context) (*catalog.Catalog, error) {
				return s.loadCatalog(ctx, rc.logger, req.UserID, req.Title, req.Profile)
			})
			return err
		})
		g.Go(func() error {
			var err error
			w, err = traced(gctx, "weights", func(ctx context.Context) (weights.Vector, error) {
				return s.weights.Load(ctx, req.UserID)
			})
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		res, err := s.fill(ctx, filler.FillRequest{
			Itinerary:    skel,
			Catalog:      cat,
			Weights:      w,
			Mode:         rc.mode,
			Depth:        pick(req.Depth, s.opts.Depth),
			BranchFactor: pick(req.BranchFactor, s.opts.BranchFactor),
			Consumed:     trips.ConsumedSeed(skel, cat),
		})
		if err != nil {
			return err
		}
		rc.fill = &res
		rc.itinerary = res.Itinerary
		rc.trip = tripFromRequest(req, rc.mode)
		return nil
	})
}

// Reschedule applies edits to the stored itinerary and refills it.
func (s *Service) Reschedule(ctx context.Context, req RescheduleRequest) (*Result, error) {
	return s.run(ctx, OpReschedule, req.UserID, req.Title, func(ctx context.Context, rc *runContext) error {
		if err := s.reconciler.Validate(req.Edits); err != nil {
			return err
		}

		var (
			trip *models.Trip
			base *itinerary.Itinerary
		)
		_, err := traced(ctx, "load", func(ctx context.Context) (struct{}, error) {
			var err error
			trip, base, err = s.trips.LoadItinerary(ctx, req.UserID, req.Title)
			return struct{}{}, err
		})
		switch {
		case errors.Is(err, trips.ErrTripNotFound) && len(req.Edits.Overlay) > 0:
			trip = &models.Trip{UserID: req.UserID, Title: req.Title}
			base = &itinerary.Itinerary{}
		case err != nil:
			return err
		}

		mode := req.FocusMode
		if mode == "" {
			mode = trip.FocusMode
		}
		rc.mode = policy.ParseMode(mode)

		var (
			cat *catalog.Catalog
			w   weights.Vector
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			cat, err = traced(gctx, "catalog", func(ctx context.Context) (*catalog.Catalog, error) {
				return s.loadCatalog(ctx, rc.logger, req.UserID, req.Title, req.Profile)
			})
			return err
		})
		g.Go(func() error {
			var err error
			w, err = traced(gctx, "weights", func(ctx context.Context) (weights.Vector, error) {
				return s.weights.Load(ctx, req.UserID)
			})
			return err
		})
		if err := g.Wait(); err != nil {
			return err
		}

		edits := req.Edits
		deferred := req.RemergeAfterFill && len(edits.Overlay) == 0 && len(edits.Merges) > 0
		if deferred {
			edits.Merges = nil
		}
		var report scheduling.Report
		edited, err := traced(ctx, "reconcile", func(context.Context) (*itinerary.Itinerary, error) {
			out, r, err := s.reconciler.Apply(base, edits)
			report = r
			return out, err
		})
		if err != nil {
			return err
		}

		res, err := s.fill(ctx, filler.FillRequest{
			Itinerary:    edited,
			Catalog:      cat,
			Weights:      w,
			Mode:         rc.mode,
			Depth:        pick(req.Depth, s.opts.Depth),
			BranchFactor: pick(req.BranchFactor, s.opts.BranchFactor),
			Consumed:     trips.ConsumedSeed(edited, cat),
		})
		if err != nil {
			return err
		}

		final := res.Itinerary
		if deferred {
			var n int
			merged, err := traced(ctx, "remerge", func(context.Context) (*itinerary.Itinerary, error) {
				out, count, err := s.reconciler.ApplyMerges(final, req.Edits.Merges)
				n = count
				return out, err
			})
			if err != nil {
				return err
			}
			final = merged
			report.Merged += n
		}

		trip.FocusMode = string(rc.mode)
		rc.trip = trip
		rc.fill = &res
		rc.report = &report
		rc.itinerary = final
		return nil
	})
}

// runContext carries what a run body produced.
type runContext struct {
	runID     string
	logger    zerolog.Logger
	mode      policy.Mode
	itinerary *itinerary.Itinerary
	trip      *models.Trip
	fill      *filler.FillResult
	report    *scheduling.Report
}

// run wraps a body with the deadline, span, validation, persistence,
// archiving, publishing and metrics shared by every operation.
func (s *Service) run(ctx context.Context, op, userID, title string, body func(context.Context, *runContext) error) (*Result, error) {
	started := time.Now()
	rc := &runContext{runID: uuid.NewString()}
	logger := s.logger.With().Str("run_id", rc.runID).Str("operation", op).Str("trip", title).Logger()
	rc.logger = logger

	if s.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RunTimeout)
		defer cancel()
	}
	ctx, span := telemetry.StartRun(ctx, op, rc.runID, userID, title)

	result, err := s.execute(ctx, op, userID, title, rc, body, logger)

	duration := time.Since(started)
	telemetry.PlanRunDuration.WithLabelValues(op).Observe(duration.Seconds())
	record := state.RunRecord{
		RunID:      rc.runID,
		UserID:     userID,
		Title:      title,
		Operation:  op,
		Mode:       string(rc.mode),
		Duration:   duration,
		FinishedAt: time.Now().UTC(),
	}

	if err != nil {
		telemetry.EndRun(span, err)
		telemetry.PlanRunsTotal.WithLabelValues(op, "error").Inc()
		record.Outcome, record.Error = "error", err.Error()
		s.runs.Add(record)
		s.bus.Publish(events.EventItineraryFailed, events.Payload{
			"run_id":    rc.runID,
			"user_id":   userID,
			"title":     title,
			"operation": op,
			"error":     err.Error(),
		})
		logger.Warn().Err(err).Dur("duration", duration).Msg("planning run failed")
		return nil, err
	}

	telemetry.PlanRunsTotal.WithLabelValues(op, "ok").Inc()
	telemetry.EndRun(span, nil,
		telemetry.AttrMode.String(string(result.Mode)),
		telemetry.AttrFilled.Int(result.Filled),
		telemetry.AttrSkipped.Int(result.Skipped),
		telemetry.AttrRevision.Int(result.Revision),
	)
	record.Outcome = "ok"
	record.Revision, record.Filled, record.Skipped = result.Revision, result.Filled, result.Skipped
	s.runs.Add(record)

	logger.Info().
		Str("mode", string(result.Mode)).
		Int("filled", result.Filled).
		Int("skipped", result.Skipped).
		Int("revision", result.Revision).
		Dur("duration", duration).
		Msg("planning run complete")
	return result, nil
}

func (s *Service) execute(ctx context.Context, op, userID, title string, rc *runContext, body func(context.Context, *runContext) error, logger zerolog.Logger) (*Result, error) {
	if userID == "" || title == "" {
		return nil, fmt.Errorf("%w: user and title are required", ErrInvalidRequest)
	}
	if err := body(ctx, rc); err != nil {
		return nil, err
	}

	_, endValidate := telemetry.StartStage(ctx, "validate")
	validation := s.validator.Validate(rc.itinerary)
	endValidate(nil)
	for _, v := range validation.Errors {
		telemetry.ValidationErrorsTotal.WithLabelValues(string(v.RuleType)).Inc()
	}
	if !validation.Valid {
		// Reported, not fatal: partial itineraries are legitimate output.
		logger.Warn().Str("summary", validation.Summary()).Msg("itinerary failed validation")
	}

	rc.trip.UserID, rc.trip.Title = userID, title
	rc.trip.Tables = rc.itinerary.Record()
	persistCtx, endPersist := telemetry.StartStage(ctx, "persist")
	err := s.trips.Save(persistCtx, rc.trip)
	endPersist(err)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:      rc.runID,
		Operation:  op,
		Title:      title,
		Revision:   rc.trip.Revision,
		Mode:       rc.mode,
		Tables:     rc.trip.Tables,
		Timeline:   itinerary.Timeline(rc.trip.Tables),
		Edits:      rc.report,
		Validation: validation,
		Itinerary:  rc.itinerary,
	}
	if rc.fill != nil {
		result.Filled, result.Skipped = rc.fill.Filled, rc.fill.Skipped
		result.Decisions = rc.fill.Decisions
		telemetry.SlotsFilledTotal.Add(float64(rc.fill.Filled))
		telemetry.SlotsSkippedTotal.Add(float64(rc.fill.Skipped))
		telemetry.LookaheadEvaluations.Observe(float64(rc.fill.Evaluated))
	}

	if s.archive != nil {
		key, err := traced(ctx, "archive", func(ctx context.Context) (string, error) {
			return s.archiveSnapshot(ctx, op, userID, result)
		})
		if err != nil {
			logger.Warn().Err(err).Msg("snapshot archive failed")
		} else {
			result.ArchiveKey = key
		}
	}

	eventType := events.EventItineraryPlanned
	if op == OpReschedule {
		eventType = events.EventItineraryRescheduled
	}
	s.bus.Publish(eventType, events.Payload{
		"run_id":    rc.runID,
		"user_id":   userID,
		"title":     title,
		"operation": op,
		"mode":      string(rc.mode),
		"revision":  result.Revision,
		"filled":    result.Filled,
		"skipped":   result.Skipped,
	})
	return result, nil
}

// fill runs the filler inside a stage span tagged with the search limits.
func (s *Service) fill(ctx context.Context, req filler.FillRequest) (filler.FillResult, error) {
	ctx, end := telemetry.StartStage(ctx, "fill",
		telemetry.AttrDepth.Int(req.Depth),
		telemetry.AttrBranch.Int(req.BranchFactor),
	)
	res, err := s.engine.Fill(ctx, req)
	end(err)
	return res, err
}

// traced runs fn inside a stage span.
func traced[T any](ctx context.Context, stage string, fn func(context.Context) (T, error)) (T, error) {
	ctx, end := telemetry.StartStage(ctx, stage)
	v, err := fn(ctx)
	end(err)
	return v, err
}

func (s *Service) archiveSnapshot(ctx context.Context, op, userID string, result *Result) (string, error) {
	tables, err := json.Marshal(result.Tables)
	if err != nil {
		return "", fmt.Errorf("encode tables: %w", err)
	}
	return s.archive.Save(ctx, storage.Snapshot{
		UserID:    userID,
		Title:     result.Title,
		Revision:  result.Revision,
		Operation: op,
		RunID:     result.RunID,
		Mode:      string(result.Mode),
		Tables:    tables,
	})
}

// loadCatalog reads the trip's candidates from cache or store. Freshly
// fetched candidates are annotated for profile and their scores written
// back. Snapshots are cached per profile.
func (s *Service) loadCatalog(ctx context.Context, logger zerolog.Logger, userID, title, profile string) (*catalog.Catalog, error) {
	var cached []catalog.Candidate
	if s.cache.GetCatalog(ctx, userID, title, profile, &cached) {
		return catalog.New(cached), nil
	}

	candidates, err := s.places.Fetch(ctx, userID, title)
	if err != nil {
		return nil, err
	}
	if _, nop := s.annotator.(catalog.NopAnnotator); !nop && len(candidates) > 0 {
		candidates = s.annotator.Annotate(ctx, candidates, profile)
		if err := s.places.SaveScores(ctx, userID, title, candidates); err != nil {
			logger.Warn().Err(err).Msg("failed to store annotation scores")
		}
	}
	if err := s.cache.SetCatalog(ctx, userID, title, profile, candidates); err != nil {
		logger.Debug().Err(err).Msg("catalog cache write failed")
	}
	return catalog.New(candidates), nil
}

func (s *Service) planner(userID, title string) *skeleton.Planner {
	return skeleton.NewPlanner(s.places.Resolver(userID, title), s.logger).WithDayWindow(s.opts.DayStart, s.opts.DayEnd)
}

func (s *Service) tripRequest(req PlanRequest) (skeleton.TripRequest, error) {
	tr := skeleton.TripRequest{
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		FirstDayStart: s.opts.DayStart,
		LastDayEnd:    s.opts.DayEnd,
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
		Lodging:       req.Lodging,
	}
	if req.StartTime != "" {
		t, err := clock.Parse(req.StartTime)
		if err != nil {
			return tr, fmt.Errorf("%w: start_time: %v", ErrInvalidRequest, err)
		}
		tr.FirstDayStart = t
	}
	if req.EndTime != "" {
		t, err := clock.Parse(req.EndTime)
		if err != nil {
			return tr, fmt.Errorf("%w: end_time: %v", ErrInvalidRequest, err)
		}
		tr.LastDayEnd = t
	}
	return tr, nil
}

func tripFromRequest(req PlanRequest, mode policy.Mode) *models.Trip {
	return &models.Trip{
		UserID:        req.UserID,
		Title:         req.Title,
		Query:         req.Query,
		TravelMethod:  req.TravelMethod,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		StartLocation: req.StartLocation,
		EndLocation:   req.EndLocation,
		Lodging:       req.Lodging,
		FocusMode:     string(mode),
	}
}

func pick(override, def int) int {
	if override > 0 {
		return override
	}
	return def
}
