/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// PlannerTracer is the instrumentation scope of planning runs.
const PlannerTracer = "wayfarer/planner"

// Span attribute keys shared by planning runs and their stages.
const (
	AttrRunID     = attribute.Key("wayfarer.run.id")
	AttrOperation = attribute.Key("wayfarer.run.operation")
	AttrUserID    = attribute.Key("wayfarer.user.id")
	AttrTrip      = attribute.Key("wayfarer.trip.title")
	AttrMode      = attribute.Key("wayfarer.plan.mode")
	AttrStage     = attribute.Key("wayfarer.plan.stage")
	AttrFilled    = attribute.Key("wayfarer.plan.filled")
	AttrSkipped   = attribute.Key("wayfarer.plan.skipped")
	AttrRevision  = attribute.Key("wayfarer.plan.revision")
	AttrDepth     = attribute.Key("wayfarer.planner.depth")
	AttrBranch    = attribute.Key("wayfarer.planner.branch_factor")
)

// TracerConfig contains configuration for OpenTelemetry tracing.
type TracerConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string // host:port of the collector's gRPC receiver
	Enabled        bool
	SampleRate     float64

	// Planner defaults recorded on the resource so traces from differently
	// tuned deployments can be told apart.
	Depth        int
	BranchFactor int
}

// TracerProvider owns the SDK provider so it can be flushed on shutdown.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	logger   zerolog.Logger
}

// InitTracer installs the global tracer provider. A disabled config installs
// a no-op provider so spans cost nothing.
func InitTracer(ctx context.Context, cfg TracerConfig, logger zerolog.Logger) (*TracerProvider, error) {
	logger = logger.With().Str("component", "tracing").Logger()
	if !cfg.Enabled {
		logger.Info().Msg("tracing disabled")
		otel.SetTracerProvider(noop.NewTracerProvider())
		return &TracerProvider{logger: logger}, nil
	}

	res, err := plannerResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		otlptracegrpc.WithTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(ratioSampler(cfg.SampleRate))),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.Info().
		Str("otlp_endpoint", cfg.OTLPEndpoint).
		Float64("sample_rate", cfg.SampleRate).
		Int("depth", cfg.Depth).
		Int("branch_factor", cfg.BranchFactor).
		Msg("tracing initialized")

	return &TracerProvider{provider: tp, logger: logger}, nil
}

func plannerResource(ctx context.Context, cfg TracerConfig) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if cfg.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(cfg.Environment))
	}
	if cfg.Depth > 0 {
		attrs = append(attrs, AttrDepth.Int(cfg.Depth))
	}
	if cfg.BranchFactor > 0 {
		attrs = append(attrs, AttrBranch.Int(cfg.BranchFactor))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...), resource.WithHost())
}

func ratioSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// Shutdown flushes buffered spans.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := tp.provider.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	tp.logger.Info().Msg("tracer provider shut down")
	return nil
}

// StartRun opens the root span of a planning run.
func StartRun(ctx context.Context, op, runID, userID, title string) (context.Context, trace.Span) {
	return otel.Tracer(PlannerTracer).Start(ctx, "planner."+op,
		trace.WithAttributes(
			AttrOperation.String(op),
			AttrRunID.String(runID),
			AttrUserID.String(userID),
			AttrTrip.String(title),
		),
	)
}

// EndRun records the run outcome on span and ends it.
func EndRun(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	markError(span, err)
	span.End()
}

// StartStage opens a child span for one stage of a run. The returned func
// ends the span and observes the stage latency, recording err when set.
func StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := otel.Tracer(PlannerTracer).Start(ctx, "planner.stage."+stage,
		trace.WithAttributes(append(attrs, AttrStage.String(stage))...),
	)
	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		PlanStageDuration.WithLabelValues(stage, outcome).Observe(time.Since(started).Seconds())
		markError(span, err)
		span.End()
	}
}

func markError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
