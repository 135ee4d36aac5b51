package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"vibeagent"
)

// InstrumentedOrchestrator wraps an Orchestrator with a tracing span and run metrics
// derived from the execution report.
type InstrumentedOrchestrator struct {
	inner  *Orchestrator
	tracer trace.Tracer
	meter  metric.Meter
}

var _ vibeagent.Orchestrator = (*InstrumentedOrchestrator)(nil)

func NewInstrumentedOrchestrator(inner *Orchestrator, tracer trace.Tracer, meter metric.Meter) *InstrumentedOrchestrator {
	return &InstrumentedOrchestrator{inner: inner, tracer: tracer, meter: meter}
}

// Run executes one orchestration with full instrumentation.
func (o *InstrumentedOrchestrator) Run(ctx context.Context, ic vibeagent.IntentContext) (vibeagent.Result, error) {
	ctx, span := o.tracer.Start(ctx, "InstrumentedOrchestrator.Run")
	defer span.End()

	runsCounter, _ := o.meter.Int64Counter("orchestrator_runs_total",
		metric.WithDescription("Total number of orchestration runs started"))
	runsFailedCounter, _ := o.meter.Int64Counter("orchestrator_runs_failed_total",
		metric.WithDescription("Total number of orchestration runs rejected before any stage ran"))
	fallbacksCounter, _ := o.meter.Int64Counter("stage_fallbacks_total",
		metric.WithDescription("Total number of stages that fell back to a heuristic"))
	llmCallsCounter, _ := o.meter.Int64Counter("llm_calls_total",
		metric.WithDescription("Total number of model calls"))
	llmFailuresCounter, _ := o.meter.Int64Counter("llm_calls_failed_total",
		metric.WithDescription("Total number of model stages that failed after retries"))
	providerCallsCounter, _ := o.meter.Int64Counter("provider_calls_total",
		metric.WithDescription("Total number of provider calls issued"))
	providerSkippedCounter, _ := o.meter.Int64Counter("provider_queries_skipped_total",
		metric.WithDescription("Total number of provider queries skipped by the budget"))
	venuesCounter, _ := o.meter.Int64Counter("venues_found_total",
		metric.WithDescription("Total number of venues returned by providers"))
	degradedCounter, _ := o.meter.Int64Counter("curations_degraded_total",
		metric.WithDescription("Total number of curations with unverified recommendations"))

	runDurationHist, _ := o.meter.Float64Histogram("orchestration_duration_seconds",
		metric.WithDescription("Total duration of an orchestration run in seconds"))
	stageDurationHist, _ := o.meter.Float64Histogram("stage_duration_seconds",
		metric.WithDescription("Duration of individual stages in seconds"))
	verificationRateHist, _ := o.meter.Float64Histogram("verification_rate",
		metric.WithDescription("Share of recommendations backed by at least one verified venue"))

	runsCounter.Add(ctx, 1)
	start := time.Now()

	res, err := o.inner.Run(ctx, ic)
	runDurationHist.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		runsFailedCounter.Add(ctx, 1)
		span.SetStatus(codes.Error, "Run rejected")
		span.RecordError(err)
		return res, err
	}

	rep := res.Report
	for _, s := range rep.Stages {
		attrs := metric.WithAttributes(attribute.String("stage", string(s.Stage)))
		stageDurationHist.Record(ctx, s.Duration.Seconds(), attrs)
		if s.Fallback {
			fallbacksCounter.Add(ctx, 1, metric.WithAttributes(
				attribute.String("stage", string(s.Stage)),
				attribute.String("error_kind", s.ErrorKind),
			))
		}
		span.AddEvent("Stage finished", trace.WithAttributes(
			attribute.String("stage", string(s.Stage)),
			attribute.Bool("fallback", s.Fallback),
			attribute.Int("attempts", s.Attempts),
			attribute.Int("output_size", s.OutputSize),
		))
	}

	llmCallsCounter.Add(ctx, int64(rep.LLM.Calls))
	llmFailuresCounter.Add(ctx, int64(rep.LLM.Failures))
	for name, n := range rep.Providers.ByName {
		providerCallsCounter.Add(ctx, int64(n), metric.WithAttributes(attribute.String("provider", name)))
	}
	providerSkippedCounter.Add(ctx, int64(rep.Providers.Skipped))
	venuesCounter.Add(ctx, int64(rep.Providers.Venues))
	verificationRateHist.Record(ctx, rep.VerificationRate)
	if res.Curation.Degraded {
		degradedCounter.Add(ctx, 1)
	}

	span.SetAttributes(
		attribute.String("run_id", rep.RunID),
		attribute.String("source", res.Curation.Source),
		attribute.Float64("diversity_score", rep.DiversityScore),
		attribute.Float64("confidence_score", rep.ConfidenceScore),
	)
	slog.Info("ORCHESTRATOR: Instrumented run recorded", "run_id", rep.RunID, "llm_calls", rep.LLM.Calls, "provider_calls", rep.Providers.Calls)
	return res, nil
}
