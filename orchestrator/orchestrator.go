// Package orchestrator runs the Propose, Plan, Verify and Curate stages of a
// recommendation run. Every model answer passes through the guards before it is
// used, and every stage that depends on the model has a deterministic fallback, so
// a run always ends with a structurally valid curation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vibeagent"
	"vibeagent/aggregate"
	"vibeagent/guard"
	"vibeagent/providers"
	"vibeagent/weather"
)

type Options struct {
	Budget             guard.BudgetLimits
	Retry              guard.RetryPolicy
	Sleep              guard.SleepFunc
	MaxConcurrent      int
	TimeoutPerCall     time.Duration
	StageTimeout       time.Duration
	MaxTokens          int32
	MaxRecommendations int
	MaxDistanceKm      float64
	MaxTravelMinutes   float64
	Challenges         aggregate.ChallengeTable
	// Tracker is shared across runs when set; otherwise each run gets its own.
	Tracker *guard.FailureTracker
	Logger  vibeagent.RunLogger
	Now     func() time.Time
	NewID   func() string
}

// DefaultOptions mirrors the environment defaults.
func DefaultOptions() Options {
	return Options{
		Budget:             guard.DefaultBudgetLimits(),
		Retry:              guard.DefaultRetryPolicy(),
		MaxConcurrent:      4,
		TimeoutPerCall:     10 * time.Second,
		StageTimeout:       45 * time.Second,
		MaxRecommendations: aggregate.DefaultMaxRecommendations,
		MaxDistanceKm:      150,
		MaxTravelMinutes:   180,
	}
}

// OptionsFromConfig assembles options from the decoded environment.
func OptionsFromConfig(agent vibeagent.AgentConfig, budget vibeagent.BudgetConfig, retry vibeagent.RetryConfig, model vibeagent.ModelConfig) Options {
	opts := DefaultOptions()
	opts.Budget = guard.LimitsFromConfig(budget)
	opts.Retry = guard.PolicyFromConfig(retry)
	opts.MaxConcurrent = budget.MaxConcurrent
	opts.TimeoutPerCall = budget.TimeoutPerCall
	opts.StageTimeout = agent.StageTimeout
	opts.MaxTokens = model.MaxTokens
	opts.MaxRecommendations = agent.MaxRecommendations
	opts.MaxDistanceKm = agent.MaxDistanceKm
	opts.MaxTravelMinutes = agent.MaxTravelMinutes
	return opts
}

type Orchestrator struct {
	model     vibeagent.ModelClient
	providers providers.Registry
	opts      Options
}

var _ vibeagent.Orchestrator = (*Orchestrator)(nil)

func New(model vibeagent.ModelClient, registry providers.Registry, opts Options) *Orchestrator {
	if opts.Sleep == nil {
		opts.Sleep = guard.Sleep
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.MaxRecommendations <= 0 || opts.MaxRecommendations > aggregate.DefaultMaxRecommendations {
		opts.MaxRecommendations = aggregate.DefaultMaxRecommendations
	}
	if opts.Challenges == nil {
		opts.Challenges = aggregate.DefaultChallengeTable()
	}
	if opts.Logger == nil {
		opts.Logger = vibeagent.NewNoOpRunLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Orchestrator{model: model, providers: registry, opts: opts}
}

// run is the state of one orchestration.
type run struct {
	*Orchestrator
	ic      vibeagent.IntentContext
	hints   weather.Hints
	tracker *guard.FailureTracker
	report  vibeagent.ExecutionReport
	state   vibeagent.Stage
}

// Run executes one orchestration. It returns an error only when the context is
// invalid or ctx is already done; every later failure degrades to a fallback.
func (o *Orchestrator) Run(ctx context.Context, ic vibeagent.IntentContext) (vibeagent.Result, error) {
	if err := ic.Validate(); err != nil {
		return vibeagent.Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return vibeagent.Result{}, fmt.Errorf("run not started: %w", err)
	}
	if ic.RunID == "" {
		ic.RunID = o.opts.NewID()
	}

	ctx, span := otel.Tracer(vibeagent.TracerNameOrchestrator).Start(ctx, "Orchestrator.Run",
		trace.WithAttributes(attribute.String("run_id", ic.RunID)))
	defer span.End()

	tracker := o.opts.Tracker
	if tracker == nil {
		tracker = guard.NewFailureTracker()
	}

	r := &run{
		Orchestrator: o,
		ic:           ic,
		hints:        weather.BuildHints(ic.Catalog.Subtypes(), ic.WeatherByRegion),
		tracker:      tracker,
		state:        vibeagent.StageIdle,
		report: vibeagent.ExecutionReport{
			RunID:     ic.RunID,
			StartedAt: o.opts.Now(),
			Providers: vibeagent.ProviderStats{ByName: map[string]int{}},
		},
	}

	slog.Info("ORCHESTRATOR: Starting run", "run_id", ic.RunID, "vibe_len", len(ic.Vibe), "catalog_entries", len(ic.Catalog.Entries))

	intents := r.propose(ctx)
	plan := r.plan(ctx, intents)
	results := r.verify(ctx, plan)
	byIntent, found := r.aggregate(intents, results)
	curation := r.curate(ctx, intents, byIntent, found)

	r.transition(vibeagent.StageDone)
	r.report.FinalState = r.state
	r.report.Duration = o.opts.Now().Sub(r.report.StartedAt)
	r.report.VerificationRate, r.report.DiversityScore, r.report.ConfidenceScore = vibeagent.QualityMetrics(curation)

	span.SetAttributes(
		attribute.Int("recommendations", len(curation.Recommendations)),
		attribute.String("source", curation.Source),
		attribute.Bool("degraded", curation.Degraded),
		attribute.Int("fallbacks", r.report.FallbackCount()),
	)
	slog.Info("ORCHESTRATOR: Run complete",
		"run_id", ic.RunID,
		"source", curation.Source,
		"recommendations", len(curation.Recommendations),
		"fallbacks", r.report.FallbackCount(),
		"duration_ms", r.report.Duration.Milliseconds(),
	)

	return vibeagent.Result{Curation: curation, Report: r.report}, nil
}

func (r *run) transition(to vibeagent.Stage) {
	slog.Debug("ORCHESTRATOR: transition", "run_id", r.ic.RunID, "from", r.state, "to", to)
	r.state = to
}

func (r *run) record(sr vibeagent.StageReport) {
	r.report.Stages = append(r.report.Stages, sr)
}

func (r *run) logStage(entry vibeagent.StageLog) {
	entry.RunID = r.ic.RunID
	entry.Timestamp = r.opts.Now()
	if err := r.opts.Logger.LogStage(entry); err != nil {
		slog.Warn("ORCHESTRATOR: failed to log stage", "stage", entry.Stage, "error", err)
	}
}

// modelCall is one model-backed stage attempt.
type modelCall[T any] struct {
	stage    vibeagent.Stage
	request  vibeagent.StructuredRequest
	validate func(raw string) (guard.Validated[T], error)
}

// modelOutcome carries what the stage report and stage log need.
type modelOutcome struct {
	raw      string
	attempts int
	err      *guard.Error
}

// callModel asks the model under the retry policy. Validation runs inside the
// retried operation, so malformed output is retried and contract violations are not.
func callModel[T any](ctx context.Context, r *run, c modelCall[T]) (guard.Validated[T], modelOutcome) {
	var out modelOutcome
	if r.tracker.ShouldFallback(string(c.stage)) {
		out.err = guard.NewError(guard.KindUnknown, "stage short-circuited after repeated failures", map[string]any{"stage": c.stage})
		return guard.Validated[T]{}, out
	}

	if r.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.StageTimeout)
		defer cancel()
	}

	v, stats, err := guard.Retry(ctx, string(c.stage), r.opts.Retry, r.opts.Sleep, func(ctx context.Context) (guard.Validated[T], error) {
		r.report.LLM.Calls++
		raw, err := r.model.CompleteStructured(ctx, c.request)
		if err != nil {
			return guard.Validated[T]{}, err
		}
		out.raw = raw
		return c.validate(raw)
	})
	out.attempts = stats.Attempts
	r.report.LLM.Retries += stats.Attempts - 1
	if err != nil {
		r.report.LLM.Failures++
		r.tracker.RecordError(string(c.stage))
		out.err = guard.Classify(err)
		return guard.Validated[T]{}, out
	}
	r.tracker.RecordSuccess(string(c.stage))
	return v, out
}

// finishModelStage records the report and log entry of a model-backed stage.
func (r *run) finishModelStage(stage vibeagent.Stage, started time.Time, req vibeagent.StructuredRequest, out modelOutcome, fallback bool, warnings []string, repaired bool, size int) {
	sr := vibeagent.StageReport{
		Stage:      stage,
		Success:    out.err == nil && !fallback,
		Fallback:   fallback,
		Duration:   r.opts.Now().Sub(started),
		Warnings:   warnings,
		Repaired:   repaired,
		Attempts:   out.attempts,
		OutputSize: size,
	}
	entry := vibeagent.StageLog{
		Stage:     stage,
		LLMInput:  req.UserPrompt,
		LLMOutput: out.raw,
		Fallback:  fallback,
		Warnings:  warnings,
	}
	if out.err != nil {
		sr.Error = out.err.Error()
		sr.ErrorKind = string(out.err.Kind)
		entry.Error = out.err.Error()
	}
	if fallback {
		r.tracker.RecordFallback(string(stage))
		slog.Warn("ORCHESTRATOR: stage fell back", "run_id", r.ic.RunID, "stage", stage, "error", sr.Error, "kind", sr.ErrorKind)
	}
	r.record(sr)
	r.logStage(entry)
}

// errorKind is the guard kind of err, or empty.
func errorKind(err error) string {
	var gerr *guard.Error
	if errors.As(err, &gerr) {
		return string(gerr.Kind)
	}
	return ""
}
