package providers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"vibeagent"
	"vibeagent/guard"
)

type ResilienceOptions struct {
	RequestsPerSecond float64
	Burst             int
	// BreakerFailures is the number of consecutive failures that opens the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

func ResilienceFromConfig(cfg vibeagent.ProviderConfig) ResilienceOptions {
	return ResilienceOptions{
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		BreakerFailures:   cfg.BreakerFailures,
		BreakerCooldown:   cfg.BreakerCooldown,
	}
}

// Resilient rate limits a provider and stops calling it while it keeps failing.
type Resilient struct {
	Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]vibeagent.VerifiedVenue]
}

func NewResilient(p Provider, opts ResilienceOptions) *Resilient {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := max(opts.Burst, 1)
	failures := opts.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[[]vibeagent.VerifiedVenue](gobreaker.Settings{
		Name:        "provider-" + p.Name(),
		MaxRequests: 1,
		Timeout:     opts.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about the provider's health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("PROVIDER: breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Resilient{
		Provider: p,
		limiter:  rate.NewLimiter(limit, burst),
		breaker:  breaker,
	}
}

func (r *Resilient) Query(ctx context.Context, q vibeagent.ProviderQuery) ([]vibeagent.VerifiedVenue, error) {
	ctx, span := otel.Tracer(vibeagent.TracerNameProviders).Start(ctx, "provider.query",
		trace.WithAttributes(
			attribute.String("provider", r.Name()),
			attribute.Int("radius_meters", q.RadiusMeters),
		))
	defer span.End()

	if err := r.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter wait failed")
		return nil, guard.Classify(err)
	}

	venues, err := r.breaker.Execute(func() ([]vibeagent.VerifiedVenue, error) {
		return r.Provider.Query(ctx, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &guard.Error{
			Kind:    guard.KindNetwork,
			Message: r.Name() + " circuit open",
			Context: map[string]any{"provider": r.Name(), "state": r.breaker.State().String()},
			Err:     err,
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider query failed")
		return nil, err
	}

	span.SetAttributes(attribute.Int("venues", len(venues)))
	return venues, nil
}

// State reports the breaker state, for tests and diagnostics.
func (r *Resilient) State() gobreaker.State {
	return r.breaker.State()
}
