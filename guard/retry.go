package guard

import (
	"context"
	"log/slog"
	"math"
	"time"

	"vibeagent"
)

// RetryPolicy is a bounded exponential backoff.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		Multiplier: 2,
		MaxDelay:   10 * time.Second,
	}
}

// Delay is min(base*multiplier^attempt, max) for a zero-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RetryStats reports what Retry did.
type RetryStats struct {
	Attempts int
	Delays   []time.Duration
}

// Retry runs op until it succeeds, fails with a non-retryable error, or runs out of
// retries. The returned error is always a *Error.
func Retry[T any](ctx context.Context, label string, p RetryPolicy, sleep SleepFunc, op func(ctx context.Context) (T, error)) (T, RetryStats, error) {
	if sleep == nil {
		sleep = Sleep
	}

	var zero T
	var stats RetryStats
	for attempt := 0; ; attempt++ {
		stats.Attempts++
		out, err := op(ctx)
		if err == nil {
			return out, stats, nil
		}

		gerr := Classify(err)
		if !gerr.Retryable {
			slog.Warn("GUARD: retry_aborted", "operation", label, "reason", "non_retryable_error", "kind", gerr.Kind, "attempt", attempt+1)
			return zero, stats, gerr
		}
		if attempt >= p.MaxRetries {
			slog.Warn("GUARD: retry_aborted", "operation", label, "reason", "retries_exhausted", "kind", gerr.Kind, "attempt", attempt+1)
			return zero, stats, gerr
		}

		delay := p.Delay(attempt)
		stats.Delays = append(stats.Delays, delay)
		slog.Info("GUARD: retry_attempt", "operation", label, "kind", gerr.Kind, "attempt", attempt+1, "delay_ms", delay.Milliseconds())

		if serr := sleep(ctx, delay); serr != nil {
			return zero, stats, Classify(serr)
		}
	}
}

func PolicyFromConfig(cfg vibeagent.RetryConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		Multiplier: cfg.Multiplier,
		MaxDelay:   cfg.MaxDelay,
	}
}
