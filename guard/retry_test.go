package guard

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 10*time.Second, p.Delay(8))
	assert.Equal(t, time.Second, p.Delay(-1))
}

type recordedSleep struct {
	delays []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestRetry(t *testing.T) {
	tests := []struct {
		name         string
		errs         []error
		wantErr      error
		wantAttempts int
		wantDelays   []time.Duration
	}{
		{
			name:         "first try succeeds",
			wantAttempts: 1,
		},
		{
			name:         "transient failures then success",
			errs:         []error{errors.New("request timeout"), errors.New("connection reset by peer")},
			wantAttempts: 3,
			wantDelays:   []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:         "budget errors abort immediately",
			errs:         []error{NewError(KindToolBudget, "no quota", nil)},
			wantErr:      ErrToolBudget,
			wantAttempts: 1,
		},
		{
			name:         "validation errors are not retried",
			errs:         []error{NewError(KindValidation, "bad shape", nil)},
			wantErr:      ErrValidation,
			wantAttempts: 1,
		},
		{
			name: "retries exhausted",
			errs: []error{
				errors.New("429 too many requests"),
				errors.New("429 too many requests"),
				errors.New("429 too many requests"),
			},
			wantErr:      ErrRateLimit,
			wantAttempts: 3,
			wantDelays:   []time.Duration{time.Second, 2 * time.Second},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordedSleep{}
			calls := 0
			out, stats, err := Retry(context.Background(), "test", DefaultRetryPolicy(), rec.sleep, func(ctx context.Context) (string, error) {
				calls++
				if calls <= len(tt.errs) {
					return "", tt.errs[calls-1]
				}
				return "done", nil
			})

			assert.Equal(t, tt.wantAttempts, stats.Attempts)
			assert.Equal(t, tt.wantDelays, stats.Delays)
			assert.Equal(t, tt.wantDelays, rec.delays)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, out)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "done", out)
		})
	}
}

func TestRetryStopsWhenSleepIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, stats, err := Retry(ctx, "test", DefaultRetryPolicy(), Sleep, func(ctx context.Context) (int, error) {
		return 0, errors.New("network unreachable")
	})
	require.Error(t, err)
	assert.Equal(t, 1, stats.Attempts)
}

func TestClassify(t *testing.T) {
	var syntaxErr error
	{
		var v any
		syntaxErr = json.Unmarshal([]byte("{"), &v)
	}

	tests := []struct {
		name          string
		err           error
		wantKind      Kind
		wantRetryable bool
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout, true},
		{"json syntax", syntaxErr, KindParse, true},
		{"net op error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetwork, true},
		{"rate limit message", errors.New("status 429"), KindRateLimit, true},
		{"throttled", errors.New("ThrottlingException: slow down"), KindRateLimit, true},
		{"connection refused", errors.New("dial tcp: connection refused"), KindNetwork, true},
		{"schema message", errors.New("schema mismatch"), KindValidation, false},
		{"unknown", errors.New("boom"), KindUnknown, false},
		{"existing guard error", NewError(KindHallucination, "made up", nil), KindHallucination, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.wantRetryable, got.Retryable)
		})
	}

	assert.Nil(t, Classify(nil))
}
