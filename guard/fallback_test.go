package guard

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldFallback(t *testing.T) {
	tests := []struct {
		errors int
		rate   float64
		want   bool
	}{
		{0, 0, false},
		{10, 0, false},
		{11, 0, true},
		{6, 0.81, true},
		{6, 0.8, false},
		{5, 0.99, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShouldFallback(tt.errors, tt.rate), "errors=%d rate=%v", tt.errors, tt.rate)
	}
}

func TestFailureTracker(t *testing.T) {
	tr := NewFailureTracker()
	assert.False(t, tr.ShouldFallback("propose"))

	var wg sync.WaitGroup
	for range 11 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordError("propose")
			tr.RecordFallback("propose")
		}()
	}
	tr.RecordSuccess("plan")
	wg.Wait()

	assert.True(t, tr.ShouldFallback("propose"))
	assert.False(t, tr.ShouldFallback("plan"))

	snap := tr.Snapshot()
	assert.Equal(t, StageCounts{Attempts: 11, Errors: 11, Fallbacks: 11}, snap["propose"])
	assert.Equal(t, StageCounts{Attempts: 1}, snap["plan"])
	assert.InDelta(t, 1.0, snap["propose"].FallbackRate(), 1e-9)

	snap["plan"] = StageCounts{}
	assert.Equal(t, 1, tr.Snapshot()["plan"].Attempts, "snapshot is a copy")
}

func TestFailureTracker_SuccessEndsErrorStreak(t *testing.T) {
	tr := NewFailureTracker()
	for range 11 {
		tr.RecordError("curate")
	}
	assert.True(t, tr.ShouldFallback("curate"))

	tr.RecordSuccess("curate")
	assert.False(t, tr.ShouldFallback("curate"))
	assert.Equal(t, StageCounts{Attempts: 12}, tr.Snapshot()["curate"])

	for range 10 {
		tr.RecordError("curate")
	}
	assert.False(t, tr.ShouldFallback("curate"), "a new streak starts from zero")
}

func TestFailureTracker_ShortCircuitAgesOut(t *testing.T) {
	now := t0
	tr := NewWindowedFailureTracker(10*time.Minute, func() time.Time { return now })

	for range 11 {
		tr.RecordError("curate")
	}
	// short-circuited runs only ever record fallbacks
	for range 50 {
		require.True(t, tr.ShouldFallback("curate"))
		tr.RecordFallback("curate")
		now = now.Add(10 * time.Second)
	}
	assert.True(t, tr.ShouldFallback("curate"), "still inside the window")

	now = t0.Add(10 * time.Minute)
	assert.False(t, tr.ShouldFallback("curate"))
	assert.Equal(t, 0, tr.Snapshot()["curate"].Errors)
}

func TestFailureTracker_WindowDropsOldOutcomes(t *testing.T) {
	now := t0
	tr := NewWindowedFailureTracker(time.Minute, func() time.Time { return now })

	tr.RecordError("plan")
	tr.RecordFallback("plan")
	now = now.Add(30 * time.Second)
	tr.RecordError("plan")

	assert.Equal(t, StageCounts{Attempts: 2, Errors: 2, Fallbacks: 1}, tr.Snapshot()["plan"])

	now = now.Add(45 * time.Second)
	assert.Equal(t, StageCounts{Attempts: 1, Errors: 1}, tr.Snapshot()["plan"])

	now = now.Add(time.Minute)
	_, ok := tr.Snapshot()["plan"]
	assert.False(t, ok)
}
