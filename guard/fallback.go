package guard

import (
	"sync"
	"time"
)

const (
	fallbackErrorCeiling  = 10
	fallbackRateThreshold = 0.8
	fallbackRateMinErrors = 5

	// DefaultFailureWindow is how long a stage outcome counts towards ShouldFallback.
	DefaultFailureWindow = 15 * time.Minute
)

// ShouldFallback decides whether a stage has failed often enough to skip the model.
func ShouldFallback(errorCount int, recentFallbackRate float64) bool {
	return errorCount > fallbackErrorCeiling ||
		(recentFallbackRate > fallbackRateThreshold && errorCount > fallbackRateMinErrors)
}

// StageCounts is the recent failure history of one stage. Errors is the current
// streak: a success ends it.
type StageCounts struct {
	Attempts  int `json:"attempts"`
	Errors    int `json:"errors"`
	Fallbacks int `json:"fallbacks"`
}

// FallbackRate is fallbacks over attempts.
func (s StageCounts) FallbackRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Fallbacks) / float64(s.Attempts)
}

type outcome uint8

const (
	outcomeSuccess outcome = iota
	outcomeError
	outcomeFallback
)

type stageEvent struct {
	at      time.Time
	outcome outcome
	streak  bool
}

// FailureTracker counts stage outcomes across runs over a sliding window. The zero
// value is not usable; create one with NewFailureTracker and share it by pointer.
type FailureTracker struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	stages map[string][]stageEvent
}

func NewFailureTracker() *FailureTracker {
	return NewWindowedFailureTracker(DefaultFailureWindow, time.Now)
}

// NewWindowedFailureTracker forgets outcomes older than window.
func NewWindowedFailureTracker(window time.Duration, now func() time.Time) *FailureTracker {
	if window <= 0 {
		window = DefaultFailureWindow
	}
	if now == nil {
		now = time.Now
	}
	return &FailureTracker{window: window, now: now, stages: make(map[string][]stageEvent)}
}

// recent drops the stage's expired events. Callers hold mu.
func (t *FailureTracker) recent(stage string, now time.Time) []stageEvent {
	events := t.stages[stage]
	i := 0
	for i < len(events) && now.Sub(events[i].at) >= t.window {
		i++
	}
	if i == len(events) {
		delete(t.stages, stage)
		return nil
	}
	events = events[i:]
	t.stages[stage] = events
	return events
}

func (t *FailureTracker) record(stage string, o outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	events := t.recent(stage, now)
	if o == outcomeSuccess {
		for i := range events {
			events[i].streak = false
		}
	}
	t.stages[stage] = append(events, stageEvent{at: now, outcome: o, streak: o == outcomeError})
}

func (t *FailureTracker) RecordError(stage string) { t.record(stage, outcomeError) }

func (t *FailureTracker) RecordSuccess(stage string) { t.record(stage, outcomeSuccess) }

// RecordFallback counts a fallback. It does not count as an attempt; the error or
// short-circuit that caused it already did.
func (t *FailureTracker) RecordFallback(stage string) { t.record(stage, outcomeFallback) }

func (t *FailureTracker) counts(stage string, now time.Time) StageCounts {
	var c StageCounts
	for _, e := range t.recent(stage, now) {
		switch e.outcome {
		case outcomeSuccess:
			c.Attempts++
		case outcomeError:
			c.Attempts++
			if e.streak {
				c.Errors++
			}
		case outcomeFallback:
			c.Fallbacks++
		}
	}
	return c
}

func (t *FailureTracker) ShouldFallback(stage string) bool {
	t.mu.Lock()
	c := t.counts(stage, t.now())
	t.mu.Unlock()
	return ShouldFallback(c.Errors, c.FallbackRate())
}

// Snapshot returns the recent counts of every stage still inside the window.
func (t *FailureTracker) Snapshot() map[string]StageCounts {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := make(map[string]StageCounts, len(t.stages))
	for stage := range t.stages {
		if c := t.counts(stage, now); c != (StageCounts{}) {
			out[stage] = c
		}
	}
	return out
}
