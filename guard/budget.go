package guard

import (
	"fmt"
	"maps"
	"sync/atomic"
	"time"

	"vibeagent"
)

type BudgetLimits struct {
	MaxTotalCalls       int
	MaxCallsPerProvider map[string]int
	MaxWallClock        time.Duration
}

// DefaultBudgetLimits mirrors the production quota for a single run.
func DefaultBudgetLimits() BudgetLimits {
	return BudgetLimits{
		MaxTotalCalls:       25,
		MaxCallsPerProvider: map[string]int{vibeagent.ProviderGoogle: 12, vibeagent.ProviderOSM: 5, vibeagent.ProviderOTM: 8},
		MaxWallClock:        60 * time.Second,
	}
}

// Budget is an immutable call and time quota. Charge never modifies the receiver.
type Budget struct {
	limits    BudgetLimits
	remaining int
	used      map[string]int
	startedAt time.Time
}

func NewBudget(limits BudgetLimits, start time.Time) Budget {
	perProvider := make(map[string]int, len(limits.MaxCallsPerProvider))
	maps.Copy(perProvider, limits.MaxCallsPerProvider)
	limits.MaxCallsPerProvider = perProvider

	return Budget{
		limits:    limits,
		remaining: limits.MaxTotalCalls,
		used:      make(map[string]int, len(perProvider)),
		startedAt: start,
	}
}

func (b Budget) Remaining() int { return b.remaining }

func (b Budget) MaxTotalCalls() int { return b.limits.MaxTotalCalls }

func (b Budget) Used(provider string) int { return b.used[provider] }

func (b Budget) StartedAt() time.Time { return b.startedAt }

func (b Budget) Elapsed(now time.Time) time.Duration { return now.Sub(b.startedAt) }

// Expired reports whether the wall-clock allowance is spent.
func (b Budget) Expired(now time.Time) bool {
	return b.limits.MaxWallClock > 0 && b.Elapsed(now) > b.limits.MaxWallClock
}

// RemainingFor is the number of calls still allowed for provider.
func (b Budget) RemainingFor(provider string) int {
	left := b.limits.MaxCallsPerProvider[provider] - b.used[provider]
	return min(left, b.remaining)
}

// Charge debits n calls against provider. Either all checks pass and a new Budget is
// returned, or the receiver comes back unchanged alongside the error.
func (b Budget) Charge(now time.Time, provider string, n int) (Budget, error) {
	if b.Expired(now) {
		return b, &Error{
			Kind:    KindTimeout,
			Message: fmt.Sprintf("execution time exceeded: %s > %s", b.Elapsed(now).Round(time.Millisecond), b.limits.MaxWallClock),
			Context: map[string]any{"provider": provider, "elapsed_ms": b.Elapsed(now).Milliseconds()},
		}
	}
	if n > b.remaining {
		return b, &Error{
			Kind:    KindToolBudget,
			Message: fmt.Sprintf("total call budget exceeded: need %d, have %d", n, b.remaining),
			Context: map[string]any{"provider": provider, "remaining": b.remaining},
		}
	}
	maxForProvider := b.limits.MaxCallsPerProvider[provider]
	if b.used[provider]+n > maxForProvider {
		return b, &Error{
			Kind:    KindToolBudget,
			Message: fmt.Sprintf("%s call budget exceeded: %d+%d > %d", provider, b.used[provider], n, maxForProvider),
			Context: map[string]any{"provider": provider, "used": b.used[provider], "max": maxForProvider},
		}
	}

	next := b
	next.remaining = b.remaining - n
	next.used = make(map[string]int, len(b.used)+1)
	maps.Copy(next.used, b.used)
	next.used[provider] += n
	return next, nil
}

// BudgetCell shares one run's budget between concurrent branches. Each Charge is a
// compare-and-swap of the whole value, so a branch either debits the budget it
// observed or retries against the newer one.
type BudgetCell struct {
	p   atomic.Pointer[Budget]
	now func() time.Time
}

func NewBudgetCell(b Budget, now func() time.Time) *BudgetCell {
	if now == nil {
		now = time.Now
	}
	c := &BudgetCell{now: now}
	c.p.Store(&b)
	return c
}

func (c *BudgetCell) Load() Budget { return *c.p.Load() }

func (c *BudgetCell) Charge(provider string, n int) error {
	for {
		cur := c.p.Load()
		next, err := cur.Charge(c.now(), provider, n)
		if err != nil {
			return err
		}
		if c.p.CompareAndSwap(cur, &next) {
			return nil
		}
	}
}

// Expired reports whether the cell's wall-clock allowance is spent.
func (c *BudgetCell) Expired() bool {
	return c.Load().Expired(c.now())
}

// LimitsFromConfig converts the environment budget settings.
func LimitsFromConfig(cfg vibeagent.BudgetConfig) BudgetLimits {
	return BudgetLimits{
		MaxTotalCalls:       cfg.MaxTotalCalls,
		MaxCallsPerProvider: cfg.PerProvider(),
		MaxWallClock:        cfg.MaxTotalExecution,
	}
}
