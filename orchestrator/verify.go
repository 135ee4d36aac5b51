package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"vibeagent"
	"vibeagent/guard"
)

// verify issues the plan's queries with bounded concurrency. Each attempt is
// charged against the run budget before it is issued; a failed charge ends that
// query quietly. Queries that fail contribute nothing and never abort the run.
func (r *run) verify(ctx context.Context, plan vibeagent.VerificationPlan) []vibeagent.ProviderResult {
	r.transition(vibeagent.StageVerify)
	started := r.opts.Now()

	budget := guard.NewBudget(r.opts.Budget, r.report.StartedAt)
	cell := guard.NewBudgetCell(budget, r.opts.Now)

	// in-flight calls are abandoned once the wall-clock allowance is spent
	if r.opts.Budget.MaxWallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, r.report.StartedAt.Add(r.opts.Budget.MaxWallClock))
		defer cancel()
	}

	results := make([]vibeagent.ProviderResult, len(plan.Queries))
	attempts := make([]int, len(plan.Queries))

	var g errgroup.Group
	g.SetLimit(r.opts.MaxConcurrent)
	for i, q := range plan.Queries {
		g.Go(func() error {
			results[i], attempts[i] = r.runQuery(ctx, cell, q)
			return nil
		})
	}
	_ = g.Wait()

	stats := &r.report.Providers
	calls := make([]vibeagent.ProviderCallLog, 0, len(results))
	successes := 0
	for i, res := range results {
		stats.Calls += attempts[i]
		stats.ByName[res.Provider] += attempts[i]
		switch {
		case res.Skipped:
			stats.Skipped++
		case res.Success:
			stats.Successes++
			successes++
		default:
			stats.Failures++
		}
		stats.Venues += len(res.Venues)
		calls = append(calls, vibeagent.ProviderCallLog{
			Provider: res.Provider,
			IntentID: res.IntentID,
			Query:    plan.Queries[i].Query,
			Venues:   len(res.Venues),
			Skipped:  res.Skipped,
			Error:    res.Error,
		})
	}

	sr := vibeagent.StageReport{
		Stage:      vibeagent.StageVerify,
		Success:    successes > 0 || len(results) == 0,
		Duration:   r.opts.Now().Sub(started),
		Attempts:   stats.Calls,
		OutputSize: stats.Venues,
	}
	if !sr.Success {
		sr.Error = fmt.Sprintf("all %d queries failed or were skipped", len(results))
	}
	r.record(sr)
	r.logStage(vibeagent.StageLog{Stage: vibeagent.StageVerify, ProviderCalls: calls, Error: sr.Error})

	slog.Info("ORCHESTRATOR: verification done",
		"run_id", r.ic.RunID,
		"queries", len(results),
		"successes", successes,
		"skipped", stats.Skipped,
		"venues", stats.Venues,
		"budget_remaining", cell.Load().Remaining(),
	)
	return results
}

// runQuery returns the query's result and the number of provider calls it issued.
func (r *run) runQuery(ctx context.Context, cell *guard.BudgetCell, q vibeagent.VerificationQuery) (res vibeagent.ProviderResult, issued int) {
	res = vibeagent.ProviderResult{
		QueryID:  r.opts.NewID(),
		IntentID: q.IntentID,
		Provider: q.Provider,
	}
	started := r.opts.Now()
	defer func() { res.Duration = r.opts.Now().Sub(started) }()

	if err := ctx.Err(); err != nil {
		res.Skipped = true
		res.Error = "not issued: " + err.Error()
		return res, 0
	}

	provider, err := r.providers.Get(q.Provider)
	if err != nil {
		res.Error = err.Error()
		return res, 0
	}

	venues, _, err := guard.Retry(ctx, "verify:"+q.Provider, r.opts.Retry, r.opts.Sleep, func(ctx context.Context) ([]vibeagent.VerifiedVenue, error) {
		if err := cell.Charge(q.Provider, 1); err != nil {
			return nil, err
		}
		issued++

		callCtx := ctx
		if r.opts.TimeoutPerCall > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, r.opts.TimeoutPerCall)
			defer cancel()
		}
		venues, err := provider.Query(callCtx, q.Query)
		if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			// a call that outlived its own timeout is abandoned, not retried
			return nil, &guard.Error{
				Kind:    guard.KindTimeout,
				Message: fmt.Sprintf("%s query exceeded %s", q.Provider, r.opts.TimeoutPerCall),
				Err:     err,
			}
		}
		return venues, err
	})

	if err != nil {
		res.Error = err.Error()
		if issued == 0 {
			res.Skipped = true
			slog.Info("ORCHESTRATOR: query skipped", "run_id", r.ic.RunID, "provider", q.Provider, "intent_id", q.IntentID, "reason", err.Error())
		} else {
			slog.Warn("ORCHESTRATOR: query failed", "run_id", r.ic.RunID, "provider", q.Provider, "intent_id", q.IntentID, "kind", errorKind(err), "error", err)
		}
		return res, issued
	}

	res.Success = true
	res.Venues = venues
	return res, issued
}
