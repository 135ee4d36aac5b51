package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"vibeagent"
	"vibeagent/guard"
)

const (
	defaultRegionName   = "Bucharest"
	fallbackRadius      = 5000
	fallbackPlaceType   = "establishment"
	fallbackResultType  = "venues"
	fallbackMaxPriority = 5
)

var defaultLocation = vibeagent.Location{Lat: 44.4268, Lon: 26.1025}

func (r *run) plan(ctx context.Context, intents []vibeagent.ActivityIntent) vibeagent.VerificationPlan {
	r.transition(vibeagent.StagePlan)
	started := r.opts.Now()
	maxCalls := r.opts.Budget.MaxTotalCalls

	var req vibeagent.StructuredRequest
	var out modelOutcome
	var v guard.Validated[vibeagent.VerificationPlan]

	switch {
	case len(intents) == 0:
		out.err = guard.NewError(guard.KindValidation, "no intents to plan", nil)
	case len(r.providers) == 0:
		out.err = guard.NewError(guard.KindValidation, "no providers registered", nil)
	default:
		system, err := planSystem(r.providers, maxCalls)
		if err == nil {
			req.UserPrompt, err = planPrompt(intents, r.ic, r.opts.Budget)
		}
		if err != nil {
			out.err = guard.Classify(err)
			break
		}
		req.Stage = string(vibeagent.StagePlan)
		req.SystemPrompt = system
		req.ContractName = "VerificationPlan"
		req.Contract = guard.VerificationPlanContract()
		req.MaxTokens = r.opts.MaxTokens

		v, out = callModel(ctx, r, modelCall[vibeagent.VerificationPlan]{
			stage:   vibeagent.StagePlan,
			request: req,
			validate: func(raw string) (guard.Validated[vibeagent.VerificationPlan], error) {
				return guard.ValidateWithRepair[vibeagent.VerificationPlan](guard.VerificationPlanContract(), raw, "plan")
			},
		})
	}

	if out.err == nil {
		plan, warnings := PrunePlan(v.Data, intents, r.providers.Names(), maxCalls)
		warnings = append(v.Warnings, warnings...)
		if len(plan.Queries) > 0 {
			r.finishModelStage(vibeagent.StagePlan, started, req, out, false, warnings, v.Repaired, len(plan.Queries))
			slog.Info("ORCHESTRATOR: plan ready", "run_id", r.ic.RunID, "queries", len(plan.Queries), "dropped_or_truncated", len(warnings))
			return plan
		}
		out.err = guard.NewError(guard.KindValidation, "plan has no usable queries", map[string]any{"warnings": warnings})
	}

	r.transition(vibeagent.StageFallback)
	plan := FallbackPlan(intents, r.ic, r.defaultProvider(), maxCalls)
	r.finishModelStage(vibeagent.StagePlan, started, req, out, true, nil, false, len(plan.Queries))
	return plan
}

// defaultProvider is google when registered, otherwise the first provider by name.
func (r *run) defaultProvider() string {
	if _, ok := r.providers[vibeagent.ProviderGoogle]; ok || len(r.providers) == 0 {
		return vibeagent.ProviderGoogle
	}
	return r.providers.Names()[0]
}

// PrunePlan drops queries for unknown intents or unregistered providers, then keeps
// the maxCalls highest-priority queries. Equal priorities keep plan order.
func PrunePlan(plan vibeagent.VerificationPlan, intents []vibeagent.ActivityIntent, providerNames []string, maxCalls int) (vibeagent.VerificationPlan, []string) {
	knownIntents := make(map[string]bool, len(intents))
	for _, i := range intents {
		knownIntents[i.ID] = true
	}
	knownProviders := make(map[string]bool, len(providerNames))
	for _, p := range providerNames {
		knownProviders[p] = true
	}

	var warnings []string
	var unknownIntents []string
	kept := make([]vibeagent.VerificationQuery, 0, len(plan.Queries))
	for _, q := range plan.Queries {
		switch {
		case !knownIntents[q.IntentID]:
			unknownIntents = append(unknownIntents, q.IntentID)
		case !knownProviders[q.Provider]:
			warnings = append(warnings, fmt.Sprintf("query for %s dropped: provider %s not available", q.IntentID, q.Provider))
		default:
			kept = append(kept, q)
		}
	}
	if len(unknownIntents) > 0 {
		warnings = append(warnings, fmt.Sprintf("queries for unknown intents dropped: %s", strings.Join(unknownIntents, ", ")))
	}

	if maxCalls >= 0 && len(kept) > maxCalls {
		sort.SliceStable(kept, func(a, b int) bool { return kept[a].Priority > kept[b].Priority })
		warnings = append(warnings, fmt.Sprintf("plan truncated from %d to %d queries", len(kept), maxCalls))
		kept = kept[:maxCalls]
	}

	plan.Queries = kept
	plan.EstimatedCalls = len(kept)
	return plan, warnings
}

// FallbackPlan issues one text search per intent on the default provider, near the
// intent's first seeded region. Earlier intents get higher priority.
func FallbackPlan(intents []vibeagent.ActivityIntent, ic vibeagent.IntentContext, provider string, maxCalls int) vibeagent.VerificationPlan {
	plan := vibeagent.VerificationPlan{
		Queries:  make([]vibeagent.VerificationQuery, 0, len(intents)),
		Strategy: fmt.Sprintf("Heuristic plan: one %s text search per intent", provider),
	}
	for i, intent := range intents {
		if maxCalls >= 0 && len(plan.Queries) >= maxCalls {
			break
		}
		plan.Queries = append(plan.Queries, vibeagent.VerificationQuery{
			IntentID: intent.ID,
			Provider: provider,
			Query: vibeagent.ProviderQuery{
				Location:     locationFor(intent, ic),
				RadiusMeters: fallbackRadius,
				Type:         fallbackPlaceType,
				TextQuery:    intent.Label,
			},
			Priority:           max(1, fallbackMaxPriority-i),
			ExpectedResultType: fallbackResultType,
		})
	}
	plan.EstimatedCalls = len(plan.Queries)
	return plan
}

// locationFor prefers the seed named like the intent's first region, then the first
// seed, then Bucharest.
func locationFor(intent vibeagent.ActivityIntent, ic vibeagent.IntentContext) vibeagent.Location {
	if len(ic.RegionsSeed) == 0 {
		return defaultLocation
	}
	if len(intent.Regions) > 0 {
		for _, s := range ic.RegionsSeed {
			if strings.EqualFold(s.Name, intent.Regions[0]) {
				return vibeagent.Location{Lat: s.Lat, Lon: s.Lon}
			}
		}
	}
	return vibeagent.Location{Lat: ic.RegionsSeed[0].Lat, Lon: ic.RegionsSeed[0].Lon}
}
