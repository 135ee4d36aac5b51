package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"vibeagent"
	"vibeagent/aggregate"
	"vibeagent/guard"
)

const (
	fallbackIntentCap        = 5
	fallbackIntentConfidence = 0.7
	challengeConfidence      = 0.5
	maxIntents               = 8
)

func (r *run) propose(ctx context.Context) []vibeagent.ActivityIntent {
	r.transition(vibeagent.StagePropose)
	started := r.opts.Now()

	prompt, err := proposePrompt(r.ic, r.hints)
	if err != nil {
		slog.Error("ORCHESTRATOR: failed to build propose prompt", "error", err)
	}
	req := vibeagent.StructuredRequest{
		Stage:        string(vibeagent.StagePropose),
		SystemPrompt: proposeSystem(),
		UserPrompt:   prompt,
		ContractName: "ProposedActivities",
		Contract:     guard.ProposedActivitiesContract(),
		MaxTokens:    r.opts.MaxTokens,
	}

	var v guard.Validated[vibeagent.ProposedActivities]
	var out modelOutcome
	if err != nil {
		out.err = guard.Classify(err)
	} else {
		v, out = callModel(ctx, r, modelCall[vibeagent.ProposedActivities]{
			stage:   vibeagent.StagePropose,
			request: req,
			validate: func(raw string) (guard.Validated[vibeagent.ProposedActivities], error) {
				return guard.ValidateWithRepair[vibeagent.ProposedActivities](guard.ProposedActivitiesContract(), raw, "propose")
			},
		})
	}

	if out.err == nil {
		intents, warnings := cleanIntents(v.Data.Intents)
		warnings = append(v.Warnings, warnings...)
		if len(intents) > 0 {
			r.finishModelStage(vibeagent.StagePropose, started, req, out, false, warnings, v.Repaired, len(intents))
			slog.Info("ORCHESTRATOR: intents proposed", "run_id", r.ic.RunID, "intents", len(intents), "repaired", v.Repaired)
			return intents
		}
		out.err = guard.NewError(guard.KindValidation, "no usable intents after cleanup", nil)
	}

	r.transition(vibeagent.StageFallback)
	intents := FallbackIntents(r.ic, r.opts.Challenges)
	r.finishModelStage(vibeagent.StagePropose, started, req, out, true, nil, false, len(intents))
	return intents
}

// cleanIntents drops duplicate ids and caps the list.
func cleanIntents(in []vibeagent.ActivityIntent) ([]vibeagent.ActivityIntent, []string) {
	var warnings []string
	seen := make(map[string]bool, len(in))
	out := make([]vibeagent.ActivityIntent, 0, len(in))
	for _, intent := range in {
		if seen[intent.ID] {
			warnings = append(warnings, fmt.Sprintf("duplicate intent id %s dropped", intent.ID))
			continue
		}
		seen[intent.ID] = true
		out = append(out, intent)
	}
	if len(out) > maxIntents {
		warnings = append(warnings, fmt.Sprintf("%d intents truncated to %d", len(out), maxIntents))
		out = out[:maxIntents]
	}
	return out, warnings
}

// FallbackIntents picks catalog entries in the detected categories (every entry when
// none were detected), capped at five. A short list gets a challenge pick from an
// opposite category.
func FallbackIntents(ic vibeagent.IntentContext, table aggregate.ChallengeTable) []vibeagent.ActivityIntent {
	entries := ic.Catalog.Entries
	if len(ic.DetectedCategories) > 0 {
		entries = ic.Catalog.ByCategory(ic.DetectedCategories...)
	}
	if len(entries) > fallbackIntentCap {
		entries = entries[:fallbackIntentCap]
	}

	out := make([]vibeagent.ActivityIntent, 0, fallbackIntentCap)
	taken := map[string]bool{}
	dominant := ic.DetectedCategories
	for _, e := range entries {
		out = append(out, intentFromEntry(e, ic, fallbackIntentConfidence,
			fmt.Sprintf("Catalog match for the %s category", e.Category)))
		taken[e.ID] = true
		if len(ic.DetectedCategories) == 0 {
			dominant = append(dominant, e.Category)
		}
	}

	if len(out) < fallbackIntentCap && table != nil {
		var pool []vibeagent.CatalogEntry
		for _, e := range ic.Catalog.Entries {
			if !taken[e.ID] {
				pool = append(pool, e)
			}
		}
		for _, e := range aggregate.SelectChallenges(table, dominant, pool, 1) {
			out = append(out, intentFromEntry(e, ic, challengeConfidence,
				fmt.Sprintf("Challenge pick: %s as a change from the usual", e.Category)))
		}
	}
	return out
}

func intentFromEntry(e vibeagent.CatalogEntry, ic vibeagent.IntentContext, confidence float64, alignment string) vibeagent.ActivityIntent {
	subtypes := e.Subtypes
	if len(subtypes) == 0 {
		subtypes = []string{e.ID}
	}
	regions := e.Regions
	if len(regions) == 0 {
		for _, s := range ic.RegionsSeed {
			regions = append(regions, s.Name)
		}
	}
	if len(regions) == 0 {
		regions = []string{defaultRegionName}
	}
	label := e.Label
	if label == "" {
		label = e.ID
	}
	return vibeagent.ActivityIntent{
		ID:            e.ID,
		Label:         label,
		Category:      e.Category,
		Subtypes:      subtypes,
		Regions:       regions,
		Energy:        e.Energy,
		IndoorOutdoor: e.IndoorOutdoor,
		VibeAlignment: alignment,
		Confidence:    confidence,
		RequiresFood:  e.Category == vibeagent.CategoryCulinary && ic.RequiresFood,
	}
}
