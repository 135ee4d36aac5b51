package orchestrator

import (
	"context"
	"log/slog"

	"vibeagent"
	"vibeagent/aggregate"
	"vibeagent/guard"
	"vibeagent/weather"
)

// aggregate merges the provider results, applies the food and distance filters, and
// groups what is left by intent. found is the number of candidates that survived.
func (r *run) aggregate(intents []vibeagent.ActivityIntent, results []vibeagent.ProviderResult) (map[string][]aggregate.Candidate, int) {
	byID := make(map[string]vibeagent.ActivityIntent, len(intents))
	for _, intent := range intents {
		byID[intent.ID] = intent
	}

	merged := aggregate.Merge(results)
	filtered := aggregate.Filter(merged, aggregate.FilterOptions{
		Origin:           r.ic.Origin,
		MaxDistanceKm:    firstPositive(r.ic.MaxDistanceKm, r.opts.MaxDistanceKm),
		MaxTravelMinutes: firstPositive(r.ic.MaxTravelMinutes, r.opts.MaxTravelMinutes),
		RequiresFood:     r.ic.RequiresFood,
		Intents:          byID,
	})

	slog.Info("ORCHESTRATOR: candidates aggregated",
		"run_id", r.ic.RunID,
		"merged", len(merged),
		"kept", len(filtered),
	)
	return aggregate.ByIntent(filtered), len(filtered)
}

func firstPositive(vs ...float64) float64 {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}

func (r *run) curate(ctx context.Context, intents []vibeagent.ActivityIntent, byIntent map[string][]aggregate.Candidate, found int) vibeagent.ActivityCuration {
	r.transition(vibeagent.StageCurate)
	started := r.opts.Now()

	req := vibeagent.StructuredRequest{
		Stage:        string(vibeagent.StageCurate),
		SystemPrompt: curateSystem(r.opts.MaxRecommendations),
		ContractName: "ActivityCuration",
		Contract:     guard.CurationContract(),
		MaxTokens:    r.opts.MaxTokens,
	}

	var v guard.Validated[vibeagent.ActivityCuration]
	var out modelOutcome
	switch prompt, err := curatePrompt(r.ic, intents, byIntent, r.hints); {
	case err != nil:
		out.err = guard.Classify(err)
	case found == 0:
		out.err = guard.NewError(guard.KindValidation, "no verified venues to curate", nil)
	default:
		req.UserPrompt = prompt
		proposed := intentIDs(intents)
		candidates := candidateKeys(byIntent)
		v, out = callModel(ctx, r, modelCall[vibeagent.ActivityCuration]{
			stage:   vibeagent.StageCurate,
			request: req,
			validate: func(raw string) (guard.Validated[vibeagent.ActivityCuration], error) {
				v, err := guard.ValidateWithRepair(guard.CurationContract(), raw, "curate", guard.CurationWarnings)
				if err != nil {
					return v, err
				}
				return v, checkGrounded(v.Data, proposed, candidates)
			},
		})
	}

	if out.err == nil {
		c := r.canonicalize(v.Data, intents, byIntent, found)
		if len(c.Recommendations) > 0 {
			r.finishModelStage(vibeagent.StageCurate, started, req, out, false, v.Warnings, v.Repaired, len(c.Recommendations))
			return c
		}
		out.err = guard.NewError(guard.KindValidation, "curation has no recommendations", nil)
	}

	r.transition(vibeagent.StageFallback)
	c := aggregate.FallbackCuration(aggregate.FallbackInput{
		Intents:            intents,
		Venues:             byIntent,
		Weather:            r.hints.BySubtype,
		Profile:            r.ic.Profile,
		MaxRecommendations: r.opts.MaxRecommendations,
	})
	r.finishModelStage(vibeagent.StageCurate, started, req, out, true, nil, false, len(c.Recommendations))
	return c
}

// checkGrounded rejects a curation that names intents or venues the run never
// produced.
func checkGrounded(c vibeagent.ActivityCuration, proposed, candidates []string) error {
	if _, err := guard.AssertSubset(c.TopFive, proposed, "topFive"); err != nil {
		return err
	}
	if _, err := guard.AssertSubset(c.IntentIDs(), proposed, "recommendations"); err != nil {
		return err
	}
	if _, err := guard.AssertSubset(c.TopFive, c.IntentIDs(), "topFive vs recommendations"); err != nil {
		return err
	}
	var keys []string
	for _, rec := range c.Recommendations {
		for _, venue := range rec.VerifiedVenues {
			keys = append(keys, venue.Key())
		}
	}
	_, err := guard.AssertSubset(keys, candidates, "verifiedVenues")
	return err
}

// canonicalize swaps the model's copies of intents and venues for the ones the run
// holds, caps the list, and recomputes metadata from what is left.
func (r *run) canonicalize(c vibeagent.ActivityCuration, intents []vibeagent.ActivityIntent, byIntent map[string][]aggregate.Candidate, found int) vibeagent.ActivityCuration {
	byID := make(map[string]vibeagent.ActivityIntent, len(intents))
	for _, intent := range intents {
		byID[intent.ID] = intent
	}
	venues := map[string]vibeagent.VerifiedVenue{}
	for _, cs := range byIntent {
		for _, cand := range cs {
			venues[cand.Venue.Key()] = cand.Venue
		}
	}

	seen := map[string]bool{}
	recs := make([]vibeagent.ActivityRecommendation, 0, len(c.Recommendations))
	for _, rec := range c.Recommendations {
		if seen[rec.Intent.ID] || len(recs) == r.opts.MaxRecommendations {
			continue
		}
		seen[rec.Intent.ID] = true
		rec.Intent = byID[rec.Intent.ID]
		for i, v := range rec.VerifiedVenues {
			rec.VerifiedVenues[i] = venues[v.Key()]
		}
		recs = append(recs, rec)
	}
	c.Recommendations = recs

	kept := map[string]bool{}
	for _, rec := range recs {
		kept[rec.Intent.ID] = true
	}
	topFive := make([]string, 0, len(c.TopFive))
	for _, id := range c.TopFive {
		if kept[id] && len(topFive) < aggregate.DefaultMaxRecommendations {
			topFive = append(topFive, id)
			delete(kept, id)
		}
	}
	c.TopFive = topFive

	verified, constrained := 0, 0
	for _, rec := range recs {
		if len(rec.VerifiedVenues) > 0 {
			verified++
		}
		if rec.WeatherSuitability != weather.Good {
			constrained++
		}
	}
	_, diversity, _ := vibeagent.QualityMetrics(c)
	c.Metadata = vibeagent.CurationMetadata{
		TotalIntentsProposed:      len(intents),
		TotalIntentsVerified:      verified,
		TotalVenuesFound:          found,
		WeatherConstraintsApplied: constrained,
		DiversityScore:            diversity,
	}
	c.Source = vibeagent.SourceModel
	c.Degraded = verified < len(recs)
	return c
}

func intentIDs(intents []vibeagent.ActivityIntent) []string {
	ids := make([]string, 0, len(intents))
	for _, intent := range intents {
		ids = append(ids, intent.ID)
	}
	return ids
}

func candidateKeys(byIntent map[string][]aggregate.Candidate) []string {
	var keys []string
	for _, cs := range byIntent {
		for _, c := range cs {
			keys = append(keys, c.Venue.Key())
		}
	}
	return keys
}
