package aggregate

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"vibeagent"
	"vibeagent/weather"
)

const (
	DefaultMaxRecommendations  = 5
	maxVenuesPerRecommendation = 3
)

// FallbackInput is everything the deterministic curation needs.
type FallbackInput struct {
	Intents []vibeagent.ActivityIntent
	// Venues holds the filtered candidates of each intent.
	Venues             map[string][]Candidate
	Weather            map[string]weather.Assessment
	Profile            vibeagent.UserProfile
	MaxRecommendations int
}

type ranked struct {
	intent  vibeagent.ActivityIntent
	venues  []Candidate
	weather weather.Assessment
	score   float64
}

// FallbackCuration ranks intents by their best venue and the weather, keeps category
// diversity, and explains each pick from the venue data. Intents without venues are
// dropped when any intent has one; when none do they are kept and the curation is
// marked degraded.
func FallbackCuration(in FallbackInput) vibeagent.ActivityCuration {
	k := in.MaxRecommendations
	if k <= 0 || k > DefaultMaxRecommendations {
		k = DefaultMaxRecommendations
	}

	all := make([]ranked, 0, len(in.Intents))
	verified, venuesFound := 0, 0
	for _, intent := range in.Intents {
		r := rankIntent(intent, in.Venues[intent.ID], in.Weather)
		if len(r.venues) > 0 {
			verified++
		}
		venuesFound += len(in.Venues[intent.ID])
		all = append(all, r)
	}

	pool := all
	if verified > 0 {
		pool = pool[:0:0]
		for _, r := range all {
			if len(r.venues) > 0 {
				pool = append(pool, r)
			}
		}
	}

	picked := SelectDiverse(pool,
		func(r ranked) float64 { return r.score },
		func(r ranked) string { return string(r.intent.Category) },
		k,
	)

	c := vibeagent.ActivityCuration{
		Recommendations: make([]vibeagent.ActivityRecommendation, 0, len(picked)),
		TopFive:         make([]string, 0, len(picked)),
		Source:          vibeagent.SourceFallback,
	}
	constrained := 0
	for _, r := range picked {
		rec := recommend(r, in.Profile)
		if r.weather.Suitability != weather.Good {
			constrained++
		}
		if len(rec.VerifiedVenues) == 0 {
			c.Degraded = true
		}
		c.Recommendations = append(c.Recommendations, rec)
		c.TopFive = append(c.TopFive, rec.Intent.ID)
	}

	_, diversity, _ := vibeagent.QualityMetrics(c)
	c.Metadata = vibeagent.CurationMetadata{
		TotalIntentsProposed:      len(in.Intents),
		TotalIntentsVerified:      verified,
		TotalVenuesFound:          venuesFound,
		WeatherConstraintsApplied: constrained,
		DiversityScore:            diversity,
	}
	c.Rationale = overallRationale(c)
	return c
}

func rankIntent(intent vibeagent.ActivityIntent, venues []Candidate, assessments map[string]weather.Assessment) ranked {
	r := ranked{intent: intent, weather: IntentWeather(intent, assessments)}
	ws := weather.Score(r.weather.Suitability)

	sorted := make([]Candidate, len(venues))
	copy(sorted, venues)
	sort.SliceStable(sorted, func(a, b int) bool { return Score(sorted[a], ws) > Score(sorted[b], ws) })
	if len(sorted) > maxVenuesPerRecommendation {
		sorted = sorted[:maxVenuesPerRecommendation]
	}
	r.venues = sorted

	r.score = weatherWeight * ws
	if len(sorted) > 0 {
		r.score = Score(sorted[0], ws)
	}
	return r
}

// IntentWeather takes the most favourable verdict among the intent's subtypes.
// Subtypes without an assessment are ignored; no assessment at all counts as ok.
func IntentWeather(intent vibeagent.ActivityIntent, assessments map[string]weather.Assessment) weather.Assessment {
	var best *weather.Assessment
	for _, s := range intent.Subtypes {
		a, ok := assessments[s]
		if !ok {
			continue
		}
		if best == nil || weather.Score(a.Suitability) > weather.Score(best.Suitability) {
			best = &a
		}
	}
	if best == nil {
		return weather.Assessment{Suitability: weather.OK, Reason: "no weather data"}
	}
	return *best
}

func recommend(r ranked, profile vibeagent.UserProfile) vibeagent.ActivityRecommendation {
	venues := make([]vibeagent.VerifiedVenue, 0, len(r.venues))
	for _, c := range r.venues {
		venues = append(venues, c.Venue)
	}

	interest := interestMatch(r.intent, profile)
	energy := energyMatch(r.intent, profile)

	confidence := r.intent.Confidence * 0.8
	if len(venues) == 0 {
		confidence = r.intent.Confidence * 0.5
	}

	return vibeagent.ActivityRecommendation{
		Intent:             r.intent,
		VerifiedVenues:     venues,
		WeatherSuitability: r.weather.Suitability,
		Rationale:          rationale(r),
		Confidence:         clamp01(confidence),
		PersonalizationFactors: vibeagent.PersonalizationFactors{
			InterestMatch:    interest,
			EnergyMatch:      energy,
			ProfileAlignment: (interest + energy) / 2,
		},
	}
}

func rationale(r ranked) string {
	var b strings.Builder
	b.WriteString(r.intent.Label)
	if len(r.venues) == 0 {
		b.WriteString(" matches the request, but no venue could be verified for it.")
	} else {
		names := make([]string, 0, len(r.venues))
		for _, c := range r.venues {
			names = append(names, describeVenue(c.Venue))
		}
		fmt.Fprintf(&b, " at %s.", strings.Join(names, "; "))
	}
	if r.weather.Reason != "" {
		fmt.Fprintf(&b, " Weather: %s.", strings.TrimSuffix(r.weather.Reason, "."))
	}
	return b.String()
}

func describeVenue(v vibeagent.VerifiedVenue) string {
	if v.Rating > 0 && v.UserRatingsTotal > 0 {
		return fmt.Sprintf("%s (%.1f from %d reviews)", v.Name, v.Rating, v.UserRatingsTotal)
	}
	if v.Rating > 0 {
		return fmt.Sprintf("%s (rated %.1f)", v.Name, v.Rating)
	}
	return fmt.Sprintf("%s (%s)", v.Name, v.Evidence.VerificationMethod)
}

func overallRationale(c vibeagent.ActivityCuration) string {
	if len(c.Recommendations) == 0 {
		return "No activity could be ranked from the proposed intents."
	}
	cats := map[vibeagent.Category]bool{}
	for _, r := range c.Recommendations {
		cats[r.Intent.Category] = true
	}
	return fmt.Sprintf(
		"Ranked %d of %d proposed activities across %d categories by weather suitability and venue ratings; %d venues were verified.",
		len(c.Recommendations), c.Metadata.TotalIntentsProposed, len(cats), c.Metadata.TotalVenuesFound,
	)
}

func interestMatch(intent vibeagent.ActivityIntent, p vibeagent.UserProfile) float64 {
	if len(p.Interests) == 0 || len(intent.Subtypes) == 0 {
		return 0.5
	}
	hits := 0
	for _, s := range intent.Subtypes {
		for _, i := range p.Interests {
			if strings.EqualFold(s, i) || strings.Contains(strings.ToLower(s), strings.ToLower(i)) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(intent.Subtypes))
}

func energyMatch(intent vibeagent.ActivityIntent, p vibeagent.UserProfile) float64 {
	switch {
	case p.EnergyLevel == "" || intent.Energy == "":
		return 0.5
	case p.EnergyLevel == intent.Energy:
		return 1
	default:
		return 0.25
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
