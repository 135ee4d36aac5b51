package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"vibeagent"
	"vibeagent/aggregate"
	"vibeagent/guard"
	"vibeagent/providers"
	"vibeagent/weather"
)

const proposeSystemPrompt = `You are an activity recommender for Romania.

GOAL:
Read the user's vibe and propose between 3 and 8 activity intents drawn from the catalog. Each intent is a category, one or more subtypes and one or more regions.

RULES:
- category must be one of: %s
- Use catalog subtypes and regions where possible. Every intent needs at least one subtype and one region.
- Give every intent a short unique id (kebab-case) and a confidence between 0 and 1.
- Respect the weather hints: avoid outdoor intents the forecast rules out, or prefer their indoor alternative.
- Aim for variety across categories unless the vibe is very specific.
- vibeAlignment explains in one sentence how the intent fits the vibe.

Return ONLY the JSON object matching the ProposedActivities contract. No markdown, no prose.`

const planSystemPrompt = `You are the verification planner for an activity recommender.

GOAL:
For each proposed intent, plan provider queries that will find real venues proving the intent can be done.

PROVIDERS:
%s

RULES:
- Every query must reference an intentId from the list you are given. Never invent intent ids.
- Stay within the call budget: at most %d queries in total.
- priority is 1 (nice to have) to 5 (essential). Give each intent at least one priority 4 or 5 query.
- Use coordinates from the region seeds; radiusMeters between 1000 and 50000.
- Prefer osm for trails, peaks and outdoor areas, otm for castles, museums and heritage, google for rated venues.

Return ONLY the JSON object matching the VerificationPlan contract.`

const curateSystemPrompt = `You are the final curator for an activity recommender.

GOAL:
Pick at most %d recommendations from the verified candidates and explain each one.

RULES:
- Only use intent ids and venue placeIds that appear in the candidates. Never invent either.
- Each recommendation carries 1 to 3 of its intent's verified venues, copied exactly.
- topFive lists the intent ids of your recommendations, best first.
- rationale must cite concrete venue data (name, rating, review count, weather). Avoid boilerplate such as "great place" or "perfect for".
- weatherSuitability is good, ok or bad and must not be better than the weather hint for the intent.
- Prefer variety across categories.

Return ONLY the JSON object matching the ActivityCuration contract.`

func proposeSystem() string {
	return fmt.Sprintf(proposeSystemPrompt, strings.Join(vibeagent.CategoryNames(), ", "))
}

func curateSystem(n int) string {
	return fmt.Sprintf(curateSystemPrompt, n)
}

type proposePayload struct {
	Vibe               string                 `json:"vibe"`
	DetectedCategories []vibeagent.Category   `json:"detectedCategories,omitempty"`
	RegionsSeed        []vibeagent.RegionSeed `json:"regionsSeed,omitempty"`
	Profile            vibeagent.UserProfile  `json:"profile"`
	RequiresFood       bool                   `json:"requiresFood,omitempty"`
	Catalog            []catalogLine          `json:"catalog"`
	Weather            weather.Hints          `json:"weatherHints"`
}

type catalogLine struct {
	ID       string             `json:"id"`
	Label    string             `json:"label"`
	Category vibeagent.Category `json:"category"`
	Subtypes []string           `json:"subtypes"`
	Regions  []string           `json:"regions,omitempty"`
}

func proposePrompt(ic vibeagent.IntentContext, hints weather.Hints) (string, error) {
	lines := make([]catalogLine, 0, len(ic.Catalog.Entries))
	for _, e := range ic.Catalog.Entries {
		lines = append(lines, catalogLine{ID: e.ID, Label: e.Label, Category: e.Category, Subtypes: e.Subtypes, Regions: e.Regions})
	}
	return render("Propose activity intents for this request.", proposePayload{
		Vibe:               ic.Vibe,
		DetectedCategories: ic.DetectedCategories,
		RegionsSeed:        ic.RegionsSeed,
		Profile:            ic.Profile,
		RequiresFood:       ic.RequiresFood,
		Catalog:            lines,
		Weather:            hints,
	})
}

type providerTool struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

func planSystem(registry providers.Registry, maxCalls int) (string, error) {
	tools := make([]providerTool, 0, len(registry))
	for _, p := range registry.Providers() {
		tools = append(tools, providerTool{Name: p.Name(), Title: p.Title(), Description: p.Description(), InputSchema: p.InputSchema()})
	}
	b, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal provider list: %w", err)
	}
	return fmt.Sprintf(planSystemPrompt, string(b), maxCalls), nil
}

type planPayload struct {
	Intents     []vibeagent.ActivityIntent `json:"intents"`
	RegionsSeed []vibeagent.RegionSeed     `json:"regionsSeed,omitempty"`
	Budget      budgetLine                 `json:"budget"`
}

type budgetLine struct {
	MaxTotalCalls       int            `json:"maxTotalCalls"`
	MaxCallsPerProvider map[string]int `json:"maxCallsPerProvider"`
}

func planPrompt(intents []vibeagent.ActivityIntent, ic vibeagent.IntentContext, limits guard.BudgetLimits) (string, error) {
	return render("Plan verification queries for these intents.", planPayload{
		Intents:     intents,
		RegionsSeed: ic.RegionsSeed,
		Budget:      budgetLine{MaxTotalCalls: limits.MaxTotalCalls, MaxCallsPerProvider: limits.MaxCallsPerProvider},
	})
}

// maxPromptVenues bounds how many candidates per intent the curator sees.
const maxPromptVenues = 6

type curatePayload struct {
	Vibe       string                           `json:"vibe"`
	Profile    vibeagent.UserProfile            `json:"profile"`
	Intents    []vibeagent.ActivityIntent       `json:"intents"`
	Candidates map[string][]venueLine           `json:"candidatesByIntent"`
	Weather    map[string]string                `json:"weatherByIntent"`
	Regions    map[string]weather.RegionSummary `json:"regionalWeather,omitempty"`
}

type venueLine struct {
	vibeagent.VerifiedVenue
	Score float64 `json:"score"`
}

func curatePrompt(ic vibeagent.IntentContext, intents []vibeagent.ActivityIntent, byIntent map[string][]aggregate.Candidate, hints weather.Hints) (string, error) {
	p := curatePayload{
		Vibe:       ic.Vibe,
		Profile:    ic.Profile,
		Intents:    intents,
		Candidates: make(map[string][]venueLine, len(byIntent)),
		Weather:    make(map[string]string, len(intents)),
		Regions:    hints.ByRegion,
	}
	for _, intent := range intents {
		a := aggregate.IntentWeather(intent, hints.BySubtype)
		p.Weather[intent.ID] = fmt.Sprintf("%s: %s", a.Suitability, a.Reason)

		ws := weather.Score(a.Suitability)
		top := aggregate.SelectDiverse(byIntent[intent.ID],
			func(c aggregate.Candidate) float64 { return aggregate.Score(c, ws) },
			func(c aggregate.Candidate) string { return c.Venue.Provider },
			maxPromptVenues,
		)
		for _, c := range top {
			p.Candidates[intent.ID] = append(p.Candidates[intent.ID], venueLine{VerifiedVenue: c.Venue, Score: aggregate.Score(c, ws)})
		}
	}
	return render("Curate the final recommendations from these verified candidates.", p)
}

func render(instruction string, payload any) (string, error) {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt payload: %w", err)
	}
	return instruction + "\n\n" + string(b), nil
}
