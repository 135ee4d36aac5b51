// Package weather holds the deterministic rule engine that decides whether the
// forecast suits an activity subtype. Every function here is pure.
package weather

import (
	"fmt"
	"sort"
	"strings"
)

// Conditions is one forecast day for a region.
type Conditions struct {
	Date      string  `json:"date,omitempty"`
	TMax      float64 `json:"tMax"`
	PrecipMm  float64 `json:"precipMm"`
	WindMps   float64 `json:"windMps"`
	Condition string  `json:"condition"`
}

type Suitability string

const (
	Good Suitability = "good"
	OK   Suitability = "ok"
	Bad  Suitability = "bad"
)

// rank orders verdicts so a verdict can only ever move towards Bad.
func (s Suitability) rank() int {
	switch s {
	case Good:
		return 0
	case OK:
		return 1
	default:
		return 2
	}
}

func worse(a, b Suitability) Suitability {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Score maps a verdict onto [0,1] for ranking.
func Score(s Suitability) float64 {
	switch s {
	case Good:
		return 1
	case OK:
		return 0.5
	default:
		return 0
	}
}

type Assessment struct {
	Suitability Suitability `json:"suitability"`
	Reason      string      `json:"reason"`
	Alternative string      `json:"alternativeConditions,omitempty"`
}

// Assess applies the rule for kind to the given conditions. Unknown kinds are OK.
func Assess(kind string, c Conditions) Assessment {
	return AssessWith(Rules, kind, c)
}

// AssessWith is Assess against a caller supplied rule table.
func AssessWith(rules map[string]Rule, kind string, c Conditions) Assessment {
	rule, ok := rules[kind]
	if !ok {
		return Assessment{Suitability: OK, Reason: "no specific requirements"}
	}

	verdict := Good
	var issues []string

	if r := rule.TempRange; r != nil {
		switch {
		case c.TMax < r[0]:
			issues = append(issues, fmt.Sprintf("too cold (%g°C, need ≥%g°C)", c.TMax, r[0]))
			verdict = Bad
		case c.TMax > r[1]:
			issues = append(issues, fmt.Sprintf("too hot (%g°C, need ≤%g°C)", c.TMax, r[1]))
			verdict = Bad
		}
	}

	// precipitation and wind only sink weather-dependent activities
	exceeded := OK
	if rule.WeatherDependent {
		exceeded = Bad
	}
	if rule.MaxPrecipMm != nil && c.PrecipMm > *rule.MaxPrecipMm {
		issues = append(issues, fmt.Sprintf("too much rain (%gmm, need ≤%gmm)", c.PrecipMm, *rule.MaxPrecipMm))
		verdict = worse(verdict, exceeded)
	}
	if rule.MaxWindMps != nil && c.WindMps > *rule.MaxWindMps {
		issues = append(issues, fmt.Sprintf("too windy (%gm/s, need ≤%gm/s)", c.WindMps, *rule.MaxWindMps))
		verdict = worse(verdict, exceeded)
	}

	condition := strings.ToLower(c.Condition)
	if matchesAny(condition, rule.Unsuitable) {
		issues = append(issues, fmt.Sprintf("unsuitable conditions (%s)", c.Condition))
		verdict = Bad
	}

	if len(rule.Preferred) > 0 && !matchesAny(condition, rule.Preferred) && rule.WeatherDependent {
		verdict = worse(verdict, OK)
	}

	a := Assessment{Suitability: verdict}
	switch {
	case len(issues) > 0:
		a.Reason = "Weather challenges: " + strings.Join(issues, ", ")
	case rule.WeatherDependent:
		a.Reason = "Perfect weather conditions for " + strings.ReplaceAll(kind, "_", " ")
	default:
		a.Reason = "Weather conditions are suitable"
	}

	if verdict == Bad {
		if rule.IndoorAlternative {
			a.Alternative = "Consider indoor alternatives"
		} else if len(rule.Preferred) > 0 {
			a.Alternative = "Better in: " + strings.Join(rule.Preferred, ", ")
		}
	}
	return a
}

func matchesAny(condition string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(condition, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// RegionSummary condenses one region's forecast for prompts.
type RegionSummary struct {
	OverallCondition string   `json:"overallCondition"`
	SuitableFor      []string `json:"suitableFor"`
	NotSuitableFor   []string `json:"notSuitableFor"`
	BestDays         []string `json:"bestDays"`
}

type Hints struct {
	BySubtype map[string]Assessment    `json:"suitabilityBySubtype"`
	ByRegion  map[string]RegionSummary `json:"regionalSummaries"`
}

// BuildHints assesses each subtype against the first forecast day of the first region
// (by name) and summarises every region.
func BuildHints(subtypes []string, byRegion map[string][]Conditions) Hints {
	h := Hints{
		BySubtype: make(map[string]Assessment, len(subtypes)),
		ByRegion:  make(map[string]RegionSummary, len(byRegion)),
	}

	regions := make([]string, 0, len(byRegion))
	for name := range byRegion {
		regions = append(regions, name)
	}
	sort.Strings(regions)

	var representative *Conditions
	for _, name := range regions {
		if days := byRegion[name]; len(days) > 0 {
			representative = &days[0]
			break
		}
	}
	if representative != nil {
		for _, s := range subtypes {
			h.BySubtype[s] = Assess(s, *representative)
		}
	}

	for _, name := range regions {
		days := byRegion[name]
		if len(days) == 0 {
			continue
		}
		summary := RegionSummary{
			OverallCondition: days[0].Condition,
			SuitableFor:      []string{},
			NotSuitableFor:   []string{},
			BestDays:         []string{},
		}
		for _, s := range subtypes {
			label := strings.ReplaceAll(s, "_", " ")
			switch Assess(s, days[0]).Suitability {
			case Good:
				summary.SuitableFor = append(summary.SuitableFor, label)
			case Bad:
				summary.NotSuitableFor = append(summary.NotSuitableFor, label)
			}
		}
		for i, d := range days {
			if d.PrecipMm < 2 && d.WindMps < 15 {
				summary.BestDays = append(summary.BestDays, fmt.Sprintf("Day %d", i+1))
			}
		}
		summary.SuitableFor = head(summary.SuitableFor, 5)
		summary.NotSuitableFor = head(summary.NotSuitableFor, 3)
		summary.BestDays = head(summary.BestDays, 3)
		h.ByRegion[name] = summary
	}
	return h
}

func head(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
