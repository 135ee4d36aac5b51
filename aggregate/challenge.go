package aggregate

import (
	"encoding/json"
	"fmt"

	"vibeagent"
)

const (
	maxOpposites      = 3
	DefaultChallenges = 2
)

// ChallengeTable maps a dominant category to categories that pull the user out of it.
// It is product tuning data and can be replaced from JSON.
type ChallengeTable map[vibeagent.Category][]vibeagent.Category

var fallbackOpposites = []vibeagent.Category{vibeagent.CategoryAdventure, vibeagent.CategorySports, vibeagent.CategoryNature}

func DefaultChallengeTable() ChallengeTable {
	return ChallengeTable{
		vibeagent.CategoryCreative:  {vibeagent.CategorySports, vibeagent.CategoryAdventure},
		vibeagent.CategoryLearning:  {vibeagent.CategoryNature, vibeagent.CategoryAdventure},
		vibeagent.CategoryCulture:   {vibeagent.CategorySports, vibeagent.CategoryWater},
		vibeagent.CategoryCulinary:  {vibeagent.CategoryAdventure, vibeagent.CategorySports, vibeagent.CategoryNature},
		vibeagent.CategoryWellness:  {vibeagent.CategorySports, vibeagent.CategoryAdventure},
		vibeagent.CategoryNightlife: {vibeagent.CategoryNature, vibeagent.CategoryWellness},
		vibeagent.CategoryNature:    {vibeagent.CategoryNightlife, vibeagent.CategoryCreative, vibeagent.CategoryLearning},
		vibeagent.CategorySports:    {vibeagent.CategoryCreative, vibeagent.CategoryLearning, vibeagent.CategoryCulture},
		vibeagent.CategoryAdventure: {vibeagent.CategoryWellness, vibeagent.CategoryCreative, vibeagent.CategoryCulinary},
	}
}

// ParseChallengeTable decodes a table, rejecting categories outside the closed set.
func ParseChallengeTable(b []byte) (ChallengeTable, error) {
	var t ChallengeTable
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("decode challenge table: %w", err)
	}
	for from, to := range t {
		if !from.Valid() {
			return nil, fmt.Errorf("challenge table: unknown category %q", from)
		}
		for _, c := range to {
			if !c.Valid() {
				return nil, fmt.Errorf("challenge table: %q maps to unknown category %q", from, c)
			}
		}
	}
	return t, nil
}

// Opposites returns up to three categories that none of dominant belong to, in table
// order.
func (t ChallengeTable) Opposites(dominant []vibeagent.Category) []vibeagent.Category {
	skip := make(map[vibeagent.Category]bool, len(dominant))
	for _, d := range dominant {
		skip[d] = true
	}

	var out []vibeagent.Category
	add := func(cs []vibeagent.Category) {
		for _, c := range cs {
			if len(out) == maxOpposites {
				return
			}
			if !skip[c] {
				skip[c] = true
				out = append(out, c)
			}
		}
	}
	for _, d := range dominant {
		opp, ok := t[d]
		if !ok {
			opp = fallbackOpposites
		}
		add(opp)
	}
	if len(out) == 0 {
		add(fallbackOpposites)
	}
	return out
}

// SelectChallenges picks up to k catalog entries from the opposite categories, one
// per category first. Earlier opposites rank higher; ties keep catalog order.
func SelectChallenges(t ChallengeTable, dominant []vibeagent.Category, entries []vibeagent.CatalogEntry, k int) []vibeagent.CatalogEntry {
	opposites := t.Opposites(dominant)
	rank := make(map[vibeagent.Category]int, len(opposites))
	for i, c := range opposites {
		rank[c] = len(opposites) - i
	}

	var pool []vibeagent.CatalogEntry
	for _, e := range entries {
		if rank[e.Category] > 0 {
			pool = append(pool, e)
		}
	}
	return SelectDiverse(pool,
		func(e vibeagent.CatalogEntry) float64 { return float64(rank[e.Category]) },
		func(e vibeagent.CatalogEntry) string { return string(e.Category) },
		k,
	)
}
