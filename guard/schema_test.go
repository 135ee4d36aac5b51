package guard

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibeagent"
)

const validProposal = `{
  "intents": [
    {
      "id": "bucegi-hike",
      "label": "Bucegi ridge hike",
      "category": "nature",
      "subtypes": ["hiking"],
      "regions": ["Brasov"],
      "vibeAlignment": "Quiet trails above the clouds",
      "confidence": 0.8
    }
  ],
  "selectionRationale": "A calm outdoor day fits the vibe"
}`

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind Kind
		wantCode string
		field    string
	}{
		{
			name: "plain json",
			raw:  validProposal,
		},
		{
			name: "fenced json with prose",
			raw:  "Here you go:\n```json\n" + validProposal + "\n```\nEnjoy!",
		},
		{
			name:     "no json at all",
			raw:      "I could not think of anything",
			wantKind: KindParse,
		},
		{
			name:     "truncated json",
			raw:      `{"intents": [`,
			wantKind: KindParse,
		},
		{
			name:     "category outside the closed set",
			raw:      replaceJSON(t, validProposal, "intents.0.category", "ADVENTURE"),
			wantKind: KindValidation,
			wantCode: CodeEnum,
			field:    "intents.0.category",
		},
		{
			name:     "missing rationale",
			raw:      `{"intents": [{"id":"a","label":"A","category":"nature","subtypes":["hiking"],"regions":["x"],"vibeAlignment":"y","confidence":0.5}]}`,
			wantKind: KindValidation,
			wantCode: CodeRequired,
			field:    "selectionRationale",
		},
		{
			name:     "confidence out of range",
			raw:      replaceJSON(t, validProposal, "intents.0.confidence", 1.5),
			wantKind: KindValidation,
			wantCode: CodeRange,
			field:    "intents.0.confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Validate[vibeagent.ProposedActivities](ProposedActivitiesContract(), tt.raw, "propose")
			if tt.wantKind == "" {
				require.NoError(t, err)
				require.Len(t, got.Data.Intents, 1)
				assert.Equal(t, vibeagent.CategoryNature, got.Data.Intents[0].Category)
				assert.False(t, got.Repaired)
				return
			}

			require.Error(t, err)
			gerr := Classify(err)
			assert.Equal(t, tt.wantKind, gerr.Kind)
			if tt.wantCode != "" {
				assert.Contains(t, gerr.Violations, Violation{Field: tt.field, Code: tt.wantCode, Message: findMessage(gerr.Violations, tt.field)})
			}
		})
	}
}

func TestValidateWithRepair(t *testing.T) {
	t.Run("enum snapped to the closest option", func(t *testing.T) {
		raw := replaceJSON(t, validProposal, "intents.0.category", "Nature Walks")
		got, err := ValidateWithRepair[vibeagent.ProposedActivities](ProposedActivitiesContract(), raw, "propose")
		require.NoError(t, err)
		assert.True(t, got.Repaired)
		assert.Equal(t, vibeagent.CategoryNature, got.Data.Intents[0].Category)
		assert.Len(t, got.ChangeLog, 1)
	})

	t.Run("default that still violates stays an error", func(t *testing.T) {
		raw := `{"intents": [{"id":"a","label":"A","category":"nature","subtypes":["hiking"],"regions":["x"],"vibeAlignment":"y","confidence":0.5}]}`
		_, err := ValidateWithRepair[vibeagent.ProposedActivities](ProposedActivitiesContract(), raw, "propose")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("identifiers are never invented", func(t *testing.T) {
		raw := `{"intents": [{"label":"A","category":"nature","subtypes":["hiking"],"regions":["x"],"vibeAlignment":"y","confidence":0.5}], "selectionRationale": "long enough rationale"}`
		_, err := ValidateWithRepair[vibeagent.ProposedActivities](ProposedActivitiesContract(), raw, "propose")
		require.Error(t, err)
		gerr := Classify(err)
		require.Len(t, gerr.Violations, 1)
		assert.Equal(t, "intents.0.id", gerr.Violations[0].Field)
	})

	t.Run("valid input is untouched", func(t *testing.T) {
		got, err := ValidateWithRepair[vibeagent.ProposedActivities](ProposedActivitiesContract(), validProposal, "propose")
		require.NoError(t, err)
		assert.False(t, got.Repaired)
		assert.Empty(t, got.ChangeLog)
	})
}

func TestRepair(t *testing.T) {
	contract := ProposedActivitiesContract()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(replaceJSON(t, validProposal, "intents.0.category", "CULTURE")), &doc))
	violations := []Violation{{Field: "intents.0.category", Code: CodeEnum}}

	first := Repair(contract, doc, violations)
	require.True(t, first.Changed)
	cat, _ := lookup(first.Value, []string{"intents", "0", "category"})
	assert.Equal(t, "culture", cat)

	original, _ := lookup(doc, []string{"intents", "0", "category"})
	assert.Equal(t, "CULTURE", original, "input must not be modified")

	again := Repair(contract, first.Value, violations)
	assert.False(t, again.Changed, "repairing a repaired value is a no-op")
	assert.Equal(t, first.Value, again.Value)

	none := Repair(contract, doc, nil)
	assert.False(t, none.Changed)
	assert.Equal(t, doc, none.Value)
}

func TestRepairTruncatesAndFillsDefaults(t *testing.T) {
	maxLen := 5
	contract := ProposedActivitiesContract()
	contract.Properties["selectionRationale"].MaxLength = &maxLen

	doc := map[string]any{"selectionRationale": "much too long", "intents": []any{map[string]any{"label": "x"}}}
	res := Repair(contract, doc, []Violation{
		{Field: "selectionRationale", Code: CodeMaxLength},
		{Field: "intents.0.confidence", Code: CodeRequired},
		{Field: "intents.0.subtypes", Code: CodeRequired},
		{Field: "intents.0.id", Code: CodeRequired},
	})

	require.True(t, res.Changed)
	out := res.Value.(map[string]any)
	assert.Equal(t, "much ", out["selectionRationale"])
	intent := out["intents"].([]any)[0].(map[string]any)
	assert.Equal(t, float64(0), intent["confidence"])
	assert.Equal(t, []any{}, intent["subtypes"])
	assert.NotContains(t, intent, "id")
	assert.Len(t, res.ChangeLog, 3)
}

func TestClosestEnum(t *testing.T) {
	opts := []any{"venues", "routes", "areas", "points"}
	tests := []struct {
		in   string
		want string
	}{
		{"ROUTES", "routes"},
		{"hiking routes", "routes"},
		{"area", "areas"},
		{"something else", "venues"},
		{"", "venues"},
	}
	for _, tt := range tests {
		got, ok := closestEnum(tt.in, opts)
		require.True(t, ok)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestAssertSubset(t *testing.T) {
	offending, err := AssertSubset([]string{"a", "x", "b", "x", "y"}, []string{"a", "b", "c"}, "curation.topFive")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHallucination)
	assert.Equal(t, []string{"x", "y"}, offending)

	gerr := Classify(err)
	assert.Equal(t, []string{"x", "y"}, gerr.Offending)
	assert.False(t, gerr.Retryable)

	offending, err = AssertSubset([]string{"a", "c"}, []string{"a", "b", "c"}, "curation.topFive")
	assert.NoError(t, err)
	assert.Empty(t, offending)

	_, err = AssertSubset(nil, nil, "empty")
	assert.NoError(t, err)
}

func TestCurationWarnings(t *testing.T) {
	venue := vibeagent.VerifiedVenue{PlaceID: "p1", Name: "Peles Castle", Evidence: vibeagent.Evidence{Types: []string{"museum"}, VerificationMethod: "google_places"}}
	c := vibeagent.ActivityCuration{
		Recommendations: []vibeagent.ActivityRecommendation{
			{
				Intent:         vibeagent.ActivityIntent{ID: "castle"},
				VerifiedVenues: []vibeagent.VerifiedVenue{venue},
				Rationale:      "Peles Castle has 4.7 stars from 20k reviews and is open all week",
			},
			{
				Intent:    vibeagent.ActivityIntent{ID: "spa"},
				Rationale: "A great place to unwind after a long week",
			},
			{
				Intent:         vibeagent.ActivityIntent{ID: "museum"},
				VerifiedVenues: []vibeagent.VerifiedVenue{{Name: "Unverified"}},
				Rationale:      "short",
			},
		},
		TopFive: []string{"castle", "ghost"},
	}

	got := CurationWarnings(c)
	assert.Equal(t, []string{
		"recommendation spa has no verified venues",
		"recommendation spa has a generic rationale",
		"recommendation museum has a generic rationale",
		"venue Unverified lacks verification evidence",
		"topFive contains ids not in recommendations: ghost",
	}, got)
}

func replaceJSON(t *testing.T, raw, path string, v any) string {
	t.Helper()
	var doc any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.True(t, assign(doc, splitPath(path), v))
	b, err := json.Marshal(doc)
	require.NoError(t, err)
	return string(b)
}

func findMessage(vs []Violation, field string) string {
	for _, v := range vs {
		if v.Field == field {
			return v.Message
		}
	}
	return ""
}

func TestCurationWarnings_RationaleLengthCountsCharacters(t *testing.T) {
	venue := vibeagent.VerifiedVenue{PlaceID: "p1", Name: "Bâlea Lac", Evidence: vibeagent.Evidence{Kinds: []string{"lakes"}, VerificationMethod: "opentripmap"}}
	tests := []struct {
		rationale string
		generic   bool
	}{
		{rationale: "Țărm, șes și cețuri la Bâlea", generic: true},     // 28 characters, 34 bytes
		{rationale: "Bâlea Lac: țărm, șes, și cețuri", generic: false}, // 31 characters
	}
	for _, tt := range tests {
		c := vibeagent.ActivityCuration{
			Recommendations: []vibeagent.ActivityRecommendation{{
				Intent:         vibeagent.ActivityIntent{ID: "lake"},
				VerifiedVenues: []vibeagent.VerifiedVenue{venue},
				Rationale:      tt.rationale,
			}},
			TopFive: []string{"lake"},
		}
		got := CurationWarnings(c)
		if tt.generic {
			assert.Equal(t, []string{"recommendation lake has a generic rationale"}, got, tt.rationale)
		} else {
			assert.Empty(t, got, tt.rationale)
		}
	}
}
