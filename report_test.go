package vibeagent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vibeagent"
)

func TestQualityMetrics(t *testing.T) {
	rec := func(cat vibeagent.Category, venues int, confidence float64) vibeagent.ActivityRecommendation {
		return vibeagent.ActivityRecommendation{
			Intent:         vibeagent.ActivityIntent{Category: cat},
			VerifiedVenues: make([]vibeagent.VerifiedVenue, venues),
			Confidence:     confidence,
		}
	}

	tests := []struct {
		name                     string
		recs                     []vibeagent.ActivityRecommendation
		verified, diverse, confi float64
	}{
		{name: "empty"},
		{
			name:     "mixed",
			recs:     []vibeagent.ActivityRecommendation{rec(vibeagent.CategoryNature, 2, 0.9), rec(vibeagent.CategoryNature, 0, 0.5), rec(vibeagent.CategoryCulture, 1, 0.7), rec(vibeagent.CategoryWater, 1, 0.5)},
			verified: 0.75,
			diverse:  0.75,
			confi:    0.65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, d, c := vibeagent.QualityMetrics(vibeagent.ActivityCuration{Recommendations: tt.recs})
			assert.InDelta(t, tt.verified, v, 1e-9)
			assert.InDelta(t, tt.diverse, d, 1e-9)
			assert.InDelta(t, tt.confi, c, 1e-9)
		})
	}
}

func TestExecutionReport(t *testing.T) {
	r := vibeagent.ExecutionReport{Stages: []vibeagent.StageReport{
		{Stage: vibeagent.StagePropose, Success: true},
		{Stage: vibeagent.StagePlan, Fallback: true},
		{Stage: vibeagent.StageVerify, Success: true},
		{Stage: vibeagent.StageCurate, Fallback: true},
	}}

	assert.Equal(t, 2, r.FallbackCount())

	sr, ok := r.Stage(vibeagent.StagePlan)
	assert.True(t, ok)
	assert.True(t, sr.Fallback)

	_, ok = r.Stage(vibeagent.StageDone)
	assert.False(t, ok)
}

func TestVerifiedVenue(t *testing.T) {
	v := vibeagent.VerifiedVenue{PlaceID: "p1", Provider: vibeagent.ProviderOSM}
	assert.Equal(t, "osm:p1", v.Key())
	assert.False(t, v.Verified())

	v.Evidence = vibeagent.Evidence{Tags: map[string]string{"tourism": "museum"}}
	assert.False(t, v.Verified(), "evidence without a method")

	v.Evidence.VerificationMethod = "osm_tags"
	assert.True(t, v.Verified())
}
