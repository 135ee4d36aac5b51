package vibeagent_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibeagent"
)

func TestIntentContextValidate(t *testing.T) {
	valid := func() vibeagent.IntentContext {
		return vibeagent.IntentContext{
			Vibe:               "quiet day by a lake",
			DetectedCategories: []vibeagent.Category{vibeagent.CategoryNature},
			RegionsSeed:        []vibeagent.RegionSeed{{Name: "Snagov", Lat: 44.7, Lon: 26.17}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*vibeagent.IntentContext)
		wantErr string
	}{
		{name: "valid", mutate: func(*vibeagent.IntentContext) {}},
		{name: "empty vibe", mutate: func(ic *vibeagent.IntentContext) { ic.Vibe = "" }, wantErr: "Vibe"},
		{name: "short vibe", mutate: func(ic *vibeagent.IntentContext) { ic.Vibe = "hi" }, wantErr: `"min"`},
		{
			name:    "unknown category",
			mutate:  func(ic *vibeagent.IntentContext) { ic.DetectedCategories = []vibeagent.Category{"shopping"} },
			wantErr: `"category"`,
		},
		{
			name:    "latitude out of range",
			mutate:  func(ic *vibeagent.IntentContext) { ic.RegionsSeed[0].Lat = 91 },
			wantErr: "Lat",
		},
		{
			name:    "unnamed region",
			mutate:  func(ic *vibeagent.IntentContext) { ic.RegionsSeed[0].Name = "" },
			wantErr: "Name",
		},
		{
			name:    "negative distance",
			mutate:  func(ic *vibeagent.IntentContext) { ic.MaxDistanceKm = -1 },
			wantErr: "MaxDistanceKm",
		},
		{
			name:    "energy outside the set",
			mutate:  func(ic *vibeagent.IntentContext) { ic.Profile.EnergyLevel = "extreme" },
			wantErr: "EnergyLevel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic := valid()
			tt.mutate(&ic)
			err := ic.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewIntentContext(t *testing.T) {
	ic, err := vibeagent.NewIntentContext(vibeagent.IntentContext{Vibe: "a tasting menu somewhere special"})
	require.NoError(t, err)
	assert.NotEmpty(t, ic.RunID)
	assert.True(t, ic.RequiresFood)

	ic, err = vibeagent.NewIntentContext(vibeagent.IntentContext{RunID: "fixed", Vibe: "a walk in the park"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", ic.RunID)
	assert.False(t, ic.RequiresFood)

	_, err = vibeagent.NewIntentContext(vibeagent.IntentContext{})
	assert.Error(t, err)
}

func TestDecodeRequest(t *testing.T) {
	catalog := vibeagent.Catalog{Version: "v1"}

	ic, err := vibeagent.DecodeRequest([]byte("  sunny hike with friends \n"), catalog)
	require.NoError(t, err)
	assert.Equal(t, "sunny hike with friends", ic.Vibe)
	assert.Equal(t, "v1", ic.Catalog.Version)

	ic, err = vibeagent.DecodeRequest([]byte(`{"vibe":"museum crawl","detectedCategories":["culture"],"maxDistanceKm":20}`), catalog)
	require.NoError(t, err)
	assert.Equal(t, []vibeagent.Category{vibeagent.CategoryCulture}, ic.DetectedCategories)
	assert.InDelta(t, 20, ic.MaxDistanceKm, 1e-9)

	_, err = vibeagent.DecodeRequest([]byte(`{"vibe":`), catalog)
	assert.ErrorContains(t, err, "decode request")

	_, err = vibeagent.DecodeRequest([]byte(`{"vibe":"ok vibe","detectedCategories":["shopping"]}`), catalog)
	assert.Error(t, err)
}

func TestFoodPolicy(t *testing.T) {
	assert.True(t, vibeagent.IsFoodType("Restaurant"))
	assert.False(t, vibeagent.IsFoodType("museum"))
	assert.True(t, vibeagent.HasFoodType([]string{"park"}, nil, []string{"foods"}))
	assert.False(t, vibeagent.HasFoodType([]string{"park"}, []string{"museum"}))

	tests := []struct {
		text     string
		keywords []string
		want     bool
	}{
		{text: "Michelin starred dinner", want: true},
		{text: "hiking and a picnic", want: false},
		{text: "something relaxed", keywords: []string{"wine pairing"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, vibeagent.ShouldEnableCulinary(tt.text, tt.keywords...))
		})
	}
}
