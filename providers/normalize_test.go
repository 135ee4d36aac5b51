package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vibeagent"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name   string
		raw    RawVenue
		wantOK bool
		check  func(t *testing.T, v vibeagent.VerifiedVenue)
	}{
		{
			name: "google place keeps rating and types as evidence",
			raw: GooglePlace{
				PlaceID:          "ChIJ1",
				Name:             "Via Ferrata Tampa",
				Geometry:         googleGeometry{Location: latLng{Lat: 45.63, Lng: 25.59}},
				Rating:           4.7,
				UserRatingsTotal: 812,
				Types:            []string{"tourist_attraction", "point_of_interest"},
				FormattedAddress: "Brasov",
			},
			wantOK: true,
			check: func(t *testing.T, v vibeagent.VerifiedVenue) {
				assert.Equal(t, "google:ChIJ1", v.Key())
				assert.Equal(t, 25.59, v.Coords.Lon)
				assert.Equal(t, "Brasov", v.Address)
				assert.Equal(t, MethodGooglePlaces, v.Evidence.VerificationMethod)
				assert.True(t, v.Verified())
			},
		},
		{
			name: "overpass way uses its center",
			raw: OverpassElement{
				Type:   "way",
				ID:     42,
				Center: &latLon{Lat: 45.5, Lon: 25.3},
				Tags:   map[string]string{"name": "Cascada Urlatoarea", "natural": "waterfall"},
			},
			wantOK: true,
			check: func(t *testing.T, v vibeagent.VerifiedVenue) {
				assert.Equal(t, "way/42", v.PlaceID)
				assert.Equal(t, 45.5, v.Coords.Lat)
				assert.Equal(t, []string{"waterfall"}, v.Types)
				assert.Equal(t, MethodOverpass, v.Evidence.VerificationMethod)
			},
		},
		{
			name:   "overpass element without a name is dropped",
			raw:    OverpassElement{Type: "node", ID: 7, Lat: 45, Lon: 25, Tags: map[string]string{"natural": "peak"}},
			wantOK: false,
		},
		{
			name: "opentripmap rate is stretched to five stars",
			raw: OTMPlace{
				XID:   "R123",
				Name:  "Bran Castle",
				Rate:  3,
				Kinds: "castles, historic,,interesting_places",
				Point: latLon{Lat: 45.51, Lon: 25.36},
			},
			wantOK: true,
			check: func(t *testing.T, v vibeagent.VerifiedVenue) {
				assert.Equal(t, 5.0, v.Rating)
				assert.Equal(t, []string{"castles", "historic", "interesting_places"}, v.Evidence.Kinds)
			},
		},
		{
			name:   "zero coordinates are rejected",
			raw:    GooglePlace{PlaceID: "x", Name: "Nowhere"},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Normalize(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			if tt.check != nil {
				tt.check(t, v)
			}
		})
	}
}

func TestOTMRating(t *testing.T) {
	assert.Equal(t, 0.0, otmRating(0))
	assert.Equal(t, 1.7, otmRating(1))
	assert.Equal(t, 3.3, otmRating(2))
	assert.Equal(t, 5.0, otmRating(7))
}

func TestNormalizeAll_SkipsInvalid(t *testing.T) {
	venues := NormalizeAll([]OTMPlace{
		{XID: "a", Name: "Peles Castle", Rate: 2, Kinds: "castles", Point: latLon{Lat: 45.36, Lon: 25.54}},
		{XID: "", Name: "No id", Point: latLon{Lat: 45, Lon: 25}},
	})
	assert.Len(t, venues, 1)
	assert.Equal(t, "Peles Castle", venues[0].Name)
}
