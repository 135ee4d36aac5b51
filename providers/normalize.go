package providers

import (
	"fmt"
	"math"
	"strings"

	"vibeagent"
)

const (
	MethodGooglePlaces = "Google Places API"
	MethodOverpass     = "OpenStreetMap Overpass"
	MethodOpenTripMap  = "OpenTripMap"
)

// RawVenue is the closed set of provider payloads Normalize understands.
type RawVenue interface {
	rawVenue()
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googleGeometry struct {
	Location latLng `json:"location"`
}

type GooglePlace struct {
	PlaceID          string         `json:"place_id"`
	Name             string         `json:"name"`
	Geometry         googleGeometry `json:"geometry"`
	Rating           float64        `json:"rating"`
	UserRatingsTotal int            `json:"user_ratings_total"`
	PriceLevel       int            `json:"price_level"`
	Types            []string       `json:"types"`
	Vicinity         string         `json:"vicinity"`
	FormattedAddress string         `json:"formatted_address"`
}

type latLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type OverpassElement struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *latLon           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags"`
}

type OTMPlace struct {
	XID   string  `json:"xid"`
	Name  string  `json:"name"`
	Rate  float64 `json:"rate"`
	Kinds string  `json:"kinds"`
	Point latLon  `json:"point"`
}

func (GooglePlace) rawVenue()     {}
func (OverpassElement) rawVenue() {}
func (OTMPlace) rawVenue()        {}

// Normalize maps any provider payload onto a VerifiedVenue. The second result is
// false when the payload lacks an id, a name or coordinates.
func Normalize(raw RawVenue) (vibeagent.VerifiedVenue, bool) {
	var v vibeagent.VerifiedVenue
	switch r := raw.(type) {
	case GooglePlace:
		address := r.Vicinity
		if address == "" {
			address = r.FormattedAddress
		}
		v = vibeagent.VerifiedVenue{
			PlaceID:          r.PlaceID,
			Name:             r.Name,
			Provider:         vibeagent.ProviderGoogle,
			Coords:           vibeagent.Location{Lat: r.Geometry.Location.Lat, Lon: r.Geometry.Location.Lng},
			Rating:           r.Rating,
			UserRatingsTotal: r.UserRatingsTotal,
			PriceLevel:       r.PriceLevel,
			Types:            r.Types,
			Address:          address,
			Evidence: vibeagent.Evidence{
				Types:              r.Types,
				VerificationMethod: MethodGooglePlaces,
			},
		}

	case OverpassElement:
		lat, lon := r.Lat, r.Lon
		if r.Center != nil {
			lat, lon = r.Center.Lat, r.Center.Lon
		}
		name := r.Tags["name"]
		if name == "" {
			name = r.Tags["ref"]
		}
		v = vibeagent.VerifiedVenue{
			PlaceID:  fmt.Sprintf("%s/%d", r.Type, r.ID),
			Name:     name,
			Provider: vibeagent.ProviderOSM,
			Coords:   vibeagent.Location{Lat: lat, Lon: lon},
			Types:    osmTypes(r.Tags),
			Address:  r.Tags["addr:city"],
			Evidence: vibeagent.Evidence{
				Tags:               r.Tags,
				VerificationMethod: MethodOverpass,
			},
		}
		if r.ID == 0 {
			v.PlaceID = ""
		}

	case OTMPlace:
		kinds := splitKinds(r.Kinds)
		v = vibeagent.VerifiedVenue{
			PlaceID:  r.XID,
			Name:     r.Name,
			Provider: vibeagent.ProviderOTM,
			Coords:   vibeagent.Location{Lat: r.Point.Lat, Lon: r.Point.Lon},
			Rating:   otmRating(r.Rate),
			Types:    kinds,
			Evidence: vibeagent.Evidence{
				Kinds:              kinds,
				VerificationMethod: MethodOpenTripMap,
			},
		}

	default:
		return vibeagent.VerifiedVenue{}, false
	}

	if v.PlaceID == "" || strings.TrimSpace(v.Name) == "" || (v.Coords.Lat == 0 && v.Coords.Lon == 0) {
		return vibeagent.VerifiedVenue{}, false
	}
	return v, true
}

// NormalizeAll keeps the payloads that normalize cleanly.
func NormalizeAll[R RawVenue](raws []R) []vibeagent.VerifiedVenue {
	out := make([]vibeagent.VerifiedVenue, 0, len(raws))
	for _, r := range raws {
		if v, ok := Normalize(r); ok {
			out = append(out, v)
		}
	}
	return out
}

var osmTypeKeys = []string{"tourism", "leisure", "amenity", "natural", "sport", "historic", "route", "shop"}

func osmTypes(tags map[string]string) []string {
	var out []string
	for _, k := range osmTypeKeys {
		if v, ok := tags[k]; ok && v != "" {
			out = append(out, v)
		}
	}
	return out
}

func splitKinds(kinds string) []string {
	var out []string
	for _, k := range strings.Split(kinds, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// otmRating stretches OpenTripMap's 1..3 popularity rate onto a 1..5 scale.
func otmRating(rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	return math.Min(5, math.Max(1, math.Round(rate*1.67*10)/10))
}
