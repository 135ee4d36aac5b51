// Package aggregate merges provider results into ranked venue shortlists and builds
// the deterministic curation used when the model's curation cannot be trusted.
package aggregate

import (
	"math"

	"vibeagent"
)

const (
	earthRadiusKm          = 6371.0
	DefaultAverageSpeedKmh = 40.0
)

// Candidate is a venue together with the intent whose query found it.
type Candidate struct {
	Venue    vibeagent.VerifiedVenue `json:"venue"`
	IntentID string                  `json:"intentId"`
}

// Merge flattens successful results and removes duplicates by provider-native id. On
// a collision the higher rated copy wins; ties keep the first one seen.
func Merge(results []vibeagent.ProviderResult) []Candidate {
	index := map[string]int{}
	var out []Candidate
	for _, r := range results {
		if !r.Success {
			continue
		}
		for _, v := range r.Venues {
			c := Candidate{Venue: v, IntentID: r.IntentID}
			i, seen := index[v.Key()]
			if !seen {
				index[v.Key()] = len(out)
				out = append(out, c)
				continue
			}
			if v.Rating > out[i].Venue.Rating {
				out[i] = c
			}
		}
	}
	return out
}

// Haversine is the great-circle distance between a and b in kilometres.
func Haversine(a, b vibeagent.Location) float64 {
	lat1, lat2 := radians(a.Lat), radians(b.Lat)
	dLat := lat2 - lat1
	dLon := radians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Geofilter reports whether the candidate lies within maxKm of origin.
func Geofilter(c Candidate, origin vibeagent.Location, maxKm float64) bool {
	return Haversine(origin, c.Venue.Coords) <= maxKm
}

type FilterOptions struct {
	Origin           *vibeagent.Location
	MaxDistanceKm    float64
	MaxTravelMinutes float64
	AverageSpeedKmh  float64
	// RequiresFood lets dining venues through for every intent.
	RequiresFood bool
	Intents      map[string]vibeagent.ActivityIntent
}

// Filter drops unverified venues, dining venues nobody asked for, and venues too far
// to reach. Order is preserved.
func Filter(cs []Candidate, opts FilterOptions) []Candidate {
	speed := opts.AverageSpeedKmh
	if speed <= 0 {
		speed = DefaultAverageSpeedKmh
	}

	out := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		if !c.Venue.Verified() {
			continue
		}
		if isFood(c.Venue) && !foodAllowed(c, opts) {
			continue
		}
		if opts.Origin != nil {
			km := Haversine(*opts.Origin, c.Venue.Coords)
			if opts.MaxTravelMinutes > 0 && km/speed*60 > opts.MaxTravelMinutes {
				continue
			}
			if opts.MaxDistanceKm > 0 && km > opts.MaxDistanceKm {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func isFood(v vibeagent.VerifiedVenue) bool {
	return vibeagent.HasFoodType(v.Types, v.Evidence.Types, v.Evidence.Kinds)
}

// PremiumCulinary reports whether a dining venue is notable enough to keep anyway.
func PremiumCulinary(v vibeagent.VerifiedVenue) bool {
	return v.PriceLevel >= vibeagent.PremiumCulinaryMinPriceLevel && v.Rating >= vibeagent.PremiumCulinaryMinRating
}

func foodAllowed(c Candidate, opts FilterOptions) bool {
	if opts.RequiresFood || PremiumCulinary(c.Venue) {
		return true
	}
	intent, ok := opts.Intents[c.IntentID]
	return ok && (intent.RequiresFood || intent.Category == vibeagent.CategoryCulinary)
}

// ByIntent groups candidates by originating intent, keeping order.
func ByIntent(cs []Candidate) map[string][]Candidate {
	out := make(map[string][]Candidate)
	for _, c := range cs {
		out[c.IntentID] = append(out[c.IntentID], c)
	}
	return out
}
