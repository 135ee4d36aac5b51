package guard

import (
	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"vibeagent"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func enum(values ...string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func str(minLen int, desc string) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "string", Description: desc}
	if minLen > 0 {
		s.MinLength = intPtr(minLen)
	}
	return s
}

func num(lo, hi float64, desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Minimum: floatPtr(lo), Maximum: floatPtr(hi), Description: desc}
}

func integer(lo, hi float64) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "integer", Minimum: floatPtr(lo)}
	if hi > lo {
		s.Maximum = floatPtr(hi)
	}
	return s
}

func stringList(minItems int) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}}
	if minItems > 0 {
		s.MinItems = intPtr(minItems)
	}
	return s
}

func location() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"lat": num(-90, 90, ""),
			"lon": num(-180, 180, ""),
		},
		Required: []string{"lat", "lon"},
	}
}

// ActivityIntentContract describes one proposed intent.
func ActivityIntentContract() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":            str(1, "Stable identifier for the intent"),
			"label":         str(1, "Short human label"),
			"category":      {Type: "string", Enum: enum(vibeagent.CategoryNames()...)},
			"subtypes":      stringList(1),
			"regions":       stringList(1),
			"energy":        {Type: "string", Enum: enum("low", "medium", "high")},
			"indoorOutdoor": {Type: "string", Enum: enum("indoor", "outdoor", "either")},
			"vibeAlignment": str(1, "How the intent matches the vibe"),
			"confidence":    num(0, 1, ""),
			"requiresFood":  {Type: "boolean"},
		},
		Required: []string{"id", "label", "category", "subtypes", "regions", "vibeAlignment", "confidence"},
	}
}

// ProposedActivitiesContract is the Propose stage output.
func ProposedActivitiesContract() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"intents": {
				Type:     "array",
				Items:    ActivityIntentContract(),
				MinItems: intPtr(1),
				MaxItems: intPtr(8),
			},
			"selectionRationale": str(10, "Why these intents were chosen"),
		},
		Required: []string{"intents", "selectionRationale"},
	}
}

// VerificationQueryContract describes one provider query.
func VerificationQueryContract() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"intentId": str(1, "Id of the intent this query verifies"),
			"provider": {Type: "string", Enum: enum(vibeagent.ProviderNames()...)},
			"query": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"location":     location(),
					"radiusMeters": integer(100, 200000),
					"type":         {Type: "string"},
					"keywords":     stringList(0),
					"textQuery":    {Type: "string"},
					"osmQL":        {Type: "string"},
					"otmKinds":     stringList(0),
				},
				Required: []string{"location", "radiusMeters"},
			},
			"priority":           integer(1, 5),
			"expectedResultType": {Type: "string", Enum: enum("venues", "routes", "areas", "points")},
		},
		Required: []string{"intentId", "provider", "query", "priority", "expectedResultType"},
	}
}

// VerificationPlanContract is the Plan stage output.
func VerificationPlanContract() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"queries": {
				Type:     "array",
				Items:    VerificationQueryContract(),
				MinItems: intPtr(1),
				MaxItems: intPtr(20),
			},
			"estimatedCalls": integer(1, 20),
			"strategy":       str(10, "How the queries cover the intents"),
		},
		Required: []string{"queries", "estimatedCalls", "strategy"},
	}
}

// VerifiedVenueContract describes one venue returned by a provider.
func VerifiedVenueContract() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"placeId":          str(1, ""),
			"name":             str(1, ""),
			"provider":         {Type: "string", Enum: enum(vibeagent.ProviderNames()...)},
			"coords":           location(),
			"rating":           num(0, 5, ""),
			"userRatingsTotal": integer(0, 0),
			"priceLevel":       integer(0, 4),
			"types":            stringList(0),
			"address":          {Type: "string"},
			"evidence": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"types":              stringList(0),
					"tags":               {Type: "object"},
					"kinds":              stringList(0),
					"verificationMethod": str(1, ""),
				},
				Required: []string{"verificationMethod"},
			},
		},
		Required: []string{"placeId", "name", "provider", "coords", "evidence"},
	}
}

// ActivityRecommendationContract describes one curated recommendation.
func ActivityRecommendationContract() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"intent": ActivityIntentContract(),
			"verifiedVenues": {
				Type:     "array",
				Items:    VerifiedVenueContract(),
				MinItems: intPtr(1),
				MaxItems: intPtr(3),
			},
			"weatherSuitability": {Type: "string", Enum: enum("good", "ok", "bad")},
			"rationale":          str(20, "Why this recommendation fits"),
			"confidence":         num(0, 1, ""),
			"personalizationFactors": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"interestMatch":    num(0, 1, ""),
					"energyMatch":      num(0, 1, ""),
					"profileAlignment": num(0, 1, ""),
					"mlWeightBoost":    {Type: "number"},
				},
				Required: []string{"interestMatch", "energyMatch", "profileAlignment"},
			},
		},
		Required: []string{"intent", "verifiedVenues", "weatherSuitability", "rationale", "confidence", "personalizationFactors"},
	}
}

// CurationContract is the Curate stage output.
func CurationContract() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"recommendations": {
				Type:     "array",
				Items:    ActivityRecommendationContract(),
				MaxItems: intPtr(5),
			},
			"topFive": {
				Type:     "array",
				Items:    &jsonschema.Schema{Type: "string"},
				MaxItems: intPtr(5),
			},
			"rationale": str(20, "Overall curation rationale"),
			"metadata": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"totalIntentsProposed":      integer(0, 0),
					"totalIntentsVerified":      integer(0, 0),
					"totalVenuesFound":          integer(0, 0),
					"weatherConstraintsApplied": integer(0, 0),
					"diversityScore":            num(0, 1, ""),
				},
				Required: []string{"totalIntentsProposed", "totalIntentsVerified", "totalVenuesFound", "weatherConstraintsApplied", "diversityScore"},
			},
		},
		Required: []string{"recommendations", "topFive", "rationale", "metadata"},
	}
}
