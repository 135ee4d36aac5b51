package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"vibeagent"
	"vibeagent/guard"
)

const maxGoogleRadius = 50000

type GooglePlaces struct {
	endpoint string
	apiKey   string
	client   vibeagent.HTTPClient
}

func NewGooglePlaces(endpoint, apiKey string, client vibeagent.HTTPClient) *GooglePlaces {
	return &GooglePlaces{endpoint: strings.TrimRight(endpoint, "/"), apiKey: apiKey, client: client}
}

func (g *GooglePlaces) Name() string  { return vibeagent.ProviderGoogle }
func (g *GooglePlaces) Title() string { return "Google Places" }
func (g *GooglePlaces) Description() string {
	return "Finds rated venues (parks, museums, spas, climbing gyms, attractions) near a point. Best for venues with reviews. Use textQuery for free text or type plus keywords for a nearby search."
}

func (g *GooglePlaces) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"location":     locationSchema(),
			"radiusMeters": radiusSchema(maxGoogleRadius),
			"type":         {Type: "string", Description: "Google place type, e.g. park, museum, spa"},
			"keywords":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			"textQuery":    {Type: "string", Description: "Free text search, e.g. via ferrata near Brasov"},
		},
		Required: []string{"location", "radiusMeters"},
	}
}

type googleResponse struct {
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message"`
	Results      []GooglePlace `json:"results"`
}

// Query runs a text search when TextQuery is set and a nearby search otherwise.
func (g *GooglePlaces) Query(ctx context.Context, q vibeagent.ProviderQuery) ([]vibeagent.VerifiedVenue, error) {
	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("location", fmt.Sprintf("%f,%f", q.Location.Lat, q.Location.Lon))
	params.Set("radius", strconv.Itoa(min(q.RadiusMeters, maxGoogleRadius)))

	path := "/nearbysearch/json"
	if q.TextQuery != "" {
		path = "/textsearch/json"
		params.Set("query", q.TextQuery)
	} else {
		if q.Type != "" {
			params.Set("type", q.Type)
		}
		if len(q.Keywords) > 0 {
			params.Set("keyword", strings.Join(q.Keywords, " "))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google places request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(g.Name(), resp)
	}

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode google places response: %w", err)
	}

	switch body.Status {
	case "OK", "ZERO_RESULTS":
	case "OVER_QUERY_LIMIT":
		return nil, guard.NewError(guard.KindRateLimit, "google places quota exceeded", map[string]any{"provider": g.Name()})
	default:
		return nil, guard.NewError(guard.KindUnknown, fmt.Sprintf("google places status %s: %s", body.Status, body.ErrorMessage), map[string]any{"provider": g.Name()})
	}

	return NormalizeAll(body.Results), nil
}
