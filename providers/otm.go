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
)

const (
	maxOTMRadius = 100000
	otmLimit     = 25
)

type OpenTripMap struct {
	endpoint string
	apiKey   string
	client   vibeagent.HTTPClient
}

func NewOpenTripMap(endpoint, apiKey string, client vibeagent.HTTPClient) *OpenTripMap {
	return &OpenTripMap{endpoint: strings.TrimRight(endpoint, "/"), apiKey: apiKey, client: client}
}

func (o *OpenTripMap) Name() string  { return vibeagent.ProviderOTM }
func (o *OpenTripMap) Title() string { return "OpenTripMap" }
func (o *OpenTripMap) Description() string {
	return "Finds points of interest by kind (castles, fortified churches, museums, thermal baths, viewpoints, natural sights) around a point. Use otmKinds with OpenTripMap kind names."
}

func (o *OpenTripMap) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"location":     locationSchema(),
			"radiusMeters": radiusSchema(maxOTMRadius),
			"otmKinds": {
				Type:        "array",
				Items:       &jsonschema.Schema{Type: "string"},
				Description: "OpenTripMap kinds, e.g. castles, museums, thermal_baths",
			},
			"textQuery": {Type: "string", Description: "Name prefix to match"},
		},
		Required: []string{"location", "radiusMeters"},
	}
}

func (o *OpenTripMap) Query(ctx context.Context, q vibeagent.ProviderQuery) ([]vibeagent.VerifiedVenue, error) {
	params := url.Values{}
	params.Set("apikey", o.apiKey)
	params.Set("lat", strconv.FormatFloat(q.Location.Lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(q.Location.Lon, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(min(q.RadiusMeters, maxOTMRadius)))
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(otmLimit))
	params.Set("rate", "1")
	if len(q.OtmKinds) > 0 {
		params.Set("kinds", strings.Join(q.OtmKinds, ","))
	}

	path := "/places/radius"
	if q.TextQuery != "" {
		path = "/places/autosuggest"
		params.Set("name", q.TextQuery)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.endpoint+path+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opentripmap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(o.Name(), resp)
	}

	var places []OTMPlace
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		return nil, fmt.Errorf("failed to decode opentripmap response: %w", err)
	}
	return NormalizeAll(places), nil
}
