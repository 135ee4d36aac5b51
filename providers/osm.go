package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"vibeagent"
)

const (
	maxOverpassRadius  = 50000
	overpassResultCap  = 25
	overpassTimeoutSec = 25
)

// Overpass queries OpenStreetMap through the Overpass API. It is the trail, peak and
// outdoor area source.
type Overpass struct {
	endpoint string
	client   vibeagent.HTTPClient
}

func NewOverpass(endpoint string, client vibeagent.HTTPClient) *Overpass {
	return &Overpass{endpoint: endpoint, client: client}
}

func (o *Overpass) Name() string  { return vibeagent.ProviderOSM }
func (o *Overpass) Title() string { return "OpenStreetMap Overpass" }
func (o *Overpass) Description() string {
	return "Finds mapped outdoor features (hiking routes, peaks, waterfalls, caves, climbing areas) around a point. Use type as an OSM tag filter such as natural=peak or route=hiking, or pass a complete osmQL query."
}

func (o *Overpass) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"location":     locationSchema(),
			"radiusMeters": radiusSchema(maxOverpassRadius),
			"type":         {Type: "string", Description: "OSM tag filter key=value, e.g. natural=waterfall"},
			"keywords":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Name fragments matched case-insensitively"},
			"osmQL":        {Type: "string", Description: "Raw Overpass QL; overrides type and keywords"},
		},
		Required: []string{"location", "radiusMeters"},
	}
}

type overpassResponse struct {
	Elements []OverpassElement `json:"elements"`
}

func (o *Overpass) Query(ctx context.Context, q vibeagent.ProviderQuery) ([]vibeagent.VerifiedVenue, error) {
	ql := q.OsmQL
	if ql == "" {
		ql = BuildOverpassQL(q)
	}

	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(o.Name(), resp)
	}

	var body overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode overpass response: %w", err)
	}
	return NormalizeAll(body.Elements), nil
}

// BuildOverpassQL turns a structured query into Overpass QL over nodes, ways and
// relations around the query point. Only named features are returned.
func BuildOverpassQL(q vibeagent.ProviderQuery) string {
	filter := `["name"]`
	if k, v, ok := strings.Cut(q.Type, "="); ok {
		filter += fmt.Sprintf(`[%q=%q]`, strings.TrimSpace(k), strings.TrimSpace(v))
	} else if q.Type != "" {
		filter += fmt.Sprintf(`[%q]`, strings.TrimSpace(q.Type))
	}
	if len(q.Keywords) > 0 {
		filter += fmt.Sprintf(`["name"~%q,i]`, strings.Join(q.Keywords, "|"))
	}

	around := fmt.Sprintf("(around:%d,%f,%f)", min(q.RadiusMeters, maxOverpassRadius), q.Location.Lat, q.Location.Lon)
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];(", overpassTimeoutSec)
	for _, kind := range []string{"node", "way", "relation"} {
		b.WriteString(kind + filter + around + ";")
	}
	fmt.Fprintf(&b, ");out center %d;", overpassResultCap)
	return b.String()
}
