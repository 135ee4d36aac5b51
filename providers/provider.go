// Package providers holds the venue sources the Verify stage queries: Google Places,
// OpenStreetMap Overpass and OpenTripMap, plus the rate limiting, circuit breaking
// and caching wrapped around them.
package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"vibeagent"
	"vibeagent/guard"
)

// Provider is one venue source. InputSchema describes the query fields the provider
// honours so the planner can be shown it like a tool.
type Provider interface {
	Name() string
	Title() string
	Description() string
	InputSchema() *jsonschema.Schema
	Query(ctx context.Context, q vibeagent.ProviderQuery) ([]vibeagent.VerifiedVenue, error)
}

const maxErrorBody = 512

// statusError maps a non-2xx response onto the guard taxonomy: 429 is a rate limit,
// 5xx is a transient network failure, anything else is permanent.
func statusError(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := fmt.Sprintf("%s returned %s: %s", provider, resp.Status, string(body))
	ctx := map[string]any{"provider": provider, "status": resp.StatusCode}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return guard.NewError(guard.KindRateLimit, msg, ctx)
	case resp.StatusCode >= 500:
		return guard.NewError(guard.KindNetwork, msg, ctx)
	default:
		return guard.NewError(guard.KindUnknown, msg, ctx)
	}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func locationSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"lat": {Type: "number", Minimum: floatPtr(-90), Maximum: floatPtr(90)},
			"lon": {Type: "number", Minimum: floatPtr(-180), Maximum: floatPtr(180)},
		},
		Required: []string{"lat", "lon"},
	}
}

func radiusSchema(maxMeters float64) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "integer",
		Description: "Search radius in meters",
		Minimum:     floatPtr(100),
		Maximum:     floatPtr(maxMeters),
	}
}
