package providers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibeagent"
	"vibeagent/guard"
)

var brasov = vibeagent.Location{Lat: 45.6427, Lon: 25.5887}

func TestGooglePlaces_Query(t *testing.T) {
	tests := []struct {
		name     string
		query    vibeagent.ProviderQuery
		wantPath string
		check    func(t *testing.T, v url.Values)
	}{
		{
			name:     "text search",
			query:    vibeagent.ProviderQuery{Location: brasov, RadiusMeters: 5000, TextQuery: "via ferrata"},
			wantPath: "/textsearch/json",
			check: func(t *testing.T, v url.Values) {
				assert.Equal(t, "via ferrata", v.Get("query"))
				assert.Empty(t, v.Get("type"))
			},
		},
		{
			name:     "nearby search with keywords and clamped radius",
			query:    vibeagent.ProviderQuery{Location: brasov, RadiusMeters: 90000, Type: "park", Keywords: []string{"lake", "trail"}},
			wantPath: "/nearbysearch/json",
			check: func(t *testing.T, v url.Values) {
				assert.Equal(t, "park", v.Get("type"))
				assert.Equal(t, "lake trail", v.Get("keyword"))
				assert.Equal(t, "50000", v.Get("radius"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, "test-key", r.URL.Query().Get("key"))
				tt.check(t, r.URL.Query())
				io.WriteString(w, `{"status":"OK","results":[
					{"place_id":"p1","name":"Tampa","geometry":{"location":{"lat":45.63,"lng":25.59}},"rating":4.6,"user_ratings_total":120,"types":["park"]},
					{"place_id":"","name":"broken","geometry":{"location":{"lat":45.6,"lng":25.5}}}
				]}`)
			}))
			defer srv.Close()

			g := NewGooglePlaces(srv.URL+"/", "test-key", srv.Client())
			venues, err := g.Query(context.Background(), tt.query)
			require.NoError(t, err)
			require.Len(t, venues, 1)
			assert.Equal(t, "p1", venues[0].PlaceID)
			assert.Equal(t, vibeagent.ProviderGoogle, venues[0].Provider)
		})
	}
}

func TestGooglePlaces_StatusErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind guard.Kind
	}{
		{name: "http 429", status: http.StatusTooManyRequests, body: "slow down", wantKind: guard.KindRateLimit},
		{name: "http 503", status: http.StatusServiceUnavailable, body: "down", wantKind: guard.KindNetwork},
		{name: "http 403", status: http.StatusForbidden, body: "no", wantKind: guard.KindUnknown},
		{name: "quota status", status: http.StatusOK, body: `{"status":"OVER_QUERY_LIMIT"}`, wantKind: guard.KindRateLimit},
		{name: "denied status", status: http.StatusOK, body: `{"status":"REQUEST_DENIED","error_message":"bad key"}`, wantKind: guard.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewGooglePlaces(srv.URL, "k", srv.Client()).Query(context.Background(), vibeagent.ProviderQuery{Location: brasov, RadiusMeters: 1000})
			require.Error(t, err)
			var gerr *guard.Error
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tt.wantKind, gerr.Kind)
			assert.Equal(t, tt.wantKind.Retryable(), gerr.Retryable)
		})
	}
}

func TestOverpass_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		ql := r.PostForm.Get("data")
		assert.Contains(t, ql, `["natural"="waterfall"]`)
		assert.Contains(t, ql, "out center 25;")
		io.WriteString(w, `{"elements":[
			{"type":"node","id":1,"lat":45.5,"lon":25.4,"tags":{"name":"Cascada Urlatoarea","natural":"waterfall"}},
			{"type":"node","id":2,"lat":45.5,"lon":25.4,"tags":{"natural":"waterfall"}}
		]}`)
	}))
	defer srv.Close()

	o := NewOverpass(srv.URL, srv.Client())
	venues, err := o.Query(context.Background(), vibeagent.ProviderQuery{Location: brasov, RadiusMeters: 20000, Type: "natural=waterfall"})
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.Equal(t, "node/1", venues[0].PlaceID)
	assert.Equal(t, "waterfall", venues[0].Evidence.Tags["natural"])
}

func TestOverpass_RawQLWins(t *testing.T) {
	const raw = `[out:json];node["leisure"="sauna"](around:1000,45,25);out;`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, raw, r.PostForm.Get("data"))
		io.WriteString(w, `{"elements":[]}`)
	}))
	defer srv.Close()

	venues, err := NewOverpass(srv.URL, srv.Client()).Query(context.Background(), vibeagent.ProviderQuery{OsmQL: raw, Type: "ignored"})
	require.NoError(t, err)
	assert.Empty(t, venues)
}

func TestBuildOverpassQL(t *testing.T) {
	ql := BuildOverpassQL(vibeagent.ProviderQuery{
		Location:     vibeagent.Location{Lat: 45.5, Lon: 25.5},
		RadiusMeters: 80000,
		Type:         "route=hiking",
		Keywords:     []string{"Piatra", "Craiului"},
	})
	assert.True(t, strings.HasPrefix(ql, "[out:json][timeout:25];("))
	assert.Contains(t, ql, `node["name"]["route"="hiking"]["name"~"Piatra|Craiului",i](around:50000,45.500000,25.500000);`)
	assert.Contains(t, ql, "relation[")
}

func TestOpenTripMap_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/radius", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "castles,museums", q.Get("kinds"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "otm-key", q.Get("apikey"))
		io.WriteString(w, `[{"xid":"R1","name":"Bran Castle","rate":3,"kinds":"castles,historic","point":{"lat":45.51,"lon":25.36}}]`)
	}))
	defer srv.Close()

	o := NewOpenTripMap(srv.URL, "otm-key", srv.Client())
	venues, err := o.Query(context.Background(), vibeagent.ProviderQuery{Location: brasov, RadiusMeters: 30000, OtmKinds: []string{"castles", "museums"}})
	require.NoError(t, err)
	require.Len(t, venues, 1)
	assert.Equal(t, "otm:R1", venues[0].Key())
	assert.True(t, venues[0].Verified())
}

func TestOpenTripMap_Autosuggest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/places/autosuggest", r.URL.Path)
		assert.Equal(t, "Bran", r.URL.Query().Get("name"))
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	_, err := NewOpenTripMap(srv.URL, "k", srv.Client()).Query(context.Background(), vibeagent.ProviderQuery{Location: brasov, RadiusMeters: 1000, TextQuery: "Bran"})
	require.NoError(t, err)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(
		NewOverpass("http://x", http.DefaultClient),
		NewGooglePlaces("http://x", "", http.DefaultClient),
		NewOpenTripMap("http://x", "", http.DefaultClient),
	)
	assert.Equal(t, []string{"google", "osm", "otm"}, r.Names())

	p, err := r.Get(vibeagent.ProviderOSM)
	require.NoError(t, err)
	assert.Equal(t, "OpenStreetMap Overpass", p.Title())
	assert.NotNil(t, p.InputSchema().Properties["location"])

	_, err = r.Get("yelp")
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  vibeagent.ProviderConfig
		want []string
	}{
		{name: "no keys", cfg: vibeagent.ProviderConfig{}, want: []string{"osm"}},
		{name: "google key", cfg: vibeagent.ProviderConfig{GooglePlacesAPIKey: "k"}, want: []string{"google", "osm"}},
		{name: "all keys", cfg: vibeagent.ProviderConfig{GooglePlacesAPIKey: "k", OpenTripMapAPIKey: "k"}, want: []string{"google", "osm", "otm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache, err := NewLocalCache(8, time.Minute)
			require.NoError(t, err)
			r := FromConfig(tt.cfg, http.DefaultClient, cache)
			assert.Equal(t, tt.want, r.Names())
			for _, p := range r.Providers() {
				assert.IsType(t, &Cached{}, p)
			}
		})
	}
}

// stubProvider answers from a fixed script and counts calls.
type stubProvider struct {
	name   string
	venues []vibeagent.VerifiedVenue
	err    error
	calls  int
}

func (s *stubProvider) Name() string        { return s.name }
func (s *stubProvider) Title() string       { return s.name }
func (s *stubProvider) Description() string { return "" }
func (s *stubProvider) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}

func (s *stubProvider) Query(ctx context.Context, q vibeagent.ProviderQuery) ([]vibeagent.VerifiedVenue, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.venues, s.err
}

func TestResilient_BreakerOpens(t *testing.T) {
	stub := &stubProvider{name: "google", err: guard.NewError(guard.KindNetwork, "boom", nil)}
	r := NewResilient(stub, ResilienceOptions{BreakerFailures: 2})

	for range 2 {
		_, err := r.Query(context.Background(), vibeagent.ProviderQuery{})
		require.ErrorIs(t, err, guard.ErrNetwork)
	}
	assert.Equal(t, "open", r.State().String())

	_, err := r.Query(context.Background(), vibeagent.ProviderQuery{})
	var gerr *guard.Error
	require.ErrorAs(t, err, &gerr)
	assert.False(t, gerr.Retryable)
	assert.Contains(t, gerr.Message, "circuit open")
	assert.Equal(t, 2, stub.calls)
}

func TestResilient_CancelledCallsDoNotTrip(t *testing.T) {
	stub := &stubProvider{name: "osm", err: context.Canceled}
	r := NewResilient(stub, ResilienceOptions{BreakerFailures: 1})

	for range 3 {
		_, err := r.Query(context.Background(), vibeagent.ProviderQuery{})
		require.True(t, errors.Is(err, context.Canceled))
	}
	assert.Equal(t, "closed", r.State().String())
	assert.Equal(t, 3, stub.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.Query(ctx, vibeagent.ProviderQuery{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, stub.calls)
}
