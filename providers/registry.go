package providers

import (
	"fmt"
	"log/slog"
	"sort"

	"vibeagent"
)

// Registry maps provider names to implementations.
type Registry map[string]Provider

func NewRegistry(providers ...Provider) Registry {
	r := make(Registry, len(providers))
	for _, p := range providers {
		r[p.Name()] = p
	}
	return r
}

// Get retrieves a provider by name.
func (r Registry) Get(name string) (Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("provider %q not found in registry", name)
	}
	return p, nil
}

// Providers returns every provider sorted by name.
func (r Registry) Providers() []Provider {
	out := make([]Provider, 0, len(r))
	for _, p := range r {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for _, p := range r.Providers() {
		names = append(names, p.Name())
	}
	return names
}

// FromConfig builds the production registry. Providers that need an API key are left
// out when none is configured; Overpass needs none and is always present. Every
// provider is wrapped with rate limiting, a circuit breaker and cache.
func FromConfig(cfg vibeagent.ProviderConfig, client vibeagent.HTTPClient, cache Cache) Registry {
	opts := ResilienceFromConfig(cfg)
	base := []Provider{NewOverpass(cfg.OverpassEndpoint, client)}
	if cfg.GooglePlacesAPIKey != "" {
		base = append(base, NewGooglePlaces(cfg.GooglePlacesEndpoint, cfg.GooglePlacesAPIKey, client))
	}
	if cfg.OpenTripMapAPIKey != "" {
		base = append(base, NewOpenTripMap(cfg.OpenTripMapEndpoint, cfg.OpenTripMapAPIKey, client))
	}

	wrapped := make([]Provider, 0, len(base))
	for _, p := range base {
		wrapped = append(wrapped, Wrap(p, opts, cache))
	}
	r := NewRegistry(wrapped...)
	slog.Info("SETUP: providers registered", "providers", r.Names())
	return r
}
