package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vibeagent"
)

func TestWarmStateIsBuiltOnce(t *testing.T) {
	cfg := configs{
		agent:    vibeagent.AgentConfig{FallbackWindow: time.Minute},
		provider: vibeagent.ProviderConfig{OpenTripMapAPIKey: "k", RequestsPerSecond: 10, Burst: 1, BreakerFailures: 3, BreakerCooldown: time.Second},
		cache:    vibeagent.CacheConfig{LocalSize: 8, TTL: time.Minute},
	}

	var w warmState
	require.NoError(t, w.ensure(cfg))
	registry, tracker := w.registry, w.tracker
	require.NotNil(t, tracker)
	assert.Equal(t, []string{vibeagent.ProviderOSM, vibeagent.ProviderOTM}, registry.Names())

	for range 11 {
		tracker.RecordError(string(vibeagent.StageCurate))
	}

	require.NoError(t, w.ensure(cfg))
	assert.Same(t, tracker, w.tracker)
	for _, name := range registry.Names() {
		assert.Same(t, registry[name], w.registry[name], name)
	}
	assert.True(t, w.tracker.ShouldFallback(string(vibeagent.StageCurate)))
}
