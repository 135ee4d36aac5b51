package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"vibeagent"
	"vibeagent/llm/mock"
)

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestInstrumentedOrchestrator_Run(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	intents := fiveIntents()[:2]
	p := &fakeProvider{name: vibeagent.ProviderGoogle, venues: map[string][]vibeagent.VerifiedVenue{
		"i1": {venue("g1", "Tampa trail", 4.7, 900)},
	}}
	model := mock.NewModel().
		On(vibeagent.StagePropose, mock.JSON(proposal(intents))).
		On(vibeagent.StagePlan, mock.JSON(verificationPlan(query("i1", 5), query("i2", 4))))

	o := NewInstrumentedOrchestrator(newTestOrchestrator(model, p, testOptions()), tp.Tracer("test"), mp.Meter("test"))
	res, err := o.Run(context.Background(), testContext())
	require.NoError(t, err)
	assert.Equal(t, vibeagent.SourceFallback, res.Curation.Source)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, int64(1), sumOf(t, rm, "orchestrator_runs_total"))
	assert.Equal(t, int64(0), sumOf(t, rm, "orchestrator_runs_failed_total"))
	assert.Equal(t, int64(2), sumOf(t, rm, "provider_calls_total"))
	assert.Equal(t, int64(1), sumOf(t, rm, "venues_found_total"))
	assert.Equal(t, int64(3), sumOf(t, rm, "llm_calls_total"))
	// curate has no script and falls back
	assert.Equal(t, int64(1), sumOf(t, rm, "stage_fallbacks_total"))

	spans := recorder.Ended()
	require.NotEmpty(t, spans)
	assert.Equal(t, "InstrumentedOrchestrator.Run", spans[len(spans)-1].Name())
}

func TestInstrumentedOrchestrator_RejectedRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tp := sdktrace.NewTracerProvider()

	o := NewInstrumentedOrchestrator(newTestOrchestrator(mock.NewModel(), &fakeProvider{name: vibeagent.ProviderGoogle}, testOptions()), tp.Tracer("test"), mp.Meter("test"))
	ic := testContext()
	ic.Vibe = ""
	_, err := o.Run(context.Background(), ic)
	require.Error(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	assert.Equal(t, int64(1), sumOf(t, rm, "orchestrator_runs_failed_total"))
}
