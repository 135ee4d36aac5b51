package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vibeagent"
	"vibeagent/llm/bedrock"
	"vibeagent/orchestrator"
	"vibeagent/providers"
	"vibeagent/slack"
	"vibeagent/storage"
)

func main() {
	ctx := context.Background()

	var modelConfig vibeagent.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var agentConfig vibeagent.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var budgetConfig vibeagent.BudgetConfig
	if err := envdecode.Decode(&budgetConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var retryConfig vibeagent.RetryConfig
	if err := envdecode.Decode(&retryConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var providerConfig vibeagent.ProviderConfig
	if err := envdecode.Decode(&providerConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	var cacheConfig vibeagent.CacheConfig
	if err := envdecode.Decode(&cacheConfig); err != nil {
		log.Fatalf("Failed to decode: %s", err)
	}

	catalog, err := vibeagent.LoadCatalog(ctx, storage.NewFileSource(agentConfig.ArtifactsCatalogPath))
	if err != nil {
		slog.Error("SETUP: Failed to load catalog", "error", err)
		return
	}
	slog.Info("SETUP: Catalog loaded", "entries", len(catalog.Entries), "version", catalog.Version)

	ic, err := vibeagent.DecodeRequest([]byte(requestArg(1, "Slow autumn weekend near Brasov: some hiking, a castle, and a good glass of wine.")), catalog)
	if err != nil {
		slog.Error("SETUP: Invalid request", "error", err)
		return
	}

	cache, err := providers.NewCache(cacheConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create provider cache", "error", err)
		return
	}
	registry := providers.FromConfig(providerConfig, http.DefaultClient, cache)

	logger, cleanup, err := newRunLogger(agentConfig.ArtifactsOutputDir, ic.RunID, modelConfig.ModelID)
	if err != nil {
		slog.Error("Failed to create run logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("Failed to flush run log", "error", err)
		}
	}()

	brc, err := newBedrockRuntimeClient(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to create Bedrock client", "error", err)
		return
	}
	llm := bedrock.NewLLMClient(brc, bedrock.LLMOptions{
		ModelID:     modelConfig.ModelID,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		TopP:        modelConfig.TopP,
	})

	tracerProvider, meterProvider, otelShutdown, err := vibeagent.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	tracer := tracerProvider.Tracer(vibeagent.TracerNameBedrock)
	meter := meterProvider.Meter(vibeagent.MeterNameOrchestrator)

	ctx, span := tracer.Start(ctx, vibeagent.TracerNameBedrock, trace.WithAttributes(
		attribute.String("model.id", modelConfig.ModelID),
		attribute.Int("model.max_tokens", int(modelConfig.MaxTokens)),
		attribute.Float64("model.temperature", float64(modelConfig.Temperature)),
		attribute.Float64("model.top_p", float64(modelConfig.TopP)),
	))
	defer span.End()

	opts := orchestrator.OptionsFromConfig(agentConfig, budgetConfig, retryConfig, modelConfig)
	opts.Logger = logger
	o := orchestrator.NewInstrumentedOrchestrator(orchestrator.New(llm, registry, opts), tracer, meter)

	res, err := o.Run(ctx, ic)
	if err != nil {
		slog.Error("FAILURE: Error handling request", "error", err)
		return
	}

	if agentConfig.DebugDump {
		vibeagent.Dump(res.Curation)
	}

	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := new(bytes.Buffer)
		body.ReadFrom(r.Body) // nolint: errcheck
		slog.Info("Received request",
			"method", r.Method,
			"path", r.URL.Path,
			"body", body.String(),
		)
		w.WriteHeader(http.StatusOK)
	}))
	defer testServer.Close()

	slackClient := slack.NewClient(testServer.URL, http.DefaultClient)
	if err := slackClient.PostCuration(ctx, "#general", res); err != nil {
		slog.Error("Failed to post result to Slack", "error", err)
	}
}

// requestArg returns os.Args[i], reading it as a file when it names a .json file.
func requestArg(i int, def string) string {
	if len(os.Args) <= i {
		return def
	}
	arg := os.Args[i]
	if strings.HasSuffix(arg, ".json") {
		b, err := os.ReadFile(arg)
		if err != nil {
			log.Fatalf("Failed to read request file: %s", err)
		}
		return string(b)
	}
	return arg
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}

func newRunLogger(dir, runID, modelID string) (vibeagent.RunLogger, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to create log dir: %w", err)
	}
	logFile, err := os.OpenFile(vibeagent.NewRunLogFilePath(dir, runID, modelID), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := vibeagent.NewFileRunLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
