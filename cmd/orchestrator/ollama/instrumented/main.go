package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"vibeagent"
	"vibeagent/aggregate"
	"vibeagent/llm/ollama"
	"vibeagent/orchestrator"
	"vibeagent/providers"
	"vibeagent/slack"
	"vibeagent/storage"
)

func main() {
	ctx := context.Background()

	var modelConfig vibeagent.ModelConfig
	if err := envdecode.Decode(&modelConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var agentConfig vibeagent.AgentConfig
	if err := envdecode.Decode(&agentConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var budgetConfig vibeagent.BudgetConfig
	if err := envdecode.Decode(&budgetConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var retryConfig vibeagent.RetryConfig
	if err := envdecode.Decode(&retryConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var providerConfig vibeagent.ProviderConfig
	if err := envdecode.Decode(&providerConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var cacheConfig vibeagent.CacheConfig
	if err := envdecode.Decode(&cacheConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	var slackConfig vibeagent.SlackConfig
	if err := envdecode.Decode(&slackConfig); err != nil {
		log.Fatalf("SETUP: Failed to decode: %s", err)
	}

	catalog, err := vibeagent.LoadCatalog(ctx, storage.NewFileSource(agentConfig.ArtifactsCatalogPath))
	if err != nil {
		slog.Error("SETUP: Failed to load catalog", "error", err)
		return
	}

	ic, err := vibeagent.DecodeRequest([]byte(requestArg(1, "Rainy Saturday in Bucharest, something cosy and a bit creative.")), catalog)
	if err != nil {
		slog.Error("SETUP: Invalid request", "error", err)
		return
	}
	if agentConfig.DebugDump {
		vibeagent.Dump(ic.DetectedCategories, ic.RegionsSeed, ic.RequiresFood)
	}

	cache, err := providers.NewCache(cacheConfig)
	if err != nil {
		slog.Error("SETUP: Failed to create provider cache", "error", err)
		return
	}
	registry := providers.FromConfig(providerConfig, http.DefaultClient, cache)

	logger, cleanup, err := newRunLogger(agentConfig.ArtifactsOutputDir, ic.RunID, modelConfig.ModelID)
	if err != nil {
		slog.Error("SETUP: Failed to create run logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush run log", "error", err)
		}
	}()

	llm, err := ollama.NewClient(ollama.ClientOpts{
		BaseEndpoint: agentConfig.BaseOllamaEndpoint,
		ModelID:      modelConfig.ModelID,
		HTTPClient:   http.DefaultClient,
	})
	if err != nil {
		slog.Error("SETUP: Failed to create LLM client", "error", err)
		return
	}

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

	tracer := tracerProvider.Tracer(vibeagent.TracerNameOllama)
	meter := meterProvider.Meter(vibeagent.MeterNameOrchestrator)

	ctx, span := tracer.Start(ctx, vibeagent.TracerNameOllama, trace.WithAttributes(
		attribute.String("model.id", modelConfig.ModelID),
		attribute.Int("model.max_tokens", int(modelConfig.MaxTokens)),
	))
	defer span.End()

	opts := orchestrator.OptionsFromConfig(agentConfig, budgetConfig, retryConfig, modelConfig)
	opts.Logger = logger
	if agentConfig.ChallengeTablePath != "" {
		b, err := os.ReadFile(agentConfig.ChallengeTablePath)
		if err != nil {
			slog.Error("SETUP: Failed to read challenge table", "error", err)
			return
		}
		if opts.Challenges, err = aggregate.ParseChallengeTable(b); err != nil {
			slog.Error("SETUP: Invalid challenge table", "error", err)
			return
		}
	}
	res, err := orchestrator.NewInstrumentedOrchestrator(orchestrator.New(llm, registry, opts), tracer, meter).Run(ctx, ic)
	if err != nil {
		slog.Error("FAILURE: Error handling request", "error", err)
		return
	}

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		slog.Error("FAILURE: Failed to encode result", "error", err)
		return
	}
	sink := storage.NewFileSink(agentConfig.ArtifactsOutputDir)
	if err := sink.Save(ctx, vibeagent.ArtifactName(res.Report.RunID), out); err != nil {
		slog.Error("FAILURE: Failed to save curation", "error", err)
	}
	if agentConfig.DebugDump {
		vibeagent.Dump(res.Report)
	}

	if slackConfig.WebhookURL != "" {
		if err := slack.NewClient(slackConfig.WebhookURL, http.DefaultClient).PostCuration(ctx, slackConfig.Channel, res); err != nil {
			slog.Error("Failed to post result to Slack", "error", err)
		}
	}
}

func requestArg(i int, def string) string {
	if len(os.Args) <= i {
		return def
	}
	arg := os.Args[i]
	if strings.HasSuffix(arg, ".json") {
		b, err := os.ReadFile(arg)
		if err != nil {
			log.Fatalf("SETUP: Failed to read request file: %s", err)
		}
		return string(b)
	}
	return arg
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
