package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joeshaw/envdecode"

	"vibeagent"
	"vibeagent/guard"
	"vibeagent/llm/bedrock"
	"vibeagent/orchestrator"
	"vibeagent/providers"
	"vibeagent/slack"
	"vibeagent/storage"
)

type Results struct {
	Curation vibeagent.ActivityCuration `json:"curation"`
	Report   vibeagent.ExecutionReport  `json:"report"`
	Artifact string                     `json:"artifact,omitempty"`
}

type configs struct {
	model    vibeagent.ModelConfig
	agent    vibeagent.AgentConfig
	budget   vibeagent.BudgetConfig
	retry    vibeagent.RetryConfig
	provider vibeagent.ProviderConfig
	cache    vibeagent.CacheConfig
	artifact vibeagent.ArtifactConfig
	slack    vibeagent.SlackConfig
}

func decodeConfigs() (configs, error) {
	var c configs
	for _, target := range []any{&c.model, &c.agent, &c.budget, &c.retry, &c.provider, &c.cache, &c.artifact, &c.slack} {
		if err := envdecode.Decode(target); err != nil {
			return configs{}, fmt.Errorf("failed to decode config: %w", err)
		}
	}
	if c.artifact.S3Bucket == "" {
		return configs{}, fmt.Errorf("missing S3 config: ARTIFACTS_S3_BUCKET must be set")
	}
	return c, nil
}

// warmState outlives single invocations on a warm container: provider breakers,
// limiters and the result cache keep their history, and so do the failure counts.
type warmState struct {
	registry providers.Registry
	tracker  *guard.FailureTracker
}

func (w *warmState) ensure(cfg configs) error {
	if w.registry == nil {
		cache, err := providers.NewCache(cfg.cache)
		if err != nil {
			return fmt.Errorf("failed to create provider cache: %w", err)
		}
		w.registry = providers.FromConfig(cfg.provider, http.DefaultClient, cache)
	}
	if w.tracker == nil {
		w.tracker = guard.NewWindowedFailureTracker(cfg.agent.FallbackWindow, time.Now)
	}
	return nil
}

func main() {
	var warm warmState

	fn := func(ctx context.Context, event json.RawMessage) (Results, error) {
		cfg, err := decodeConfigs()
		if err != nil {
			slog.Error("SETUP: Invalid configuration", "error", err)
			return Results{}, err
		}

		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return Results{}, fmt.Errorf("failed to load AWS config: %w", err)
		}
		s3Client := s3.NewFromConfig(awsCfg)

		catalog, err := vibeagent.LoadCatalog(ctx, storage.NewS3Source(s3Client, cfg.artifact.S3Bucket, cfg.artifact.CatalogKey))
		if err != nil {
			slog.Error("SETUP: Failed to load catalog from S3", "error", err)
			return Results{}, err
		}
		slog.Info("SETUP: Catalog loaded from S3", "entries", len(catalog.Entries))

		ic, err := vibeagent.DecodeRequest(event, catalog)
		if err != nil {
			return Results{}, err
		}

		if err := warm.ensure(cfg); err != nil {
			slog.Error("SETUP: Failed to prepare providers", "error", err)
			return Results{}, err
		}

		brc, err := newBedrockRuntimeClient(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to create Bedrock client", "error", err)
			return Results{}, err
		}
		llm := bedrock.NewLLMClient(brc, bedrock.LLMOptions{
			ModelID:     cfg.model.ModelID,
			MaxTokens:   cfg.model.MaxTokens,
			Temperature: cfg.model.Temperature,
			TopP:        cfg.model.TopP,
		})

		tracerProvider, meterProvider, otelShutdown, err := vibeagent.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		opts := orchestrator.OptionsFromConfig(cfg.agent, cfg.budget, cfg.retry, cfg.model)
		opts.Logger = vibeagent.NewStdoutRunLogger()
		opts.Tracker = warm.tracker
		o := orchestrator.NewInstrumentedOrchestrator(
			orchestrator.New(llm, warm.registry, opts),
			tracerProvider.Tracer(vibeagent.TracerNameBedrock),
			meterProvider.Meter(vibeagent.MeterNameOrchestrator),
		)

		res, err := o.Run(ctx, ic)
		if err != nil {
			slog.Error("RESULT: Error handling request", "error", err)
			return Results{}, err
		}

		out := Results{Curation: res.Curation, Report: res.Report}
		data, err := json.Marshal(res)
		if err != nil {
			return Results{}, fmt.Errorf("failed to encode result: %w", err)
		}
		name := vibeagent.ArtifactName(res.Report.RunID)
		if err := storage.NewS3Sink(s3Client, cfg.artifact.S3Bucket, cfg.artifact.OutputPrefix).Save(ctx, name, data); err != nil {
			slog.Error("RESULT: Failed to store curation", "error", err)
		} else {
			out.Artifact = cfg.artifact.OutputPrefix + name
		}

		if cfg.slack.WebhookURL != "" {
			if err := slack.NewClient(cfg.slack.WebhookURL, http.DefaultClient).PostCuration(ctx, cfg.slack.Channel, res); err != nil {
				slog.Error("RESULT: Failed to post to Slack", "error", err)
			}
		}
		return out, nil
	}

	lambda.Start(fn)
}

func newBedrockRuntimeClient(ctx context.Context) (*bedrockruntime.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
	if err != nil {
		return nil, err
	}
	return bedrockruntime.NewFromConfig(awsCfg), nil
}
