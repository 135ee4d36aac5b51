package vibeagent

import "time"

type ModelConfig struct {
	ModelID     string  `env:"MODEL_ID,required"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=2048"`
	Temperature float32 `env:"TEMPERATURE,default=0.2"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type AgentConfig struct {
	ArtifactsCatalogPath string        `env:"ARTIFACTS_CATALOG_PATH,default=artifacts/catalog.json"`
	ArtifactsOutputDir   string        `env:"ARTIFACTS_OUTPUT_DIR,default=artifacts/out"`
	BaseOllamaEndpoint   string        `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	MaxIntents           int           `env:"MAX_INTENTS,default=8"`
	MaxRecommendations   int           `env:"MAX_RECOMMENDATIONS,default=5"`
	MaxDistanceKm        float64       `env:"MAX_DISTANCE_KM,default=150"`
	MaxTravelMinutes     float64       `env:"MAX_TRAVEL_MINUTES,default=180"`
	StageTimeout         time.Duration `env:"STAGE_TIMEOUT,default=45s"`
	DebugDump            bool          `env:"DEBUG_DUMP,default=false"`
	ChallengeTablePath   string        `env:"CHALLENGE_TABLE_PATH"`
	FallbackWindow       time.Duration `env:"FALLBACK_WINDOW,default=15m"`
}

// BudgetConfig bounds the external calls one run may make.
type BudgetConfig struct {
	MaxTotalCalls     int           `env:"BUDGET_MAX_TOTAL_CALLS,default=25"`
	MaxGoogleCalls    int           `env:"BUDGET_MAX_GOOGLE_CALLS,default=12"`
	MaxOSMCalls       int           `env:"BUDGET_MAX_OSM_CALLS,default=5"`
	MaxOTMCalls       int           `env:"BUDGET_MAX_OTM_CALLS,default=8"`
	MaxConcurrent     int           `env:"BUDGET_MAX_CONCURRENT,default=4"`
	TimeoutPerCall    time.Duration `env:"BUDGET_TIMEOUT_PER_CALL,default=10s"`
	MaxTotalExecution time.Duration `env:"BUDGET_MAX_TOTAL_EXECUTION,default=60s"`
}

// PerProvider returns the per-provider call limits keyed by provider tag.
func (c BudgetConfig) PerProvider() map[string]int {
	return map[string]int{
		ProviderGoogle: c.MaxGoogleCalls,
		ProviderOSM:    c.MaxOSMCalls,
		ProviderOTM:    c.MaxOTMCalls,
	}
}

type RetryConfig struct {
	MaxRetries int           `env:"RETRY_MAX_RETRIES,default=2"`
	BaseDelay  time.Duration `env:"RETRY_BASE_DELAY,default=1s"`
	Multiplier float64       `env:"RETRY_MULTIPLIER,default=2"`
	MaxDelay   time.Duration `env:"RETRY_MAX_DELAY,default=10s"`
}

type ProviderConfig struct {
	GooglePlacesEndpoint string        `env:"GOOGLE_PLACES_ENDPOINT,default=https://maps.googleapis.com/maps/api/place"`
	GooglePlacesAPIKey   string        `env:"GOOGLE_PLACES_API_KEY"`
	OverpassEndpoint     string        `env:"OVERPASS_ENDPOINT,default=https://overpass-api.de/api/interpreter"`
	OpenTripMapEndpoint  string        `env:"OPENTRIPMAP_ENDPOINT,default=https://api.opentripmap.com/0.1/en"`
	OpenTripMapAPIKey    string        `env:"OPENTRIPMAP_API_KEY"`
	RequestsPerSecond    float64       `env:"PROVIDER_REQUESTS_PER_SECOND,default=10"`
	Burst                int           `env:"PROVIDER_BURST,default=4"`
	BreakerFailures      uint32        `env:"PROVIDER_BREAKER_FAILURES,default=5"`
	BreakerCooldown      time.Duration `env:"PROVIDER_BREAKER_COOLDOWN,default=30s"`
}

// CacheConfig selects the provider result cache. An empty RedisAddr keeps the cache in process.
type CacheConfig struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`
	TTL           time.Duration `env:"PROVIDER_CACHE_TTL,default=1h"`
	LocalSize     int           `env:"PROVIDER_CACHE_LOCAL_SIZE,default=512"`
}

type ArtifactConfig struct {
	S3Bucket     string `env:"ARTIFACTS_S3_BUCKET"`
	CatalogKey   string `env:"ARTIFACTS_CATALOG_S3_KEY,default=catalog.json"`
	OutputPrefix string `env:"ARTIFACTS_OUTPUT_S3_PREFIX,default=curations/"`
}

type SlackConfig struct {
	WebhookURL string `env:"SLACK_WEBHOOK_URL"`
	Channel    string `env:"SLACK_CHANNEL,default=#recommendations"`
}
