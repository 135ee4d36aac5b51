package vibeagent

import (
	"context"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"vibeagent/weather"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type SlackClient interface {
	PostMessage(ctx context.Context, channel string, message string) error
}

// ModelClient is the language model collaborator. Implementations return the raw
// text of the model's answer; callers treat it as untrusted until validated.
type ModelClient interface {
	CompleteStructured(ctx context.Context, req StructuredRequest) (string, error)
}

// StructuredRequest asks the model for a JSON value matching Contract.
type StructuredRequest struct {
	Stage        string
	SystemPrompt string
	UserPrompt   string
	ContractName string
	Contract     *jsonschema.Schema
	MaxTokens    int32
}

// Orchestrator turns an intent context into a curation.
type Orchestrator interface {
	Run(ctx context.Context, ic IntentContext) (Result, error)
}

type Category string

const (
	CategoryAdventure Category = "adventure"
	CategoryNature    Category = "nature"
	CategoryWater     Category = "water"
	CategoryCulture   Category = "culture"
	CategoryWellness  Category = "wellness"
	CategoryNightlife Category = "nightlife"
	CategoryCulinary  Category = "culinary"
	CategoryCreative  Category = "creative"
	CategorySports    Category = "sports"
	CategoryLearning  Category = "learning"
)

var categories = []Category{
	CategoryAdventure, CategoryNature, CategoryWater, CategoryCulture, CategoryWellness,
	CategoryNightlife, CategoryCulinary, CategoryCreative, CategorySports, CategoryLearning,
}

// Categories returns the closed category set in canonical order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// CategoryNames is Categories as plain strings, for schema enums.
func CategoryNames() []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = string(c)
	}
	return out
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

const (
	ProviderGoogle = "google"
	ProviderOSM    = "osm"
	ProviderOTM    = "otm"
)

// ProviderNames lists the provider tags a verification query may target.
func ProviderNames() []string {
	return []string{ProviderGoogle, ProviderOSM, ProviderOTM}
}

type Location struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" validate:"gte=-180,lte=180"`
}

type RegionSeed struct {
	Name                string  `json:"name" validate:"required"`
	Lat                 float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lon                 float64 `json:"lon" validate:"gte=-180,lte=180"`
	DistanceKmFromStart float64 `json:"distanceKmFromStart,omitempty" validate:"gte=0"`
}

type UserProfile struct {
	Interests     []string `json:"interests,omitempty"`
	EnergyLevel   string   `json:"energyLevel,omitempty" validate:"omitempty,oneof=low medium high"`
	IndoorOutdoor string   `json:"indoorOutdoor,omitempty" validate:"omitempty,oneof=indoor outdoor either"`
	OpennessScore int      `json:"opennessScore,omitempty" validate:"omitempty,min=1,max=5"`
}

// IntentContext is the immutable per-request bundle every stage reads from.
type IntentContext struct {
	RunID              string                          `json:"runId"`
	Vibe               string                          `json:"vibe" validate:"required,min=3,max=2000"`
	Catalog            Catalog                         `json:"-"`
	DetectedCategories []Category                      `json:"detectedCategories,omitempty" validate:"dive,category"`
	RegionsSeed        []RegionSeed                    `json:"regionsSeed,omitempty" validate:"dive"`
	Origin             *Location                       `json:"origin,omitempty"`
	MaxDistanceKm      float64                         `json:"maxDistanceKm,omitempty" validate:"gte=0"`
	MaxTravelMinutes   float64                         `json:"maxTravelMinutes,omitempty" validate:"gte=0"`
	RequiresFood       bool                            `json:"requiresFood,omitempty"`
	WeatherByRegion    map[string][]weather.Conditions `json:"weatherByRegion,omitempty"`
	Profile            UserProfile                     `json:"profile"`
}

// ActivityIntent is a proposed category/subtype/region bundle.
type ActivityIntent struct {
	ID            string   `json:"id"`
	Label         string   `json:"label"`
	Category      Category `json:"category"`
	Subtypes      []string `json:"subtypes"`
	Regions       []string `json:"regions"`
	Energy        string   `json:"energy,omitempty"`
	IndoorOutdoor string   `json:"indoorOutdoor,omitempty"`
	VibeAlignment string   `json:"vibeAlignment"`
	Confidence    float64  `json:"confidence"`
	RequiresFood  bool     `json:"requiresFood,omitempty"`
}

type ProposedActivities struct {
	Intents            []ActivityIntent `json:"intents"`
	SelectionRationale string           `json:"selectionRationale"`
}

// ProviderQuery is what a provider collaborator is asked for.
type ProviderQuery struct {
	Location     Location `json:"location"`
	RadiusMeters int      `json:"radiusMeters"`
	Type         string   `json:"type,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	TextQuery    string   `json:"textQuery,omitempty"`
	OsmQL        string   `json:"osmQL,omitempty"`
	OtmKinds     []string `json:"otmKinds,omitempty"`
}

type VerificationQuery struct {
	IntentID           string        `json:"intentId"`
	Provider           string        `json:"provider"`
	Query              ProviderQuery `json:"query"`
	Priority           int           `json:"priority"`
	ExpectedResultType string        `json:"expectedResultType"`
}

type VerificationPlan struct {
	Queries        []VerificationQuery `json:"queries"`
	EstimatedCalls int                 `json:"estimatedCalls"`
	Strategy       string              `json:"strategy"`
}

type Evidence struct {
	Types              []string          `json:"types,omitempty"`
	Tags               map[string]string `json:"tags,omitempty"`
	Kinds              []string          `json:"kinds,omitempty"`
	VerificationMethod string            `json:"verificationMethod"`
}

func (e Evidence) Empty() bool {
	return len(e.Types) == 0 && len(e.Tags) == 0 && len(e.Kinds) == 0
}

// VerifiedVenue is a concrete place returned by a provider.
type VerifiedVenue struct {
	PlaceID          string   `json:"placeId"`
	Name             string   `json:"name"`
	Provider         string   `json:"provider"`
	Coords           Location `json:"coords"`
	Rating           float64  `json:"rating,omitempty"`
	UserRatingsTotal int      `json:"userRatingsTotal,omitempty"`
	PriceLevel       int      `json:"priceLevel,omitempty"`
	Types            []string `json:"types,omitempty"`
	Address          string   `json:"address,omitempty"`
	Evidence         Evidence `json:"evidence"`
}

// Verified reports whether the venue carries enough evidence to count.
func (v VerifiedVenue) Verified() bool {
	return !v.Evidence.Empty() && v.Evidence.VerificationMethod != ""
}

// Key is the provider-native identity used for deduplication.
func (v VerifiedVenue) Key() string {
	return v.Provider + ":" + v.PlaceID
}

type ProviderResult struct {
	QueryID  string          `json:"queryId"`
	IntentID string          `json:"intentId"`
	Provider string          `json:"provider"`
	Success  bool            `json:"success"`
	Venues   []VerifiedVenue `json:"venues,omitempty"`
	Error    string          `json:"error,omitempty"`
	Skipped  bool            `json:"skipped,omitempty"`
	Duration time.Duration   `json:"durationNs"`
}

type PersonalizationFactors struct {
	InterestMatch    float64  `json:"interestMatch"`
	EnergyMatch      float64  `json:"energyMatch"`
	ProfileAlignment float64  `json:"profileAlignment"`
	MLWeightBoost    *float64 `json:"mlWeightBoost,omitempty"`
}

type ActivityRecommendation struct {
	Intent                 ActivityIntent         `json:"intent"`
	VerifiedVenues         []VerifiedVenue        `json:"verifiedVenues"`
	WeatherSuitability     weather.Suitability    `json:"weatherSuitability"`
	Rationale              string                 `json:"rationale"`
	Confidence             float64                `json:"confidence"`
	PersonalizationFactors PersonalizationFactors `json:"personalizationFactors"`
}

type CurationMetadata struct {
	TotalIntentsProposed      int     `json:"totalIntentsProposed"`
	TotalIntentsVerified      int     `json:"totalIntentsVerified"`
	TotalVenuesFound          int     `json:"totalVenuesFound"`
	WeatherConstraintsApplied int     `json:"weatherConstraintsApplied"`
	DiversityScore            float64 `json:"diversityScore"`
}

const (
	SourceModel    = "model"
	SourceFallback = "fallback"
)

// ActivityCuration is the final answer handed back to the caller.
type ActivityCuration struct {
	Recommendations []ActivityRecommendation `json:"recommendations"`
	TopFive         []string                 `json:"topFive"`
	Rationale       string                   `json:"rationale"`
	Metadata        CurationMetadata         `json:"metadata"`
	Source          string                   `json:"source,omitempty"`
	Degraded        bool                     `json:"degraded,omitempty"`
}

// IntentIDs returns the intent id of every recommendation, in order.
func (c ActivityCuration) IntentIDs() []string {
	ids := make([]string, 0, len(c.Recommendations))
	for _, r := range c.Recommendations {
		ids = append(ids, r.Intent.ID)
	}
	return ids
}

// Result is what one orchestration run produces.
type Result struct {
	Curation ActivityCuration `json:"curation"`
	Report   ExecutionReport  `json:"report"`
}
