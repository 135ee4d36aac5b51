package vibeagent

import "time"

type Stage string

const (
	StageIdle     Stage = "idle"
	StagePropose  Stage = "propose"
	StagePlan     Stage = "plan"
	StageVerify   Stage = "verify"
	StageCurate   Stage = "curate"
	StageDone     Stage = "done"
	StageFallback Stage = "fallback"
)

// StageReport records how one stage went.
type StageReport struct {
	Stage      Stage         `json:"stage"`
	Success    bool          `json:"success"`
	Fallback   bool          `json:"fallback"`
	Duration   time.Duration `json:"durationNs"`
	Error      string        `json:"error,omitempty"`
	ErrorKind  string        `json:"errorKind,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	Repaired   bool          `json:"repaired,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
	OutputSize int           `json:"outputSize"`
}

type LLMStats struct {
	Calls    int `json:"calls"`
	Failures int `json:"failures"`
	Retries  int `json:"retries"`
}

type ProviderStats struct {
	Calls     int            `json:"calls"`
	Successes int            `json:"successes"`
	Failures  int            `json:"failures"`
	Skipped   int            `json:"skipped"`
	Venues    int            `json:"venues"`
	ByName    map[string]int `json:"byProvider"`
}

// ExecutionReport is the run-level trail of every stage and the quality metrics
// derived from the final curation.
type ExecutionReport struct {
	RunID            string        `json:"runId"`
	StartedAt        time.Time     `json:"startedAt"`
	Duration         time.Duration `json:"durationNs"`
	Stages           []StageReport `json:"stages"`
	FinalState       Stage         `json:"finalState"`
	LLM              LLMStats      `json:"llm"`
	Providers        ProviderStats `json:"providers"`
	VerificationRate float64       `json:"verificationRate"`
	DiversityScore   float64       `json:"diversityScore"`
	ConfidenceScore  float64       `json:"confidenceScore"`
}

// FallbackCount is the number of stages that fell back to a heuristic.
func (r ExecutionReport) FallbackCount() int {
	n := 0
	for _, s := range r.Stages {
		if s.Fallback {
			n++
		}
	}
	return n
}

// Stage returns the report for s, if recorded.
func (r ExecutionReport) Stage(s Stage) (StageReport, bool) {
	for _, sr := range r.Stages {
		if sr.Stage == s {
			return sr, true
		}
	}
	return StageReport{}, false
}

// QualityMetrics computes verification rate, category diversity and mean confidence.
func QualityMetrics(c ActivityCuration) (verificationRate, diversity, confidence float64) {
	n := len(c.Recommendations)
	if n == 0 {
		return 0, 0, 0
	}
	verified := 0
	cats := map[Category]bool{}
	var sum float64
	for _, r := range c.Recommendations {
		if len(r.VerifiedVenues) > 0 {
			verified++
		}
		cats[r.Intent.Category] = true
		sum += r.Confidence
	}
	return float64(verified) / float64(n), float64(len(cats)) / float64(n), sum / float64(n)
}
