package vibeagent

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// RunLogger records the stage-by-stage trail of an orchestration run.
type RunLogger interface {
	LogStage(entry StageLog) error
}

// NewRunLogFilePath returns a file path named after the run and a cleaned up model id,
// so logs from different models are easy to tell apart.
func NewRunLogFilePath(dir, runID, model string) string {
	return fmt.Sprintf(
		"%s/%d.%s.%s.json",
		strings.TrimRight(dir, "/"),
		time.Now().Unix(),
		strings.NewReplacer(":", "_", "/", "_").Replace(strings.ToLower(model)),
		runID,
	)
}

// StageLog is one stage transition in a run.
type StageLog struct {
	RunID         string            `json:"run_id"`
	Stage         Stage             `json:"stage"`
	Timestamp     time.Time         `json:"timestamp"`
	LLMInput      string            `json:"llm_input,omitempty"`
	LLMOutput     string            `json:"llm_output,omitempty"`
	ProviderCalls []ProviderCallLog `json:"provider_calls,omitempty"`
	Fallback      bool              `json:"fallback,omitempty"`
	Warnings      []string          `json:"warnings,omitempty"`
	Error         string            `json:"error,omitempty"`
}

// ProviderCallLog is one provider query issued during Verify.
type ProviderCallLog struct {
	Provider string        `json:"provider"`
	IntentID string        `json:"intent_id"`
	Query    ProviderQuery `json:"query"`
	Venues   int           `json:"venues"`
	Skipped  bool          `json:"skipped,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// FileRunLogger buffers stage logs and writes them out on Flush.
type FileRunLogger struct {
	stages []StageLog
	writer io.Writer
}

func NewFileRunLogger(writer io.Writer) *FileRunLogger {
	return &FileRunLogger{
		stages: make([]StageLog, 0),
		writer: writer,
	}
}

func (l *FileRunLogger) LogStage(entry StageLog) error {
	l.stages = append(l.stages, entry)
	return nil
}

// Flush writes all buffered stages to the writer and clears the buffer.
func (l *FileRunLogger) Flush() error {
	if l.writer == nil {
		return nil
	}

	data, err := json.MarshalIndent(map[string]any{
		"orchestration_run": map[string]any{
			"timestamp": time.Now(),
			"stages":    l.stages,
		},
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}

	if _, err := l.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}

	l.stages = l.stages[:0]
	return nil
}

type NoOpRunLogger struct{}

func NewNoOpRunLogger() *NoOpRunLogger {
	return &NoOpRunLogger{}
}

func (nop *NoOpRunLogger) LogStage(entry StageLog) error {
	return nil
}

// StdoutRunLogger writes each stage as a JSON line to stdout (for Lambda/CloudWatch).
type StdoutRunLogger struct {
	out io.Writer
}

func NewStdoutRunLogger() *StdoutRunLogger {
	return &StdoutRunLogger{out: os.Stdout}
}

func (l *StdoutRunLogger) LogStage(entry StageLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(l.out, string(data))
	return err
}
