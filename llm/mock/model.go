// Package mock provides a deterministic ModelClient scripted per stage. It serves
// tests and offline runs where no model endpoint is available.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"vibeagent"
	"vibeagent/guard"
)

// Reply is one scripted answer.
type Reply struct {
	Text string
	Err  error
}

// JSON scripts v as the reply text.
func JSON(v any) Reply {
	b, err := json.Marshal(v)
	if err != nil {
		return Reply{Err: err}
	}
	return Reply{Text: string(b)}
}

func Text(s string) Reply { return Reply{Text: s} }

func Fail(err error) Reply { return Reply{Err: err} }

// Model answers each stage from its script in order. Once a stage's script is
// exhausted its last reply repeats.
type Model struct {
	mu       sync.Mutex
	script   map[string][]Reply
	served   map[string]int
	requests []vibeagent.StructuredRequest
}

var _ vibeagent.ModelClient = (*Model)(nil)

func NewModel() *Model {
	return &Model{script: map[string][]Reply{}, served: map[string]int{}}
}

// On appends replies to stage's script.
func (m *Model) On(stage vibeagent.Stage, replies ...Reply) *Model {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script[string(stage)] = append(m.script[string(stage)], replies...)
	return m
}

func (m *Model) CompleteStructured(ctx context.Context, req vibeagent.StructuredRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if err := ctx.Err(); err != nil {
		return "", guard.Classify(err)
	}

	replies := m.script[req.Stage]
	if len(replies) == 0 {
		return "", guard.NewError(guard.KindUnknown, fmt.Sprintf("no scripted reply for stage %s", req.Stage), nil)
	}
	n := m.served[req.Stage]
	m.served[req.Stage] = n + 1
	r := replies[min(n, len(replies)-1)]

	slog.Info("LLM_CLIENT: Scripted reply", "stage", req.Stage, "call", n+1, "error", r.Err != nil)
	return r.Text, r.Err
}

// Calls is the number of requests stage has received.
func (m *Model) Calls(stage vibeagent.Stage) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.served[string(stage)]
}

// Requests returns every request seen, in order.
func (m *Model) Requests() []vibeagent.StructuredRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]vibeagent.StructuredRequest(nil), m.requests...)
}
