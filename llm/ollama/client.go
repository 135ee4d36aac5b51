// Package ollama answers structured requests with a local model served by Ollama,
// using its JSON-schema constrained output.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"vibeagent"
	"vibeagent/guard"
)

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

type Client struct {
	endpoint   string
	model      string
	httpClient vibeagent.HTTPClient
	options    options
}

var _ vibeagent.ModelClient = (*Client)(nil)

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	HTTPClient   vibeagent.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   0.2,
			TopP:          0.9,
			RepeatPenalty: 1.05,
			NumCtx:        16384, // curations with venue evidence need the larger window
		},
	}, nil
}

func (c *Client) ModelID() string { return c.model }

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model    string          `json:"model"`
	Messages []wireMessage   `json:"messages"`
	Format   json.RawMessage `json:"format,omitempty"`
	Stream   bool            `json:"stream"`
	Options  options         `json:"options,omitempty"`
}

type wireResponse struct {
	Message    wireMessage `json:"message"`
	DoneReason string      `json:"done_reason"`
	// other metadata omitted but available
}

// CompleteStructured sends one system and one user message. With a contract the
// schema is passed as the format so the reply is constrained to it; otherwise the
// reply is constrained to plain JSON.
func (c *Client) CompleteStructured(ctx context.Context, req vibeagent.StructuredRequest) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "stage", req.Stage, "contract", req.ContractName)

	format := json.RawMessage(`"json"`)
	if req.Contract != nil {
		b, err := json.Marshal(req.Contract)
		if err != nil {
			return "", fmt.Errorf("failed to marshal contract %s: %w", req.ContractName, err)
		}
		format = b
	}

	opts := c.options
	if req.MaxTokens > 0 {
		opts.NumPredict = int(req.MaxTokens)
	}

	msgs := make([]wireMessage, 0, 2)
	if sp := strings.TrimSpace(req.SystemPrompt); sp != "" {
		msgs = append(msgs, wireMessage{Role: "system", Content: sp})
	}
	msgs = append(msgs, wireMessage{Role: "user", Content: req.UserPrompt})

	reqBytes, err := json.Marshal(wireRequest{
		Model:    c.model,
		Messages: msgs,
		Format:   format,
		Stream:   false,
		Options:  opts,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", guard.Classify(err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("ollama %s: %s", resp.Status, string(body))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return "", guard.NewError(guard.KindRateLimit, msg, nil)
		case resp.StatusCode >= 500:
			return "", guard.NewError(guard.KindNetwork, msg, nil)
		default:
			return "", guard.NewError(guard.KindUnknown, msg, nil)
		}
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return "", guard.NewError(guard.KindParse, fmt.Sprintf("failed to decode ollama response: %v", err), nil)
	}
	if wr.DoneReason == "length" {
		slog.Warn("LLM_CLIENT: Model hit num_predict limit", "stage", req.Stage)
		return "", guard.NewError(guard.KindParse, "model output truncated", map[string]any{"stage": req.Stage})
	}

	slog.Info("LLM_CLIENT: Ollama invoke succeeded", "stage", req.Stage, "content_len", len(wr.Message.Content))
	return wr.Message.Content, nil
}
