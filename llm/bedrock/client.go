// Package bedrock answers structured requests with Claude on Amazon Bedrock. The
// contract is offered as a single tool the model is forced to call, so the tool
// input is the structured answer.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"vibeagent"
	"vibeagent/guard"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// Curations with three venues per recommendation run past 1k tokens.
	defaultMaxTokens = 2048

	// Low temperature and top_p keep structured output consistent.
	defaultTemperature = 0.2
	defaultTopP        = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

var _ vibeagent.ModelClient = (*LLMClient)(nil)

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{brc: brc, opts: opts}
}

// ModelID reports the configured model, for logs and metrics.
func (c *LLMClient) ModelID() string { return c.opts.ModelID }

// CompleteStructured returns the JSON the model produced for req. With a contract
// the answer is the forced tool call's input; without one it is the reply text.
func (c *LLMClient) CompleteStructured(ctx context.Context, req vibeagent.StructuredRequest) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "stage", req.Stage, "contract", req.ContractName)

	maxTokens := c.opts.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	in := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.opts.ModelID),
		Messages: []types.Message{{
			Role:    types.ConversationRoleUser,
			Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: req.UserPrompt}},
		}},
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(maxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}
	if req.SystemPrompt != "" {
		in.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.SystemPrompt}}
	}

	toolName := ""
	if req.Contract != nil {
		toolName = toolNameFor(req.ContractName)
		spec, err := buildToolSpec(toolName, "Submit the "+req.ContractName+" answer.", req.Contract)
		if err != nil {
			return "", err
		}
		in.ToolConfig = &types.ToolConfiguration{
			Tools:      []types.Tool{&types.ToolMemberToolSpec{Value: spec}},
			ToolChoice: &types.ToolChoiceMemberTool{Value: types.SpecificToolChoice{Name: aws.String(toolName)}},
		}
	}

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock Claude invoke failed", "stage", req.Stage, "error", err)
		return "", classifyConverseError(err)
	}

	logUsage(req.Stage, out)

	switch out.StopReason {
	case types.StopReasonMaxTokens:
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit", "stage", req.Stage, "max_tokens", maxTokens)
		return "", guard.NewError(guard.KindParse, "model hit MaxTokens limit; output truncated", map[string]any{"stage": req.Stage})

	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters", "stage", req.Stage)
		return "", guard.NewError(guard.KindUnknown, "model response blocked by Bedrock safety filters", map[string]any{"stage": req.Stage})
	}

	if toolName != "" {
		input, found, err := toolInputFromOutput(out, toolName)
		if err != nil {
			return "", guard.NewError(guard.KindParse, fmt.Sprintf("failed to read tool input: %v", err), map[string]any{"stage": req.Stage})
		}
		if found {
			return input, nil
		}
		slog.Warn("LLM_CLIENT: Model skipped the forced tool, using text", "stage", req.Stage, "stop_reason", out.StopReason)
	}

	text, err := textFromOutput(out)
	if err != nil {
		return "", fmt.Errorf("failed to extract final text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", guard.NewError(guard.KindParse, "model returned no content", map[string]any{"stage": req.Stage})
	}
	return text, nil
}

func logUsage(stage string, out *bedrockruntime.ConverseOutput) {
	attrs := []any{"stage", stage, "stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens),
		)
	}
	slog.Info("LLM_CLIENT: Bedrock Claude invoke succeeded", attrs...)
}

// classifyConverseError maps Bedrock's modelled exceptions onto the guard taxonomy.
func classifyConverseError(err error) error {
	var throttled *types.ThrottlingException
	var unavailable *types.ServiceUnavailableException
	var internal *types.InternalServerException
	var modelTimeout *types.ModelTimeoutException
	var notReady *types.ModelNotReadyException

	switch {
	case errors.As(err, &throttled):
		return &guard.Error{Kind: guard.KindRateLimit, Message: err.Error(), Retryable: true, Err: err}
	case errors.As(err, &modelTimeout):
		return &guard.Error{Kind: guard.KindTimeout, Message: err.Error(), Retryable: true, Err: err}
	case errors.As(err, &unavailable), errors.As(err, &internal), errors.As(err, &notReady):
		return &guard.Error{Kind: guard.KindNetwork, Message: err.Error(), Retryable: true, Err: err}
	}
	return guard.Classify(err)
}

var invalidToolChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// toolNameFor turns a contract name into a valid Bedrock tool name.
func toolNameFor(contract string) string {
	name := invalidToolChars.ReplaceAllString(contract, "_")
	if name == "" {
		name = "submit"
	}
	if len(name) > 64 {
		name = name[:64]
	}
	return name
}

// buildToolSpec constructs a ToolSpecification for a contract. The schema is
// round-tripped through JSON so the document carries its custom marshalling.
func buildToolSpec(name, description string, schema *jsonschema.Schema) (types.ToolSpecification, error) {
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to marshal tool schema for %s: %w", name, err)
	}

	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return types.ToolSpecification{}, fmt.Errorf("failed to unmarshal tool schema for %s: %w", name, err)
	}

	return types.ToolSpecification{
		Name:        aws.String(name),
		Description: aws.String(description),
		InputSchema: &types.ToolInputSchemaMemberJson{
			Value: document.NewLazyDocument(schemaMap),
		},
	}, nil
}

// toolInputFromOutput returns the JSON input of the first call to toolName.
func toolInputFromOutput(out *bedrockruntime.ConverseOutput, toolName string) (string, bool, error) {
	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return "", false, nil
	}

	for _, cb := range msg.Value.Content {
		tu, ok := cb.(*types.ContentBlockMemberToolUse)
		if !ok || tu == nil || aws.ToString(tu.Value.Name) != toolName || tu.Value.Input == nil {
			continue
		}

		var input map[string]any
		if err := tu.Value.Input.UnmarshalSmithyDocument(&input); err != nil {
			return "", true, err
		}
		b, err := json.Marshal(input)
		if err != nil {
			return "", true, err
		}
		return string(b), true, nil
	}
	return "", false, nil
}

// textFromOutput returns assistant text optimized for structured use:
// 1) If any text block looks like a single JSON object, return the last such block.
// 2) Else, if there's only one text block, return it.
// 3) Else, join all text blocks with '\n'.
func textFromOutput(out *bedrockruntime.ConverseOutput) (string, error) {
	if out == nil || out.Output == nil {
		return "", nil
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil || len(msg.Value.Content) == 0 {
		return "", nil
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && t.Value != "" {
			texts = append(texts, t.Value)
		}
	}
	if len(texts) == 0 {
		return "", nil
	}

	for i := len(texts) - 1; i >= 0; i-- {
		s := strings.TrimSpace(texts[i])
		if len(s) > 1 && s[0] == '{' && s[len(s)-1] == '}' {
			return s, nil
		}
	}

	if len(texts) == 1 {
		return texts[0], nil
	}
	return strings.Join(texts, "\n"), nil
}
