package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"vibeagent"
	"vibeagent/guard"
)

// mockHTTPClient implements the HTTPClient interface for testing
type mockHTTPClient struct {
	response *http.Response
	err      error
	body     []byte
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil {
		m.body, _ = io.ReadAll(req.Body)
	}
	return m.response, m.err
}

// createMockResponse creates a mock HTTP response
func createMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestNewClient(t *testing.T) {
	got, err := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434/", ModelID: "llama3.2", HTTPClient: &mockHTTPClient{}})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if got.endpoint != "http://localhost:11434/api/chat" {
		t.Errorf("endpoint = %q", got.endpoint)
	}
	if got.options.NumCtx != 16384 || got.options.Temperature != 0.2 {
		t.Errorf("unexpected default options %+v", got.options)
	}

	if _, err := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434"}); err == nil {
		t.Error("expected error for missing model id")
	}
}

func TestClient_CompleteStructured(t *testing.T) {
	contract := &jsonschema.Schema{Type: "object", Required: []string{"intents"}}

	tests := []struct {
		name       string
		req        vibeagent.StructuredRequest
		response   *http.Response
		err        error
		want       string
		wantKind   guard.Kind
		wantFormat string
	}{
		{
			name:       "contract becomes the format",
			req:        vibeagent.StructuredRequest{Stage: "propose", SystemPrompt: "sys", UserPrompt: "go", Contract: contract},
			response:   createMockResponse(http.StatusOK, `{"message":{"role":"assistant","content":"{\"intents\":[]}"},"done_reason":"stop"}`),
			want:       `{"intents":[]}`,
			wantFormat: `{"type":"object","required":["intents"]}`,
		},
		{
			name:       "no contract asks for json",
			req:        vibeagent.StructuredRequest{Stage: "plan", UserPrompt: "go"},
			response:   createMockResponse(http.StatusOK, `{"message":{"role":"assistant","content":"{}"}}`),
			want:       `{}`,
			wantFormat: `"json"`,
		},
		{
			name:     "truncated output",
			req:      vibeagent.StructuredRequest{Stage: "curate"},
			response: createMockResponse(http.StatusOK, `{"message":{"content":"{\"recomm"},"done_reason":"length"}`),
			wantKind: guard.KindParse,
		},
		{
			name:     "server error is transient",
			req:      vibeagent.StructuredRequest{Stage: "curate"},
			response: createMockResponse(http.StatusInternalServerError, "model crashed"),
			wantKind: guard.KindNetwork,
		},
		{
			name:     "model missing",
			req:      vibeagent.StructuredRequest{Stage: "curate"},
			response: createMockResponse(http.StatusNotFound, `{"error":"model not found"}`),
			wantKind: guard.KindUnknown,
		},
		{
			name:     "garbage body",
			req:      vibeagent.StructuredRequest{Stage: "curate"},
			response: createMockResponse(http.StatusOK, "not json"),
			wantKind: guard.KindParse,
		},
		{
			name:     "transport error",
			req:      vibeagent.StructuredRequest{Stage: "curate"},
			err:      errors.New("dial tcp: connection refused"),
			wantKind: guard.KindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockHTTPClient{response: tt.response, err: tt.err}
			client, err := NewClient(ClientOpts{BaseEndpoint: "http://localhost:11434", ModelID: "llama3.2", HTTPClient: mock})
			if err != nil {
				t.Fatal(err)
			}

			got, err := client.CompleteStructured(context.Background(), tt.req)
			if tt.wantKind != "" {
				var gerr *guard.Error
				if !errors.As(err, &gerr) {
					t.Fatalf("expected guard error, got %v", err)
				}
				if gerr.Kind != tt.wantKind {
					t.Errorf("kind = %s, want %s", gerr.Kind, tt.wantKind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}

			var sent struct {
				Format   json.RawMessage `json:"format"`
				Stream   bool            `json:"stream"`
				Messages []wireMessage   `json:"messages"`
			}
			if err := json.Unmarshal(mock.body, &sent); err != nil {
				t.Fatalf("request body: %v", err)
			}
			if !sameJSON(t, sent.Format, []byte(tt.wantFormat)) {
				t.Errorf("format = %s, want %s", sent.Format, tt.wantFormat)
			}
			if sent.Stream {
				t.Error("stream must be false")
			}
			if last := sent.Messages[len(sent.Messages)-1]; last.Role != "user" {
				t.Errorf("last message role = %s", last.Role)
			}
		})
	}
}

func sameJSON(t *testing.T, a, b []byte) bool {
	t.Helper()
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		t.Fatalf("decode %s: %v", a, err)
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return reflect.DeepEqual(av, bv)
}
