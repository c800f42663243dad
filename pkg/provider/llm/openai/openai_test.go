package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	oai "github.com/openai/openai-go"

	"github.com/MrWong99/memento/pkg/provider/llm"
)

func TestConvertMessage_Roles(t *testing.T) {
	tests := []struct {
		role  string
		check func(oai.ChatCompletionMessageParamUnion) bool
	}{
		{llm.RoleSystem, func(m oai.ChatCompletionMessageParamUnion) bool { return m.OfSystem != nil }},
		{llm.RoleUser, func(m oai.ChatCompletionMessageParamUnion) bool { return m.OfUser != nil }},
		{llm.RoleAssistant, func(m oai.ChatCompletionMessageParamUnion) bool {
			return m.OfAssistant != nil && m.OfAssistant.Content.OfString.Value == "earlier reply"
		}},
	}
	for _, tt := range tests {
		msg, err := convertMessage(llm.Message{Role: tt.role, Content: "earlier reply"})
		if err != nil || !tt.check(msg) {
			t.Errorf("%s: got %+v, err %v", tt.role, msg, err)
		}
	}
}

// TestConvertMessage_UnknownRole checks that unknown roles return an error.
func TestConvertMessage_UnknownRole(t *testing.T) {
	if _, err := convertMessage(llm.Message{Role: "unknown", Content: "test"}); err == nil {
		t.Fatal("expected error for unknown role, got nil")
	}
}

// TestBuildParams_UnknownToolChoice rejects forcing a tool that is not offered.
func TestBuildParams_UnknownToolChoice(t *testing.T) {
	p := &Provider{model: "gpt-4o-mini"}
	_, err := p.buildParams(llm.CompletionRequest{
		Messages:   []llm.Message{{Role: "user", Content: "hi"}},
		ToolChoice: "save_summary",
	})
	if err == nil {
		t.Fatal("expected error for tool choice without matching tool")
	}
}

func TestCapabilities(t *testing.T) {
	p, err := New("sk-test", "o1-mini")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Capabilities().SupportsToolCalling {
		t.Error("o1-mini: expected SupportsToolCalling=false")
	}
}

// TestNew_Validation ensures the constructor rejects missing credentials.
func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o"); err == nil {
		t.Fatal("expected error for empty API key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o", WithBaseURL("https://custom.example.com"), WithOrganization("org-123")); err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}

const toolCallResponse = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "finish_reason": "tool_calls",
    "message": {
      "role": "assistant",
      "content": null,
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "save_summary", "arguments": "{\"info\":\"Dana Lee\"}"}
      }]
    }
  }],
  "usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestComplete_ForcedToolChoice(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, toolCallResponse)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	resp, err := p.Complete(context.Background(), llm.CompletionRequest{
		SystemPrompt: "extract",
		Messages:     []llm.Message{{Role: "user", Content: "I met Dana Lee"}},
		Tools:        []llm.ToolDefinition{{Name: "save_summary", Description: "save", Parameters: map[string]any{"type": "object"}}},
		ToolChoice:   "save_summary",
		Temperature:  0,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	tc, ok := resp.ToolCall("save_summary")
	if !ok {
		t.Fatalf("expected save_summary tool call, got %+v", resp.ToolCalls)
	}
	if tc.Arguments != `{"info":"Dana Lee"}` {
		t.Errorf("unexpected arguments %q", tc.Arguments)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("TotalTokens = %d, want 15", resp.Usage.TotalTokens)
	}

	choice, _ := body["tool_choice"].(map[string]any)
	fn, _ := choice["function"].(map[string]any)
	if fn["name"] != "save_summary" {
		t.Errorf("tool_choice not forced to save_summary: %v", body["tool_choice"])
	}
	if temp, ok := body["temperature"].(float64); !ok || temp != 0 {
		t.Errorf("temperature = %v, want explicit 0", body["temperature"])
	}
}

func TestComplete_StatusErrorNotRetriedBySDK(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit","code":"rate_limit"}}`)
	}))
	defer srv.Close()

	p, err := New("sk-test", "gpt-4o-mini", WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := llm.StatusCode(err); got != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429 (err: %v)", got, err)
	}
	if !llm.IsRetryable(err) {
		t.Error("429 should be retryable")
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
}
