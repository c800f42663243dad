// Package llm defines the Provider interface for the language-model backends
// that turn a cleaned conversation transcript into a structured summary.
//
// A provider wraps a remote model API (OpenAI, Anthropic through any-llm-go,
// a local Ollama instance, ...) and exposes a single blocking completion call
// so the summarizer can iterate an ordered list of providers without coupling
// to any specific SDK.
//
// Implementors must be safe for concurrent use. Failed HTTP calls should be
// returned as (or wrap) a [*StatusError] so callers can decide whether the
// failure is transient; see [IsRetryable].
package llm

import "context"

// Usage holds token accounting information returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// CompletionRequest carries everything the model needs to produce a response.
// At minimum Messages must be non-empty.
type CompletionRequest struct {
	// Messages is the ordered conversation history.
	Messages []Message

	// Tools is the set of function definitions offered to the model.
	Tools []ToolDefinition

	// ToolChoice forces the model to call the named tool instead of replying
	// with free text. Empty leaves the decision to the model. The name must
	// match one of Tools.
	ToolChoice string

	// Temperature controls output randomness. It is always sent to the
	// backend, so 0 requests greedy decoding rather than the provider default.
	Temperature float64

	// MaxTokens caps the number of completion tokens. Zero means provider default.
	MaxTokens int

	// SystemPrompt is an optional instruction injected before Messages.
	SystemPrompt string
}

// CompletionResponse is returned by [Provider.Complete].
type CompletionResponse struct {
	// Content is the assistant's free-text reply. Empty when the model
	// answered exclusively with tool calls.
	Content string

	// ToolCalls lists all tool invocations requested by the model.
	ToolCalls []ToolCall

	Usage Usage
}

// ToolCall returns the first tool call with the given name, or false.
func (r *CompletionResponse) ToolCall(name string) (ToolCall, bool) {
	if r == nil {
		return ToolCall{}, false
	}
	for _, tc := range r.ToolCalls {
		if tc.Name == name {
			return tc, true
		}
	}
	return ToolCall{}, false
}

// Provider is the abstraction over any language-model backend.
type Provider interface {
	// Complete sends req to the model and waits for the full response.
	// Returns an error if the request fails or ctx is cancelled first.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Capabilities returns static metadata describing the underlying model.
	Capabilities() ModelCapabilities
}
