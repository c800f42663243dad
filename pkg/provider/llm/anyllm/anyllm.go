// Package anyllm serves [llm.Provider] through github.com/mozilla-ai/any-llm-go
// for every vendor that library supports. The summarizer's fallback slot
// (Anthropic by default) normally lands here.
//
//	p, err := anyllm.NewAnthropic("claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
package anyllm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	anyanthropic "github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"
	oai "github.com/openai/openai-go"

	"github.com/MrWong99/memento/pkg/provider/llm"
)

// toolChoiceRequired forces a tool call. Only one tool is ever offered, so it
// is the same as naming it.
const toolChoiceRequired = "required"

type backendFactory func(...anyllmlib.Option) (anyllmlib.Provider, error)

// backends maps lower-case vendor names to their any-llm-go constructors.
var backends = map[string]backendFactory{
	"anthropic": func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyanthropic.New(o...) },
	"deepseek":  func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return deepseek.New(o...) },
	"gemini":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return gemini.New(o...) },
	"groq":      func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return groq.New(o...) },
	"mistral":   func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return mistral.New(o...) },
	"ollama":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return ollama.New(o...) },
	"openai":    func(o ...anyllmlib.Option) (anyllmlib.Provider, error) { return anyllmoai.New(o...) },
}

// Backends returns the supported vendor names in sorted order.
func Backends() []string {
	return slices.Sorted(maps.Keys(backends))
}

// Provider adapts one any-llm-go backend and model.
type Provider struct {
	backend anyllmlib.Provider
	name    string
	model   string
}

// New creates a Provider for vendor (see [Backends]). opts are any-llm-go
// options; without [anyllmlib.WithAPIKey] the backend reads its usual
// environment variable, e.g. ANTHROPIC_API_KEY.
func New(vendor, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if vendor == "" {
		return nil, errors.New("anyllm: vendor must not be empty")
	}
	if model == "" {
		return nil, errors.New("anyllm: model must not be empty")
	}
	name := strings.ToLower(vendor)
	factory, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("anyllm: unsupported vendor %q; supported: %s", vendor, strings.Join(Backends(), ", "))
	}
	backend, err := factory(opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %s backend: %w", name, err)
	}
	return &Provider{backend: backend, name: name, model: model}, nil
}

// NewAnthropic is New("anthropic", model, opts...).
func NewAnthropic(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("anthropic", model, opts...)
}

// NewOllama is New("ollama", model, opts...). Without options it connects to
// http://localhost:11434.
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("ollama", model, opts...)
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	out, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("anyllm: %s completion: %w", p.name, p.classify(err))
	}
	if len(out.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: %s response has no choices", p.name)
	}

	msg := out.Choices[0].Message
	resp := &llm.CompletionResponse{Content: msg.ContentString()}
	if u := out.Usage; u != nil {
		resp.Usage = llm.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	for _, call := range msg.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, llm.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return resp, nil
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.CapabilitiesFor(p.model)
}

// classify turns vendor SDK errors carrying an HTTP status into
// [llm.StatusError]. Anything else passes through unchanged.
func (p *Provider) classify(err error) error {
	if code := statusFromSDK(err); code != 0 {
		return &llm.StatusError{Provider: p.name, Code: code, Err: err}
	}
	return err
}

func statusFromSDK(err error) int {
	var antErr *anthropic.Error
	if errors.As(err, &antErr) {
		return antErr.StatusCode
	}
	var oaiErr *oai.Error
	if errors.As(err, &oaiErr) {
		return oaiErr.StatusCode
	}
	return 0
}

// buildParams always sets Temperature so that zero is sent explicitly. A
// ToolChoice without tools is dropped.
func (p *Provider) buildParams(req llm.CompletionRequest) anyllmlib.CompletionParams {
	temp := req.Temperature
	params := anyllmlib.CompletionParams{
		Model:       p.model,
		Messages:    make([]anyllmlib.Message, 0, len(req.Messages)+1),
		Temperature: &temp,
	}
	if req.SystemPrompt != "" {
		params.Messages = append(params.Messages, anyllmlib.Message{Role: anyllmlib.RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		params.Messages = append(params.Messages, convertMessage(m))
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		params.MaxTokens = &maxTokens
	}
	for _, td := range req.Tools {
		params.Tools = append(params.Tools, anyllmlib.Tool{
			Type: "function",
			Function: anyllmlib.Function{
				Name:        td.Name,
				Description: td.Description,
				Parameters:  td.Parameters,
			},
		})
	}
	if req.ToolChoice != "" && len(params.Tools) > 0 {
		params.ToolChoice = toolChoiceRequired
	}
	return params
}

func convertMessage(m llm.Message) anyllmlib.Message {
	return anyllmlib.Message{Role: m.Role, Content: m.Content}
}
