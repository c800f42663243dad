// Package openai is the [llm.Provider] for the OpenAI Chat Completions API and
// compatible endpoints. It is the default primary summarizer backend.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"

	"github.com/MrWong99/memento/pkg/provider/llm"
)

const providerName = "openai"

// Provider talks to one model through the Chat Completions API.
type Provider struct {
	client oai.Client
	model  string
}

// Option adjusts the request options of a [Provider] at construction.
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithBaseURL(url)) }
}

// WithOrganization sends the OpenAI-Organization header.
func WithOrganization(org string) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithOrganization(org)) }
}

// WithHTTPClient replaces the HTTP client, for instance to set a timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *[]option.RequestOption) { *o = append(*o, option.WithHTTPClient(hc)) }
}

// New returns a Provider for model. The SDK's own retries are switched off;
// the summarizer counts attempts itself.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	var errs []error
	if apiKey == "" {
		errs = append(errs, errors.New("apiKey must not be empty"))
	}
	if model == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	for _, o := range opts {
		o(&reqOpts)
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// Complete implements llm.Provider.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	params, err := p.buildParams(req)
	if err != nil {
		return nil, err
	}
	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *oai.Error
		if errors.As(err, &apiErr) {
			err = &llm.StatusError{Provider: providerName, Code: apiErr.StatusCode, Err: err}
		}
		return nil, fmt.Errorf("openai: chat completion: %w", err)
	}
	return toResponse(completion)
}

// Capabilities implements llm.Provider.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	return llm.CapabilitiesFor(p.model)
}

func toResponse(c *oai.ChatCompletion) (*llm.CompletionResponse, error) {
	if len(c.Choices) == 0 {
		return nil, errors.New("openai: response has no choices")
	}
	msg := c.Choices[0].Message
	resp := &llm.CompletionResponse{
		Content: msg.Content,
		Usage: llm.Usage{
			PromptTokens:     int(c.Usage.PromptTokens),
			CompletionTokens: int(c.Usage.CompletionTokens),
			TotalTokens:      int(c.Usage.TotalTokens),
		},
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

// buildParams maps a request onto the SDK. Temperature is always sent so that
// zero stays zero. A ToolChoice must name one of the offered tools.
func (p *Provider) buildParams(req llm.CompletionRequest) (oai.ChatCompletionNewParams, error) {
	params := oai.ChatCompletionNewParams{
		Model:       shared.ChatModel(p.model),
		Temperature: param.NewOpt(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.Messages = append(params.Messages, oai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		msg, err := convertMessage(m)
		if err != nil {
			return params, err
		}
		params.Messages = append(params.Messages, msg)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.MaxTokens))
	}

	offered := false
	for _, td := range req.Tools {
		offered = offered || td.Name == req.ToolChoice
		params.Tools = append(params.Tools, oai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        td.Name,
				Description: param.NewOpt(td.Description),
				Parameters:  shared.FunctionParameters(td.Parameters),
			},
		})
	}
	if req.ToolChoice == "" {
		return params, nil
	}
	if !offered {
		return params, fmt.Errorf("openai: tool choice %q is not among the offered tools", req.ToolChoice)
	}
	params.ToolChoice = oai.ChatCompletionToolChoiceOptionUnionParam{
		OfChatCompletionNamedToolChoice: &oai.ChatCompletionNamedToolChoiceParam{
			Function: oai.ChatCompletionNamedToolChoiceFunctionParam{Name: req.ToolChoice},
		},
	}
	return params, nil
}

func convertMessage(m llm.Message) (oai.ChatCompletionMessageParamUnion, error) {
	switch m.Role {
	case llm.RoleSystem:
		return oai.SystemMessage(m.Content), nil
	case llm.RoleUser:
		return oai.UserMessage(m.Content), nil
	case llm.RoleAssistant:
		return oai.AssistantMessage(m.Content), nil
	}
	return oai.ChatCompletionMessageParamUnion{}, fmt.Errorf("openai: unknown message role %q", m.Role)
}
