// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the summarizer sends correct
// CompletionRequests and to feed controlled responses without a live backend.
// All fields are safe to set before calling any method; mutating them during a
// concurrent call is the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{
//	    Script: []mock.Result{
//	        {Err: &llm.StatusError{Provider: "mock", Code: 429, Err: errors.New("busy")}},
//	        {Response: &llm.CompletionResponse{Content: "Hello!"}},
//	    },
//	}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/memento/pkg/provider/llm"
)

// Result is one scripted outcome of Complete.
type Result struct {
	Response *llm.CompletionResponse
	Err      error
}

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
//
// Complete consumes Script in order; once the script is exhausted (or when it
// is empty) CompleteResponse and CompleteErr are returned.
type Provider struct {
	mu sync.Mutex

	// Script is the sequence of outcomes returned by successive Complete calls.
	Script []Result

	// CompleteResponse is returned once Script is exhausted. May be nil.
	CompleteResponse *llm.CompletionResponse

	// CompleteErr, if non-nil, is returned once Script is exhausted.
	CompleteErr error

	// ModelCapabilities is returned by Capabilities.
	ModelCapabilities llm.ModelCapabilities

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall
}

// Complete records the call and returns the next scripted outcome.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := len(p.CompleteCalls)
	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if idx < len(p.Script) {
		r := p.Script[idx]
		return r.Response, r.Err
	}
	return p.CompleteResponse, p.CompleteErr
}

// Capabilities returns ModelCapabilities.
func (p *Provider) Capabilities() llm.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelCapabilities
}

// Calls returns a snapshot of the recorded Complete calls. Thread-safe.
func (p *Provider) Calls() []CompleteCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CompleteCall, len(p.CompleteCalls))
	copy(out, p.CompleteCalls)
	return out
}

// Ensure Provider implements llm.Provider at compile time.
var _ llm.Provider = (*Provider)(nil)
