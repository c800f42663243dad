package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/MrWong99/memento/pkg/provider/llm"
)

// ErrProviderNotRegistered is returned by [Registry.CreateLLM] for a provider
// name without a factory.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// LLMFactory builds a provider from one configured slot.
type LLMFactory func(ProviderEntry) (llm.Provider, error)

// Registry maps provider names from the providers section to factories.
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]LLMFactory
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]LLMFactory{}}
}

// RegisterLLM adds or replaces the factory for name.
func (r *Registry) RegisterLLM(name string, factory LLMFactory) {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// LLMNames returns the registered names, sorted.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.factories))
}

// CreateLLM runs the factory registered under entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory := r.factories[entry.Name]
	r.mu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotRegistered, entry.Name)
	}
	p, err := factory(entry)
	if err != nil {
		return nil, fmt.Errorf("config: create provider %q: %w", entry.Name, err)
	}
	return p, nil
}
