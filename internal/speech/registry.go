package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type TranslatorFactory func(ctx context.Context, model string) (Translator, error)

type registration struct {
	defaultModel string
	factory      TranslatorFactory
}

// Registry routes translation requests to a named provider, so deployments
// can switch between the hosted API and a local model without code changes.
// Each provider registers the model it falls back to when the request names
// none, keeping that policy out of the callers.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a provider under name. defaultModel is applied whenever Get
// is called with an empty model; pass "" if the factory has its own default.
func (r *Registry) Register(name, defaultModel string, f TranslatorFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = registration{defaultModel: defaultModel, factory: f}
}

func (r *Registry) Get(ctx context.Context, name, model string) (Translator, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	reg, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown translation provider: %s", name)
	}
	if model == "" {
		model = reg.defaultModel
	}
	return reg.factory(ctx, model)
}
