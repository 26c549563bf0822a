package llm

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// DefaultProviderConfig returns the provider and model used when nothing
// is configured. The API key must still be supplied.
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Provider: ProviderOpenAI,
		Model:    "gpt-4o-mini",
	}
}

// Registry maps provider identifiers to adapters. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its Name, replacing any previous one.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Lookup returns the adapter for provider, or a *ConfigurationError
// wrapping ErrUnsupportedProvider.
func (r *Registry) Lookup(provider string) (Adapter, error) {
	r.mu.RLock()
	a, ok := r.adapters[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigurationError{
			Field: "provider",
			Err:   fmt.Errorf("%w %q (registered: %v)", ErrUnsupportedProvider, provider, r.Names()),
		}
	}
	return a, nil
}

// Names returns the registered provider identifiers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KnownProviders documents the built-in provider endpoints. Any
// OpenAI-compatible API can be reached through "openai" with a custom
// base URL.
//
//	anthropic  → https://api.anthropic.com/v1
//	openai     → https://api.openai.com/v1
var KnownProviders = map[string]string{
	ProviderAnthropic: "https://api.anthropic.com/v1",
	ProviderOpenAI:    "https://api.openai.com/v1",
}

// KnownModels lists the models offered per provider, most capable first.
var KnownModels = map[string][]string{
	ProviderOpenAI: {
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
		"o3-mini",
	},
	ProviderAnthropic: {
		"claude-sonnet-4-20250514",
		"claude-haiku-4-5-20251001",
		"claude-opus-4-20250514",
	},
}

// IsKnownModel reports whether model is listed for provider. Unlisted
// models are still accepted; this only drives warnings.
func IsKnownModel(provider, model string) bool {
	return slices.Contains(KnownModels[provider], model)
}

// BaseURL returns cfg.BaseURL or the known endpoint for cfg.Provider.
func BaseURL(cfg ProviderConfig) string {
	if cfg.BaseURL != "" {
		return cfg.BaseURL
	}
	return KnownProviders[cfg.Provider]
}
