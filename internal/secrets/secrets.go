// Package secrets resolves provider credentials from a chain of read-only
// backends.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Well-known secret names.
const (
	LLMAPIKey       = "llm_api_key"
	OpenAIAPIKey    = "openai_api_key"
	AnthropicAPIKey = "anthropic_api_key"
)

// ErrNotFound is returned when no backend holds the requested secret.
var ErrNotFound = errors.New("secret not found")

// Provider is a secret backend.
type Provider interface {
	// Get returns the secret or an error wrapping ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	Name() string
}

// Config configures the secrets manager.
type Config struct {
	// File is an optional JSON secrets file consulted before the environment.
	File string
	// EnvPrefix prefixes environment lookups (default "REPLYFORGE_").
	EnvPrefix string
}

// Manager looks a secret up in each provider in order and caches hits.
type Manager struct {
	providers []Provider

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager builds the provider chain: the secrets file when configured,
// then the environment.
func NewManager(cfg Config) (*Manager, error) {
	var chain []Provider
	if cfg.File != "" {
		fp, err := NewFileProvider(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("create file provider: %w", err)
		}
		chain = append(chain, fp)
	}
	chain = append(chain, NewEnvProvider(cfg.EnvPrefix))
	return NewChain(chain...), nil
}

// NewChain builds a manager over explicit providers.
func NewChain(providers ...Provider) *Manager {
	return &Manager{providers: providers, cache: make(map[string]string)}
}

// Get returns the first non-empty value for key.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	val, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	for _, p := range m.providers {
		val, err := p.Get(ctx, key)
		if err == nil && val != "" {
			m.mu.Lock()
			m.cache[key] = val
			m.mu.Unlock()
			return val, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

// First returns the value of the first key any provider holds.
func (m *Manager) First(ctx context.Context, keys ...string) (string, error) {
	for _, key := range keys {
		val, err := m.Get(ctx, key)
		if err == nil {
			return val, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, strings.Join(keys, ", "))
}

// ClearCache drops cached values so the next Get consults the providers.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[string]string)
	m.mu.Unlock()
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider returns a provider that tries PREFIX+KEY, then KEY.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "REPLYFORGE_"
	}
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	name := strings.ToUpper(key)
	if val := os.Getenv(p.prefix + name); val != "" {
		return val, nil
	}
	if val := os.Getenv(name); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("%w: $%s%s", ErrNotFound, p.prefix, name)
}
