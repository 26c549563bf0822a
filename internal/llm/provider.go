package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Provider identifiers understood by the default registry.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig selects a provider and model for one request. It is treated
// as immutable for the lifetime of that request.
type ProviderConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string // Override for proxies and tests; empty means the vendor endpoint

	Temperature *float64 // [0, 2]; nil leaves the vendor default
	MaxTokens   *int     // > 0; nil leaves the vendor default (Anthropic requires one, see adapter)
}

// String never includes the API key.
func (c ProviderConfig) String() string {
	return fmt.Sprintf("provider=%s model=%s base_url=%s", c.Provider, c.Model, c.BaseURL)
}

// LogValue keeps the API key out of structured logs.
func (c ProviderConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", c.Provider),
		slog.String("model", c.Model),
	)
}

// Request is a fully built vendor request.
type Request struct {
	URL    string
	Body   []byte
	Header http.Header
}

// Adapter translates the provider-agnostic conversation into one vendor's wire
// protocol and decodes that vendor's event stream back into StreamChunks.
type Adapter interface {
	// Name returns the provider identifier (e.g. "anthropic", "openai").
	Name() string
	// BuildRequest builds the POST request for a streaming completion.
	BuildRequest(cfg ProviderConfig, msgs []Message) (*Request, error)
	// ParseStream lazily decodes the response body. Closing the returned
	// stream closes body when it implements io.Closer.
	ParseStream(ctx context.Context, body io.Reader) *Stream
}
