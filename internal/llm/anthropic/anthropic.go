// Package anthropic adapts the Anthropic Messages streaming protocol.
package anthropic

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/efebarandurmaz/replyforge/internal/llm"
)

const (
	apiVersion = "2023-06-01"

	// DefaultMaxTokens is sent when the config leaves MaxTokens unset; the
	// API rejects requests without it.
	DefaultMaxTokens = 4096
)

// Adapter implements llm.Adapter for the Anthropic Messages API.
type Adapter struct{}

// New creates an Anthropic adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return llm.ProviderAnthropic }

// BuildRequest lifts the system message into the top-level "system" field
// and keeps only user and assistant turns in "messages".
func (a *Adapter) BuildRequest(cfg llm.ProviderConfig, msgs []llm.Message) (*llm.Request, error) {
	system, rest := llm.SplitSystem(msgs)

	messages := make([]map[string]string, 0, len(rest))
	for _, m := range rest {
		if m.Role != llm.RoleUser && m.Role != llm.RoleAssistant {
			continue
		}
		messages = append(messages, map[string]string{"role": string(m.Role), "content": m.Content})
	}

	maxTokens := DefaultMaxTokens
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}

	body := map[string]any{
		"model":      cfg.Model,
		"max_tokens": maxTokens,
		"messages":   messages,
		"stream":     true,
	}
	if system != "" {
		body["system"] = system
	}
	if cfg.Temperature != nil {
		body["temperature"] = *cfg.Temperature
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: encode request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "text/event-stream")
	header.Set("x-api-key", cfg.APIKey)
	header.Set("anthropic-version", apiVersion)

	return &llm.Request{
		URL:    strings.TrimRight(llm.BaseURL(cfg), "/") + "/messages",
		Body:   data,
		Header: header,
	}, nil
}

func (a *Adapter) ParseStream(ctx context.Context, body io.Reader) *llm.Stream {
	return llm.NewStream(ctx, llm.ProviderAnthropic, body, Decode)
}

// Decode handles one "data:" envelope. content_block_delta carries text in
// delta.text and message_stop ends the stream; other types are ignored.
func Decode(payload []byte) (llm.StreamChunk, bool) {
	if !gjson.ValidBytes(payload) {
		return llm.StreamChunk{}, false
	}
	switch gjson.GetBytes(payload, "type").Str {
	case "content_block_delta":
		text := gjson.GetBytes(payload, "delta.text")
		if text.Type != gjson.String || text.Str == "" {
			return llm.StreamChunk{}, false
		}
		return llm.StreamChunk{Content: text.Str}, true
	case "message_stop":
		return llm.StreamChunk{Done: true}, true
	default:
		return llm.StreamChunk{}, false
	}
}
