// Package openai adapts the OpenAI chat completions streaming protocol.
// Any OpenAI-compatible endpoint works through a custom base URL.
package openai

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

const doneMarker = "[DONE]"

// Adapter implements llm.Adapter for OpenAI-compatible APIs.
type Adapter struct{}

// New creates an OpenAI adapter.
func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return llm.ProviderOpenAI }

// BuildRequest sends the conversation as-is; system messages stay inline.
func (a *Adapter) BuildRequest(cfg llm.ProviderConfig, msgs []llm.Message) (*llm.Request, error) {
	messages := make([]map[string]string, 0, len(msgs))
	for _, m := range msgs {
		messages = append(messages, map[string]string{"role": string(m.Role), "content": m.Content})
	}

	body := map[string]any{
		"model":    cfg.Model,
		"messages": messages,
		"stream":   true,
	}
	if cfg.Temperature != nil {
		body["temperature"] = *cfg.Temperature
	}
	if cfg.MaxTokens != nil {
		body["max_tokens"] = *cfg.MaxTokens
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: encode request: %w", err)
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	header.Set("Accept", "text/event-stream")
	header.Set("Authorization", "Bearer "+cfg.APIKey)

	return &llm.Request{
		URL:    strings.TrimRight(llm.BaseURL(cfg), "/") + "/chat/completions",
		Body:   data,
		Header: header,
	}, nil
}

func (a *Adapter) ParseStream(ctx context.Context, body io.Reader) *llm.Stream {
	return llm.NewStream(ctx, llm.ProviderOpenAI, body, Decode)
}

// Decode handles one "data:" payload. "[DONE]" ends the stream; otherwise
// choices[0].delta.content is emitted when non-empty.
func Decode(payload []byte) (llm.StreamChunk, bool) {
	if strings.TrimSpace(string(payload)) == doneMarker {
		return llm.StreamChunk{Done: true}, true
	}
	if !gjson.ValidBytes(payload) {
		return llm.StreamChunk{}, false
	}
	content := gjson.GetBytes(payload, "choices.0.delta.content")
	if content.Type != gjson.String || content.Str == "" {
		return llm.StreamChunk{}, false
	}
	return llm.StreamChunk{Content: content.Str}, true
}
