// Package providers wires the built-in vendor adapters into a registry.
package providers

import (
	"github.com/efebarandurmaz/replyforge/internal/llm"
	"github.com/efebarandurmaz/replyforge/internal/llm/anthropic"
	"github.com/efebarandurmaz/replyforge/internal/llm/openai"
)

// NewRegistry returns a registry with the OpenAI and Anthropic adapters.
func NewRegistry() *llm.Registry {
	r := llm.NewRegistry()
	r.Register(openai.New())
	r.Register(anthropic.New())
	return r
}
