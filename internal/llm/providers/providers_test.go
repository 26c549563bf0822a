package providers

import (
	"testing"

	"github.com/efebarandurmaz/replyforge/internal/llm"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()

	names := r.Names()
	if len(names) != 2 || names[0] != llm.ProviderAnthropic || names[1] != llm.ProviderOpenAI {
		t.Fatalf("expected [anthropic openai], got %v", names)
	}
	for name := range llm.KnownProviders {
		if _, err := r.Lookup(name); err != nil {
			t.Errorf("known provider %s has no adapter: %v", name, err)
		}
	}
}
