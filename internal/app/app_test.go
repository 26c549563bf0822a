package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/efebarandurmaz/replyforge/internal/config"
	"github.com/efebarandurmaz/replyforge/internal/draft"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{
			Provider:   "openai",
			Model:      "gpt-4o-mini",
			APIKey:     "sk-test",
			BaseURL:    baseURL,
			Timeout:    5 * time.Second,
			MaxRetries: 0,
		},
		Retrieval: config.RetrievalConfig{Threshold: 3000, TopK: 4, ChunkTarget: 600},
		Draft:     config.DraftConfig{ContextMessages: 10},
		Log:       config.LogConfig{Level: "error", Format: "json"},
	}
}

func TestNew_EndToEndDraft(t *testing.T) {
	var gotBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody.Store(string(b))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Your order \"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ships tomorrow.\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	a, err := New(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())

	var streamed strings.Builder
	res, err := a.Service.Generate(context.Background(), draft.Request{
		Query:  "When does my order ship?",
		Memory: "Orders placed before noon ship the next day.",
	}, func(s string) { streamed.WriteString(s) })
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "Your order ships tomorrow." {
		t.Errorf("unexpected reply %q", res.Text)
	}
	if streamed.String() != res.Text {
		t.Errorf("expected streamed text to match result, got %q", streamed.String())
	}
	body, _ := gotBody.Load().(string)
	if !strings.Contains(body, "Orders placed before noon") {
		t.Errorf("expected knowledge base in request body, got %s", body)
	}
	if !strings.Contains(body, `"stream":true`) {
		t.Errorf("expected streaming request, got %s", body)
	}
}

func TestNew_InvalidLogFormat(t *testing.T) {
	cfg := testConfig("")
	cfg.Log.Format = "xml"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown log format")
	}
}

func TestNew_RateLimitedClient(t *testing.T) {
	cfg := testConfig("")
	cfg.LLM.RequestsPerMinute = 60
	cfg.LLM.Burst = 2
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Service.Provider().Model != "gpt-4o-mini" {
		t.Errorf("unexpected provider %s", a.Service.Provider())
	}
}
