package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/efebarandurmaz/replyforge/internal/draft"
)

func TestSessionReport_Steps(t *testing.T) {
	r := New("s1", "openai", "gpt-4o-mini")
	r.AddStep("generate", 0, &draft.Result{ID: "d1", Text: "Hello"})
	r.AddStep("refine", 0, &draft.Result{ID: "d2", Text: "Hi", Cancelled: true})
	r.AddStep("refine", 0, nil)
	r.Finish()

	if len(r.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(r.Steps))
	}
	if r.Reply != "Hi" {
		t.Errorf("expected last reply, got %q", r.Reply)
	}
	if !r.Steps[1].Cancelled {
		t.Error("expected second step to be marked cancelled")
	}
	if r.FinishedAt.Before(r.StartedAt) {
		t.Error("expected FinishedAt after StartedAt")
	}
}

func TestSessionReport_CollectKnowledge(t *testing.T) {
	r := New("s1", "openai", "m")
	memory := strings.Repeat("Refunds take five days. ", 40) + "\n\n" + strings.Repeat("Shipping is free. ", 40)

	r.CollectKnowledge(memory, false, 600)
	if r.Knowledge.Passages != 0 || r.Knowledge.Filtered {
		t.Errorf("unfiltered memory should not count passages: %+v", r.Knowledge)
	}

	r.CollectKnowledge(memory, true, 600)
	if r.Knowledge.Passages < 2 {
		t.Errorf("expected several passages, got %d", r.Knowledge.Passages)
	}
	if r.Knowledge.MemoryChars != len(memory) {
		t.Errorf("expected %d chars, got %d", len(memory), r.Knowledge.MemoryChars)
	}
}

func TestSessionReport_JSON(t *testing.T) {
	r := New("s1", "anthropic", "claude-haiku-4-5-20251001")
	r.AddError(errors.New("anthropic API error 529: overloaded"))
	r.Finish()

	data, err := r.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if decoded["provider"] != "anthropic" {
		t.Errorf("unexpected provider %v", decoded["provider"])
	}
	if errs, ok := decoded["errors"].([]any); !ok || len(errs) != 1 {
		t.Errorf("expected one error, got %v", decoded["errors"])
	}
}

func TestSessionReport_PrintSummary(t *testing.T) {
	r := New("s1", "openai", "gpt-4o")
	r.CollectKnowledge("short", false, 600)
	r.AddStep("generate", 0, &draft.Result{ID: "d1", Text: "Thanks!"})
	r.Finish()

	var buf bytes.Buffer
	r.PrintSummary(&buf)
	out := buf.String()
	for _, want := range []string{"REPLYFORGE DRAFT REPORT", "gpt-4o", "full document", "generate"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected summary to contain %q", want)
		}
	}
}
