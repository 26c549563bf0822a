// Package report summarises a CLI drafting session for humans or as JSON.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/goccy/go-json"

	"github.com/efebarandurmaz/replyforge/internal/draft"
	"github.com/efebarandurmaz/replyforge/internal/knowledge"
)

// SessionReport collects statistics for one drafting session.
type SessionReport struct {
	SessionID  string          `json:"session_id"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
	Duration   time.Duration   `json:"duration_ms,omitempty"`
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Knowledge  KnowledgeReport `json:"knowledge"`
	Steps      []StepReport    `json:"steps"`
	Reply      string          `json:"reply"`
	Errors     []string        `json:"errors,omitempty"`
}

type KnowledgeReport struct {
	MemoryChars int  `json:"memory_chars"`
	Passages    int  `json:"passages"`
	Filtered    bool `json:"filtered"`
}

type StepReport struct {
	DraftID   string        `json:"draft_id"`
	Operation string        `json:"operation"`
	Duration  time.Duration `json:"duration_ms"`
	Chars     int           `json:"chars"`
	Cancelled bool          `json:"cancelled,omitempty"`
}

// New starts tracking a session.
func New(sessionID, provider, model string) *SessionReport {
	return &SessionReport{
		SessionID: sessionID,
		StartedAt: time.Now(),
		Provider:  provider,
		Model:     model,
	}
}

// CollectKnowledge records the knowledge-base size. Passages is only
// counted when retrieval filtered the document.
func (r *SessionReport) CollectKnowledge(memory string, filtered bool, chunkTarget int) {
	r.Knowledge.MemoryChars = len([]rune(memory))
	r.Knowledge.Filtered = filtered
	if filtered {
		r.Knowledge.Passages = len(knowledge.Chunk(memory, chunkTarget))
	}
}

// AddStep records one generate or refine call.
func (r *SessionReport) AddStep(op string, d time.Duration, res *draft.Result) {
	if res == nil {
		return
	}
	r.Steps = append(r.Steps, StepReport{
		DraftID:   res.ID,
		Operation: op,
		Duration:  d,
		Chars:     len([]rune(res.Text)),
		Cancelled: res.Cancelled,
	})
	r.Reply = res.Text
}

// AddError records a failed step.
func (r *SessionReport) AddError(err error) {
	if err != nil {
		r.Errors = append(r.Errors, err.Error())
	}
}

// Finish marks the session as complete.
func (r *SessionReport) Finish() {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
}

// PrintSummary writes a human-readable summary.
func (r *SessionReport) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║       REPLYFORGE DRAFT REPORT        ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Provider:    %-23s║\n", r.Provider)
	fmt.Fprintf(w, "║ Model:       %-23s║\n", r.Model)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ KNOWLEDGE BASE\n")
	fmt.Fprintf(w, "║   Size:        %s\n", formatChars(r.Knowledge.MemoryChars))
	if r.Knowledge.Filtered {
		fmt.Fprintf(w, "║   Retrieval:   filtered (%d passages)\n", r.Knowledge.Passages)
	} else {
		fmt.Fprintf(w, "║   Retrieval:   full document\n")
	}
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ STEPS\n")
	for _, s := range r.Steps {
		status := "OK"
		if s.Cancelled {
			status = "stopped"
		}
		fmt.Fprintf(w, "║   %-8s %8s  %5d chars  %s\n", s.Operation, s.Duration.Round(time.Millisecond), s.Chars, status)
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the report as formatted JSON.
func (r *SessionReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func formatChars(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM chars", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fk chars", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d chars", n)
	}
}
