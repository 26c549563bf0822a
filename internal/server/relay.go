package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/efebarandurmaz/replyforge/internal/draft"
	"github.com/efebarandurmaz/replyforge/internal/llm"
)

// maxRequestBytes bounds a draft request; the knowledge base travels inline.
const maxRequestBytes = 4 << 20

// Drafter produces drafts. *draft.Service implements it.
type Drafter interface {
	Generate(ctx context.Context, req draft.Request, onChunk func(string)) (*draft.Result, error)
	Refine(ctx context.Context, history []llm.Message, instruction string, onChunk func(string)) (*draft.Result, error)
}

// DraftRequest is the body of POST /v1/drafts. A non-empty History asks for
// a refinement driven by Instruction; otherwise Query is drafted fresh.
type DraftRequest struct {
	Query        string        `json:"query"`
	Memory       string        `json:"memory,omitempty"`
	Instructions string        `json:"instructions,omitempty"`
	History      []llm.Message `json:"history,omitempty"`
	Instruction  string        `json:"instruction,omitempty"`
}

// Frame is one SSE data frame. The final frame has Done set and carries the
// draft ID and the history to refine from.
type Frame struct {
	Content   string        `json:"content"`
	Done      bool          `json:"done"`
	ID        string        `json:"id,omitempty"`
	Filtered  bool          `json:"filtered,omitempty"`
	Cancelled bool          `json:"cancelled,omitempty"`
	History   []llm.Message `json:"history,omitempty"`
}

// ErrorBody is sent as a JSON response before streaming starts, or as an
// "error" event afterwards.
type ErrorBody struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	RequestID string `json:"request_id,omitempty"`
}

// ProviderInfo describes one entry of GET /v1/providers.
type ProviderInfo struct {
	Name    string   `json:"name"`
	BaseURL string   `json:"base_url"`
	Models  []string `json:"models"`
	Active  bool     `json:"active"`
}

// Relay streams drafts to HTTP clients as server-sent events.
type Relay struct {
	drafter  Drafter
	provider llm.ProviderConfig
	logger   *slog.Logger
}

// NewRelay creates a relay. provider is reported by /v1/providers; it is
// never echoed with its key.
func NewRelay(d Drafter, provider llm.ProviderConfig, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{drafter: d, provider: provider, logger: logger}
}

// RegisterRoutes mounts the relay endpoints on mux.
func (rl *Relay) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/drafts", rl.handleDrafts)
	mux.HandleFunc("/v1/providers", rl.handleProviders)
}

// Mount adds the relay endpoints to g.
func (rl *Relay) Mount(g *GracefulServer) {
	rl.RegisterRoutes(g.mux)
}

// handleDrafts handles POST /v1/drafts
func (rl *Relay) handleDrafts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	reqID := uuid.NewString()
	logger := rl.logger.With("request_id", reqID)

	var req DraftRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "invalid request body: " + err.Error(), Kind: "invalid_request", RequestID: reqID})
		return
	}
	refine := len(req.History) > 0
	if !refine && strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: draft.ErrEmptyQuery.Error(), Kind: "invalid_request", RequestID: reqID})
		return
	}

	ew, err := newEventWriter(w)
	if err != nil {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// The request context ends when the client goes away, which cancels the
	// upstream completion.
	ctx := r.Context()
	onChunk := func(s string) {
		if err := ew.send("", Frame{Content: s}); err != nil {
			logger.Debug("Dropping chunk", "error", err)
		}
	}

	var res *draft.Result
	if refine {
		res, err = rl.drafter.Refine(ctx, req.History, req.Instruction, onChunk)
	} else {
		res, err = rl.drafter.Generate(ctx, draft.Request{
			Query:        req.Query,
			Memory:       req.Memory,
			Instructions: req.Instructions,
		}, onChunk)
	}

	if err != nil {
		if ctx.Err() != nil {
			logger.Info("Draft client disconnected")
			return
		}
		body := ErrorBody{Error: err.Error(), Kind: errorKind(err), RequestID: reqID}
		logger.Warn("Draft failed", "kind", body.Kind, "error", err)
		if !ew.started {
			writeJSON(w, errorStatus(err), body)
			return
		}
		if res != nil && res.Cancelled {
			_ = ew.send("", Frame{Done: true, ID: res.ID, Cancelled: true, History: res.History})
			return
		}
		_ = ew.send("error", body)
		return
	}

	if err := ew.send("", Frame{Done: true, ID: res.ID, Filtered: res.Filtered, History: res.History}); err != nil {
		logger.Debug("Final frame not delivered", "error", err)
	}
}

// handleProviders handles GET /v1/providers
func (rl *Relay) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	infos := make([]ProviderInfo, 0, len(llm.KnownProviders))
	for _, name := range []string{llm.ProviderOpenAI, llm.ProviderAnthropic} {
		infos = append(infos, ProviderInfo{
			Name:    name,
			BaseURL: llm.KnownProviders[name],
			Models:  llm.KnownModels[name],
			Active:  name == rl.provider.Provider,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// eventWriter writes SSE frames. Headers are sent with the first frame so
// errors that happen before any output can still use a plain status code.
type eventWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newEventWriter(w http.ResponseWriter) (*eventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &eventWriter{w: w, flusher: flusher}, nil
}

func (e *eventWriter) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if !e.started {
		h := e.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		e.w.WriteHeader(http.StatusOK)
		e.started = true
	}
	if event != "" {
		if _, err := fmt.Fprintf(e.w, "event: %s\n", event); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(e.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	e.flusher.Flush()
	return nil
}

func errorKind(err error) string {
	var apiErr *llm.APIError
	var netErr *llm.NetworkError
	var decErr *llm.DecodeError
	switch {
	case errors.Is(err, draft.ErrEmptyQuery), errors.Is(err, draft.ErrEmptyInstruction), errors.Is(err, draft.ErrNoHistory):
		return "invalid_request"
	case llm.IsConfiguration(err):
		return "configuration"
	case llm.IsTimeout(err):
		return "timeout"
	case llm.IsCancelled(err):
		return "cancelled"
	case errors.As(err, &apiErr):
		return "api"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &decErr):
		return "decode"
	default:
		return "internal"
	}
}

func errorStatus(err error) int {
	switch errorKind(err) {
	case "invalid_request":
		return http.StatusBadRequest
	case "timeout":
		return http.StatusGatewayTimeout
	case "api", "network", "decode":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
