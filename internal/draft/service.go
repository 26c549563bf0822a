package draft

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/efebarandurmaz/replyforge/internal/llm"
	"github.com/efebarandurmaz/replyforge/internal/observability"
)

// Streamer starts a streaming completion. *llm.Client implements it.
type Streamer interface {
	Stream(ctx context.Context, cfg llm.ProviderConfig, msgs []llm.Message) (*llm.Stream, error)
}

// Request asks for a fresh draft.
type Request struct {
	Query        string
	Memory       string // Knowledge base; may be empty
	Instructions string // Overrides the composer's instructions when set
}

// Result is a finished (or cancelled) draft.
type Result struct {
	ID   string
	Text string
	// History is the conversation including the assistant reply. It is what
	// the next refinement builds on.
	History []llm.Message
	// Filtered reports that only retrieved passages of the knowledge base
	// were sent.
	Filtered bool
	// Cancelled reports a soft stop; Text holds what arrived before it.
	Cancelled bool
}

// Service drafts and refines replies.
type Service struct {
	client   Streamer
	provider llm.ProviderConfig
	composer *Composer
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the service logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithServiceMetrics records draft outcomes on m.
func WithServiceMetrics(m *observability.Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a Service. A nil composer uses NewComposer().
func NewService(client Streamer, provider llm.ProviderConfig, composer *Composer, opts ...ServiceOption) *Service {
	if composer == nil {
		composer = NewComposer()
	}
	s := &Service{
		client:   client,
		provider: provider,
		composer: composer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the provider configuration drafts are sent with.
func (s *Service) Provider() llm.ProviderConfig { return s.provider }

// Generate drafts a reply to req. onChunk, when non-nil, receives each
// content fragment as it arrives.
//
// When ctx is cancelled mid-stream the partial result is returned together
// with an error wrapping llm.ErrCancelled.
func (s *Service) Generate(ctx context.Context, req Request, onChunk func(string)) (*Result, error) {
	id := uuid.NewString()
	ctx, span := observability.StartDraftSpan(ctx, id, "generate")
	defer span.End()

	msgs, kb, err := s.composer.Draft(ctx, req.Query, req.Memory, req.Instructions)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	res, err := s.run(ctx, id, "generate", msgs, onChunk)
	if res != nil {
		res.Filtered = kb.Filtered
	}
	if err != nil && !llm.IsCancelled(err) {
		observability.RecordError(span, err)
	}
	return res, err
}

// Refine asks for a revised draft. history is the History of a previous
// Result.
func (s *Service) Refine(ctx context.Context, history []llm.Message, instruction string, onChunk func(string)) (*Result, error) {
	id := uuid.NewString()
	ctx, span := observability.StartDraftSpan(ctx, id, "refine")
	defer span.End()

	msgs, err := s.composer.Refine(history, instruction)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	res, err := s.run(ctx, id, "refine", msgs, onChunk)
	if err != nil && !llm.IsCancelled(err) {
		observability.RecordError(span, err)
	}
	return res, err
}

func (s *Service) run(ctx context.Context, id, op string, msgs []llm.Message, onChunk func(string)) (*Result, error) {
	stream, err := s.client.Stream(ctx, s.provider, msgs)
	if err != nil {
		s.metrics.RecordDraft(ctx, op, llm.Outcome(err))
		return nil, fmt.Errorf("%s draft: %w", op, err)
	}
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if chunk.Done {
			break
		}
		sb.WriteString(chunk.Content)
		if onChunk != nil && chunk.Content != "" {
			onChunk(chunk.Content)
		}
	}
	text := sb.String()
	err = stream.Err()
	s.metrics.RecordDraft(ctx, op, llm.Outcome(err))

	res := &Result{ID: id, Text: text}
	switch {
	case err == nil:
		res.History = appendReply(msgs, text)
		s.logger.Info("draft ready", "id", id, "op", op, "chars", len(text))
		return res, nil
	case llm.IsCancelled(err):
		res.Cancelled = true
		if text != "" {
			res.History = appendReply(msgs, text)
		}
		s.logger.Info("draft cancelled", "id", id, "op", op, "partial_chars", len(text))
		return res, fmt.Errorf("%s draft: %w", op, err)
	default:
		s.logger.Warn("draft failed", "id", id, "op", op, "error", err)
		return res, fmt.Errorf("%s draft: %w", op, err)
	}
}

func appendReply(msgs []llm.Message, text string) []llm.Message {
	out := make([]llm.Message, 0, len(msgs)+1)
	out = append(out, msgs...)
	return append(out, llm.Message{Role: llm.RoleAssistant, Content: text})
}
