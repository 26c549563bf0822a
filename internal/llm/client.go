package llm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/efebarandurmaz/replyforge/internal/observability"
)

// Client streams completions from whichever provider a ProviderConfig
// names. One Client may serve many concurrent requests; each call owns its
// own decode buffer and retry state.
type Client struct {
	registry  *Registry
	transport *Transport
	limiter   *RateLimiter
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the default transport.
func WithTransport(t *Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithRateLimit paces requests through l before they are sent.
func WithRateLimit(l *RateLimiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client dispatching through registry.
func NewClient(registry *Registry, opts ...Option) *Client {
	c := &Client{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		c.transport = NewTransport(WithTransportLogger(c.logger), WithTransportMetrics(c.metrics))
	}
	return c
}

// Stream starts a streaming completion. Configuration problems fail before
// any network activity. A non-2xx response becomes an *APIError. The caller
// must Close the returned stream.
func (c *Client) Stream(ctx context.Context, cfg ProviderConfig, msgs []Message) (*Stream, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Field: "api_key", Err: ErrMissingAPIKey}
	}
	adapter, err := c.registry.Lookup(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := adapter.BuildRequest(cfg, msgs)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	spanCtx, span := observability.StartLLMSpan(ctx, cfg.Provider, cfg.Model)
	c.logger.Debug("starting completion stream", "llm", cfg, "messages", len(msgs))

	resp, err := c.transport.Send(spanCtx, req)
	if err != nil {
		observability.RecordError(span, err)
		span.End()
		c.metrics.RecordRequest(ctx, cfg.Provider, Outcome(err), 0, time.Since(start))
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4*maxErrorBody))
		resp.Body.Close()
		apiErr := &APIError{
			Provider:   cfg.Provider,
			StatusCode: resp.StatusCode,
			Body:       truncate(Redact(strings.TrimSpace(string(raw)), cfg.APIKey), maxErrorBody),
		}
		observability.RecordStreamResult(span, 0, resp.StatusCode, time.Since(start))
		observability.RecordError(span, apiErr)
		span.End()
		c.metrics.RecordRequest(ctx, cfg.Provider, observability.OutcomeError, 0, time.Since(start))
		c.logger.Warn("provider rejected request", "provider", cfg.Provider, "status", resp.StatusCode)
		return nil, apiErr
	}

	stream := adapter.ParseStream(ctx, resp.Body)
	status := resp.StatusCode
	stream.onFinish(func(chunks int, err error) {
		elapsed := time.Since(start)
		observability.RecordStreamResult(span, chunks, status, elapsed)
		if err != nil && !errors.Is(err, errStopped) {
			observability.RecordError(span, err)
		}
		span.End()
		c.metrics.RecordRequest(ctx, cfg.Provider, Outcome(err), chunks, elapsed)
		c.logger.Debug("completion stream finished",
			"provider", cfg.Provider, "chunks", chunks, "duration", elapsed, "outcome", Outcome(err))
	})
	return stream, nil
}

// Complete runs a completion through the streaming path and returns the
// concatenated text. On failure or cancellation the text received so far is
// returned together with the error.
func (c *Client) Complete(ctx context.Context, cfg ProviderConfig, msgs []Message) (string, error) {
	stream, err := c.Stream(ctx, cfg, msgs)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var sb strings.Builder
	for stream.Next() {
		sb.WriteString(stream.Current().Content)
	}
	return sb.String(), stream.Err()
}

// Outcome classifies err for metrics and logs.
func Outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case errors.Is(err, errStopped), IsCancelled(err):
		return observability.OutcomeCancelled
	case IsTimeout(err):
		return observability.OutcomeTimeout
	default:
		return observability.OutcomeError
	}
}
