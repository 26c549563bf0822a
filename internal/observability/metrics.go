package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Outcome labels used on request and draft counters.
const (
	OutcomeSuccess   = "success"
	OutcomeCancelled = "cancelled"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

// Metrics holds the OpenTelemetry instruments for completions and drafts.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests metric.Int64Counter
	retries  metric.Int64Counter
	chunks   metric.Int64Counter
	duration metric.Float64Histogram
	drafts   metric.Int64Counter
}

// NewMetrics creates the instruments on mp. A nil mp uses the global
// meter provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(TracerName)

	var (
		m   Metrics
		err error
	)
	if m.requests, err = meter.Int64Counter("replyforge.llm.requests",
		metric.WithDescription("Completion requests by provider and outcome")); err != nil {
		return nil, fmt.Errorf("create requests counter: %w", err)
	}
	if m.retries, err = meter.Int64Counter("replyforge.llm.retries",
		metric.WithDescription("Transport retries after a server error")); err != nil {
		return nil, fmt.Errorf("create retries counter: %w", err)
	}
	if m.chunks, err = meter.Int64Counter("replyforge.llm.chunks",
		metric.WithDescription("Content chunks delivered to callers")); err != nil {
		return nil, fmt.Errorf("create chunks counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("replyforge.llm.duration",
		metric.WithDescription("Time from first request attempt to end of stream"),
		metric.WithUnit("ms")); err != nil {
		return nil, fmt.Errorf("create duration histogram: %w", err)
	}
	if m.drafts, err = meter.Int64Counter("replyforge.drafts",
		metric.WithDescription("Drafts and refinements by outcome")); err != nil {
		return nil, fmt.Errorf("create drafts counter: %w", err)
	}
	return &m, nil
}

// RecordRequest records one finished completion stream.
func (m *Metrics) RecordRequest(ctx context.Context, provider, outcome string, chunks int, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(d)/float64(time.Millisecond), attrs)
	if chunks > 0 {
		m.chunks.Add(ctx, int64(chunks), metric.WithAttributes(attribute.String("provider", provider)))
	}
}

// RecordRetry records one retry caused by the given HTTP status.
func (m *Metrics) RecordRetry(ctx context.Context, status int) {
	if m == nil {
		return
	}
	m.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("status", strconv.Itoa(status))))
}

// RecordDraft records one draft or refinement.
func (m *Metrics) RecordDraft(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	m.drafts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}
