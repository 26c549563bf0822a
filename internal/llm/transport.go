package llm

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/efebarandurmaz/replyforge/internal/observability"
)

// Transport sends vendor requests. Every call runs under one deadline
// (RetryConfig.Timeout) composed with the caller's context, and server
// errors are retried on a doubling backoff within that same deadline.
type Transport struct {
	client  *http.Client
	retry   RetryConfig
	logger  *slog.Logger
	metrics *observability.Metrics

	// sleep waits out a backoff. Tests replace it to observe the schedule.
	sleep func(ctx context.Context, d time.Duration) error
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHTTPClient sets the HTTP client. The client's own Timeout should be
// zero; the transport enforces its deadline through the request context.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) { t.client = c }
}

// WithRetryConfig overrides the default retry policy.
func WithRetryConfig(cfg RetryConfig) TransportOption {
	return func(t *Transport) { t.retry = cfg.withDefaults() }
}

// WithTransportLogger sets the logger used for retry messages.
func WithTransportLogger(l *slog.Logger) TransportOption {
	return func(t *Transport) { t.logger = l }
}

// WithTransportMetrics records retries on m.
func WithTransportMetrics(m *observability.Metrics) TransportOption {
	return func(t *Transport) { t.metrics = m }
}

// NewTransport creates a Transport with the default retry policy.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		client: &http.Client{},
		retry:  DefaultRetryConfig(),
		logger: slog.Default(),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send POSTs req and returns the response. A response with a status below
// 500 is returned at once. A 5xx response is retried up to MaxRetries times;
// when retries run out the last 5xx response is returned without an error.
//
// Errors are ErrCancelled or ErrTimeout when the context or deadline fires
// (including during a backoff wait), otherwise *NetworkError. The caller
// must close the response body; closing it releases the deadline.
func (t *Transport) Send(ctx context.Context, req *Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.retry.Timeout)
	bo := t.retry.newBackOff()

	for attempt := 0; ; attempt++ {
		resp, err := t.do(ctx, req)
		if err != nil {
			cancel()
			return nil, err
		}
		if !isRetryableStatus(resp.StatusCode) || attempt >= t.retry.MaxRetries {
			resp.Body = &deadlineBody{ReadCloser: resp.Body, ctx: ctx, cancel: cancel}
			return resp, nil
		}

		// Drain so the connection can be reused by the next attempt.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()

		delay := bo.NextBackOff()
		t.logger.Warn("provider returned server error, retrying",
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"max_retries", t.retry.MaxRetries,
			"delay", delay,
		)
		observability.RecordRetry(ctx, attempt+1, resp.StatusCode, delay)
		t.metrics.RecordRetry(ctx, resp.StatusCode)

		if err := t.sleep(ctx, delay); err != nil {
			cancel()
			return nil, err
		}
	}
}

func (t *Transport) do(ctx context.Context, req *Request) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	resp, err := t.client.Do(httpReq)
	if err != nil {
		if ctxErr := contextError(ctx); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &NetworkError{Err: err}
	}
	return resp, nil
}

// deadlineBody ties the request deadline to the body's lifetime and reports
// a read cut short by the context as ErrCancelled or ErrTimeout.
type deadlineBody struct {
	io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
}

func (b *deadlineBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF {
		if ctxErr := contextError(b.ctx); ctxErr != nil {
			return n, ctxErr
		}
	}
	return n, err
}

func (b *deadlineBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
