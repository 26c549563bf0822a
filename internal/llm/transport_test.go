package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// recordSleeps replaces the transport's backoff wait with one that records
// the requested delay and returns immediately.
func recordSleeps(t *Transport) *[]time.Duration {
	var delays []time.Duration
	t.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return contextError(ctx)
	}
	return &delays
}

func statusSequence(codes ...int) (*httptest.Server, *int32) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		code := codes[len(codes)-1]
		if int(n) <= len(codes) {
			code = codes[n-1]
		}
		w.WriteHeader(code)
		io.WriteString(w, http.StatusText(code))
	}))
	return srv, &calls
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxRetries != 3 {
		t.Errorf("expected 3 max retries, got %d", cfg.MaxRetries)
	}
	if cfg.InitialDelay != time.Second {
		t.Errorf("expected 1s initial delay, got %v", cfg.InitialDelay)
	}
	if cfg.Timeout != 60*time.Second {
		t.Errorf("expected 60s timeout, got %v", cfg.Timeout)
	}
}

func TestBackOffSchedule(t *testing.T) {
	b := DefaultRetryConfig().newBackOff()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("backoff %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestTransport_RetriesServerErrors(t *testing.T) {
	srv, calls := statusSequence(503, 503, 503, 200)
	defer srv.Close()

	tr := NewTransport()
	delays := recordSleeps(tr)

	resp, err := tr.Send(context.Background(), &Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if *calls != 4 {
		t.Errorf("expected 4 attempts, got %d", *calls)
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, *delays)
	}
	for i := range want {
		if (*delays)[i] != want[i] {
			t.Errorf("delay %d: expected %v, got %v", i, want[i], (*delays)[i])
		}
	}
}

func TestTransport_ExhaustedReturnsLastResponse(t *testing.T) {
	srv, calls := statusSequence(500, 502, 503, 504, 200)
	defer srv.Close()

	tr := NewTransport()
	recordSleeps(tr)

	resp, err := tr.Send(context.Background(), &Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("exhausted retries should not error, got %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Errorf("expected last 504 response, got %d", resp.StatusCode)
	}
	if *calls != 4 {
		t.Errorf("expected 1 attempt + 3 retries, got %d", *calls)
	}
}

func TestTransport_ClientErrorNotRetried(t *testing.T) {
	srv, calls := statusSequence(429, 200)
	defer srv.Close()

	tr := NewTransport()
	delays := recordSleeps(tr)

	resp, err := tr.Send(context.Background(), &Request{URL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", resp.StatusCode)
	}
	if *calls != 1 || len(*delays) != 0 {
		t.Errorf("expected a single attempt without backoff, got %d attempts, delays %v", *calls, *delays)
	}
}

func TestTransport_CancelDuringBackoff(t *testing.T) {
	srv, calls := statusSequence(503)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	tr := NewTransport()
	tr.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return sleepContext(ctx, d)
	}

	resp, err := tr.Send(ctx, &Request{URL: srv.URL})
	if resp != nil {
		resp.Body.Close()
		t.Fatal("expected no response")
	}
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	if *calls != 1 {
		t.Errorf("expected backoff to stop further attempts, got %d calls", *calls)
	}
}

func TestTransport_TimeoutSharedAcrossAttempts(t *testing.T) {
	srv, _ := statusSequence(503)
	defer srv.Close()

	tr := NewTransport(WithRetryConfig(RetryConfig{
		MaxRetries:   3,
		InitialDelay: 30 * time.Millisecond,
		Timeout:      50 * time.Millisecond,
	}))

	start := time.Now()
	_, err := tr.Send(context.Background(), &Request{URL: srv.URL})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("deadline should bound the whole call, took %v", elapsed)
	}
}

func TestTransport_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewTransport().Send(context.Background(), &Request{URL: url})
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T: %v", err, err)
	}
	if IsCancelled(err) {
		t.Error("network failure must not look like a cancellation")
	}
}

func TestTransport_SendsHeadersAndBody(t *testing.T) {
	var gotHeader, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		gotHeader = r.Header.Get("X-Test")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	req := &Request{URL: srv.URL, Body: []byte(`{"a":1}`), Header: http.Header{"X-Test": {"yes"}}}
	resp, err := NewTransport().Send(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	if gotHeader != "yes" || gotBody != `{"a":1}` {
		t.Errorf("unexpected request: header=%q body=%q", gotHeader, gotBody)
	}
}
