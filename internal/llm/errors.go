package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrCancelled reports that the caller cancelled the request. It is never
	// returned for provider or network failures.
	ErrCancelled = errors.New("request cancelled")
	// ErrTimeout reports that the request deadline fired.
	ErrTimeout = errors.New("request timed out")
	// ErrMissingAPIKey is wrapped in a ConfigurationError when no key is set.
	ErrMissingAPIKey = errors.New("API key is not configured")
	// ErrUnsupportedProvider is wrapped in a ConfigurationError for unknown providers.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// ConfigurationError is fatal: the request was never sent and retrying will
// not help.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NetworkError wraps a transport failure (DNS, connection reset, TLS).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return "network error: " + e.Err.Error() }

func (e *NetworkError) Unwrap() error { return e.Err }

// APIError is a non-2xx response from the provider. Body is redacted and
// truncated before it is stored.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// DecodeError reports a response body that could not be read at all.
// Individual malformed event lines are skipped and never produce one.
type DecodeError struct {
	Provider string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decoding stream: %v", e.Provider, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsCancelled reports whether err is a caller cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsTimeout reports whether err is a deadline expiry.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// contextError maps a finished context to ErrCancelled or ErrTimeout.
// It returns nil when ctx is still live.
func contextError(ctx context.Context) error {
	switch err := ctx.Err(); {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
}
