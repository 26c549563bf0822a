package temporal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.temporal.io/sdk/activity"
	sdktemporal "go.temporal.io/sdk/temporal"

	"github.com/efebarandurmaz/replyforge/internal/draft"
	"github.com/efebarandurmaz/replyforge/internal/llm"
)

// Drafter produces drafts. *draft.Service implements it.
type Drafter interface {
	Generate(ctx context.Context, req draft.Request, onChunk func(string)) (*draft.Result, error)
	Refine(ctx context.Context, history []llm.Message, instruction string, onChunk func(string)) (*draft.Result, error)
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Drafter Drafter
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

// DraftActivity runs one draft to completion, heartbeating the number of
// characters received so far.
func DraftActivity(ctx context.Context, input DraftInput) (*DraftOutput, error) {
	if deps == nil || deps.Drafter == nil {
		return nil, sdktemporal.NewNonRetryableApplicationError("draft activity has no drafter", ErrTypeConfiguration, nil)
	}

	chars := 0
	onChunk := func(s string) {
		chars += len(s)
		activity.RecordHeartbeat(ctx, chars)
	}

	var (
		res *draft.Result
		err error
	)
	if len(input.History) > 0 {
		res, err = deps.Drafter.Refine(ctx, input.History, input.Instruction, onChunk)
	} else {
		res, err = deps.Drafter.Generate(ctx, draft.Request{
			Query:        input.Query,
			Memory:       input.Memory,
			Instructions: input.Instructions,
		}, onChunk)
	}
	if err != nil {
		return nil, classify(err)
	}

	activity.GetLogger(ctx).Info("Draft activity finished", "id", res.ID, "chars", len(res.Text))
	return &DraftOutput{
		ID:       res.ID,
		Text:     res.Text,
		Filtered: res.Filtered,
		History:  res.History,
	}, nil
}

// classify marks failures that a retry cannot fix as non-retryable.
func classify(err error) error {
	var apiErr *llm.APIError
	switch {
	case llm.IsConfiguration(err):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeConfiguration, err)
	case errors.Is(err, draft.ErrEmptyQuery), errors.Is(err, draft.ErrEmptyInstruction), errors.Is(err, draft.ErrNoHistory):
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeInvalidRequest, err)
	case errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError && apiErr.StatusCode != http.StatusTooManyRequests:
		return sdktemporal.NewNonRetryableApplicationError(err.Error(), ErrTypeRejected, err)
	default:
		return fmt.Errorf("draft activity: %w", err)
	}
}
