package temporal

import (
	"fmt"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/efebarandurmaz/replyforge/internal/llm"
)

// Application error types that Temporal must not retry.
const (
	ErrTypeConfiguration  = "ConfigurationError"
	ErrTypeInvalidRequest = "InvalidRequest"
	ErrTypeRejected       = "ProviderRejected"
)

// DraftInput holds the workflow parameters. A non-empty History asks for a
// refinement driven by Instruction.
type DraftInput struct {
	Query        string
	Memory       string
	Instructions string

	History     []llm.Message
	Instruction string
}

// DraftOutput holds the workflow result.
type DraftOutput struct {
	ID       string
	Text     string
	Filtered bool
	History  []llm.Message
}

// DraftWorkflow drafts one reply in the background.
func DraftWorkflow(ctx workflow.Context, input DraftInput) (*DraftOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
			NonRetryableErrorTypes: []string{
				ErrTypeConfiguration,
				ErrTypeInvalidRequest,
				ErrTypeRejected,
			},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	logger := workflow.GetLogger(ctx)
	logger.Info("Draft workflow started", "refine", len(input.History) > 0)

	var out DraftOutput
	if err := workflow.ExecuteActivity(ctx, DraftActivity, input).Get(ctx, &out); err != nil {
		return nil, fmt.Errorf("draft: %w", err)
	}

	logger.Info("Draft workflow completed", "id", out.ID, "chars", len(out.Text))
	return &out, nil
}
