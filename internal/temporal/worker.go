package temporal

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

// StartWorker creates and starts a Temporal worker.
func StartWorker(c client.Client, taskQueue string) (worker.Worker, error) {
	w := worker.New(c, taskQueue, worker.Options{})

	w.RegisterWorkflow(DraftWorkflow)
	w.RegisterActivity(DraftActivity)

	if err := w.Start(); err != nil {
		return nil, fmt.Errorf("starting worker: %w", err)
	}
	return w, nil
}

// StartDraft submits a DraftWorkflow and returns its run handle.
func StartDraft(ctx context.Context, c client.Client, taskQueue string, input DraftInput) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        "draft-" + uuid.NewString(),
		TaskQueue: taskQueue,
	}
	run, err := c.ExecuteWorkflow(ctx, opts, DraftWorkflow, input)
	if err != nil {
		return nil, fmt.Errorf("starting draft workflow: %w", err)
	}
	return run, nil
}
