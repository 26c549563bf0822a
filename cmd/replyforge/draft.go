package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/efebarandurmaz/replyforge/internal/app"
	"github.com/efebarandurmaz/replyforge/internal/config"
	"github.com/efebarandurmaz/replyforge/internal/draft"
	"github.com/efebarandurmaz/replyforge/internal/llm"
	"github.com/efebarandurmaz/replyforge/internal/report"
	temporalmod "github.com/efebarandurmaz/replyforge/internal/temporal"
)

type draftOptions struct {
	configPath   *string
	query        string
	memoryPath   string
	instructions string
	refinements  []string
	provider     string
	model        string
	async        bool
	summary      bool
	jsonReport   bool
}

func newDraftCmd(configPath *string) *cobra.Command {
	opts := &draftOptions{configPath: configPath}
	cmd := &cobra.Command{
		Use:   "draft [query]",
		Short: "Draft a reply to a customer query, streaming it to stdout",
		Long: `Draft a reply to a customer query. The knowledge base file, when given, is
injected whole if it is small and narrowed to the most relevant passages
otherwise. Each --refine instruction revises the previous draft in turn.
Ctrl-C stops generation and keeps what has arrived so far.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.query == "" {
				opts.query = strings.Join(args, " ")
			}
			if strings.TrimSpace(opts.query) == "" {
				return fmt.Errorf("a query is required (argument or --query)")
			}
			return runDraft(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "Customer query")
	cmd.Flags().StringVarP(&opts.memoryPath, "memory", "m", "", "Knowledge base file")
	cmd.Flags().StringVar(&opts.instructions, "instructions", "", "Override the configured system instructions")
	cmd.Flags().StringArrayVarP(&opts.refinements, "refine", "r", nil, "Refinement instruction (repeatable)")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "LLM provider (openai, anthropic)")
	cmd.Flags().StringVar(&opts.model, "model", "", "LLM model")
	cmd.Flags().BoolVar(&opts.async, "async", false, "Run the draft as a Temporal workflow")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print a session summary to stderr")
	cmd.Flags().BoolVar(&opts.jsonReport, "json", false, "Print the session report as JSON instead of streaming")
	return cmd
}

func loadDraftConfig(opts *draftOptions) (*config.Config, error) {
	cfg, err := config.Load(*opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.provider != "" {
		cfg.LLM.Provider = opts.provider
	}
	if opts.model != "" {
		cfg.LLM.Model = opts.model
	}
	return cfg, nil
}

func runDraft(ctx context.Context, stdout, stderr io.Writer, opts *draftOptions) error {
	cfg, err := loadDraftConfig(opts)
	if err != nil {
		return err
	}

	var memory string
	if opts.memoryPath != "" {
		data, err := os.ReadFile(opts.memoryPath)
		if err != nil {
			return fmt.Errorf("reading knowledge base: %w", err)
		}
		memory = string(data)
	}

	if opts.async {
		return runDraftAsync(ctx, stdout, cfg, temporalmod.DraftInput{
			Query:        opts.query,
			Memory:       memory,
			Instructions: opts.instructions,
		})
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(shutdownCtx)
	}()

	provider := a.Service.Provider()
	session := draft.NewSession(opts.query)
	rep := report.New(session.ID, provider.Provider, provider.Model)

	var onChunk func(string)
	if !opts.jsonReport {
		onChunk = func(s string) { fmt.Fprint(stdout, s) }
	}

	start := time.Now()
	res, err := a.Service.Generate(ctx, draft.Request{
		Query:        opts.query,
		Memory:       memory,
		Instructions: opts.instructions,
	}, onChunk)
	rep.AddStep("generate", time.Since(start), res)
	if res != nil {
		rep.CollectKnowledge(memory, res.Filtered, cfg.Retrieval.ChunkTarget)
	}
	session.Apply(res)
	stopped, err := finishStep(stdout, stderr, opts, rep, err)
	if err != nil || stopped {
		return finishSession(stdout, stderr, opts, rep, err)
	}

	for _, instruction := range opts.refinements {
		if !opts.jsonReport {
			fmt.Fprintf(stderr, "\n--- refine: %s\n", instruction)
		}
		start = time.Now()
		res, err = a.Service.Refine(ctx, session.History(), instruction, onChunk)
		rep.AddStep("refine", time.Since(start), res)
		session.Apply(res)
		stopped, err = finishStep(stdout, stderr, opts, rep, err)
		if err != nil || stopped {
			break
		}
	}
	return finishSession(stdout, stderr, opts, rep, err)
}

// finishStep ends a streamed step. A cancelled step is a soft stop, not an
// error.
func finishStep(stdout, stderr io.Writer, opts *draftOptions, rep *report.SessionReport, err error) (stopped bool, _ error) {
	if !opts.jsonReport {
		fmt.Fprintln(stdout)
	}
	if err == nil {
		return false, nil
	}
	if llm.IsCancelled(err) {
		if !opts.jsonReport {
			fmt.Fprintln(stderr, "[stopped]")
		}
		return true, nil
	}
	rep.AddError(err)
	return false, err
}

func finishSession(stdout, stderr io.Writer, opts *draftOptions, rep *report.SessionReport, err error) error {
	rep.Finish()
	if opts.jsonReport {
		data, jerr := rep.JSON()
		if jerr != nil {
			return jerr
		}
		fmt.Fprintln(stdout, string(data))
	}
	if opts.summary {
		rep.PrintSummary(stderr)
	}
	return err
}

func runDraftAsync(ctx context.Context, stdout io.Writer, cfg *config.Config, input temporalmod.DraftInput) error {
	c, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		return fmt.Errorf("temporal client: %w", err)
	}
	defer c.Close()

	run, err := temporalmod.StartDraft(ctx, c, cfg.Temporal.TaskQueue, input)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Submitted workflow %s (run %s)\n", run.GetID(), run.GetRunID())

	var out temporalmod.DraftOutput
	if err := run.Get(ctx, &out); err != nil {
		return fmt.Errorf("draft workflow: %w", err)
	}
	fmt.Fprintln(stdout, out.Text)
	return nil
}
