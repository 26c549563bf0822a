package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/replyforge/internal/config"
	"github.com/efebarandurmaz/replyforge/internal/knowledge"
	"github.com/efebarandurmaz/replyforge/internal/llm"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var configPath string

	rootCmd := &cobra.Command{
		Use:           "replyforge",
		Short:         "Draft customer-support replies with an LLM and your knowledge base",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (YAML); env vars REPLYFORGE_* override it")

	rootCmd.AddCommand(
		newDraftCmd(&configPath),
		newServeCmd(&configPath),
		newChunkCmd(),
		newProvidersCmd(&configPath),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newProvidersCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List supported LLM providers and models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			active := cfg.ProviderConfig()
			out := cmd.OutOrStdout()

			names := make([]string, 0, len(llm.KnownProviders))
			for name := range llm.KnownProviders {
				names = append(names, name)
			}
			slices.Sort(names)

			fmt.Fprintln(out, "Supported LLM providers:")
			fmt.Fprintln(out)
			for _, name := range names {
				marker := " "
				if name == active.Provider {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-10s %s\n", marker, name, llm.KnownProviders[name])
				for _, model := range llm.KnownModels[name] {
					modelMarker := " "
					if name == active.Provider && model == active.Model {
						modelMarker = "*"
					}
					fmt.Fprintf(out, "    %s %s\n", modelMarker, model)
				}
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Configure in replyforge.yaml or via environment:")
			fmt.Fprintln(out, "  REPLYFORGE_LLM_PROVIDER=anthropic")
			fmt.Fprintln(out, "  REPLYFORGE_LLM_API_KEY=sk-ant-...   (or ANTHROPIC_API_KEY / OPENAI_API_KEY)")
			fmt.Fprintln(out, "  REPLYFORGE_LLM_MODEL=claude-haiku-4-5-20251001")
			return nil
		},
	}
}

func newChunkCmd() *cobra.Command {
	var (
		target int
		query  string
		topK   int
	)
	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Show how a knowledge-base file is split into passages and ranked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading knowledge base: %w", err)
			}
			out := cmd.OutOrStdout()
			passages := knowledge.Chunk(string(data), target)

			if query == "" {
				for _, p := range passages {
					fmt.Fprintf(out, "--- passage %d (%d chars)\n%s\n\n", p.Ordinal, len([]rune(p.Text)), p.Text)
				}
				fmt.Fprintf(out, "%d passages\n", len(passages))
				return nil
			}

			ranked := knowledge.Rank(query, passages)
			if topK > 0 && len(ranked) > topK {
				ranked = ranked[:topK]
			}
			for i, sp := range ranked {
				fmt.Fprintf(out, "--- #%d passage %d score=%.3f\n%s\n\n", i+1, sp.Ordinal, sp.Score, sp.Text)
			}
			fmt.Fprintf(out, "query terms: %v\n", knowledge.Tokenize(query))
			return nil
		},
	}
	cmd.Flags().IntVar(&target, "target", knowledge.DefaultChunkTarget, "Target passage size in characters")
	cmd.Flags().StringVar(&query, "query", "", "Rank passages against this query")
	cmd.Flags().IntVar(&topK, "top", knowledge.DefaultTopK, "Number of ranked passages to show (0 = all)")
	return cmd
}
