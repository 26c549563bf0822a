package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/replyforge/internal/app"
	"github.com/efebarandurmaz/replyforge/internal/config"
	"github.com/efebarandurmaz/replyforge/internal/llm"
	"github.com/efebarandurmaz/replyforge/internal/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local SSE relay (POST /v1/drafts)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	provider := a.Service.Provider()

	g := server.NewGracefulServer(
		&server.HealthConfig{Version: version},
		&server.ShutdownConfig{Timeout: cfg.Server.ShutdownTimeout, Logger: a.Logger},
	)
	g.Health.RegisterCheck("llm", server.LLMHealthChecker(provider.Provider, func(context.Context) error {
		if provider.APIKey == "" {
			return llm.ErrMissingAPIKey
		}
		return nil
	}))
	server.NewRelay(a.Service, provider, a.Logger).Mount(g)
	g.Shutdown.Register(server.TracingShutdownHook(a.Close))

	if err := g.Start(cfg.Server.Addr); err != nil {
		return err
	}
	a.Logger.Info("Relay ready", "addr", cfg.Server.Addr, "provider", provider.Provider, "model", provider.Model)

	go func() {
		<-ctx.Done()
		g.Shutdown.Shutdown()
	}()
	g.Wait()
	a.Logger.Info("Relay stopped")
	return nil
}
