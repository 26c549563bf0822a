// Package app wires configuration into a ready-to-use draft service.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"

	"github.com/efebarandurmaz/replyforge/internal/config"
	"github.com/efebarandurmaz/replyforge/internal/draft"
	"github.com/efebarandurmaz/replyforge/internal/llm"
	"github.com/efebarandurmaz/replyforge/internal/llm/providers"
	"github.com/efebarandurmaz/replyforge/internal/observability"
)

// App holds the long-lived components shared by the binaries.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Tracing *observability.TracerProvider
	Metrics *observability.Metrics
	Client  *llm.Client
	Service *draft.Service
}

// New builds the logger, telemetry, LLM client and draft service from cfg.
// The logger also becomes the slog default.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := observability.NewLogger(cfg.LogConfig())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	slog.SetDefault(logger)

	tp, err := observability.InitTracing(ctx, cfg.TracingConfig())
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}

	metrics, err := observability.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	transport := llm.NewTransport(
		llm.WithRetryConfig(cfg.RetryConfig()),
		llm.WithTransportLogger(logger),
		llm.WithTransportMetrics(metrics),
	)
	opts := []llm.Option{
		llm.WithTransport(transport),
		llm.WithLogger(logger),
		llm.WithMetrics(metrics),
	}
	if limiter := cfg.RateLimiter(); limiter != nil {
		opts = append(opts, llm.WithRateLimit(limiter))
	}
	client := llm.NewClient(providers.NewRegistry(), opts...)

	composer := cfg.Composer()
	composer.Resolver.Logger = logger
	service := draft.NewService(client, cfg.ProviderConfig(), composer,
		draft.WithServiceLogger(logger),
		draft.WithServiceMetrics(metrics),
	)

	logger.Debug("App initialised", "provider", cfg.ProviderConfig())
	return &App{
		Config:  cfg,
		Logger:  logger,
		Tracing: tp,
		Metrics: metrics,
		Client:  client,
		Service: service,
	}, nil
}

// Close flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	if a.Tracing == nil {
		return nil
	}
	return a.Tracing.Shutdown(ctx)
}
