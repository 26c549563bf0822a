package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/efebarandurmaz/replyforge/internal/draft"
	"github.com/efebarandurmaz/replyforge/internal/knowledge"
	"github.com/efebarandurmaz/replyforge/internal/llm"
	"github.com/efebarandurmaz/replyforge/internal/observability"
	"github.com/efebarandurmaz/replyforge/internal/secrets"
)

// EnvPrefix prefixes every environment override, e.g. REPLYFORGE_LLM_MODEL.
const EnvPrefix = "REPLYFORGE"

// Config holds all application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Draft     DraftConfig     `mapstructure:"draft"`
	Server    ServerConfig    `mapstructure:"server"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

type LLMConfig struct {
	Provider    string   `mapstructure:"provider"`
	Model       string   `mapstructure:"model"`
	APIKey      string   `mapstructure:"api_key"`
	// SecretsFile is a JSON file holding llm_api_key or a vendor key.
	SecretsFile string   `mapstructure:"secrets_file"`
	BaseURL     string   `mapstructure:"base_url"`
	Temperature *float64 `mapstructure:"temperature"`
	MaxTokens   int      `mapstructure:"max_tokens"`

	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`

	// RequestsPerMinute enables client-side pacing when > 0.
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type RetrievalConfig struct {
	Threshold     int  `mapstructure:"threshold"`
	TopK          int  `mapstructure:"top_k"`
	ChunkTarget   int  `mapstructure:"chunk_target"`
	PreserveOrder bool `mapstructure:"preserve_order"`
}

type DraftConfig struct {
	Instructions    string `mapstructure:"instructions"`
	ContextMessages int    `mapstructure:"context_messages"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

// providerSecret names the vendor secret consulted when no key is
// configured. The env provider maps it to e.g. ANTHROPIC_API_KEY.
var providerSecret = map[string]string{
	llm.ProviderOpenAI:    secrets.OpenAIAPIKey,
	llm.ProviderAnthropic: secrets.AnthropicAPIKey,
}

// SetDefaults seeds v with the built-in defaults.
func SetDefaults(v *viper.Viper) {
	def := llm.DefaultProviderConfig()
	retry := llm.DefaultRetryConfig()

	v.SetDefault("llm.provider", def.Provider)
	v.SetDefault("llm.model", def.Model)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.secrets_file", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.max_tokens", 0)
	v.SetDefault("llm.timeout", retry.Timeout)
	v.SetDefault("llm.max_retries", retry.MaxRetries)
	v.SetDefault("llm.retry_delay", retry.InitialDelay)
	v.SetDefault("llm.requests_per_minute", 0)
	v.SetDefault("llm.burst", 1)

	v.SetDefault("retrieval.threshold", knowledge.DefaultThreshold)
	v.SetDefault("retrieval.top_k", knowledge.DefaultTopK)
	v.SetDefault("retrieval.chunk_target", knowledge.DefaultChunkTarget)
	v.SetDefault("retrieval.preserve_order", false)

	v.SetDefault("draft.instructions", draft.DefaultInstructions)
	v.SetDefault("draft.context_messages", draft.DefaultContextMessages)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "replyforge-drafts")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", observability.LogFormatConsole)

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.environment", "development")
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.LLM.Provider != "" && c.LLM.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is configured but api_key is empty", c.LLM.Provider))
	}
	if _, ok := llm.KnownProviders[c.LLM.Provider]; c.LLM.Provider != "" && !ok {
		warnings = append(warnings, fmt.Sprintf("LLM provider '%s' is not supported (use openai or anthropic)", c.LLM.Provider))
	} else if c.LLM.Model != "" && c.LLM.BaseURL == "" && !llm.IsKnownModel(c.LLM.Provider, c.LLM.Model) {
		warnings = append(warnings, fmt.Sprintf("LLM model '%s' is not a known %s model", c.LLM.Model, c.LLM.Provider))
	}

	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2.0) {
		warnings = append(warnings, fmt.Sprintf("LLM temperature %.2f is outside recommended range [0.0, 2.0]", *t))
	}
	if c.LLM.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_tokens %d is negative", c.LLM.MaxTokens))
	}
	if c.LLM.MaxRetries < 0 {
		warnings = append(warnings, fmt.Sprintf("LLM max_retries %d is negative", c.LLM.MaxRetries))
	}

	if c.Retrieval.Threshold < 0 {
		warnings = append(warnings, fmt.Sprintf("retrieval threshold %d is negative", c.Retrieval.Threshold))
	}
	if c.Retrieval.TopK < 0 {
		warnings = append(warnings, fmt.Sprintf("retrieval top_k %d is negative", c.Retrieval.TopK))
	}

	if n := c.Draft.ContextMessages; n != 0 && (n < draft.MinContextMessages || n > draft.MaxContextMessages) {
		warnings = append(warnings, fmt.Sprintf("draft context_messages %d is outside [%d, %d] and will be clamped",
			n, draft.MinContextMessages, draft.MaxContextMessages))
	}

	return warnings
}

// ProviderConfig builds the per-request provider settings. An empty API key
// falls back to the vendor's conventional environment variable.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	cfg := llm.ProviderConfig{
		Provider:    c.LLM.Provider,
		APIKey:      c.LLM.APIKey,
		Model:       c.LLM.Model,
		BaseURL:     c.LLM.BaseURL,
		Temperature: c.LLM.Temperature,
	}
	if cfg.APIKey == "" {
		if name, ok := providerSecret[cfg.Provider]; ok {
			cfg.APIKey, _ = secrets.NewEnvProvider(EnvPrefix+"_").Get(context.Background(), name)
		}
	}
	if c.LLM.MaxTokens > 0 {
		maxTokens := c.LLM.MaxTokens
		cfg.MaxTokens = &maxTokens
	}
	return cfg
}

// RetryConfig returns the transport retry policy.
func (c *Config) RetryConfig() llm.RetryConfig {
	return llm.RetryConfig{
		MaxRetries:   c.LLM.MaxRetries,
		InitialDelay: c.LLM.RetryDelay,
		Timeout:      c.LLM.Timeout,
	}
}

// RateLimiter returns a limiter, or nil when pacing is disabled.
func (c *Config) RateLimiter() *llm.RateLimiter {
	if c.LLM.RequestsPerMinute <= 0 {
		return nil
	}
	return llm.NewRateLimiter(llm.RateLimitConfig{
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		BurstSize:         c.LLM.Burst,
	})
}

// Resolver returns a knowledge resolver with the retrieval settings.
func (c *Config) Resolver() *knowledge.Resolver {
	return &knowledge.Resolver{
		Threshold:     c.Retrieval.Threshold,
		TopK:          c.Retrieval.TopK,
		ChunkTarget:   c.Retrieval.ChunkTarget,
		PreserveOrder: c.Retrieval.PreserveOrder,
	}
}

// Composer returns a draft composer with the draft and retrieval settings.
func (c *Config) Composer() *draft.Composer {
	return &draft.Composer{
		Instructions:    c.Draft.Instructions,
		ContextMessages: c.Draft.ContextMessages,
		Resolver:        c.Resolver(),
	}
}

// LogConfig returns the logger settings.
func (c *Config) LogConfig() observability.LogConfig {
	return observability.LogConfig{Level: c.Log.Level, Format: c.Log.Format}
}

// TracingConfig returns the tracing settings.
func (c *Config) TracingConfig() *observability.TracingConfig {
	tc := observability.DefaultTracingConfig()
	tc.OTLPEndpoint = c.Tracing.OTLPEndpoint
	tc.SampleRate = c.Tracing.SampleRate
	if c.Tracing.Environment != "" {
		tc.Environment = c.Tracing.Environment
	}
	return tc
}

// Load reads configuration from defaults, the file at path (optional when
// empty) and REPLYFORGE_* environment variables, in increasing priority.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// No default exists for temperature, so bind it explicitly.
	if err := v.BindEnv("llm.temperature"); err != nil {
		return nil, fmt.Errorf("binding env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.resolveAPIKey(context.Background()); err != nil {
		return nil, err
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

// resolveAPIKey fills an empty llm.api_key from the secrets chain: the
// secrets file, then the environment. Both llm_api_key and the vendor
// secret are tried.
func (c *Config) resolveAPIKey(ctx context.Context) error {
	if c.LLM.APIKey != "" {
		return nil
	}
	m, err := secrets.NewManager(secrets.Config{
		File:      c.LLM.SecretsFile,
		EnvPrefix: EnvPrefix + "_",
	})
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}
	keys := []string{secrets.LLMAPIKey}
	if name, ok := providerSecret[c.LLM.Provider]; ok {
		keys = append(keys, name)
	}
	key, err := m.First(ctx, keys...)
	switch {
	case err == nil:
		c.LLM.APIKey = key
	case !errors.Is(err, secrets.ErrNotFound):
		return fmt.Errorf("secrets: %w", err)
	}
	return nil
}
