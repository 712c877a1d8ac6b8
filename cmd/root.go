package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"photo-critic/internal/config"
	telem "photo-critic/internal/otel"
	"photo-critic/internal/provider"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

var (
	// Global flags.
	flagProvider  string
	flagModel     string
	flagBaseURL   string
	flagAPIKey    string
	flagMaxTokens int64
	flagLogLevel  string
)

var logger zerolog.Logger

var rootCmd = &cobra.Command{
	Use:   "photo-critic",
	Short: "Vision-model photo evaluation for portfolio and stock placement",
	Long: `photo-critic sends photographs to a generative vision model and collects
structured verdicts: per-category scores, a placement recommendation
(portfolio, store, both, archive, practice), and commercial metadata for
sellable photos.

Photos are dispatched strictly sequentially in batches, with a courtesy
delay between requests, so large runs stay inside provider rate limits.
Results are written as JSONL and summarized on stdout.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagProvider, "provider", "", "vision provider: anthropic, openai (default: from config)")
	rootCmd.PersistentFlags().StringVar(&flagModel, "model", "", "model name (default: claude-sonnet-4-5 for anthropic, gpt-4o for openai)")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "override the provider API base URL")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "override the provider API key")
	rootCmd.PersistentFlags().Int64Var(&flagMaxTokens, "max-tokens", 0, "max completion tokens per evaluation (default: 4096)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: trace, debug, info, warn, error (default: info)")
}

// setupLogger configures the package logger to write human-readable lines
// to stderr, keeping stdout free for JSON output.
func setupLogger() {
	level := zerolog.InfoLevel
	name := flagLogLevel
	if name == "" {
		name = os.Getenv("PHOTO_CRITIC_LOG_LEVEL")
	}
	if name != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(name)); err == nil {
			level = parsed
		}
	}
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
}

// loadConfig loads file/env configuration and applies flag overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flagProvider != "" {
		cfg.Provider = flagProvider
	}
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagAPIKey != "" {
		cfg.APIKey = flagAPIKey
	}
	if flagMaxTokens > 0 {
		cfg.MaxTokens = flagMaxTokens
	}
	if cfg.ConfigFile != "" {
		logger.Debug().Str("path", cfg.ConfigFile).Msg("loaded config file")
	}
	return cfg, nil
}

// getProvider returns the configured vision provider client.
func getProvider(cfg *config.Config, metrics *telem.Metrics) (provider.Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key found. Set PHOTO_CRITIC_API_KEY, ANTHROPIC_API_KEY, or OPENAI_API_KEY")
	}
	switch cfg.Provider {
	case "anthropic":
		return provider.NewAnthropic(provider.AnthropicConfig{
			BaseURL:          cfg.BaseURL,
			APIKey:           cfg.APIKey,
			Model:            cfg.Model,
			MaxTokens:        cfg.MaxTokens,
			MaxRetries:       cfg.MaxRetries,
			RateLimitBackoff: cfg.RateLimitBackoffDuration,
			RequestTimeout:   cfg.RequestTimeoutDuration,
			CallTimeout:      cfg.ResourceTimeoutDuration,
			Metrics:          metrics,
		}), nil
	case "openai":
		model := cfg.Model
		if model == "" || strings.HasPrefix(model, "claude-") {
			model = "gpt-4o"
		}
		return provider.NewOpenAI(provider.OpenAIConfig{
			BaseURL:          cfg.BaseURL,
			APIKey:           cfg.APIKey,
			Model:            model,
			MaxTokens:        cfg.MaxTokens,
			MaxRetries:       cfg.MaxRetries,
			RateLimitBackoff: cfg.RateLimitBackoffDuration,
			RequestTimeout:   cfg.RequestTimeoutDuration,
			CallTimeout:      cfg.ResourceTimeoutDuration,
			Metrics:          metrics,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (supported: anthropic, openai)", cfg.Provider)
	}
}
