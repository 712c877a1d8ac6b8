// Package config loads photo-critic configuration from file and environment.
//
// Precedence (highest to lowest):
//  1. Environment variables (PHOTO_CRITIC_*)
//  2. Config file
//  3. Built-in defaults
//
// Config file search order:
//  1. .photo-critic.yaml in current directory
//  2. ~/.config/photo-critic/config.yaml
//
// A .env file in the current directory is loaded into the environment first,
// so keys can live there instead of the shell profile.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfiguration marks configuration errors detected before any job
// starts. It is the only error that aborts a whole run up front.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Bounds for the batching and pacing knobs.
const (
	MinBatchSize = 5
	MaxBatchSize = 25

	MinRequestDelay = 1 * time.Second
	MaxRequestDelay = 5 * time.Second
)

// Config holds all photo-critic configuration.
type Config struct {
	// Provider settings
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	// MaxTokens caps the model's output per evaluation.
	MaxTokens int64 `yaml:"max_tokens"`

	// Batch pacing
	BatchSize int `yaml:"batch_size"` // photos per batch, [5,25]
	// RequestDelay is the courtesy delay between consecutive requests and
	// between batches. A Go duration string in the file, [1s,5s].
	RequestDelay string `yaml:"request_delay"`
	MaxRetries   int    `yaml:"max_retries"`
	// RateLimitBackoff is the fallback wait after a 429 without a
	// Retry-After header.
	RateLimitBackoff string `yaml:"rate_limit_backoff"`

	// Transport timeouts
	RequestTimeout  string `yaml:"request_timeout"`
	ResourceTimeout string `yaml:"resource_timeout"`

	// Image preprocessing
	ImageMaxDimension int `yaml:"image_max_dimension"` // long-edge pixel bound

	// Results
	ResultsPath string `yaml:"results_path"` // JSONL output file

	// OTEL
	OTELEndpoint string `yaml:"otel_endpoint"`
	OTELHeaders  string `yaml:"otel_headers"` // Comma-separated key=value pairs

	// Logging
	LogLevel string `yaml:"log_level"` // zerolog level name, e.g. "info"

	// Parsed durations (not from YAML, set after loading)
	RequestDelayDuration     time.Duration `yaml:"-"`
	RateLimitBackoffDuration time.Duration `yaml:"-"`
	RequestTimeoutDuration   time.Duration `yaml:"-"`
	ResourceTimeoutDuration  time.Duration `yaml:"-"`

	// ConfigFile is the path to the config file that was loaded (empty if none).
	ConfigFile string `yaml:"-"`
}

// Defaults returns a Config with all default values.
func Defaults() *Config {
	return &Config{
		Provider:          "anthropic",
		Model:             "claude-sonnet-4-5",
		MaxTokens:         4096,
		BatchSize:         15,
		RequestDelay:      "2s",
		MaxRetries:        3,
		RateLimitBackoff:  "30s",
		RequestTimeout:    "60s",
		ResourceTimeout:   "120s",
		ImageMaxDimension: 1568,
		ResultsPath:       "verdicts.jsonl",
		LogLevel:          "info",
	}
}

// Load reads configuration from file and environment variables.
// Environment variables always override file values.
func Load() (*Config, error) {
	// Best effort: a missing .env is not an error.
	_ = godotenv.Load()

	cfg := Defaults()

	if path, data, err := findConfigFile(); err == nil {
		var fileCfg Config
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
		cfg.ConfigFile = path
		mergeFile(cfg, &fileCfg)
	}

	mergeEnv(cfg)

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finalize parses duration strings and validates bounds.
func (c *Config) finalize() error {
	var err error
	if c.RequestDelayDuration, err = time.ParseDuration(c.RequestDelay); err != nil {
		return fmt.Errorf("%w: request_delay %q: %v", ErrInvalidConfiguration, c.RequestDelay, err)
	}
	if c.RateLimitBackoffDuration, err = time.ParseDuration(c.RateLimitBackoff); err != nil {
		return fmt.Errorf("%w: rate_limit_backoff %q: %v", ErrInvalidConfiguration, c.RateLimitBackoff, err)
	}
	if c.RequestTimeoutDuration, err = time.ParseDuration(c.RequestTimeout); err != nil {
		return fmt.Errorf("%w: request_timeout %q: %v", ErrInvalidConfiguration, c.RequestTimeout, err)
	}
	if c.ResourceTimeoutDuration, err = time.ParseDuration(c.ResourceTimeout); err != nil {
		return fmt.Errorf("%w: resource_timeout %q: %v", ErrInvalidConfiguration, c.ResourceTimeout, err)
	}
	return c.Validate()
}

// Validate checks bounds on the pacing knobs. Violations wrap
// ErrInvalidConfiguration and stop a run before any job is dispatched.
func (c *Config) Validate() error {
	if c.BatchSize < MinBatchSize || c.BatchSize > MaxBatchSize {
		return fmt.Errorf("%w: batch_size %d out of range [%d,%d]",
			ErrInvalidConfiguration, c.BatchSize, MinBatchSize, MaxBatchSize)
	}
	if c.RequestDelayDuration < MinRequestDelay || c.RequestDelayDuration > MaxRequestDelay {
		return fmt.Errorf("%w: request_delay %s out of range [%s,%s]",
			ErrInvalidConfiguration, c.RequestDelayDuration, MinRequestDelay, MaxRequestDelay)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: max_retries %d must be >= 0", ErrInvalidConfiguration, c.MaxRetries)
	}
	if c.RateLimitBackoffDuration <= 0 {
		return fmt.Errorf("%w: rate_limit_backoff must be positive", ErrInvalidConfiguration)
	}
	if c.ImageMaxDimension <= 0 {
		return fmt.Errorf("%w: image_max_dimension must be positive", ErrInvalidConfiguration)
	}
	return nil
}

// findConfigFile searches for a config file and returns its path and contents.
func findConfigFile() (string, []byte, error) {
	// 1. Current directory
	if data, err := os.ReadFile(".photo-critic.yaml"); err == nil {
		return ".photo-critic.yaml", data, nil
	}

	// 2. XDG config dir / ~/.config
	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "photo-critic", "config.yaml")
		if data, err := os.ReadFile(path); err == nil {
			return path, data, nil
		}
	}

	return "", nil, fmt.Errorf("no config file found")
}

// mergeFile applies non-zero file values onto cfg.
func mergeFile(cfg *Config, file *Config) {
	if file.Provider != "" {
		cfg.Provider = file.Provider
	}
	if file.Model != "" {
		cfg.Model = file.Model
	}
	if file.BaseURL != "" {
		cfg.BaseURL = file.BaseURL
	}
	if file.APIKey != "" {
		cfg.APIKey = file.APIKey
	}
	if file.MaxTokens > 0 {
		cfg.MaxTokens = file.MaxTokens
	}
	if file.BatchSize > 0 {
		cfg.BatchSize = file.BatchSize
	}
	if file.RequestDelay != "" {
		cfg.RequestDelay = file.RequestDelay
	}
	if file.MaxRetries > 0 {
		cfg.MaxRetries = file.MaxRetries
	}
	if file.RateLimitBackoff != "" {
		cfg.RateLimitBackoff = file.RateLimitBackoff
	}
	if file.RequestTimeout != "" {
		cfg.RequestTimeout = file.RequestTimeout
	}
	if file.ResourceTimeout != "" {
		cfg.ResourceTimeout = file.ResourceTimeout
	}
	if file.ImageMaxDimension > 0 {
		cfg.ImageMaxDimension = file.ImageMaxDimension
	}
	if file.ResultsPath != "" {
		cfg.ResultsPath = file.ResultsPath
	}
	if file.OTELEndpoint != "" {
		cfg.OTELEndpoint = file.OTELEndpoint
	}
	if file.OTELHeaders != "" {
		cfg.OTELHeaders = file.OTELHeaders
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}
}

// mergeEnv applies environment variables onto cfg. Env always wins.
func mergeEnv(cfg *Config) {
	if v := os.Getenv("PHOTO_CRITIC_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("PHOTO_CRITIC_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("PHOTO_CRITIC_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("PHOTO_CRITIC_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("PHOTO_CRITIC_MAX_TOKENS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxTokens = n
		}
	}
	if v := os.Getenv("PHOTO_CRITIC_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BatchSize = n
		}
	}
	if v := os.Getenv("PHOTO_CRITIC_REQUEST_DELAY"); v != "" {
		cfg.RequestDelay = v
	}
	if v := os.Getenv("PHOTO_CRITIC_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRetries = n
		}
	}
	if v := os.Getenv("PHOTO_CRITIC_RATE_LIMIT_BACKOFF"); v != "" {
		cfg.RateLimitBackoff = v
	}
	if v := os.Getenv("PHOTO_CRITIC_REQUEST_TIMEOUT"); v != "" {
		cfg.RequestTimeout = v
	}
	if v := os.Getenv("PHOTO_CRITIC_RESOURCE_TIMEOUT"); v != "" {
		cfg.ResourceTimeout = v
	}
	if v := os.Getenv("PHOTO_CRITIC_IMAGE_MAX_DIMENSION"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ImageMaxDimension = n
		}
	}
	if v := os.Getenv("PHOTO_CRITIC_RESULTS_PATH"); v != "" {
		cfg.ResultsPath = v
	}
	if v := os.Getenv("PHOTO_CRITIC_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.OTELEndpoint = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"); v != "" {
		cfg.OTELHeaders = v
	}

	// API key fallbacks
	if cfg.APIKey == "" {
		if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
			cfg.APIKey = v
		}
	}
	if cfg.APIKey == "" {
		if v := os.Getenv("OPENAI_API_KEY"); v != "" {
			cfg.APIKey = v
		}
	}
}
