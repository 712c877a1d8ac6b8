package config

import (
	"errors"
	"os"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if err := cfg.finalize(); err != nil {
		t.Fatalf("defaults should validate, got: %v", err)
	}

	if cfg.Provider != "anthropic" {
		t.Errorf("Provider: got %q, want %q", cfg.Provider, "anthropic")
	}
	if cfg.BatchSize != 15 {
		t.Errorf("BatchSize: got %d, want 15", cfg.BatchSize)
	}
	if cfg.RequestDelayDuration != 2*time.Second {
		t.Errorf("RequestDelayDuration: got %s, want 2s", cfg.RequestDelayDuration)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries: got %d, want 3", cfg.MaxRetries)
	}
	if cfg.RateLimitBackoffDuration != 30*time.Second {
		t.Errorf("RateLimitBackoffDuration: got %s, want 30s", cfg.RateLimitBackoffDuration)
	}
	if cfg.RequestTimeoutDuration != 60*time.Second {
		t.Errorf("RequestTimeoutDuration: got %s, want 60s", cfg.RequestTimeoutDuration)
	}
	if cfg.ResourceTimeoutDuration != 120*time.Second {
		t.Errorf("ResourceTimeoutDuration: got %s, want 120s", cfg.ResourceTimeoutDuration)
	}
	if cfg.ImageMaxDimension != 1568 {
		t.Errorf("ImageMaxDimension: got %d, want 1568", cfg.ImageMaxDimension)
	}
}

func TestValidate_Bounds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"batch size too small", func(c *Config) { c.BatchSize = 4 }},
		{"batch size too large", func(c *Config) { c.BatchSize = 26 }},
		{"delay too short", func(c *Config) { c.RequestDelay = "500ms" }},
		{"delay too long", func(c *Config) { c.RequestDelay = "6s" }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"zero backoff", func(c *Config) { c.RateLimitBackoff = "0s" }},
		{"bad delay string", func(c *Config) { c.RequestDelay = "soon" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.finalize()
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("error should wrap ErrInvalidConfiguration, got: %v", err)
			}
		})
	}
}

func TestValidate_BoundsInclusive(t *testing.T) {
	for _, size := range []int{5, 25} {
		cfg := Defaults()
		cfg.BatchSize = size
		if err := cfg.finalize(); err != nil {
			t.Errorf("batch_size %d should be valid: %v", size, err)
		}
	}
	for _, delay := range []string{"1s", "5s"} {
		cfg := Defaults()
		cfg.RequestDelay = delay
		if err := cfg.finalize(); err != nil {
			t.Errorf("request_delay %s should be valid: %v", delay, err)
		}
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	yaml := `
provider: openai
model: gpt-4o-mini
batch_size: 10
request_delay: 3s
results_path: out.jsonl
`
	if err := os.WriteFile(".photo-critic.yaml", []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("Provider: got %q, want %q", cfg.Provider, "openai")
	}
	if cfg.BatchSize != 10 {
		t.Errorf("BatchSize: got %d, want 10", cfg.BatchSize)
	}
	if cfg.RequestDelayDuration != 3*time.Second {
		t.Errorf("RequestDelayDuration: got %s, want 3s", cfg.RequestDelayDuration)
	}
	// File value left unset falls back to default
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries: got %d, want default 3", cfg.MaxRetries)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(".photo-critic.yaml", []byte("model: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PHOTO_CRITIC_MODEL", "from-env")
	t.Setenv("PHOTO_CRITIC_BATCH_SIZE", "20")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Model != "from-env" {
		t.Errorf("Model: got %q, want env value", cfg.Model)
	}
	if cfg.BatchSize != 20 {
		t.Errorf("BatchSize: got %d, want 20", cfg.BatchSize)
	}
}

func TestLoad_EnvOverridesAllKnobs(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("PHOTO_CRITIC_MAX_TOKENS", "2048")
	t.Setenv("PHOTO_CRITIC_RATE_LIMIT_BACKOFF", "45s")
	t.Setenv("PHOTO_CRITIC_REQUEST_TIMEOUT", "90s")
	t.Setenv("PHOTO_CRITIC_RESOURCE_TIMEOUT", "300s")
	t.Setenv("PHOTO_CRITIC_IMAGE_MAX_DIMENSION", "1200")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxTokens != 2048 {
		t.Errorf("MaxTokens: got %d, want 2048", cfg.MaxTokens)
	}
	if cfg.RateLimitBackoffDuration != 45*time.Second {
		t.Errorf("RateLimitBackoffDuration: got %s, want 45s", cfg.RateLimitBackoffDuration)
	}
	if cfg.RequestTimeoutDuration != 90*time.Second {
		t.Errorf("RequestTimeoutDuration: got %s, want 90s", cfg.RequestTimeoutDuration)
	}
	if cfg.ResourceTimeoutDuration != 300*time.Second {
		t.Errorf("ResourceTimeoutDuration: got %s, want 300s", cfg.ResourceTimeoutDuration)
	}
	if cfg.ImageMaxDimension != 1200 {
		t.Errorf("ImageMaxDimension: got %d, want 1200", cfg.ImageMaxDimension)
	}
}

func TestLoad_APIKeyFallback(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	t.Setenv("PHOTO_CRITIC_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIKey != "sk-ant-test-key" {
		t.Errorf("APIKey: got %q, want fallback from ANTHROPIC_API_KEY", cfg.APIKey)
	}
}

func TestLoad_InvalidFileValues(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if err := os.WriteFile(".photo-critic.yaml", []byte("batch_size: 100\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load()
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got: %v", err)
	}
}
