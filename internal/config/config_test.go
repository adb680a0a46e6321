package config

import (
	"os"
	"path/filepath"
	"testing"
)

// ── Load / Defaults ──

func TestLoadReturnsDefaults(t *testing.T) {
	// Unset any env vars that would interfere
	envVars := []string{
		"OPENEDGARAI_LLM_OPENAI_KEY", "OPENEDGARAI_LLM_ANTHROPIC_KEY",
		"OPENEDGARAI_EDGAR_USER_AGENT",
	}
	for _, e := range envVars {
		os.Unsetenv(e)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// LLM defaults
	if cfg.LLM.Primary != "openai" {
		t.Errorf("LLM.Primary: got %q, want %q", cfg.LLM.Primary, "openai")
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("LLM.Model: got %q, want %q", cfg.LLM.Model, "gpt-4o")
	}
	if cfg.LLM.Temperature != 0.1 {
		t.Errorf("LLM.Temperature: got %f, want 0.1", cfg.LLM.Temperature)
	}
	if cfg.LLM.MaxTokens != 4096 {
		t.Errorf("LLM.MaxTokens: got %d, want 4096", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.OllamaURL != "http://localhost:11434" {
		t.Errorf("LLM.OllamaURL: got %q", cfg.LLM.OllamaURL)
	}

	// EDGAR defaults
	if cfg.Edgar.RequestsPerSec != 10 {
		t.Errorf("Edgar.RequestsPerSec: got %d, want 10", cfg.Edgar.RequestsPerSec)
	}
	if cfg.Edgar.CacheTTLSec != 600 {
		t.Errorf("Edgar.CacheTTLSec: got %d, want 600", cfg.Edgar.CacheTTLSec)
	}
	if cfg.Edgar.UserAgent == "" {
		t.Error("Edgar.UserAgent should have a default")
	}

	// Pipeline defaults
	if cfg.Pipeline.DeadlineSec != 120 {
		t.Errorf("Pipeline.DeadlineSec: got %d, want 120", cfg.Pipeline.DeadlineSec)
	}
	if cfg.Pipeline.Workers != 4 {
		t.Errorf("Pipeline.Workers: got %d, want 4", cfg.Pipeline.Workers)
	}
	if cfg.Pipeline.UseToolRouter {
		t.Error("Pipeline.UseToolRouter should default to false")
	}

	// API defaults
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port: got %d, want 8080", cfg.API.Port)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	os.Setenv("OPENEDGARAI_LLM_OPENAI_KEY", "sk-test-0123456789")
	os.Setenv("OPENEDGARAI_EDGAR_USER_AGENT", "test-agent (tester@example.com)")
	defer os.Unsetenv("OPENEDGARAI_LLM_OPENAI_KEY")
	defer os.Unsetenv("OPENEDGARAI_EDGAR_USER_AGENT")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LLM.OpenAIKey != "sk-test-0123456789" {
		t.Errorf("LLM.OpenAIKey: got %q", cfg.LLM.OpenAIKey)
	}
	if cfg.Edgar.UserAgent != "test-agent (tester@example.com)" {
		t.Errorf("Edgar.UserAgent: got %q", cfg.Edgar.UserAgent)
	}
}

// ── LoadFromFile ──

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
llm:
  primary: anthropic
  anthropic_key: sk-ant-test-key-123
  model: claude-sonnet-4-5
edgar:
  user_agent: "Example Corp research (dev@example.com)"
  requests_per_sec: 5
pipeline:
  workers: 8
  use_tool_router: true
api:
  port: 9090
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error: %v", err)
	}
	if cfg.LLM.Primary != "anthropic" {
		t.Errorf("LLM.Primary: got %q", cfg.LLM.Primary)
	}
	if cfg.LLM.Model != "claude-sonnet-4-5" {
		t.Errorf("LLM.Model: got %q", cfg.LLM.Model)
	}
	if cfg.Edgar.RequestsPerSec != 5 {
		t.Errorf("Edgar.RequestsPerSec: got %d, want 5", cfg.Edgar.RequestsPerSec)
	}
	if cfg.Pipeline.Workers != 8 || !cfg.Pipeline.UseToolRouter {
		t.Errorf("Pipeline: got %+v", cfg.Pipeline)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("API.Port: got %d, want 9090", cfg.API.Port)
	}
	// Untouched sections keep their defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level: got %q, want default", cfg.Logging.Level)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

// ── Validate ──

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			LLM:   LLMConfig{Primary: "openai", OpenAIKey: "sk-x"},
			Edgar: EdgarConfig{UserAgent: "x (y@z)", RequestsPerSec: 10},
			API:   APIConfig{Port: 8080},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"openai without key", func(c *Config) { c.LLM.OpenAIKey = "" }},
		{"anthropic without key", func(c *Config) { c.LLM.Primary = "anthropic" }},
		{"unknown provider", func(c *Config) { c.LLM.Primary = "watson" }},
		{"missing user agent", func(c *Config) { c.Edgar.UserAgent = "" }},
		{"rate too high", func(c *Config) { c.Edgar.RequestsPerSec = 50 }},
		{"bad port", func(c *Config) { c.API.Port = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	stub := valid()
	stub.LLM = LLMConfig{Primary: "stub"}
	if err := stub.Validate(); err != nil {
		t.Errorf("stub provider should not require credentials: %v", err)
	}
}

// ── Key status ──

func TestCheckAPIKeys(t *testing.T) {
	os.Unsetenv("OPENEDGARAI_LLM_OPENAI_KEY")
	os.Unsetenv("OPENEDGARAI_LLM_ANTHROPIC_KEY")

	cfg := &Config{LLM: LLMConfig{OpenAIKey: "sk-0123456789abcdef"}}
	statuses := CheckAPIKeys(cfg)
	if len(statuses) != 2 {
		t.Fatalf("statuses = %d, want 2", len(statuses))
	}

	openai := statuses[0]
	if !openai.IsSet || openai.Source != KeySourceConfig {
		t.Errorf("openai status = %+v", openai)
	}
	if openai.Masked != "sk-...def" {
		t.Errorf("masked = %q", openai.Masked)
	}

	anthropic := statuses[1]
	if anthropic.IsSet || anthropic.Source != KeySourceNone {
		t.Errorf("anthropic status = %+v", anthropic)
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("short"); got != "***" {
		t.Errorf("maskKey(short) = %q", got)
	}
	if got := maskKey("sk-0123456789"); got != "sk-...789" {
		t.Errorf("maskKey = %q", got)
	}
}
