// Package config handles configuration loading for OpenEDGAR.ai.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	LLM      LLMConfig      `mapstructure:"llm"      yaml:"llm"`
	Edgar    EdgarConfig    `mapstructure:"edgar"    yaml:"edgar"`
	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline"`
	API      APIConfig      `mapstructure:"api"      yaml:"api"`
	Logging  LoggingConfig  `mapstructure:"logging"  yaml:"logging"`
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Primary      string  `mapstructure:"primary"       yaml:"primary"` // "openai", "anthropic", "ollama", "stub"
	OpenAIKey    string  `mapstructure:"openai_key"    yaml:"openai_key"`
	AnthropicKey string  `mapstructure:"anthropic_key" yaml:"anthropic_key"`
	OllamaURL    string  `mapstructure:"ollama_url"    yaml:"ollama_url"`
	Model        string  `mapstructure:"model"         yaml:"model"`
	Temperature  float64 `mapstructure:"temperature"   yaml:"temperature"`
	MaxTokens    int     `mapstructure:"max_tokens"    yaml:"max_tokens"`
}

// EdgarConfig holds SEC EDGAR client settings. The SEC requires a contact
// User-Agent on every request and budgets 10 requests per second.
type EdgarConfig struct {
	UserAgent      string `mapstructure:"user_agent"       yaml:"user_agent"`
	RequestsPerSec int    `mapstructure:"requests_per_sec" yaml:"requests_per_sec"`
	CacheTTLSec    int    `mapstructure:"cache_ttl_sec"    yaml:"cache_ttl_sec"`
}

// PipelineConfig holds query pipeline settings.
type PipelineConfig struct {
	DeadlineSec   int  `mapstructure:"deadline_sec"    yaml:"deadline_sec"`
	ParseTimeout  int  `mapstructure:"parse_timeout"   yaml:"parse_timeout"`  // seconds per understanding call
	SynthTimeout  int  `mapstructure:"synth_timeout"   yaml:"synth_timeout"`  // seconds for narrative generation
	Workers       int  `mapstructure:"workers"         yaml:"workers"`        // per-company extraction fan-out
	MaxFilings    int  `mapstructure:"max_filings"     yaml:"max_filings"`    // recent filings kept per company
	UseToolRouter bool `mapstructure:"use_tool_router" yaml:"use_tool_router"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.openedgarai/config.yaml (home directory)
//  3. /etc/openedgarai/config.yaml (system)
//
// Environment variables override config file values.
// Format: OPENEDGARAI_<SECTION>_<KEY>, e.g., OPENEDGARAI_LLM_OPENAI_KEY
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".openedgarai"))
	v.AddConfigPath("/etc/openedgarai")

	v.SetEnvPrefix("OPENEDGARAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Config file not required to exist; defaults + env vars suffice.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("OPENEDGARAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)
	return &cfg, nil
}

// Validate fails fast on misconfiguration so that no query is processed
// against a half-wired setup.
func (c *Config) Validate() error {
	switch c.LLM.Primary {
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("llm.primary is %q but llm.openai_key is not set", c.LLM.Primary)
		}
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			return fmt.Errorf("llm.primary is %q but llm.anthropic_key is not set", c.LLM.Primary)
		}
	case "ollama":
		if c.LLM.OllamaURL == "" {
			return fmt.Errorf("llm.primary is %q but llm.ollama_url is not set", c.LLM.Primary)
		}
	case "stub":
		// Deterministic offline provider, nothing to validate.
	default:
		return fmt.Errorf("unknown llm.primary %q", c.LLM.Primary)
	}

	if c.Edgar.UserAgent == "" {
		return fmt.Errorf("edgar.user_agent must be set; the SEC requires a contact User-Agent")
	}
	if c.Edgar.RequestsPerSec <= 0 || c.Edgar.RequestsPerSec > 10 {
		return fmt.Errorf("edgar.requests_per_sec must be in 1..10, got %d", c.Edgar.RequestsPerSec)
	}
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	return nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults
	v.SetDefault("llm.primary", "openai")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4096)

	// EDGAR defaults
	v.SetDefault("edgar.user_agent", "OpenEDGAR.ai research agent (contact@openedgar.ai)")
	v.SetDefault("edgar.requests_per_sec", 10)
	v.SetDefault("edgar.cache_ttl_sec", 600)

	// Pipeline defaults
	v.SetDefault("pipeline.deadline_sec", 120)
	v.SetDefault("pipeline.parse_timeout", 20)
	v.SetDefault("pipeline.synth_timeout", 30)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.max_filings", 20)
	v.SetDefault("pipeline.use_tool_router", false)

	// API defaults
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"http://localhost:3000"})

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("OPENEDGARAI_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}
	if key := os.Getenv("OPENEDGARAI_LLM_ANTHROPIC_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
	}
	if ua := os.Getenv("OPENEDGARAI_EDGAR_USER_AGENT"); ua != "" {
		cfg.Edgar.UserAgent = ua
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
