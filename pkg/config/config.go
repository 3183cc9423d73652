// Package config loads and validates the formpilot configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the pipeline.
type Config struct {
	LLM     LLMConfig     `yaml:"llm" json:"llm"`
	Safety  SafetyConfig  `yaml:"safety" json:"safety"`
	Browser BrowserConfig `yaml:"browser" json:"browser"`
	Retry   RetryConfig   `yaml:"retry" json:"retry"`
	Audit   AuditConfig   `yaml:"audit" json:"audit"`
}

// LLMConfig configures the field-mapping model provider. The API key is
// never stored in the file; it is read from OPENAI_API_KEY.
type LLMConfig struct {
	Model            string  `yaml:"model" json:"model"`
	BaseURL          string  `yaml:"base_url" json:"base_url"`
	Temperature      float64 `yaml:"temperature" json:"temperature"`
	PromptTokenLimit int     `yaml:"prompt_token_limit" json:"prompt_token_limit"`
}

// SafetyConfig configures the policy gate.
type SafetyConfig struct {
	AllowedDomains        []string      `yaml:"allowed_domains" json:"allowed_domains"`
	DeniedDomains         []string      `yaml:"denied_domains" json:"denied_domains"`
	AllowLoopback         bool          `yaml:"allow_loopback" json:"allow_loopback"`
	MaxSubmissionsPerHour int           `yaml:"max_submissions_per_hour" json:"max_submissions_per_hour"`
	RateWindow            time.Duration `yaml:"rate_window" json:"rate_window"`
	PlanTTL               time.Duration `yaml:"plan_ttl" json:"plan_ttl"`
}

// BrowserConfig configures browser sessions.
type BrowserConfig struct {
	Headless          bool          `yaml:"headless" json:"headless"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout" json:"navigation_timeout"`
	ActionTimeout     time.Duration `yaml:"action_timeout" json:"action_timeout"`
	SubmitTimeout     time.Duration `yaml:"submit_timeout" json:"submit_timeout"`
	MaxSessions       int           `yaml:"max_sessions" json:"max_sessions"`
}

// RetryConfig configures per-action retries during execution.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff" json:"backoff"`
}

// AuditConfig configures the audit trail destination.
type AuditConfig struct {
	Path string `yaml:"path" json:"path"`
}

// Default returns the shipped configuration.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:            "gpt-4o",
			Temperature:      0.1,
			PromptTokenLimit: 6000,
		},
		Safety: SafetyConfig{
			AllowLoopback:         true,
			MaxSubmissionsPerHour: 10,
			RateWindow:            time.Hour,
			PlanTTL:               15 * time.Minute,
		},
		Browser: BrowserConfig{
			Headless:          true,
			NavigationTimeout: 30 * time.Second,
			ActionTimeout:     10 * time.Second,
			SubmitTimeout:     10 * time.Second,
			MaxSessions:       8,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			Backoff:     250 * time.Millisecond,
		},
		Audit: AuditConfig{
			Path: defaultAuditPath(),
		},
	}
}

func defaultAuditPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "formpilot-audit.jsonl"
	}
	return filepath.Join(home, ".formpilot", "audit.jsonl")
}

// Load reads path over the defaults. An empty path returns the defaults
// unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would misbehave at
// runtime.
func (c *Config) Validate() error {
	if c.LLM.Model == "" {
		return fmt.Errorf("llm model is required")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature must be between 0 and 2")
	}
	if c.LLM.PromptTokenLimit < 0 {
		return fmt.Errorf("prompt_token_limit cannot be negative")
	}

	if c.Safety.MaxSubmissionsPerHour < 0 {
		return fmt.Errorf("max_submissions_per_hour cannot be negative")
	}
	if c.Safety.RateWindow < 0 {
		return fmt.Errorf("rate_window cannot be negative")
	}
	if c.Safety.PlanTTL < 0 {
		return fmt.Errorf("plan_ttl cannot be negative")
	}

	if c.Browser.NavigationTimeout < 0 || c.Browser.ActionTimeout < 0 || c.Browser.SubmitTimeout < 0 {
		return fmt.Errorf("browser timeouts cannot be negative")
	}
	if c.Browser.MaxSessions < 0 {
		return fmt.Errorf("max_sessions cannot be negative")
	}

	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry max_attempts cannot be negative")
	}
	if c.Retry.Backoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}

	if c.Audit.Path == "" {
		return fmt.Errorf("audit path is required")
	}

	return nil
}
