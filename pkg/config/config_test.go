package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	if cfg.LLM.Model != "gpt-4o" {
		t.Errorf("default model = %q, want gpt-4o", cfg.LLM.Model)
	}
	if cfg.Safety.MaxSubmissionsPerHour != 10 {
		t.Errorf("default submission ceiling = %d, want 10", cfg.Safety.MaxSubmissionsPerHour)
	}
	if cfg.Safety.RateWindow != time.Hour {
		t.Errorf("default rate window = %v, want 1h", cfg.Safety.RateWindow)
	}
	if !cfg.Browser.Headless {
		t.Error("default browser mode should be headless")
	}
	if cfg.Audit.Path == "" {
		t.Error("default audit path should not be empty")
	}
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formpilot.yaml")
	content := `
llm:
  model: gpt-4o-mini
safety:
  allowed_domains:
    - "*.greenhouse.io"
  max_submissions_per_hour: 3
browser:
  headless: false
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want gpt-4o-mini", cfg.LLM.Model)
	}
	if cfg.Safety.MaxSubmissionsPerHour != 3 {
		t.Errorf("ceiling = %d, want 3", cfg.Safety.MaxSubmissionsPerHour)
	}
	if len(cfg.Safety.AllowedDomains) != 1 || cfg.Safety.AllowedDomains[0] != "*.greenhouse.io" {
		t.Errorf("allowed domains = %v", cfg.Safety.AllowedDomains)
	}
	if cfg.Browser.Headless {
		t.Error("headless should be overridden to false")
	}
	// Untouched sections keep their defaults.
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("retry attempts = %d, want default 3", cfg.Retry.MaxAttempts)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.LLM.Model != Default().LLM.Model {
		t.Error("empty path should return defaults")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("missing file should be an error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty model", mutate: func(c *Config) { c.LLM.Model = "" }},
		{name: "temperature out of range", mutate: func(c *Config) { c.LLM.Temperature = 3 }},
		{name: "negative token limit", mutate: func(c *Config) { c.LLM.PromptTokenLimit = -1 }},
		{name: "negative ceiling", mutate: func(c *Config) { c.Safety.MaxSubmissionsPerHour = -1 }},
		{name: "negative rate window", mutate: func(c *Config) { c.Safety.RateWindow = -time.Minute }},
		{name: "negative timeout", mutate: func(c *Config) { c.Browser.ActionTimeout = -time.Second }},
		{name: "negative retries", mutate: func(c *Config) { c.Retry.MaxAttempts = -1 }},
		{name: "empty audit path", mutate: func(c *Config) { c.Audit.Path = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() should reject the mutated config")
			}
		})
	}
}

func TestLoadProfile(t *testing.T) {
	t.Run("yaml profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profile.yaml")
		content := `
full_name: Jane Doe
email: jane@example.com
phone: "15551234567"
`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		profile, err := LoadProfile(path)
		if err != nil {
			t.Fatalf("LoadProfile() error = %v", err)
		}
		if profile["full_name"] != "Jane Doe" {
			t.Errorf("full_name = %q", profile["full_name"])
		}
		if profile["phone"] != "15551234567" {
			t.Errorf("phone = %q", profile["phone"])
		}
	})

	t.Run("json profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "profile.json")
		content := `{"email": "jane@example.com", "country": "DE"}`
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}

		profile, err := LoadProfile(path)
		if err != nil {
			t.Fatalf("LoadProfile() error = %v", err)
		}
		if profile["country"] != "DE" {
			t.Errorf("country = %q", profile["country"])
		}
	})

	t.Run("empty profile rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, []byte("{}\n"), 0600); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadProfile(path); err == nil {
			t.Error("empty profile should be rejected")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadProfile("/does/not/exist.yaml"); err == nil {
			t.Error("missing profile should be an error")
		}
	})
}
