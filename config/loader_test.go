package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Name != "gemini" {
		t.Errorf("expected default provider gemini, got %q", cfg.Provider.Name)
	}
	if cfg.Review.MaxIterations != 5 {
		t.Errorf("expected default max iterations 5, got %d", cfg.Review.MaxIterations)
	}
	if cfg.Review.ConvergenceThreshold != 0.95 {
		t.Errorf("expected default threshold 0.95, got %g", cfg.Review.ConvergenceThreshold)
	}
	if cfg.Logging.Service != "redline" {
		t.Errorf("expected default service name, got %q", cfg.Logging.Service)
	}
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redline.yaml")
	yamlBody := `
provider:
  name: openrouter
  model: meta-llama/llama-3.3-70b
review:
  max_iterations: 3
  workers: 8
  call_timeout: 90s
report:
  formats: [markdown, html]
`
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.Name != "openrouter" {
		t.Errorf("expected provider openrouter, got %q", cfg.Provider.Name)
	}
	if cfg.Review.MaxIterations != 3 {
		t.Errorf("expected max iterations 3, got %d", cfg.Review.MaxIterations)
	}
	if cfg.Review.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Review.Workers)
	}
	if cfg.Review.CallTimeout != 90*time.Second {
		t.Errorf("expected 90s timeout, got %v", cfg.Review.CallTimeout)
	}
	// Untouched keys keep their defaults.
	if cfg.Review.ConvergenceThreshold != 0.95 {
		t.Errorf("expected default threshold retained, got %g", cfg.Review.ConvergenceThreshold)
	}
	if len(cfg.Report.Formats) != 2 {
		t.Errorf("expected 2 report formats, got %v", cfg.Report.Formats)
	}
}

func TestLoadFromEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redline.yaml")
	if err := os.WriteFile(path, []byte("review:\n  max_iterations: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("REDLINE_MAX_ITERATIONS", "7")
	t.Setenv("REDLINE_PROVIDER", "mock")
	t.Setenv("REDLINE_RATE_RPS", "0.5")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Review.MaxIterations != 7 {
		t.Errorf("expected env to win over yaml, got %d", cfg.Review.MaxIterations)
	}
	if cfg.Provider.Name != "mock" {
		t.Errorf("expected provider mock, got %q", cfg.Provider.Name)
	}
	if cfg.Rate.RequestsPerSecond != 0.5 {
		t.Errorf("expected rate 0.5, got %g", cfg.Rate.RequestsPerSecond)
	}
}

func TestLoadFromProviderKeyEnv(t *testing.T) {
	t.Setenv("REDLINE_PROVIDER", "groq")
	t.Setenv("GROQ_API_KEY", "gsk-test")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "gsk-test" {
		t.Errorf("expected provider key from GROQ_API_KEY, got %q", cfg.Provider.APIKey)
	}
}

func TestLoadFromGenericKeyWins(t *testing.T) {
	t.Setenv("REDLINE_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "provider-key")
	t.Setenv("REDLINE_API_KEY", "generic-key")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider.APIKey != "generic-key" {
		t.Errorf("expected generic override to win, got %q", cfg.Provider.APIKey)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown provider", func(c *Config) { c.Provider.Name = "acme" }},
		{"zero iterations", func(c *Config) { c.Review.MaxIterations = 0 }},
		{"threshold too high", func(c *Config) { c.Review.ConvergenceThreshold = 1.5 }},
		{"threshold zero", func(c *Config) { c.Review.ConvergenceThreshold = 0 }},
		{"no workers", func(c *Config) { c.Review.Workers = 0 }},
		{"negative rate", func(c *Config) { c.Rate.RequestsPerSecond = -1 }},
		{"zero burst with throttling", func(c *Config) { c.Rate.Burst = 0 }},
		{"bad report format", func(c *Config) { c.Report.Formats = []string{"pdf"} }},
		{"no breaker failures", func(c *Config) { c.Breaker.MaxFailures = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			if err := validate(&cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadFromMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "redline.yaml")
	if err := os.WriteFile(path, []byte("provider: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
