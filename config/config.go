// Package config provides hierarchical configuration loading for redline.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for a review run.
type Config struct {
	Provider Provider `yaml:"provider"`
	Review   Review   `yaml:"review"`
	Rate     Rate     `yaml:"rate"`
	Breaker  Breaker  `yaml:"breaker"`
	Report   Report   `yaml:"report"`
	Logging  Logging  `yaml:"logging"`
}

// Provider selects and configures the LLM backend.
type Provider struct {
	Name    string `yaml:"name"`     // "gemini" | "groq" | "openrouter" | "mock"
	Model   string `yaml:"model"`    // provider-specific model name; empty = provider default
	APIKey  string `yaml:"api_key"`  // usually set via env, not YAML
	BaseURL string `yaml:"base_url"` // override for testing; empty = provider default
}

// Review holds the iteration loop parameters.
type Review struct {
	MaxIterations        int           `yaml:"max_iterations"`        // per section (default: 5)
	ConvergenceThreshold float64       `yaml:"convergence_threshold"` // similarity ratio in (0,1] (default: 0.95)
	SimilarityStrategy   string        `yaml:"similarity_strategy"`   // "levenshtein" | "token-overlap"
	Workers              int           `yaml:"workers"`               // concurrent sections (default: 4)
	Temperature          float64       `yaml:"temperature"`
	MaxTokens            int           `yaml:"max_tokens"`
	MaxRetries           int           `yaml:"max_retries"`  // per LLM call
	CallTimeout          time.Duration `yaml:"call_timeout"` // per LLM call
	SplitLevel           int           `yaml:"split_level"`  // max heading depth that starts a section
	Terminology          []string      `yaml:"terminology"`  // canonical terms for the technical reviewer
}

// Rate throttles outbound provider requests.
type Rate struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 disables throttling
	Burst             int     `yaml:"burst"`
}

// Breaker holds circuit breaker configuration for provider transports.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Cooldown    time.Duration `yaml:"cooldown"`
}

// Report selects output artifacts.
type Report struct {
	Formats   []string `yaml:"formats"` // "markdown", "html"
	OutputDir string   `yaml:"output_dir"`
}

// Logging configures the structured logger.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Defaults returns the baseline configuration before YAML and ENV overlays.
func Defaults() Config {
	return Config{
		Provider: Provider{
			Name: "gemini",
		},
		Review: Review{
			MaxIterations:        5,
			ConvergenceThreshold: 0.95,
			SimilarityStrategy:   "levenshtein",
			Workers:              4,
			Temperature:          0.3,
			MaxTokens:            8192,
			MaxRetries:           3,
			CallTimeout:          2 * time.Minute,
			SplitLevel:           2,
		},
		Rate: Rate{
			RequestsPerSecond: 2,
			Burst:             4,
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		},
		Report: Report{
			Formats:   []string{"markdown"},
			OutputDir: "redline-out",
		},
		Logging: Logging{
			Level:   "info",
			Service: "redline",
		},
	}
}
