package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "redline.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// The YAML file is optional; a missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Provider.Name, "REDLINE_PROVIDER")
	setString(&cfg.Provider.Model, "REDLINE_MODEL")
	setString(&cfg.Provider.BaseURL, "REDLINE_BASE_URL")
	setInt(&cfg.Review.MaxIterations, "REDLINE_MAX_ITERATIONS")
	setFloat64(&cfg.Review.ConvergenceThreshold, "REDLINE_CONVERGENCE_THRESHOLD")
	setString(&cfg.Review.SimilarityStrategy, "REDLINE_SIMILARITY")
	setInt(&cfg.Review.Workers, "REDLINE_WORKERS")
	setFloat64(&cfg.Review.Temperature, "REDLINE_TEMPERATURE")
	setInt(&cfg.Review.MaxTokens, "REDLINE_MAX_TOKENS")
	setInt(&cfg.Review.MaxRetries, "REDLINE_MAX_RETRIES")
	setDuration(&cfg.Review.CallTimeout, "REDLINE_CALL_TIMEOUT")
	setInt(&cfg.Review.SplitLevel, "REDLINE_SPLIT_LEVEL")
	setFloat64(&cfg.Rate.RequestsPerSecond, "REDLINE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "REDLINE_RATE_BURST")
	setInt(&cfg.Breaker.MaxFailures, "REDLINE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Cooldown, "REDLINE_BREAKER_COOLDOWN")
	setString(&cfg.Report.OutputDir, "REDLINE_OUTPUT_DIR")
	setString(&cfg.Logging.Level, "REDLINE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "REDLINE_LOG_SERVICE")

	// Provider API keys come from the conventional variables first,
	// then the generic override.
	switch strings.ToLower(cfg.Provider.Name) {
	case "gemini":
		setString(&cfg.Provider.APIKey, "GEMINI_API_KEY")
	case "groq":
		setString(&cfg.Provider.APIKey, "GROQ_API_KEY")
	case "openrouter":
		setString(&cfg.Provider.APIKey, "OPENROUTER_API_KEY")
	}
	setString(&cfg.Provider.APIKey, "REDLINE_API_KEY")
}

// validate checks that required fields are set and in range.
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.Provider.Name) {
	case "gemini", "groq", "openrouter", "mock":
	default:
		return fmt.Errorf("provider.name %q is not one of gemini, groq, openrouter, mock", cfg.Provider.Name)
	}
	if cfg.Review.MaxIterations < 1 {
		return errors.New("review.max_iterations must be >= 1")
	}
	if cfg.Review.ConvergenceThreshold <= 0 || cfg.Review.ConvergenceThreshold > 1 {
		return errors.New("review.convergence_threshold must be in (0, 1]")
	}
	if cfg.Review.Workers < 1 {
		return errors.New("review.workers must be >= 1")
	}
	if cfg.Rate.RequestsPerSecond < 0 {
		return errors.New("rate.requests_per_second must be >= 0")
	}
	if cfg.Rate.RequestsPerSecond > 0 && cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1 when throttling is enabled")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	for _, format := range cfg.Report.Formats {
		switch format {
		case "markdown", "md", "html":
		default:
			return fmt.Errorf("report.formats entry %q is not one of markdown, html", format)
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
