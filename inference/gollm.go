package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/teilomillet/gollm"
)

// GollmAdapter implements Port on top of the gollm library. It serves the
// Groq variant and any other OpenAI-compatible provider gollm knows about.
type GollmAdapter struct {
	provider string
	llm      gollm.LLM
	model    string
}

// GollmOption configures a GollmAdapter.
type GollmOption func(*gollmConfig)

type gollmConfig struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	extraOpts   []gollm.ConfigOption
}

// WithAPIKey sets the API key for the adapter.
func WithAPIKey(key string) GollmOption {
	return func(c *gollmConfig) {
		c.apiKey = key
	}
}

// WithModel sets the default model for the adapter.
func WithModel(model string) GollmOption {
	return func(c *gollmConfig) {
		c.model = model
	}
}

// WithGollmOptions adds extra gollm configuration options.
func WithGollmOptions(opts ...gollm.ConfigOption) GollmOption {
	return func(c *gollmConfig) {
		c.extraOpts = append(c.extraOpts, opts...)
	}
}

// NewGollmAdapter creates an adapter for the given gollm provider name
// (e.g. "groq", "openai"). If apiKey is empty, gollm reads it from the
// provider's environment variable.
func NewGollmAdapter(provider string, opts ...GollmOption) (*GollmAdapter, error) {
	cfg := &gollmConfig{
		maxTokens:   8192,
		temperature: 0.3,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	model := cfg.model
	if model == "" {
		switch provider {
		case "groq":
			model = "llama-3.3-70b-versatile"
		default:
			model = "gpt-4o-mini"
		}
	}

	gollmOpts := []gollm.ConfigOption{
		gollm.SetProvider(provider),
		gollm.SetModel(model),
		gollm.SetMaxTokens(cfg.maxTokens),
		gollm.SetTemperature(cfg.temperature),
		gollm.SetMaxRetries(0), // retries belong to the engine's retry policy
		gollm.SetLogLevel(gollm.LogLevelWarn),
	}
	if cfg.apiKey != "" {
		gollmOpts = append(gollmOpts, gollm.SetAPIKey(cfg.apiKey))
	}
	gollmOpts = append(gollmOpts, cfg.extraOpts...)

	llm, err := gollm.NewLLM(gollmOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gollm LLM for provider %s: %w", provider, err)
	}

	return &GollmAdapter{provider: provider, llm: llm, model: model}, nil
}

// Name returns the provider identifier.
func (a *GollmAdapter) Name() string {
	return a.provider
}

// Review renders the role's prompt, generates, and parses the reply.
func (a *GollmAdapter) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	text, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	if req.Model != "" {
		a.llm.SetOption("model", req.Model)
	}
	if req.Temperature > 0 {
		a.llm.SetOption("temperature", req.Temperature)
	}
	if req.MaxTokens > 0 {
		a.llm.SetOption("max_tokens", req.MaxTokens)
	}

	reply, err := a.llm.Generate(ctx, gollm.NewPrompt(text))
	if err != nil {
		return nil, a.translateError(err)
	}

	result, err := ParseResponse(reply, req)
	if err != nil {
		return nil, err
	}
	// gollm does not expose provider usage; approximate from lengths.
	result.Usage = Usage{
		InputTokens:  len(text) / 4,
		OutputTokens: len(reply) / 4,
		TotalTokens:  (len(text) + len(reply)) / 4,
	}
	return result, nil
}

// ListAvailableModels returns the configured model; gollm has no listing API.
func (a *GollmAdapter) ListAvailableModels(ctx context.Context) ([]string, error) {
	return []string{a.model}, nil
}

// translateError classifies a gollm error into the fault taxonomy based on
// its message, since gollm flattens provider responses into plain errors.
func (a *GollmAdapter) translateError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	msgLower := strings.ToLower(msg)

	switch {
	case strings.Contains(msgLower, "401") || strings.Contains(msgLower, "unauthorized") || strings.Contains(msgLower, "invalid api key"):
		return &AuthenticationError{ProviderFault: ProviderFault{
			Fault: Fault{Message: msg, Cause: err}, Provider: a.provider, StatusCode: 401,
		}}
	case strings.Contains(msgLower, "403") || strings.Contains(msgLower, "forbidden"):
		return &AuthenticationError{ProviderFault: ProviderFault{
			Fault: Fault{Message: msg, Cause: err}, Provider: a.provider, StatusCode: 403,
		}}
	case strings.Contains(msgLower, "429") || strings.Contains(msgLower, "rate limit"):
		return &RateLimitError{ProviderFault: ProviderFault{
			Fault: Fault{Message: msg, Cause: err}, Provider: a.provider, StatusCode: 429, Transient: true,
		}}
	case strings.Contains(msgLower, "500") || strings.Contains(msgLower, "502") || strings.Contains(msgLower, "503") || strings.Contains(msgLower, "internal server"):
		return &ServerError{ProviderFault: ProviderFault{
			Fault: Fault{Message: msg, Cause: err}, Provider: a.provider, StatusCode: 500, Transient: true,
		}}
	case strings.Contains(msgLower, "timeout") || strings.Contains(msgLower, "deadline exceeded"):
		return &RequestTimeoutError{Fault: Fault{Message: msg, Cause: err}}
	case strings.Contains(msgLower, "connection") || strings.Contains(msgLower, "no such host"):
		return &NetworkError{Fault: Fault{Message: msg, Cause: err}}
	default:
		return &ProviderFault{
			Fault: Fault{Message: msg, Cause: err}, Provider: a.provider, Transient: true,
		}
	}
}
