package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/redlinehq/redline/resilience"
)

const defaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterAdapter talks to the OpenRouter chat-completions API, which
// multiplexes hundreds of models behind an OpenAI-compatible surface.
type OpenRouterAdapter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// OpenRouterOption configures an OpenRouterAdapter.
type OpenRouterOption func(*OpenRouterAdapter)

// WithOpenRouterModel overrides the default model.
func WithOpenRouterModel(model string) OpenRouterOption {
	return func(a *OpenRouterAdapter) { a.model = model }
}

// WithOpenRouterBaseURL overrides the API endpoint, mainly for tests.
func WithOpenRouterBaseURL(url string) OpenRouterOption {
	return func(a *OpenRouterAdapter) { a.baseURL = url }
}

// WithOpenRouterBreaker attaches a circuit breaker to all outgoing calls.
func WithOpenRouterBreaker(b *resilience.Breaker) OpenRouterOption {
	return func(a *OpenRouterAdapter) { a.breaker = b }
}

// NewOpenRouterAdapter creates an OpenRouter-backed Port.
func NewOpenRouterAdapter(apiKey string, opts ...OpenRouterOption) (*OpenRouterAdapter, error) {
	if apiKey == "" {
		return nil, &ConfigError{Fault: Fault{Message: "openrouter: API key is required"}}
	}
	a := &OpenRouterAdapter{
		apiKey:  apiKey,
		model:   "google/gemini-2.5-flash",
		baseURL: defaultOpenRouterBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Name returns the provider identifier.
func (a *OpenRouterAdapter) Name() string {
	return "openrouter"
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Review submits the role's prompt as a single user message.
func (a *OpenRouterAdapter) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	body, err := json.Marshal(chatRequest{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	data, err := a.doRequest(ctx, http.MethodPost, "/chat/completions", body)
	if err != nil {
		return nil, err
	}

	var cr chatResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, &SchemaError{Fault: Fault{Message: "openrouter: unexpected response envelope", Cause: err}}
	}
	if len(cr.Choices) == 0 {
		return nil, &SchemaError{Fault: Fault{Message: "openrouter: response has no choices"}}
	}

	result, err := ParseResponse(cr.Choices[0].Message.Content, req)
	if err != nil {
		return nil, err
	}
	result.Usage = Usage{
		InputTokens:  cr.Usage.PromptTokens,
		OutputTokens: cr.Usage.CompletionTokens,
		TotalTokens:  cr.Usage.TotalTokens,
	}
	return result, nil
}

// ListAvailableModels returns the model identifiers OpenRouter offers.
func (a *OpenRouterAdapter) ListAvailableModels(ctx context.Context) ([]string, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/models", nil)
	if err != nil {
		return nil, err
	}

	var listing struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, &SchemaError{Fault: Fault{Message: "openrouter: unexpected models listing", Cause: err}}
	}

	models := make([]string, 0, len(listing.Data))
	for _, m := range listing.Data {
		models = append(models, m.ID)
	}
	return models, nil
}

func (a *OpenRouterAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var result []byte
	call := func() error {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+a.apiKey)

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return classifyTransportError("openrouter", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Fault: Fault{Message: "openrouter: read response", Cause: err}}
		}

		if resp.StatusCode >= 400 {
			return FaultFromStatusCode(resp.StatusCode, truncate(string(data), 300), "openrouter", retryAfter(resp))
		}

		result = data
		return nil
	}

	if a.breaker != nil {
		if err := a.breaker.Execute(call); err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return nil, &ServerError{ProviderFault: ProviderFault{
					Fault: Fault{Message: "openrouter: circuit open", Cause: err}, Provider: "openrouter", Transient: true,
				}}
			}
			return nil, err
		}
		return result, nil
	}

	if err := call(); err != nil {
		return nil, err
	}
	return result, nil
}
