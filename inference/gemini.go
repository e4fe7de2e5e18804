package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redlinehq/redline/resilience"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiAdapter talks to the Google Generative Language REST API.
type GeminiAdapter struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.Breaker
}

// GeminiOption configures a GeminiAdapter.
type GeminiOption func(*GeminiAdapter)

// WithGeminiModel overrides the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(a *GeminiAdapter) { a.model = model }
}

// WithGeminiBaseURL overrides the API endpoint, mainly for tests.
func WithGeminiBaseURL(url string) GeminiOption {
	return func(a *GeminiAdapter) { a.baseURL = strings.TrimRight(url, "/") }
}

// WithGeminiHTTPClient overrides the HTTP client.
func WithGeminiHTTPClient(c *http.Client) GeminiOption {
	return func(a *GeminiAdapter) { a.httpClient = c }
}

// WithGeminiBreaker attaches a circuit breaker to all outgoing calls.
func WithGeminiBreaker(b *resilience.Breaker) GeminiOption {
	return func(a *GeminiAdapter) { a.breaker = b }
}

// NewGeminiAdapter creates a Gemini-backed Port.
func NewGeminiAdapter(apiKey string, opts ...GeminiOption) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, &ConfigError{Fault: Fault{Message: "gemini: API key is required"}}
	}
	a := &GeminiAdapter{
		apiKey:  apiKey,
		model:   "gemini-2.0-flash",
		baseURL: defaultGeminiBaseURL,
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
func (a *GeminiAdapter) Name() string {
	return "gemini"
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Config   geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Review submits the role's prompt to the generateContent endpoint.
func (a *GeminiAdapter) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	prompt, err := BuildPrompt(req)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = a.model
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		Config: geminiGenConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	})
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("/models/%s:generateContent?key=%s", model, a.apiKey)
	data, err := a.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}

	var gr geminiResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, &SchemaError{Fault: Fault{Message: "gemini: unexpected response envelope", Cause: err}}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, &SchemaError{Fault: Fault{Message: "gemini: response has no candidates"}}
	}

	var reply strings.Builder
	for _, part := range gr.Candidates[0].Content.Parts {
		reply.WriteString(part.Text)
	}

	result, err := ParseResponse(reply.String(), req)
	if err != nil {
		return nil, err
	}
	result.Usage = Usage{
		InputTokens:  gr.UsageMetadata.PromptTokenCount,
		OutputTokens: gr.UsageMetadata.CandidatesTokenCount,
		TotalTokens:  gr.UsageMetadata.TotalTokenCount,
	}
	return result, nil
}

// ListAvailableModels queries the models endpoint and returns generation
// capable model names without the "models/" prefix.
func (a *GeminiAdapter) ListAvailableModels(ctx context.Context) ([]string, error) {
	data, err := a.doRequest(ctx, http.MethodGet, "/models?key="+a.apiKey, nil)
	if err != nil {
		return nil, err
	}

	var listing struct {
		Models []struct {
			Name              string   `json:"name"`
			GenerationMethods []string `json:"supportedGenerationMethods"`
		} `json:"models"`
	}
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, &SchemaError{Fault: Fault{Message: "gemini: unexpected models listing", Cause: err}}
	}

	var models []string
	for _, m := range listing.Models {
		for _, method := range m.GenerationMethods {
			if method == "generateContent" {
				models = append(models, strings.TrimPrefix(m.Name, "models/"))
				break
			}
		}
	}
	return models, nil
}

func (a *GeminiAdapter) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
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

		resp, err := a.httpClient.Do(req)
		if err != nil {
			return classifyTransportError("gemini", err)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &NetworkError{Fault: Fault{Message: "gemini: read response", Cause: err}}
		}

		if resp.StatusCode >= 400 {
			return FaultFromStatusCode(resp.StatusCode, truncate(string(data), 300), "gemini", retryAfter(resp))
		}

		result = data
		return nil
	}

	if a.breaker != nil {
		if err := a.breaker.Execute(call); err != nil {
			if errors.Is(err, resilience.ErrCircuitOpen) {
				return nil, &ServerError{ProviderFault: ProviderFault{
					Fault: Fault{Message: "gemini: circuit open", Cause: err}, Provider: "gemini", Transient: true,
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

// classifyTransportError maps transport-level failures onto the taxonomy.
func classifyTransportError(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestTimeoutError{Fault: Fault{Message: provider + ": request timed out", Cause: err}}
	}
	if errors.Is(err, context.Canceled) {
		return &AbortError{Fault: Fault{Message: provider + ": request cancelled", Cause: err}}
	}
	return &NetworkError{Fault: Fault{Message: provider + ": request failed", Cause: err}}
}

// retryAfter extracts a Retry-After header in seconds, if present.
func retryAfter(resp *http.Response) *float64 {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return nil
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &secs
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
