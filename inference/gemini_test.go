package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redlinehq/redline/resilience"
)

func geminiReply(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	resp := map[string]interface{}{
		"candidates": []map[string]interface{}{
			{"content": map[string]interface{}{
				"parts": []map[string]string{{"text": text}},
			}},
		},
		"usageMetadata": map[string]int{
			"promptTokenCount":     120,
			"candidatesTokenCount": 40,
			"totalTokenCount":      160,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encode reply: %v", err)
	}
}

func TestGeminiAdapterRequiresAPIKey(t *testing.T) {
	_, err := NewGeminiAdapter("")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("expected ConfigError, got %T", err)
	}
}

func TestGeminiReviewParsesResponse(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		geminiReply(t, w, "```json\n"+`{"findings": [{"category": "grammar", "severity": 2,
			"start": 0, "end": 3, "excerpt": "teh", "suggested_fix": "the",
			"description": "misspelling"}], "revised_text": "the text"}`+"\n```")
	}))
	defer srv.Close()

	a, err := NewGeminiAdapter("test-key", WithGeminiBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := a.Review(context.Background(), ReviewRequest{
		Role:        RoleGrammar,
		SectionText: "teh text",
		Context:     ReviewContext{SectionID: "s1"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/models/gemini-2.0-flash:generateContent" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if result.CorrectedText != "the text" {
		t.Errorf("unexpected corrected text %q", result.CorrectedText)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(result.Findings))
	}
	if result.Usage.TotalTokens != 160 {
		t.Errorf("expected usage from metadata, got %+v", result.Usage)
	}
}

func TestGeminiReviewModelOverride(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		geminiReply(t, w, `{"findings": [], "revised_text": "ok"}`)
	}))
	defer srv.Close()

	a, _ := NewGeminiAdapter("test-key", WithGeminiBaseURL(srv.URL))
	_, err := a.Review(context.Background(), ReviewRequest{
		Role:        RoleGrammar,
		SectionText: "ok",
		Model:       "gemini-2.5-pro",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/models/gemini-2.5-pro:generateContent" {
		t.Errorf("expected per-request model in path, got %q", gotPath)
	}
}

func TestGeminiReviewRateLimitFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a, _ := NewGeminiAdapter("test-key", WithGeminiBaseURL(srv.URL))
	_, err := a.Review(context.Background(), ReviewRequest{Role: RoleGrammar, SectionText: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	rl, ok := err.(*RateLimitError)
	if !ok {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if rl.RetryAfter == nil || *rl.RetryAfter != 7 {
		t.Errorf("expected Retry-After 7, got %v", rl.RetryAfter)
	}
	if !IsTransient(err) {
		t.Error("expected rate limit to be transient")
	}
}

func TestGeminiReviewMalformedModelOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		geminiReply(t, w, "not json at all")
	}))
	defer srv.Close()

	a, _ := NewGeminiAdapter("test-key", WithGeminiBaseURL(srv.URL))
	_, err := a.Review(context.Background(), ReviewRequest{Role: RoleGrammar, SectionText: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*SchemaError); !ok {
		t.Errorf("expected SchemaError, got %T", err)
	}
}

func TestGeminiListAvailableModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models": [
			{"name": "models/gemini-2.0-flash", "supportedGenerationMethods": ["generateContent"]},
			{"name": "models/embedding-001", "supportedGenerationMethods": ["embedContent"]}
		]}`))
	}))
	defer srv.Close()

	a, _ := NewGeminiAdapter("test-key", WithGeminiBaseURL(srv.URL))
	models, err := a.ListAvailableModels(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(models) != 1 || models[0] != "gemini-2.0-flash" {
		t.Errorf("expected only generation models without prefix, got %v", models)
	}
}

func TestGeminiBreakerOpensAfterFailures(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := resilience.NewBreaker(2, time.Hour)
	a, _ := NewGeminiAdapter("test-key", WithGeminiBaseURL(srv.URL), WithGeminiBreaker(breaker))

	req := ReviewRequest{Role: RoleGrammar, SectionText: "x"}
	for i := 0; i < 2; i++ {
		if _, err := a.Review(context.Background(), req); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}

	_, err := a.Review(context.Background(), req)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*ServerError); !ok {
		t.Errorf("expected transient ServerError from open circuit, got %T", err)
	}
	if requests != 2 {
		t.Errorf("expected open circuit to block the third request, server saw %d", requests)
	}
}
