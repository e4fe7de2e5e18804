package inference

import (
	"errors"
	"testing"
)

func TestFaultFromStatusCode(t *testing.T) {
	cases := []struct {
		status    int
		transient bool
		check     func(error) bool
	}{
		{400, false, func(e error) bool { _, ok := e.(*InvalidRequestError); return ok }},
		{404, false, func(e error) bool { _, ok := e.(*InvalidRequestError); return ok }},
		{422, false, func(e error) bool { _, ok := e.(*InvalidRequestError); return ok }},
		{401, false, func(e error) bool { _, ok := e.(*AuthenticationError); return ok }},
		{403, false, func(e error) bool { _, ok := e.(*AuthenticationError); return ok }},
		{408, true, func(e error) bool { _, ok := e.(*RequestTimeoutError); return ok }},
		{429, true, func(e error) bool { _, ok := e.(*RateLimitError); return ok }},
		{500, true, func(e error) bool { _, ok := e.(*ServerError); return ok }},
		{503, true, func(e error) bool { _, ok := e.(*ServerError); return ok }},
		{418, true, func(e error) bool { _, ok := e.(*ProviderFault); return ok }},
	}

	for _, tc := range cases {
		err := FaultFromStatusCode(tc.status, "boom", "test", nil)
		if !tc.check(err) {
			t.Errorf("status %d: unexpected type %T", tc.status, err)
		}
		if got := IsTransient(err); got != tc.transient {
			t.Errorf("status %d: expected transient=%v, got %v", tc.status, tc.transient, got)
		}
	}
}

func TestFaultFromStatusCodeCarriesRetryAfter(t *testing.T) {
	after := 30.0
	err := FaultFromStatusCode(429, "rate limited", "gemini", &after)
	rl, ok := err.(*RateLimitError)
	if !ok {
		t.Fatalf("expected RateLimitError, got %T", err)
	}
	if rl.RetryAfter == nil || *rl.RetryAfter != 30.0 {
		t.Errorf("expected RetryAfter 30, got %v", rl.RetryAfter)
	}
	if rl.Provider != "gemini" {
		t.Errorf("expected provider gemini, got %q", rl.Provider)
	}
}

func TestIsTransient(t *testing.T) {
	transient := []error{
		&RateLimitError{},
		&ServerError{},
		&RequestTimeoutError{},
		&NetworkError{},
		&ProviderFault{Transient: true},
	}
	for _, err := range transient {
		if !IsTransient(err) {
			t.Errorf("expected %T to be transient", err)
		}
	}

	fatal := []error{
		nil,
		&AuthenticationError{},
		&InvalidRequestError{},
		&QuotaExceededError{},
		&SchemaError{},
		&ConfigError{},
		&AbortError{},
		&ProviderFault{Transient: false},
		errors.New("plain error"),
	}
	for _, err := range fatal {
		if IsTransient(err) {
			t.Errorf("expected %T not to be transient", err)
		}
	}
}

func TestFaultUnwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := &NetworkError{Fault: Fault{Message: "request failed", Cause: cause}}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if err.Error() != "request failed: socket closed" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}
