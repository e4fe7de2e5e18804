package inference

import "fmt"

// Fault is the base error type for all inference errors.
type Fault struct {
	Message string
	Cause   error
}

func (e *Fault) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Fault) Unwrap() error {
	return e.Cause
}

// ProviderFault represents an error returned by an AI provider. Transient
// faults (rate limits, timeouts, server errors) are retried with backoff;
// fatal faults propagate immediately and fail the section.
type ProviderFault struct {
	Fault
	Provider   string
	StatusCode int
	Transient  bool
	RetryAfter *float64 // seconds, from Retry-After when present
}

func (e *ProviderFault) Error() string {
	return fmt.Sprintf("[%s] %s (status=%d, transient=%v)", e.Provider, e.Message, e.StatusCode, e.Transient)
}

// Concrete provider fault types.

type AuthenticationError struct{ ProviderFault }
type InvalidRequestError struct{ ProviderFault }
type RateLimitError struct{ ProviderFault }
type ServerError struct{ ProviderFault }
type QuotaExceededError struct{ ProviderFault }

// SchemaError indicates the provider replied but the payload did not match
// the expected finding schema. Not retried: the same prompt will keep
// producing the same malformed shape.
type SchemaError struct{ Fault }

// Non-provider errors.

type RequestTimeoutError struct{ Fault }
type NetworkError struct{ Fault }
type AbortError struct{ Fault }

// ConfigError indicates invalid run configuration (thresholds, iteration
// caps, missing credentials). Raised at run start, before any section work.
type ConfigError struct{ Fault }

// FaultFromStatusCode maps an HTTP status code to the appropriate fault type.
func FaultFromStatusCode(statusCode int, message, provider string, retryAfter *float64) error {
	pf := ProviderFault{
		Fault:      Fault{Message: message},
		Provider:   provider,
		StatusCode: statusCode,
		RetryAfter: retryAfter,
	}

	switch statusCode {
	case 400, 404, 422:
		return &InvalidRequestError{ProviderFault: pf}
	case 401, 403:
		return &AuthenticationError{ProviderFault: pf}
	case 408:
		pf.Transient = true
		return &RequestTimeoutError{Fault: pf.Fault}
	case 429:
		pf.Transient = true
		return &RateLimitError{ProviderFault: pf}
	case 500, 502, 503, 504:
		pf.Transient = true
		return &ServerError{ProviderFault: pf}
	default:
		// Unknown statuses default to transient.
		pf.Transient = true
		return &pf
	}
}

// IsTransient reports whether the error is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch e := err.(type) {
	case *ProviderFault:
		return e.Transient
	case *AuthenticationError, *InvalidRequestError, *QuotaExceededError:
		return false
	case *SchemaError, *ConfigError, *AbortError:
		return false
	case *RateLimitError, *ServerError:
		return true
	case *RequestTimeoutError, *NetworkError:
		return true
	default:
		return false
	}
}
