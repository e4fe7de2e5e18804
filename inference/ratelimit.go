package inference

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimitedPort wraps a Port with a shared rate limiter. One limiter is
// created per provider instance and shared by all section workers, so
// concurrent sections draw from a single quota rather than one each.
type RateLimitedPort struct {
	inner   Port
	limiter *rate.Limiter
}

// RateLimited decorates port with a limiter allowing rps requests per
// second with the given burst. A rps of zero disables limiting.
func RateLimited(port Port, rps float64, burst int) Port {
	if rps <= 0 {
		return port
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedPort{
		inner:   port,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Name returns the wrapped provider's identifier.
func (p *RateLimitedPort) Name() string {
	return p.inner.Name()
}

// Review waits for a limiter token, then delegates.
func (p *RateLimitedPort) Review(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &AbortError{Fault: Fault{Message: "cancelled waiting for rate limiter", Cause: err}}
	}
	return p.inner.Review(ctx, req)
}

// ListAvailableModels delegates without consuming review quota.
func (p *RateLimitedPort) ListAvailableModels(ctx context.Context) ([]string, error) {
	return p.inner.ListAvailableModels(ctx)
}
