package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// rateLimitedClient throttles outbound completions with a token bucket so a
// large chunked request cannot burst past the provider's request rate.
type rateLimitedClient struct {
	next    Client
	limiter *rate.Limiter
}

func NewRateLimitedClient(next Client, requestsPerSecond float64, burst int) Client {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimitedClient{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

func (c *rateLimitedClient) Generate(ctx context.Context, messages []Message, opts ...CallOption) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for llm rate limit: %w", err)
	}
	return c.next.Generate(ctx, messages, opts...)
}
