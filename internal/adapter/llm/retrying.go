package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"perfaudit/internal/domain"
	"perfaudit/internal/port"
)

// RetryingClient sends single-prompt completion requests and retries
// rate-limited ones according to its policy. Other failures return at once.
type RetryingClient struct {
	inner  port.Completer
	policy RetryPolicy
	sleep  Sleeper
	logger *zap.Logger
	temp   *float64
}

// RetryingOption configures a RetryingClient.
type RetryingOption func(*RetryingClient)

// WithSleeper replaces the wait function, used by tests.
func WithSleeper(s Sleeper) RetryingOption {
	return func(c *RetryingClient) { c.sleep = s }
}

// WithTemperature pins the sampling temperature for every Send.
func WithTemperature(t float64) RetryingOption {
	return func(c *RetryingClient) { c.temp = &t }
}

func NewRetryingClient(inner port.Completer, policy RetryPolicy, logger *zap.Logger, opts ...RetryingOption) *RetryingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &RetryingClient{
		inner:  inner,
		policy: policy,
		sleep:  SleepContext,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send issues prompt as the only user message.
func (c *RetryingClient) Send(ctx context.Context, prompt string) (string, error) {
	return c.Complete(ctx, port.CompletionRequest{
		Messages:    []port.Message{{Role: "user", Content: prompt}},
		Temperature: c.temp,
	})
}

// Complete implements port.Completer with retries.
func (c *RetryingClient) Complete(ctx context.Context, req port.CompletionRequest) (string, error) {
	if req.Temperature == nil {
		req.Temperature = c.temp
	}
	for retry := 0; ; retry++ {
		text, err := c.inner.Complete(ctx, req)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())
		}
		if !errors.Is(err, domain.ErrRateLimited) {
			return "", err
		}
		if retry >= c.policy.MaxRetries {
			c.logger.Warn("rate limit retries exhausted", zap.Int("retries", retry))
			return "", fmt.Errorf("%w after %d retries", domain.ErrRateLimitExceeded, retry)
		}

		wait := c.policy.Delay(retry+1, err)
		c.logger.Info("rate limited, backing off",
			zap.Int("retry", retry+1),
			zap.Duration("wait", wait))
		if err := c.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrCancelled, err)
		}
	}
}

func (c *RetryingClient) ModelName() string {
	return c.inner.ModelName()
}

// Policy returns the client's retry policy.
func (c *RetryingClient) Policy() RetryPolicy {
	return c.policy
}

var _ port.Completer = (*RetryingClient)(nil)
