package llm

import (
	"context"
	"errors"
	"math"
	"time"

	"perfaudit/config"
	"perfaudit/internal/domain"
)

// RetryPolicy is the backoff schedule shared by the non-streaming client and
// the streaming chain runner.
type RetryPolicy struct {
	BaseDelay       time.Duration
	Multiplier      float64
	MaxDelay        time.Duration // 0 = uncapped
	MaxRetries      int
	HonorRetryAfter bool
}

// PolicyFromConfig converts a config section into a RetryPolicy.
func PolicyFromConfig(c config.RetryConfig) RetryPolicy {
	return RetryPolicy{
		BaseDelay:       c.BaseDelay,
		Multiplier:      c.Multiplier,
		MaxDelay:        c.MaxDelay,
		MaxRetries:      c.MaxRetries,
		HonorRetryAfter: c.HonorRetryAfter,
	}
}

// WithMaxRetries returns a copy with a different retry ceiling.
func (p RetryPolicy) WithMaxRetries(n int) RetryPolicy {
	p.MaxRetries = n
	return p
}

// Backoff returns the internal wait before retry n (1-based):
// BaseDelay * Multiplier^(n-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := p.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(p.BaseDelay) * math.Pow(mult, float64(n-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Delay returns the wait before retry n after err. A server retry-after hint
// replaces the internal backoff when HonorRetryAfter is set; MaxDelay caps
// both.
func (p RetryPolicy) Delay(n int, err error) time.Duration {
	if p.HonorRetryAfter {
		var rl *domain.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			if p.MaxDelay > 0 && rl.RetryAfter > p.MaxDelay {
				return p.MaxDelay
			}
			return rl.RetryAfter
		}
	}
	return p.Backoff(n)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
