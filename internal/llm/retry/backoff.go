package retry

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ada-assist/ada/internal/llm/configuration"
)

// calculateBackoff picks the delay before the next attempt. A provider
// Retry-After hint wins when it fits inside MaxInterval; otherwise the
// exponential schedule applies.
func (r *Middleware) calculateBackoff(attempt int, err error) time.Duration {
	if retryAfter := extractRetryAfter(err); retryAfter > 0 && retryAfter <= r.config.MaxInterval {
		return retryAfter
	}
	return ExponentialBackoff(attempt, r.config)
}

// extractRetryAfter reads provider guidance from the error chain.
func extractRetryAfter(err error) time.Duration {
	var provider RetryAfterProvider
	if errors.As(err, &provider) {
		return provider.GetRetryAfter()
	}
	return 0
}

// ExponentialBackoff returns the delay for the given 1-based attempt:
// InitialInterval * Multiplier^(attempt-1), capped at MaxInterval, with full
// jitter when enabled. Non-positive attempts yield zero.
func ExponentialBackoff(attempt int, config configuration.RetryConfig) time.Duration {
	if attempt <= 0 {
		return 0
	}

	backoff := config.InitialInterval
	if backoff <= 0 {
		backoff = time.Millisecond
	}
	multiplier := config.Multiplier
	if multiplier < 1.0 {
		multiplier = 1.0
	}

	for i := 1; i < attempt; i++ {
		backoff = time.Duration(float64(backoff) * multiplier)
		if config.MaxInterval > 0 && backoff > config.MaxInterval {
			backoff = config.MaxInterval
			break
		}
	}

	if config.UseJitter {
		jitterMs := rand.Int64N(backoff.Milliseconds() + 1) // #nosec G404 -- non-cryptographic jitter is appropriate here
		return time.Duration(jitterMs) * time.Millisecond
	}

	return backoff
}
