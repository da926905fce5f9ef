// Package retry provides transport middleware that repeats provider calls
// which failed for transient reasons. Quota exhaustion and model overload
// are left untouched so the client can switch credentials or fall back.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/transport"
)

var (
	// Configuration validation errors.
	errMaxAttemptsInvalid     = errors.New("maxAttempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initialInterval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("maxInterval must be >= initialInterval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")
	errMaxElapsedTimeInvalid  = errors.New("maxElapsedTime must be >= 0")

	// ErrRetriesExhausted wraps the last error once every attempt has failed.
	ErrRetriesExhausted = errors.New("all retries exhausted")

	errContextCancelledBeforeRetry = errors.New("context cancelled before retry")
	errContextCancelledDuringRetry = errors.New("context cancelled during retry")
)

// RetryAfterProvider is implemented by errors that carry server guidance on
// how long to wait before the next attempt.
type RetryAfterProvider interface {
	GetRetryAfter() time.Duration
}

// Middleware retries transient provider failures with exponential backoff.
type Middleware struct {
	config configuration.RetryConfig
	logger *slog.Logger
	stats  *retryStats
	sleep  func(ctx context.Context, d time.Duration) error
}

// New validates cfg and returns retry middleware.
func New(cfg configuration.RetryConfig) (*Middleware, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.InitialInterval <= 0 {
		return nil, fmt.Errorf("%w, got %v", errInitialIntervalInvalid, cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		return nil, fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v", errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	}
	if cfg.Multiplier < 1.0 {
		return nil, fmt.Errorf("%w, got %f", errMultiplierInvalid, cfg.Multiplier)
	}
	if cfg.MaxElapsedTime < 0 {
		return nil, fmt.Errorf("%w, got %v", errMaxElapsedTimeInvalid, cfg.MaxElapsedTime)
	}

	return &Middleware{
		config: cfg,
		logger: slog.Default().With("component", "retry"),
		stats:  &retryStats{},
		sleep:  sleepContext,
	}, nil
}

// Wrap implements transport.Middleware.
func (r *Middleware) Wrap(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", errContextCancelledBeforeRetry, err)
		}

		var lastErr error
		startTime := time.Now()

		for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
			resp, err := next.Handle(ctx, req)
			r.stats.totalAttempts.Add(1)

			if err == nil {
				if attempt > 1 {
					r.stats.successfulRetries.Add(1)
					r.logger.Info("request succeeded after retry",
						"attempt", attempt,
						"provider", req.Provider,
						"model", req.Model)
				} else {
					r.stats.successfulFirstAttempts.Add(1)
				}
				return resp, nil
			}

			if !IsRetryable(err) {
				if attempt > 1 {
					r.stats.failedRetries.Add(1)
				} else {
					r.stats.nonRetryable.Add(1)
				}
				return nil, err
			}
			lastErr = err

			if attempt == r.config.MaxAttempts {
				break
			}

			backoff := r.calculateBackoff(attempt, err)
			if r.config.MaxElapsedTime > 0 && time.Since(startTime)+backoff > r.config.MaxElapsedTime {
				r.logger.Warn("max elapsed time exceeded",
					"elapsed", time.Since(startTime),
					"attempts", attempt,
					"last_error", err)
				break
			}
			r.recordBackoff(backoff)

			r.logger.Debug("retrying after backoff",
				"attempt", attempt,
				"backoff", backoff,
				"error", err,
				"provider", req.Provider)

			if err := r.sleep(ctx, backoff); err != nil {
				return nil, fmt.Errorf("%w: %w", errContextCancelledDuringRetry, err)
			}
		}

		r.stats.failedRetries.Add(1)
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.config.MaxAttempts, lastErr)
	})
}

// IsRetryable reports whether err is worth repeating against the same
// provider and credential. Per-call deadline expiry is not: the client turns
// it into a fallback-eligible timeout instead.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var providerErr *llmerrors.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.IsRetryable()
	}

	var workflowErr *llmerrors.WorkflowError
	if errors.As(err, &workflowErr) {
		return workflowErr.Retryable
	}

	return isNetworkError(err)
}

// isNetworkError checks for connection-level failures using type assertions
// first and string patterns as a last resort.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var netErr net.Error
		if errors.As(urlErr.Err, &netErr) && netErr.Timeout() {
			return false
		}
		return isNetworkErrorByString(urlErr.Err.Error())
	}

	return isNetworkErrorByString(err.Error())
}

// isNetworkErrorByString checks for network errors using string patterns.
func isNetworkErrorByString(errStr string) bool {
	lowered := strings.ToLower(errStr)
	for _, indicator := range networkErrorIndicators {
		if strings.Contains(lowered, indicator) {
			return true
		}
	}
	return false
}

// networkErrorIndicators are pre-lowercased substrings of transient socket errors.
var networkErrorIndicators = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"network is unreachable",
	"unexpected eof",
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
