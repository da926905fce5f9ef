package retry

import (
	"sync/atomic"
	"time"
)

// retryStats provides thread-safe retry counters.
type retryStats struct {
	totalAttempts           atomic.Int64 // Every call to the wrapped handler
	successfulRetries       atomic.Int64 // Requests that succeeded after retry
	failedRetries           atomic.Int64 // Requests that failed after retrying
	successfulFirstAttempts atomic.Int64 // Requests that succeeded on first attempt
	nonRetryable            atomic.Int64 // First-attempt failures not eligible for retry
	maxBackoff              atomic.Int64 // Maximum backoff duration in nanoseconds
}

// Stats is a snapshot of retry middleware activity.
type Stats struct {
	TotalAttempts     int64         `json:"total_attempts"`
	SuccessfulRetries int64         `json:"successful_retries"`
	FailedRetries     int64         `json:"failed_retries"`
	NonRetryable      int64         `json:"non_retryable"`
	AverageAttempts   float64       `json:"average_attempts"`
	MaxBackoff        time.Duration `json:"max_backoff"`
}

// recordBackoff keeps the largest backoff seen.
func (r *Middleware) recordBackoff(backoff time.Duration) {
	backoffNanos := backoff.Nanoseconds()
	for {
		current := r.stats.maxBackoff.Load()
		if backoffNanos <= current {
			break
		}
		if r.stats.maxBackoff.CompareAndSwap(current, backoffNanos) {
			break
		}
	}
}

// Stats returns a snapshot of the counters.
func (r *Middleware) Stats() Stats {
	totalAttempts := r.stats.totalAttempts.Load()
	successfulRetries := r.stats.successfulRetries.Load()
	failedRetries := r.stats.failedRetries.Load()
	firstAttempts := r.stats.successfulFirstAttempts.Load()
	nonRetryable := r.stats.nonRetryable.Load()

	averageAttempts := 1.0
	if totalRequests := firstAttempts + successfulRetries + failedRetries + nonRetryable; totalRequests > 0 {
		averageAttempts = float64(totalAttempts) / float64(totalRequests)
	}

	return Stats{
		TotalAttempts:     totalAttempts,
		SuccessfulRetries: successfulRetries,
		FailedRetries:     failedRetries,
		NonRetryable:      nonRetryable,
		AverageAttempts:   averageAttempts,
		MaxBackoff:        time.Duration(r.stats.maxBackoff.Load()),
	}
}
