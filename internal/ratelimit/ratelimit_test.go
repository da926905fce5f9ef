package ratelimit_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ada-assist/ada/internal/llm/configuration"
	"github.com/ada-assist/ada/internal/ratelimit"
)

func TestCheckEnforcesBurstPerKey(t *testing.T) {
	l := ratelimit.New(configuration.RateLimitConfig{Enabled: true, RequestsPerMinute: 3})

	for i := range 3 {
		require.NoError(t, l.Check("10.0.0.1"), "request %d", i)
	}

	err := l.Check("10.0.0.1")
	var exceeded *ratelimit.ExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "10.0.0.1", exceeded.Key)
	assert.Equal(t, 3, exceeded.Limit)
	assert.GreaterOrEqual(t, exceeded.RetryAfter, time.Second)
	assert.Contains(t, err.Error(), "3 requests per minute")

	// Other clients have their own bucket.
	assert.NoError(t, l.Check("10.0.0.2"))
	assert.Equal(t, 2, l.Len())
}

func TestRejectedRequestsDoNotConsumeTokens(t *testing.T) {
	l := ratelimit.New(configuration.RateLimitConfig{Enabled: true, RequestsPerMinute: 60, Burst: 1})

	require.NoError(t, l.Check("k"))

	var first, second *ratelimit.ExceededError
	require.ErrorAs(t, l.Check("k"), &first)
	require.ErrorAs(t, l.Check("k"), &second)

	// One token per second: repeated rejections must not push the wait out.
	assert.Equal(t, time.Second, first.RetryAfter)
	assert.Equal(t, time.Second, second.RetryAfter)
}

func TestDisabledLimiterAdmitsEverything(t *testing.T) {
	tests := []struct {
		name string
		cfg  configuration.RateLimitConfig
	}{
		{"disabled", configuration.RateLimitConfig{Enabled: false, RequestsPerMinute: 1}},
		{"zero rate", configuration.RateLimitConfig{Enabled: true, RequestsPerMinute: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ratelimit.New(tt.cfg)
			assert.False(t, l.Enabled())
			for range 20 {
				require.NoError(t, l.Check("k"))
			}
			assert.Zero(t, l.Len())
		})
	}
}

func TestCleanupStale(t *testing.T) {
	l := ratelimit.New(configuration.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 60,
		Burst:             1,
		IdleTTL:           time.Minute,
	})

	require.NoError(t, l.Check("a"))
	require.NoError(t, l.Check("b"))

	assert.Zero(t, l.CleanupStale(time.Now()))
	assert.Equal(t, 2, l.CleanupStale(time.Now().Add(2*time.Minute)))
	assert.Zero(t, l.Len())
}

func TestCleanupWaitsForRefill(t *testing.T) {
	// 10 per minute with burst 10 needs a minute to refill, longer than IdleTTL.
	l := ratelimit.New(configuration.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 10,
		IdleTTL:           time.Second,
	})
	require.NoError(t, l.Check("a"))

	assert.Zero(t, l.CleanupStale(time.Now().Add(30*time.Second)))
	assert.Equal(t, 1, l.CleanupStale(time.Now().Add(2*time.Minute)))
}

func TestStartStopIdempotent(t *testing.T) {
	l := ratelimit.New(configuration.RateLimitConfig{Enabled: true, RequestsPerMinute: 10})
	l.Start()
	l.Start()
	l.Stop()
	l.Stop()
	l.Start()
	l.Stop()
}

func TestConcurrentCheck(t *testing.T) {
	l := ratelimit.New(configuration.RateLimitConfig{Enabled: true, RequestsPerMinute: 50})

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("shared") == nil {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	// The burst bounds admissions; refill during the test adds at most a few.
	assert.GreaterOrEqual(t, allowed.Load(), int64(50))
	assert.LessOrEqual(t, allowed.Load(), int64(52))
}
