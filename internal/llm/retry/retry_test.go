package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/transport"
)

func testConfig() configuration.RetryConfig {
	return configuration.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
	}
}

// newTestMiddleware records requested sleeps instead of waiting.
func newTestMiddleware(t *testing.T, cfg configuration.RetryConfig) (*Middleware, *[]time.Duration) {
	t.Helper()
	m, err := New(cfg)
	require.NoError(t, err)
	var sleeps []time.Duration
	m.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return m, &sleeps
}

// scripted returns the errors in order, then succeeds.
func scripted(calls *int, errs ...error) transport.Handler {
	return transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		*calls++
		if *calls <= len(errs) {
			return nil, errs[*calls-1]
		}
		return &transport.Response{Content: "ok"}, nil
	})
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*configuration.RetryConfig)
	}{
		{"zero attempts", func(c *configuration.RetryConfig) { c.MaxAttempts = 0 }},
		{"zero initial interval", func(c *configuration.RetryConfig) { c.InitialInterval = 0 }},
		{"max below initial", func(c *configuration.RetryConfig) { c.MaxInterval = time.Millisecond }},
		{"shrinking multiplier", func(c *configuration.RetryConfig) { c.Multiplier = 0.5 }},
		{"negative elapsed", func(c *configuration.RetryConfig) { c.MaxElapsedTime = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}

	_, err := New(testConfig())
	assert.NoError(t, err)
}

func TestRetriesTransientProviderErrors(t *testing.T) {
	m, sleeps := newTestMiddleware(t, testConfig())
	calls := 0
	h := m.Wrap(scripted(&calls,
		&llmerrors.ProviderError{Provider: "fireworks", StatusCode: 502, Type: llmerrors.ErrorTypeProvider},
		&llmerrors.ProviderError{Provider: "fireworks", StatusCode: 504, Type: llmerrors.ErrorTypeTimeout},
	))

	resp, err := h.Handle(context.Background(), &transport.Request{Provider: "fireworks"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, *sleeps)

	stats := m.Stats()
	assert.Equal(t, int64(3), stats.TotalAttempts)
	assert.Equal(t, int64(1), stats.SuccessfulRetries)
	assert.Equal(t, 20*time.Millisecond, stats.MaxBackoff)
}

func TestDoesNotRetryFallbackErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"quota", &llmerrors.ProviderError{StatusCode: 429, Type: llmerrors.ErrorTypeQuota}},
		{"overloaded", &llmerrors.ProviderError{StatusCode: 503, Type: llmerrors.ErrorTypeModelUnavailable}},
		{"auth", &llmerrors.ProviderError{StatusCode: 401, Type: llmerrors.ErrorTypeAuth}},
		{"deadline", fmt.Errorf("HTTP request failed: %w", context.DeadlineExceeded)},
		{"plain", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, sleeps := newTestMiddleware(t, testConfig())
			calls := 0
			_, err := m.Wrap(scripted(&calls, tt.err, tt.err, tt.err)).Handle(context.Background(), &transport.Request{})
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
			assert.Empty(t, *sleeps)
			assert.NotErrorIs(t, err, ErrRetriesExhausted)
		})
	}
}

func TestExhaustionWrapsLastError(t *testing.T) {
	m, _ := newTestMiddleware(t, testConfig())
	last := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	calls := 0
	_, err := m.Wrap(scripted(&calls, last, last, last, last)).Handle(context.Background(), &transport.Request{})

	require.ErrorIs(t, err, ErrRetriesExhausted)
	var opErr *net.OpError
	assert.ErrorAs(t, err, &opErr)
	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(1), m.Stats().FailedRetries)
}

func TestRetryAfterHintIsHonored(t *testing.T) {
	cfg := testConfig()
	cfg.MaxInterval = 2 * time.Second
	m, sleeps := newTestMiddleware(t, cfg)
	calls := 0
	hinted := &llmerrors.ProviderError{StatusCode: 500, Type: llmerrors.ErrorTypeProvider, RetryAfter: 1}
	_, err := m.Wrap(scripted(&calls, hinted)).Handle(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Second}, *sleeps)

	// A hint longer than MaxInterval falls back to the exponential schedule.
	m2, sleeps2 := newTestMiddleware(t, testConfig())
	calls = 0
	long := &llmerrors.ProviderError{StatusCode: 500, Type: llmerrors.ErrorTypeProvider, RetryAfter: 60}
	_, err = m2.Wrap(scripted(&calls, long)).Handle(context.Background(), &transport.Request{})
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{10 * time.Millisecond}, *sleeps2)
}

func TestCancelledContext(t *testing.T) {
	m, _ := newTestMiddleware(t, testConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := m.Wrap(scripted(&calls)).Handle(ctx, &transport.Request{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestCancelledDuringBackoff(t *testing.T) {
	m, err := New(testConfig())
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	m.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	calls := 0
	transient := &llmerrors.ProviderError{StatusCode: 500, Type: llmerrors.ErrorTypeProvider}
	_, err = m.Wrap(scripted(&calls, transient)).Handle(ctx, &transport.Request{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dns", &net.DNSError{Err: "no such host", Name: "x"}, true},
		{"reset string", errors.New("read: connection reset by peer"), true},
		{"url wrapped refused", &url.Error{Op: "Post", URL: "http://x", Err: errors.New("connection refused")}, true},
		{"workflow retryable", &llmerrors.WorkflowError{Retryable: true}, true},
		{"workflow fatal", &llmerrors.WorkflowError{Retryable: false}, false},
		{"canceled", context.Canceled, false},
		{"validation", &llmerrors.ValidationError{Message: "bad"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestExponentialBackoff(t *testing.T) {
	cfg := configuration.RetryConfig{
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
	}

	assert.Equal(t, time.Duration(0), ExponentialBackoff(0, cfg))
	assert.Equal(t, 100*time.Millisecond, ExponentialBackoff(1, cfg))
	assert.Equal(t, 200*time.Millisecond, ExponentialBackoff(2, cfg))
	assert.Equal(t, 800*time.Millisecond, ExponentialBackoff(4, cfg))
	assert.Equal(t, time.Second, ExponentialBackoff(10, cfg))

	cfg.UseJitter = true
	for range 50 {
		d := ExponentialBackoff(3, cfg)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 400*time.Millisecond)
	}
}
