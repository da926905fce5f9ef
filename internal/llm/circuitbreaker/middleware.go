package circuitbreaker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/transport"
)

// CodeCircuitOpen marks errors produced by an open or saturated breaker.
const CodeCircuitOpen = "CIRCUIT_OPEN"

type options struct {
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	halfOpenProbes   int
	now              func() time.Time
	logger           *slog.Logger
}

// Option customizes the middleware.
type Option func(*options)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Middleware keeps one breaker per provider:model pair.
type Middleware struct {
	mu       sync.Mutex
	breakers map[string]*breaker
	opts     options
}

// New returns breaker middleware. Zero values in cfg fall back to the
// package defaults.
func New(cfg configuration.CircuitBreakerConfig, opts ...Option) *Middleware {
	o := options{
		failureThreshold: orDefault(cfg.FailureThreshold, configuration.DefaultFailureThreshold),
		successThreshold: orDefault(cfg.SuccessThreshold, configuration.DefaultSuccessThreshold),
		openTimeout:      cfg.OpenTimeout,
		halfOpenProbes:   orDefault(cfg.HalfOpenProbes, configuration.DefaultHalfOpenProbes),
		now:              time.Now,
		logger:           slog.Default().With("component", "circuit_breaker"),
	}
	if o.openTimeout <= 0 {
		o.openTimeout = configuration.DefaultOpenTimeout
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Middleware{breakers: make(map[string]*breaker), opts: o}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Wrap implements transport.Middleware.
func (m *Middleware) Wrap(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		b := m.breaker(req.Provider, req.Model)

		release, ok := b.allow()
		if !ok {
			m.opts.logger.Debug("request rejected by circuit breaker",
				"provider", req.Provider,
				"model", req.Model,
				"request_id", req.RequestID)
			return nil, &llmerrors.ProviderError{
				Provider:   req.Provider,
				StatusCode: http.StatusServiceUnavailable,
				Code:       CodeCircuitOpen,
				Message:    "circuit breaker is open",
				Type:       llmerrors.ErrorTypeModelUnavailable,
			}
		}
		defer release()

		resp, err := next.Handle(ctx, req)
		switch {
		case err == nil:
			b.recordSuccess()
		case countsAsFailure(err):
			b.recordFailure()
		}
		return resp, err
	})
}

// State reports the breaker state for a provider and model. Pairs that
// have never been called are closed.
func (m *Middleware) State(provider, model string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[key(provider, model)]; ok {
		return b.currentState()
	}
	return StateClosed
}

func (m *Middleware) breaker(provider, model string) *breaker {
	k := key(provider, model)
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[k]
	if !ok {
		b = newBreaker(k, m.opts)
		m.breakers[k] = b
	}
	return b
}

func key(provider, model string) string {
	return provider + ":" + model
}

// countsAsFailure reports whether err says something about the model's
// health. Caller mistakes, quota and cancellation do not.
func countsAsFailure(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var pe *llmerrors.ProviderError
	if !errors.As(err, &pe) {
		return true
	}
	switch pe.Type {
	case llmerrors.ErrorTypeTimeout,
		llmerrors.ErrorTypeNetwork,
		llmerrors.ErrorTypeProvider,
		llmerrors.ErrorTypeModelUnavailable:
		return true
	case llmerrors.ErrorTypeUnknown:
		return pe.StatusCode >= http.StatusInternalServerError
	default:
		return false
	}
}
