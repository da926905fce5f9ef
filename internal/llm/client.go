// Package llm turns an agent prompt into text from a remote model. A Client
// wraps one backend and classifies its failures; the Coordinator drives the
// primary client and walks the fallback targets when the primary fails in a
// fallback-eligible way.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ada-assist/ada/internal/llm/circuitbreaker"
	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/providers"
	"github.com/ada-assist/ada/internal/llm/resilience"
	"github.com/ada-assist/ada/internal/llm/retry"
	"github.com/ada-assist/ada/internal/llm/transport"
)

// Connection pool settings for the shared HTTP transport.
const (
	defaultMaxIdleConns    = 100
	defaultIdleConnTimeout = 90 * time.Second
	defaultTLSTimeout      = 10 * time.Second
)

// Prompt is one agent call: the agent's standing instructions and the text
// it should work on.
type Prompt struct {
	Instructions string
	Text         string
}

// Client generates text from one remote backend.
type Client interface {
	// Generate runs prompt against model. An empty model selects the
	// client's configured default.
	Generate(ctx context.Context, prompt Prompt, model string) (string, error)

	// ShouldFallback reports whether err may be retried on another
	// credential, model or provider.
	ShouldFallback(err error) bool

	// Name is the provider's display name.
	Name() string
}

type agentKey struct{}

// WithAgent tags ctx with the agent issuing the call so provider logs can
// attribute it.
func WithAgent(ctx context.Context, agent string) context.Context {
	return context.WithValue(ctx, agentKey{}, agent)
}

// AgentFrom returns the agent set by WithAgent, or "".
func AgentFrom(ctx context.Context) string {
	agent, _ := ctx.Value(agentKey{}).(string)
	return agent
}

// NewHandler assembles the transport pipeline shared by every client:
// logging outermost, then the circuit breaker, then retry, then the HTTP core.
func NewHandler(cfg *configuration.Config, logger *slog.Logger) (transport.Handler, error) {
	h, _, err := newHandler(cfg, logger)
	return h, err
}

// newHandler also returns the retry middleware so its counters can be
// reported.
func newHandler(cfg *configuration.Config, logger *slog.Logger) (transport.Handler, *retry.Middleware, error) {
	if logger == nil {
		logger = slog.Default()
	}
	router, err := providers.NewRouter(cfg.Providers)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize router: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          defaultMaxIdleConns,
				IdleConnTimeout:       defaultIdleConnTimeout,
				TLSHandshakeTimeout:   defaultTLSTimeout,
				ExpectContinueTimeout: time.Second,
			},
		}
	}

	retryMiddleware, err := retry.New(cfg.Retry)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize retry middleware: %w", err)
	}
	logging := resilience.NewLoggingMiddleware(cfg.Observability, logger)

	// Outermost first: the breaker sees one outcome per retried call.
	middlewares := []transport.Middleware{logging.Wrap}
	if cfg.CircuitBreaker.Enabled {
		breakers := circuitbreaker.New(cfg.CircuitBreaker,
			circuitbreaker.WithLogger(logger.With("component", "circuit_breaker")))
		middlewares = append(middlewares, breakers.Wrap)
	}
	middlewares = append(middlewares, retryMiddleware.Wrap)

	return transport.Chain(transport.NewHTTPHandler(httpClient, router), middlewares...), retryMiddleware, nil
}

// NewClient builds the client for the named provider.
func NewClient(name string, pc configuration.ProviderConfig, handler transport.Handler, timeout time.Duration) (Client, error) {
	if pc.Timeout > 0 {
		timeout = pc.Timeout
	}
	switch name {
	case configuration.ProviderGoogle:
		return NewGeminiClient(pc, handler, timeout), nil
	case configuration.ProviderFireworks, configuration.ProviderOpenAI, configuration.ProviderAnthropic:
		return NewHostedClient(name, pc, handler, timeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
	}
}

// ErrPrimaryNotConfigured is returned when the primary provider has no key.
var ErrPrimaryNotConfigured = errors.New("primary provider has no API key")

// NewCoordinatorFromConfig wires the primary client and every fallback
// provider that has credentials. Fallback providers without a key are
// skipped with a warning.
func NewCoordinatorFromConfig(cfg *configuration.Config, recorder FallbackRecorder, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}

	primaryCfg := cfg.Providers[cfg.Primary]
	if !primaryCfg.Configured() {
		return nil, fmt.Errorf("%w: %s", ErrPrimaryNotConfigured, cfg.Primary)
	}

	handler, retries, err := newHandler(cfg, logger)
	if err != nil {
		return nil, err
	}

	primary, err := NewClient(cfg.Primary, primaryCfg, handler, cfg.HTTPTimeout)
	if err != nil {
		return nil, err
	}

	var targets []Target
	for _, name := range cfg.Fallback.Providers {
		pc := cfg.Providers[name]
		if !pc.Configured() {
			logger.Warn("skipping fallback provider without API key", "provider", name)
			continue
		}
		client, err := NewClient(name, pc, handler, cfg.HTTPTimeout)
		if err != nil {
			return nil, err
		}
		targets = append(targets, Target{Client: client, Models: targetModels(pc)})
	}

	opts := []CoordinatorOption{WithLogger(logger), withRetries(retries)}
	if recorder != nil {
		opts = append(opts, WithFallbackRecorder(recorder))
	}
	if !cfg.Fallback.Enabled {
		opts = append(opts, WithFallbackDisabled())
	}

	return NewCoordinator(Target{Client: primary, Models: targetModels(primaryCfg)}, targets, opts...), nil
}

// targetModels lists the models a target walks: the configured list, else
// the single default model, else none (client default).
func targetModels(pc configuration.ProviderConfig) []string {
	if len(pc.Models) > 0 {
		return pc.Models
	}
	if pc.Model != "" {
		return []string{pc.Model}
	}
	return nil
}

// request builds the transport request shared by every client.
func request(ctx context.Context, provider, model string, pc configuration.ProviderConfig, timeout time.Duration, prompt Prompt) *transport.Request {
	maxTokens := pc.MaxTokens
	if maxTokens <= 0 {
		maxTokens = configuration.DefaultMaxTokens
	}
	return &transport.Request{
		Provider:     provider,
		Model:        model,
		Prompt:       prompt.Text,
		SystemPrompt: prompt.Instructions,
		MaxTokens:    maxTokens,
		Temperature:  pc.Temperature,
		Timeout:      timeout,
		Agent:        AgentFrom(ctx),
	}
}

// timeoutError reports whether err is the per-call deadline expiring while
// the caller's own context is still live.
func timeoutError(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
}
