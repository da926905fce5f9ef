package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/retry"
)

// FallbackRecorder receives one event each time the coordinator leaves the
// primary provider.
type FallbackRecorder interface {
	RecordFallback(provider string)
}

// Target is a client plus the models to try on it, in order. An empty
// Models list means one attempt with the client's default model.
type Target struct {
	Client Client
	Models []string
}

func (t Target) models() []string {
	if len(t.Models) == 0 {
		return []string{""}
	}
	return t.Models
}

// Coordinator calls the primary target and, on a fallback-eligible failure,
// walks the fallback targets in order until one answers.
type Coordinator struct {
	primary   Target
	fallbacks []Target
	enabled   bool
	recorder  FallbackRecorder
	retries   *retry.Middleware
	logger    *slog.Logger
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithFallbackRecorder sets the recorder notified on fallback.
func WithFallbackRecorder(r FallbackRecorder) CoordinatorOption {
	return func(c *Coordinator) { c.recorder = r }
}

// WithFallbackDisabled turns the fallback walk off; primary failures are
// returned wrapped in an APIError.
func WithFallbackDisabled() CoordinatorOption {
	return func(c *Coordinator) { c.enabled = false }
}

func withRetries(m *retry.Middleware) CoordinatorOption {
	return func(c *Coordinator) { c.retries = m }
}

// RetryStats reports the transport retry counters. Coordinators built
// without NewCoordinatorFromConfig have none and report zero values.
func (c *Coordinator) RetryStats() retry.Stats {
	if c.retries == nil {
		return retry.Stats{}
	}
	return c.retries.Stats()
}

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l.With("component", "fallback") }
}

// NewCoordinator creates a coordinator. Only the first of primary.Models is
// used.
func NewCoordinator(primary Target, fallbacks []Target, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		primary:   primary,
		fallbacks: fallbacks,
		enabled:   true,
		logger:    slog.Default().With("component", "fallback"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate returns the text and a "<provider> (<model>)" label naming who
// produced it. A failure that is not fallback-eligible, from the primary or
// from any fallback, is returned unchanged and ends the walk.
func (c *Coordinator) Generate(ctx context.Context, prompt Prompt) (string, string, error) {
	primary := c.primary.Client
	model := c.primary.models()[0]

	text, err := primary.Generate(ctx, prompt, model)
	if err == nil {
		return text, label(primary.Name(), model), nil
	}

	if !primary.ShouldFallback(err) {
		return "", "", err
	}

	if !c.enabled || len(c.fallbacks) == 0 {
		return "", "", &llmerrors.APIError{
			Provider: primary.Name(),
			Message:  fmt.Sprintf("primary provider failed and no fallback is available: %v", err),
			Cause:    errors.Join(llmerrors.ErrFallbackDisabled, err),
		}
	}

	if c.recorder != nil {
		c.recorder.RecordFallback(primary.Name())
	}
	c.logger.Warn("primary provider failed, trying fallbacks",
		"provider", primary.Name(),
		"model", model,
		"error", err)

	attempted := make([]string, 0, len(c.fallbacks))
	errs := []error{llmerrors.ErrFallbackExhausted, err}

	for _, target := range c.fallbacks {
		client := target.Client
		for _, m := range target.models() {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", "", &llmerrors.APIError{
					Message: fmt.Sprintf("fallback interrupted after %s", strings.Join(attempted, ", ")),
					Cause:   ctxErr,
				}
			}

			attempted = append(attempted, attemptName(client.Name(), m))
			text, err := client.Generate(ctx, prompt, m)
			if err == nil {
				c.logger.Info("fallback provider succeeded", "provider", client.Name(), "model", m)
				return text, label(client.Name(), m), nil
			}

			if !client.ShouldFallback(err) {
				c.logger.Warn("fallback provider failed with a non-recoverable error",
					"provider", client.Name(),
					"model", m,
					"error", err)
				return "", "", err
			}
			errs = append(errs, err)
			c.logger.Warn("fallback attempt failed", "provider", client.Name(), "model", m, "error", err)
		}
	}

	return "", "", &llmerrors.APIError{
		Message: fmt.Sprintf("all fallback providers failed (attempted: %s)", strings.Join(attempted, ", ")),
		Cause:   errors.Join(errs...),
	}
}

func label(name, model string) string {
	if model == "" {
		return name
	}
	return fmt.Sprintf("%s (%s)", name, model)
}

func attemptName(name, model string) string {
	if model == "" {
		return name
	}
	return name + "/" + model
}
