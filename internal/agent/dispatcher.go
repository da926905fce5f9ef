package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ada-assist/ada/internal/llm"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
)

// User-facing messages for the failures callers most often see.
const (
	msgTimeout   = "The request took too long to answer. Please try again."
	msgBusy      = "I am receiving too many questions right now. Please wait a minute and try again."
	msgExhausted = "All available models failed. Please try again later."
)

// Generator produces text for a prompt and names the provider that
// answered. *llm.Coordinator implements it.
type Generator interface {
	Generate(ctx context.Context, prompt llm.Prompt) (text, provider string, err error)
}

// Dispatcher implements Capability over a Generator.
type Dispatcher struct {
	generator    Generator
	instructions map[ID]string
	logger       *slog.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithInstructions overrides the standing prompt for one agent.
func WithInstructions(id ID, text string) DispatcherOption {
	return func(d *Dispatcher) { d.instructions[id] = text }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = l.With("component", "agent") }
}

// NewDispatcher creates a dispatcher using the built-in instructions.
func NewDispatcher(generator Generator, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		generator:    generator,
		instructions: make(map[ID]string, len(instructions)),
		logger:       slog.Default().With("component", "agent"),
	}
	for id, text := range instructions {
		d.instructions[id] = text
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Invoke implements Capability.
func (d *Dispatcher) Invoke(ctx context.Context, id ID, prompt, sessionHint string) (string, error) {
	if !id.Valid() {
		return fmt.Sprintf("Error: agent '%s' not found.", id), nil
	}

	if sessionHint == "" {
		sessionHint = string(id)
	}
	session := sessionHint + "-" + uuid.NewString()
	start := time.Now()

	text, provider, err := d.generator.Generate(llm.WithAgent(ctx, string(id)), llm.Prompt{
		Instructions: d.instructions[id],
		Text:         prompt,
	})
	if err != nil {
		d.logger.Warn("agent call failed",
			"agent", id,
			"session", session,
			"duration", time.Since(start),
			"error", err)
		return "", userFacing(err)
	}

	d.logger.Info("agent call succeeded",
		"agent", id,
		"session", session,
		"provider", provider,
		"duration", time.Since(start))
	return text, nil
}

// userFacing replaces the provider detail of common failures with a message
// fit for end users. The original error stays reachable through Unwrap.
func userFacing(err error) error {
	var apiErr *llmerrors.APIError
	var quota *llmerrors.QuotaExhaustedError

	switch {
	case errors.Is(err, llmerrors.ErrFallbackExhausted):
		return &llmerrors.APIError{Message: msgExhausted, Cause: err}
	case errors.As(err, &apiErr) && apiErr.Timeout:
		return &llmerrors.APIError{Provider: apiErr.Provider, Message: msgTimeout, Timeout: true, Cause: err}
	case errors.As(err, &quota):
		return &llmerrors.APIError{Provider: quota.Provider, Message: msgBusy, Cause: err}
	default:
		return err
	}
}
