package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/transport"
)

// statusOverloaded is Anthropic's non-standard "overloaded" status.
const statusOverloaded = 529

// HostedClient is a secondary backend: an OpenAI-compatible service
// (Fireworks, OpenAI) or Anthropic's messages API. OpenAI-compatible
// backends serve many models and need one named on every call.
type HostedClient struct {
	name    string
	handler transport.Handler
	config  configuration.ProviderConfig
	timeout time.Duration
}

// NewHostedClient creates a client for the named provider over handler.
func NewHostedClient(name string, cfg configuration.ProviderConfig, handler transport.Handler, timeout time.Duration) *HostedClient {
	return &HostedClient{
		name:    name,
		handler: handler,
		config:  cfg,
		timeout: timeout,
	}
}

// Name implements Client.
func (h *HostedClient) Name() string {
	return h.name
}

// ShouldFallback implements Client.
func (h *HostedClient) ShouldFallback(err error) bool {
	return llmerrors.ShouldFallback(err)
}

// Generate implements Client.
func (h *HostedClient) Generate(ctx context.Context, prompt Prompt, model string) (string, error) {
	if model == "" {
		model = h.config.Model
	}
	if model == "" && h.name != configuration.ProviderAnthropic {
		return "", &llmerrors.ValidationError{
			Field:   "model",
			Message: fmt.Sprintf("%s requires an explicit model name", h.name),
		}
	}

	resp, err := h.handler.Handle(ctx, request(ctx, h.name, model, h.config, h.timeout, prompt))
	if err != nil {
		return "", h.classify(ctx, model, err)
	}

	if strings.TrimSpace(resp.Content) == "" {
		return "", &llmerrors.APIError{
			Provider: h.name,
			Message:  "response contained no content",
			Cause:    llmerrors.ErrEmptyResponse,
		}
	}
	return resp.Content, nil
}

// classify maps a transport failure onto the fallback taxonomy.
func (h *HostedClient) classify(ctx context.Context, model string, err error) error {
	if timeoutError(ctx, err) {
		return &llmerrors.APIError{
			Provider: h.name,
			Message:  fmt.Sprintf("request timed out after %s", h.timeout),
			Timeout:  true,
			Cause:    err,
		}
	}

	if errors.Is(err, llmerrors.ErrModelRequired) {
		return &llmerrors.ValidationError{Field: "model", Message: err.Error()}
	}

	var pe *llmerrors.ProviderError
	if !errors.As(err, &pe) {
		return &llmerrors.APIError{Provider: h.name, Message: err.Error(), Cause: err}
	}

	msg := strings.ToLower(pe.Message + " " + pe.Code)
	switch {
	case pe.StatusCode == http.StatusTooManyRequests,
		pe.Type == llmerrors.ErrorTypeQuota,
		pe.Type == llmerrors.ErrorTypeRateLimit,
		strings.Contains(msg, "rate limit"):
		return &llmerrors.QuotaExhaustedError{
			Provider:   h.name,
			Message:    pe.Message,
			RetryAfter: pe.RetryAfter,
			Cause:      err,
		}
	case pe.StatusCode == http.StatusServiceUnavailable,
		pe.StatusCode == statusOverloaded,
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "loading"):
		return &llmerrors.ModelUnavailableError{Provider: h.name, Model: model, Message: pe.Message, Cause: err}
	default:
		return &llmerrors.APIError{Provider: h.name, StatusCode: pe.StatusCode, Message: pe.Message, Cause: err}
	}
}
