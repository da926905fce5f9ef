package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/transport"
)

// MaintenanceMessage is returned in place of an error once every Gemini
// credential has run out of quota.
const MaintenanceMessage = "⚠️ **System Under Maintenance** ⚠️\n\n" +
	"Our servers have reached their maximum daily capacity. " +
	"Ada will be back to normal operation from 06:00 a.m.\n\n" +
	"*Regards, Ada Maintenance*"

const maintenanceMarker = "maximum daily capacity"

// IsMaintenanceText reports whether text carries the maintenance message,
// whole or in part, so callers can avoid caching it.
func IsMaintenanceText(text string) bool {
	return strings.Contains(text, maintenanceMarker)
}

// GeminiClient is the primary client. It holds two credentials and moves to
// the secondary one the first time the primary reports exhausted quota; the
// switch lasts for the client's lifetime.
type GeminiClient struct {
	handler      transport.Handler
	config       configuration.ProviderConfig
	timeout      time.Duration
	useSecondary atomic.Bool
	logger       *slog.Logger
}

// NewGeminiClient creates a Gemini client over handler.
func NewGeminiClient(cfg configuration.ProviderConfig, handler transport.Handler, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		handler: handler,
		config:  cfg,
		timeout: timeout,
		logger:  slog.Default().With("component", "gemini"),
	}
}

// Name implements Client.
func (g *GeminiClient) Name() string {
	return configuration.ProviderGoogle
}

// UsingSecondaryKey reports whether the client has switched credentials.
func (g *GeminiClient) UsingSecondaryKey() bool {
	return g.useSecondary.Load()
}

// ShouldFallback implements Client.
func (g *GeminiClient) ShouldFallback(err error) bool {
	return llmerrors.ShouldFallback(err)
}

// Generate implements Client. Quota exhaustion never surfaces as an error:
// the client either recovers on the secondary key or answers with
// MaintenanceMessage.
func (g *GeminiClient) Generate(ctx context.Context, prompt Prompt, model string) (string, error) {
	if model == "" {
		model = g.config.Model
	}

	onSecondary := g.useSecondary.Load()
	key := g.config.APIKey
	if onSecondary {
		key = g.config.SecondaryAPIKey
	}

	text, err := g.call(ctx, prompt, model, key)
	if err == nil {
		return text, nil
	}

	var quotaErr *llmerrors.QuotaExhaustedError
	if !errors.As(err, &quotaErr) {
		return "", err
	}

	if onSecondary || g.config.SecondaryAPIKey == "" {
		g.logger.Warn("quota exhausted with no spare credential", "model", model, "error", err)
		return MaintenanceMessage, nil
	}

	if g.useSecondary.CompareAndSwap(false, true) {
		g.logger.Warn("quota exhausted on primary key, switching to secondary key", "model", model)
	}
	text, err = g.call(ctx, prompt, model, g.config.SecondaryAPIKey)
	if err != nil {
		g.logger.Error("secondary key failed after quota switch", "model", model, "error", err)
		return MaintenanceMessage, nil
	}
	return text, nil
}

func (g *GeminiClient) call(ctx context.Context, prompt Prompt, model, apiKey string) (string, error) {
	req := request(ctx, configuration.ProviderGoogle, model, g.config, g.timeout, prompt)
	req.APIKey = apiKey

	resp, err := g.handler.Handle(ctx, req)
	if err != nil {
		return "", g.classify(ctx, model, err)
	}

	if resp.FinishReason == transport.FinishContentFilter {
		return "", &llmerrors.APIError{
			Provider: g.Name(),
			Message:  "response blocked by safety filter",
			Cause:    llmerrors.ErrContentBlocked,
		}
	}
	if strings.TrimSpace(resp.Content) == "" {
		return "", &llmerrors.APIError{
			Provider: g.Name(),
			Message:  "response contained no content parts",
			Cause:    llmerrors.ErrEmptyResponse,
		}
	}
	return resp.Content, nil
}

// classify maps a transport failure onto the fallback taxonomy.
func (g *GeminiClient) classify(ctx context.Context, model string, err error) error {
	name := g.Name()

	if timeoutError(ctx, err) {
		return &llmerrors.APIError{
			Provider: name,
			Message:  fmt.Sprintf("request timed out after %s", g.timeout),
			Timeout:  true,
			Cause:    err,
		}
	}

	var pe *llmerrors.ProviderError
	if errors.As(err, &pe) {
		msg := strings.ToLower(pe.Message + " " + pe.Code)
		switch {
		case pe.Type == llmerrors.ErrorTypeQuota,
			pe.StatusCode == http.StatusTooManyRequests,
			strings.Contains(msg, "quota"),
			strings.Contains(msg, "resource_exhausted"):
			return &llmerrors.QuotaExhaustedError{
				Provider:   name,
				Message:    pe.Message,
				RetryAfter: pe.RetryAfter,
				Cause:      err,
			}
		case pe.StatusCode == http.StatusUnauthorized, pe.StatusCode == http.StatusForbidden:
			return &llmerrors.APIError{Provider: name, StatusCode: pe.StatusCode, Message: pe.Message, Cause: err}
		case pe.Type == llmerrors.ErrorTypeModelUnavailable, strings.Contains(msg, "overloaded"):
			return &llmerrors.ModelUnavailableError{Provider: name, Model: model, Message: pe.Message, Cause: err}
		default:
			return &llmerrors.APIError{Provider: name, StatusCode: pe.StatusCode, Message: pe.Message, Cause: err}
		}
	}

	if strings.Contains(strings.ToLower(err.Error()), "quota") {
		return &llmerrors.QuotaExhaustedError{Provider: name, Message: err.Error(), Cause: err}
	}

	return &llmerrors.AgentError{Provider: name, Message: err.Error(), Cause: err}
}
