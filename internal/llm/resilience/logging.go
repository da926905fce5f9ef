// Package resilience holds observability middleware for provider calls.
package resilience

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/transport"
)

// ContentTruncationLimit caps the response preview written to logs.
const ContentTruncationLimit = 200

// LoggingMiddleware writes one structured record when a provider call starts
// and one when it ends. Prompt and response bodies are replaced by their
// lengths when redaction is on.
type LoggingMiddleware struct {
	logger        *slog.Logger
	redactPrompts bool
}

// NewLoggingMiddleware creates logging middleware. A nil logger falls back to
// slog.Default.
func NewLoggingMiddleware(config configuration.ObservabilityConfig, logger *slog.Logger) *LoggingMiddleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingMiddleware{
		logger:        logger.With("component", "llm"),
		redactPrompts: config.RedactPrompts,
	}
}

// Wrap implements transport.Middleware. Requests without an ID get a fresh
// UUID so adapters and logs share one correlation key.
func (m *LoggingMiddleware) Wrap(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		if req.RequestID == "" {
			req.RequestID = uuid.New().String()
		}

		m.logRequest(ctx, req)

		start := time.Now()
		resp, err := next.Handle(ctx, req)
		duration := time.Since(start)

		if err != nil {
			m.logError(ctx, req, err, duration)
		} else if resp != nil {
			m.logSuccess(ctx, req, resp, duration)
		}

		return resp, err
	})
}

func (m *LoggingMiddleware) logRequest(ctx context.Context, req *transport.Request) {
	fields := []any{
		"request_id", req.RequestID,
		"provider", req.Provider,
		"model", req.Model,
		"agent", req.Agent,
		"max_tokens", req.MaxTokens,
		"timeout_seconds", req.Timeout.Seconds(),
	}

	if m.redactPrompts {
		fields = append(fields,
			"prompt_length", len(req.Prompt),
			"system_prompt_length", len(req.SystemPrompt))
	} else {
		fields = append(fields,
			"prompt", req.Prompt,
			"system_prompt", req.SystemPrompt)
	}

	m.logger.InfoContext(ctx, "LLM request started", fields...)
}

func (m *LoggingMiddleware) logError(ctx context.Context, req *transport.Request, err error, duration time.Duration) {
	errorType := string(llmerrors.ErrorTypeUnknown)
	if wfErr := llmerrors.Classify(err); wfErr != nil {
		errorType = string(wfErr.Type)
	}

	m.logger.ErrorContext(ctx, "LLM request failed",
		"request_id", req.RequestID,
		"provider", req.Provider,
		"model", req.Model,
		"agent", req.Agent,
		"duration_ms", duration.Milliseconds(),
		"error_type", errorType,
		"error", err.Error(),
	)
}

func (m *LoggingMiddleware) logSuccess(ctx context.Context, req *transport.Request, resp *transport.Response, duration time.Duration) {
	fields := []any{
		"request_id", req.RequestID,
		"provider", req.Provider,
		"model", req.Model,
		"agent", req.Agent,
		"duration_ms", duration.Milliseconds(),
		"finish_reason", resp.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"provider_request_ids", strings.Join(resp.ProviderRequestIDs, ","),
	}

	if m.redactPrompts {
		fields = append(fields, "response_length", len(resp.Content))
	} else {
		content := resp.Content
		if len(content) > ContentTruncationLimit {
			content = content[:ContentTruncationLimit] + "..."
		}
		fields = append(fields, "response_preview", content)
	}

	m.logger.InfoContext(ctx, "LLM request completed", fields...)
}
