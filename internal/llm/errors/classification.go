package errors

import (
	"context"
	"errors"
	"strings"
)

// Classify transforms pipeline and provider errors into WorkflowError with
// retry guidance for durable executions.
// Typed errors are examined first, then sentinels, then message patterns.
func Classify(err error) *WorkflowError {
	if err == nil {
		return nil
	}

	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr
	}

	if workflowErr := classifyTypedErrors(err); workflowErr != nil {
		return workflowErr
	}

	if workflowErr := classifySentinelErrors(err); workflowErr != nil {
		return workflowErr
	}

	return classifyStringPatternErrors(err)
}

// classifyTypedErrors handles the fallback taxonomy and raw provider errors.
func classifyTypedErrors(err error) *WorkflowError {
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   valErr.Error(),
			Code:      "VALIDATION_FAILED",
			Retryable: false,
			Details:   map[string]any{"field": valErr.Field},
			Cause:     err,
		}
	}

	var quotaErr *QuotaExhaustedError
	if errors.As(err, &quotaErr) {
		return &WorkflowError{
			Type:      ErrorTypeQuota,
			Message:   quotaErr.Error(),
			Code:      "QUOTA_EXHAUSTED",
			Retryable: true,
			Details: map[string]any{
				"provider":    quotaErr.Provider,
				"retry_after": quotaErr.RetryAfter,
			},
			Cause: err,
		}
	}

	var unavailableErr *ModelUnavailableError
	if errors.As(err, &unavailableErr) {
		return &WorkflowError{
			Type:      ErrorTypeModelUnavailable,
			Message:   unavailableErr.Error(),
			Code:      "MODEL_UNAVAILABLE",
			Retryable: true,
			Details: map[string]any{
				"provider": unavailableErr.Provider,
				"model":    unavailableErr.Model,
			},
			Cause: err,
		}
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		errType := ErrorTypeAPI
		code := "API_ERROR"
		if apiErr.Timeout {
			errType = ErrorTypeTimeout
			code = "TIMEOUT"
		}
		return &WorkflowError{
			Type:      errType,
			Message:   apiErr.Error(),
			Code:      code,
			Retryable: apiErr.Timeout || apiErr.StatusCode >= 500,
			Details: map[string]any{
				"provider":    apiErr.Provider,
				"status_code": apiErr.StatusCode,
			},
			Cause: err,
		}
	}

	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return &WorkflowError{
			Type:      ErrorTypeAgent,
			Message:   agentErr.Error(),
			Code:      "AGENT_ERROR",
			Retryable: false,
			Details:   map[string]any{"provider": agentErr.Provider},
			Cause:     err,
		}
	}

	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return &WorkflowError{
			Type:      providerErr.Type,
			Message:   providerErr.Message,
			Code:      providerErr.Code,
			Retryable: providerErr.IsRetryable(),
			Details: map[string]any{
				"provider":    providerErr.Provider,
				"status_code": providerErr.StatusCode,
			},
			Cause: err,
		}
	}

	return nil
}

// classifySentinelErrors handles sentinel errors using errors.Is.
func classifySentinelErrors(err error) *WorkflowError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &WorkflowError{
			Type:      ErrorTypeTimeout,
			Message:   err.Error(),
			Code:      "TIMEOUT",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, context.Canceled):
		return &WorkflowError{
			Type:      ErrorTypeUnknown,
			Message:   err.Error(),
			Code:      "CANCELED",
			Retryable: false,
			Cause:     err,
		}
	case errors.Is(err, ErrFallbackExhausted):
		return &WorkflowError{
			Type:      ErrorTypeProvider,
			Message:   err.Error(),
			Code:      "FALLBACK_EXHAUSTED",
			Retryable: true,
			Cause:     err,
		}
	case errors.Is(err, ErrUnknownProvider), errors.Is(err, ErrModelRequired):
		return &WorkflowError{
			Type:      ErrorTypeValidation,
			Message:   err.Error(),
			Code:      "CONFIGURATION",
			Retryable: false,
			Cause:     err,
		}
	}

	return nil
}

// classifyStringPatternErrors handles untyped error classification.
func classifyStringPatternErrors(err error) *WorkflowError {
	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "quota") || strings.Contains(errMsg, "resource_exhausted"):
		return &WorkflowError{
			Type:      ErrorTypeQuota,
			Message:   "Quota exhausted",
			Code:      "QUOTA_EXHAUSTED",
			Retryable: true,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "rate limit"):
		return &WorkflowError{
			Type:      ErrorTypeRateLimit,
			Message:   "Rate limit exceeded",
			Code:      "RATE_LIMIT",
			Retryable: true,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline"):
		return &WorkflowError{
			Type:      ErrorTypeTimeout,
			Message:   "Request timeout",
			Code:      "TIMEOUT",
			Retryable: true,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "unauthorized") || strings.Contains(errMsg, "authentication"):
		return &WorkflowError{
			Type:      ErrorTypeAuth,
			Message:   "Authentication failed",
			Code:      "AUTH_FAILED",
			Retryable: false,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	case strings.Contains(errMsg, "network") || strings.Contains(errMsg, "connection"):
		return &WorkflowError{
			Type:      ErrorTypeNetwork,
			Message:   "Network error",
			Code:      "NETWORK_ERROR",
			Retryable: true,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	default:
		return &WorkflowError{
			Type:      ErrorTypeUnknown,
			Message:   "Unknown error",
			Code:      "UNKNOWN",
			Retryable: false,
			Details:   map[string]any{"original_error": err.Error()},
			Cause:     err,
		}
	}
}
