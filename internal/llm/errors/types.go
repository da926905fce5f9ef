package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorType categorizes provider and pipeline failures.
// Types drive fallback eligibility at the provider layer and retry guidance
// for durable executions.
type ErrorType string

const (
	// ErrorTypeValidation indicates bad input shape (fatal, surfaced to caller).
	ErrorTypeValidation ErrorType = "validation_failed"

	// ErrorTypeAPI indicates a remote call failed in a classified way.
	ErrorTypeAPI ErrorType = "api_error"

	// ErrorTypeAgent indicates an unexpected, unclassified failure (fatal).
	ErrorTypeAgent ErrorType = "agent_error"

	// ErrorTypeQuota indicates quota or rate limit exhaustion (fallback-eligible).
	ErrorTypeQuota ErrorType = "quota_exhausted"

	// ErrorTypeModelUnavailable indicates an overloaded or loading model (fallback-eligible).
	ErrorTypeModelUnavailable ErrorType = "model_unavailable"

	// ErrorTypeTimeout indicates request timeout or deadline exceeded.
	ErrorTypeTimeout ErrorType = "timeout"

	// ErrorTypeRateLimit indicates a provider rate limit response.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeNetwork indicates network connectivity issues (retryable).
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeProvider indicates provider service unavailable.
	ErrorTypeProvider ErrorType = "provider_unavailable"

	// ErrorTypeContent indicates content blocked by safety filters.
	ErrorTypeContent ErrorType = "content_filtered"

	// ErrorTypeAuth indicates authentication failed (non-retryable).
	ErrorTypeAuth ErrorType = "authentication"

	// ErrorTypePermission indicates insufficient permissions (non-retryable).
	ErrorTypePermission ErrorType = "permission_denied"

	// ErrorTypeUnknown indicates an unclassified error.
	ErrorTypeUnknown ErrorType = "unknown"
)

// Common errors shared by providers and the fallback coordinator.
var (
	// ErrUnknownProvider indicates an unknown or unsupported provider.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrModelRequired indicates a provider needs an explicit model name.
	ErrModelRequired = errors.New("model is required")

	// ErrEmptyResponse indicates the provider returned no usable content.
	ErrEmptyResponse = errors.New("empty provider response")

	// ErrContentBlocked indicates the provider blocked the response for safety.
	ErrContentBlocked = errors.New("response blocked by safety filter")

	// ErrFallbackExhausted indicates every fallback client and model failed.
	ErrFallbackExhausted = errors.New("all fallback providers failed")

	// ErrFallbackDisabled indicates the primary failed and no fallback is configured.
	ErrFallbackDisabled = errors.New("fallback disabled or not configured")
)

// ProviderError captures structured error responses from LLM providers.
// Adapters produce it from non-200 HTTP responses; clients translate it into
// the fallback taxonomy below.
type ProviderError struct {
	Provider   string    `json:"provider"`    // Provider name
	StatusCode int       `json:"status_code"` // HTTP status code
	Message    string    `json:"message"`     // Error message
	Code       string    `json:"code"`        // Provider error code
	Type       ErrorType `json:"type"`        // Classified error type
	RetryAfter int       `json:"retry_after"` // Retry-After header value in seconds
}

// Error returns formatted provider error with status code context.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// IsRetryable reports whether the same call is worth repeating against the
// same provider. Rate limits and 503s are left to the fallback path.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeTimeout, ErrorTypeNetwork:
		return true
	case ErrorTypeProvider:
		return e.StatusCode != 503
	default:
		return false
	}
}

// GetRetryAfter implements the retry package's RetryAfterProvider interface.
func (e *ProviderError) GetRetryAfter() time.Duration {
	if e.RetryAfter > 0 {
		return time.Duration(e.RetryAfter) * time.Second
	}
	return 0
}

// ValidationError captures input validation failures.
type ValidationError struct {
	Field   string `json:"field"`   // Field that failed validation
	Message string `json:"message"` // Validation message
}

// Error returns formatted validation error with field-specific context.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// APIError reports a remote call that failed in a classified way.
// Timeout marks a per-call deadline expiry, which is fallback-eligible.
type APIError struct {
	Provider   string `json:"provider"`
	StatusCode int    `json:"status_code,omitempty"`
	Message    string `json:"message"`
	Timeout    bool   `json:"timeout,omitempty"`
	Cause      error  `json:"-"`
}

// Error returns the provider-scoped message.
func (e *APIError) Error() string {
	if e.Provider == "" {
		return "api error: " + e.Message
	}
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// AgentError wraps an unexpected failure. It is always fatal for its call site.
type AgentError struct {
	Provider string `json:"provider,omitempty"`
	Message  string `json:"message"`
	Cause    error  `json:"-"`
}

// Error returns the agent failure message.
func (e *AgentError) Error() string {
	if e.Provider == "" {
		return "agent error: " + e.Message
	}
	return fmt.Sprintf("%s agent error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// QuotaExhaustedError indicates the provider refused the call for quota or
// rate reasons. Always fallback-eligible.
type QuotaExhaustedError struct {
	Provider   string `json:"provider"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
	Cause      error  `json:"-"`
}

// Error returns the quota message.
func (e *QuotaExhaustedError) Error() string {
	return fmt.Sprintf("%s quota exhausted: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *QuotaExhaustedError) Unwrap() error {
	return e.Cause
}

// ModelUnavailableError indicates the model is overloaded, loading or
// temporarily down. Always fallback-eligible.
type ModelUnavailableError struct {
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
	Message  string `json:"message"`
	Cause    error  `json:"-"`
}

// Error returns the availability message.
func (e *ModelUnavailableError) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("%s model unavailable: %s", e.Provider, e.Message)
	}
	return fmt.Sprintf("%s model %s unavailable: %s", e.Provider, e.Model, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As compatibility.
func (e *ModelUnavailableError) Unwrap() error {
	return e.Cause
}

// ShouldFallback reports whether err is safe to retry against another
// credential, model or provider. Quota and availability failures always are;
// API errors only when they came from a per-call timeout.
func ShouldFallback(err error) bool {
	if err == nil {
		return false
	}

	var quotaErr *QuotaExhaustedError
	if errors.As(err, &quotaErr) {
		return true
	}

	var unavailableErr *ModelUnavailableError
	if errors.As(err, &unavailableErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Timeout {
		return true
	}

	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return false
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "503") || strings.Contains(msg, "overloaded")
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var valErr *ValidationError
	return errors.As(err, &valErr)
}
