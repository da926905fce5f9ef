package transport

import (
	"net/http"
	"time"
)

// FinishReason indicates why a provider stopped generating.
type FinishReason string

// Normalized finish reasons across providers.
const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishContentFilter FinishReason = "content_filter"
	FinishUnknown       FinishReason = "unknown"
)

// Request represents a normalized request across all LLM providers.
// Contains everything the adapters need to build provider-specific HTTP
// requests and everything middleware needs for logging and retries.
type Request struct {
	// Provider identifies which LLM service to use.
	Provider string `json:"provider"`

	// Model specifies the exact model version to use.
	Model string `json:"model"`

	// APIKey overrides the adapter's configured credential when set.
	APIKey string `json:"-"`

	// Prompt is the user-turn text sent to the model.
	Prompt string `json:"prompt"`

	// SystemPrompt provides instructions to the model.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Generation parameters control model behavior.
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`

	// Control fields for resilience and observability.
	Timeout   time.Duration `json:"timeout"`
	RequestID string        `json:"request_id"`
	Agent     string        `json:"agent,omitempty"`
}

// Response represents normalized output from any LLM provider.
type Response struct {
	// Content is the generated text.
	Content string `json:"content"`

	// FinishReason indicates why generation stopped.
	FinishReason FinishReason `json:"finish_reason"`

	// ProviderRequestIDs enables cross-system correlation.
	ProviderRequestIDs []string `json:"provider_request_ids"`

	// Usage tracks resource consumption.
	Usage NormalizedUsage `json:"usage"`

	Headers http.Header `json:"-"`
}

// NormalizedUsage tracks token consumption and latency.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}
