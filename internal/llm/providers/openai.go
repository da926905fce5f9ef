package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/transport"
)

// OpenAIAdapter implements ProviderAdapter for OpenAI-compatible
// chat/completions endpoints. Fireworks and OpenAI both speak this format;
// the adapter's name keeps them apart in routing, logs and metrics.
type OpenAIAdapter struct {
	name   string
	config configuration.ProviderConfig
}

// NewOpenAIAdapter creates an OpenAI-compatible adapter registered under name.
func NewOpenAIAdapter(name string, cfg configuration.ProviderConfig) *OpenAIAdapter {
	if cfg.Endpoint == "" {
		switch name {
		case ProviderFireworks:
			cfg.Endpoint = "https://api.fireworks.ai/inference/v1"
		default:
			cfg.Endpoint = "https://api.openai.com/v1"
		}
	}
	return &OpenAIAdapter{name: name, config: cfg}
}

// Name returns the provider name.
func (a *OpenAIAdapter) Name() string {
	return a.name
}

// Build constructs a chat/completions request with bearer authentication.
func (a *OpenAIAdapter) Build(ctx context.Context, req *transport.Request) (*http.Request, error) {
	if req.Model == "" {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrModelRequired, a.name)
	}

	endpoint := strings.TrimRight(a.config.Endpoint, "/") + "/chat/completions"

	messages := []map[string]any{}
	if req.SystemPrompt != "" {
		messages = append(messages, map[string]any{
			"role":    "system",
			"content": req.SystemPrompt,
		})
	}
	messages = append(messages, map[string]any{
		"role":    "user",
		"content": req.Prompt,
	})

	body := map[string]any{
		"model":       req.Model,
		"messages":    messages,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	apiKey := a.config.APIKey
	if req.APIKey != "" {
		apiKey = req.APIKey
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-ID", req.RequestID)
	}

	for k, v := range a.config.Headers {
		httpReq.Header.Set(k, v)
	}

	return httpReq, nil
}

// Parse extracts normalized data from a chat/completions response.
func (a *OpenAIAdapter) Parse(httpResp *http.Response) (*transport.Response, error) {
	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, parseOpenAIError(a.name, httpResp.StatusCode, retryAfterSeconds(httpResp.Header), body)
	}

	var resp struct {
		ID      string `json:"id"`
		Model   string `json:"model"`
		Choices []struct {
			Index   int `json:"index"`
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}

	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	var content string
	finishReason := transport.FinishUnknown

	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
		finishReason = mapOpenAIFinishReason(resp.Choices[0].FinishReason)
	}

	requestIDs := []string{}
	if reqID := httpResp.Header.Get("x-request-id"); reqID != "" {
		requestIDs = append(requestIDs, reqID)
	} else if resp.ID != "" {
		requestIDs = append(requestIDs, resp.ID)
	}

	return &transport.Response{
		Content:            content,
		FinishReason:       finishReason,
		ProviderRequestIDs: requestIDs,
		Usage: transport.NormalizedUsage{
			PromptTokens:     int64(resp.Usage.PromptTokens),
			CompletionTokens: int64(resp.Usage.CompletionTokens),
			TotalTokens:      int64(resp.Usage.TotalTokens),
		},
		Headers: httpResp.Header,
	}, nil
}

// mapOpenAIFinishReason converts finish_reason to a normalized reason.
func mapOpenAIFinishReason(reason string) transport.FinishReason {
	switch reason {
	case "stop", "eos":
		return transport.FinishStop
	case "length":
		return transport.FinishLength
	case "content_filter":
		return transport.FinishContentFilter
	default:
		return transport.FinishStop
	}
}

// parseOpenAIError converts OpenAI-style error responses to ProviderError.
// Fireworks sometimes returns a bare string in "error", so both shapes are read.
func parseOpenAIError(provider string, statusCode, retryAfter int, body []byte) error {
	var errResp struct {
		Error json.RawMessage `json:"error"`
	}
	var detail struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	}

	if err := json.Unmarshal(body, &errResp); err == nil && len(errResp.Error) > 0 {
		if json.Unmarshal(errResp.Error, &detail) != nil {
			var msg string
			if json.Unmarshal(errResp.Error, &msg) == nil {
				detail.Message = msg
			}
		}
	}

	if detail.Message != "" {
		code := detail.Type
		if s, ok := detail.Code.(string); ok && s != "" {
			code = s
		}
		return &llmerrors.ProviderError{
			Provider:   provider,
			StatusCode: statusCode,
			Message:    detail.Message,
			Code:       code,
			Type:       classifyErrorType(statusCode, code),
			RetryAfter: retryAfter,
		}
	}

	return &llmerrors.ProviderError{
		Provider:   provider,
		StatusCode: statusCode,
		Message:    string(body),
		Type:       classifyErrorType(statusCode, ""),
		RetryAfter: retryAfter,
	}
}
