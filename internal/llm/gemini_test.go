package llm_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ada-assist/ada/internal/llm"
	"github.com/ada-assist/ada/internal/llm/configuration"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/llm/transport"
)

// recordingHandler captures requests and answers from a script keyed by API key.
type recordingHandler struct {
	mu       sync.Mutex
	requests []transport.Request
	respond  func(req *transport.Request) (*transport.Response, error)
}

func (h *recordingHandler) Handle(_ context.Context, req *transport.Request) (*transport.Response, error) {
	h.mu.Lock()
	h.requests = append(h.requests, *req)
	h.mu.Unlock()
	return h.respond(req)
}

func (h *recordingHandler) keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]string, len(h.requests))
	for i, r := range h.requests {
		keys[i] = r.APIKey
	}
	return keys
}

func quotaErr() error {
	return &llmerrors.ProviderError{
		Provider:   "google",
		StatusCode: 429,
		Message:    "Resource has been exhausted (e.g. check quota).",
		Code:       "RESOURCE_EXHAUSTED",
		Type:       llmerrors.ErrorTypeQuota,
	}
}

func geminiConfig(secondary string) configuration.ProviderConfig {
	return configuration.ProviderConfig{
		APIKey:          "key-1",
		SecondaryAPIKey: secondary,
		Model:           configuration.DefaultGeminiModel,
		MaxTokens:       256,
		Temperature:     0.3,
	}
}

var testPrompt = llm.Prompt{Instructions: "You are Ada.", Text: "What is alt text?"}

func TestGeminiGenerateBuildsRequest(t *testing.T) {
	h := &recordingHandler{respond: func(*transport.Request) (*transport.Response, error) {
		return &transport.Response{Content: "Alt text describes images.", FinishReason: transport.FinishStop}, nil
	}}
	client := llm.NewGeminiClient(geminiConfig(""), h, 5*time.Second)

	ctx := llm.WithAgent(context.Background(), "draft")
	text, err := client.Generate(ctx, testPrompt, "")
	require.NoError(t, err)
	assert.Equal(t, "Alt text describes images.", text)

	require.Len(t, h.requests, 1)
	req := h.requests[0]
	assert.Equal(t, configuration.ProviderGoogle, req.Provider)
	assert.Equal(t, configuration.DefaultGeminiModel, req.Model)
	assert.Equal(t, "key-1", req.APIKey)
	assert.Equal(t, "What is alt text?", req.Prompt)
	assert.Equal(t, "You are Ada.", req.SystemPrompt)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Equal(t, 5*time.Second, req.Timeout)
	assert.Equal(t, "draft", req.Agent)
}

func TestGeminiQuotaSwitchesToSecondaryKey(t *testing.T) {
	h := &recordingHandler{respond: func(req *transport.Request) (*transport.Response, error) {
		if req.APIKey == "key-1" {
			return nil, quotaErr()
		}
		return &transport.Response{Content: "from secondary"}, nil
	}}
	client := llm.NewGeminiClient(geminiConfig("key-2"), h, time.Second)

	text, err := client.Generate(context.Background(), testPrompt, "")
	require.NoError(t, err)
	assert.Equal(t, "from secondary", text)
	assert.True(t, client.UsingSecondaryKey())

	// The switch persists: later calls go straight to the secondary key.
	_, err = client.Generate(context.Background(), testPrompt, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"key-1", "key-2", "key-2"}, h.keys())
}

func TestGeminiQuotaReturnsMaintenanceMessage(t *testing.T) {
	tests := []struct {
		name      string
		secondary string
		respond   func(req *transport.Request) (*transport.Response, error)
		wantKeys  []string
	}{
		{
			name:      "no secondary key",
			secondary: "",
			respond:   func(*transport.Request) (*transport.Response, error) { return nil, quotaErr() },
			wantKeys:  []string{"key-1"},
		},
		{
			name:      "secondary also exhausted",
			secondary: "key-2",
			respond:   func(*transport.Request) (*transport.Response, error) { return nil, quotaErr() },
			wantKeys:  []string{"key-1", "key-2"},
		},
		{
			name:      "secondary fails differently",
			secondary: "key-2",
			respond: func(req *transport.Request) (*transport.Response, error) {
				if req.APIKey == "key-1" {
					return nil, quotaErr()
				}
				return nil, &llmerrors.ProviderError{StatusCode: 401, Message: "bad key", Type: llmerrors.ErrorTypeAuth}
			},
			wantKeys: []string{"key-1", "key-2"},
		},
		{
			name:      "generic error mentioning quota",
			secondary: "",
			respond: func(*transport.Request) (*transport.Response, error) {
				return nil, errors.New("daily quota reached for project")
			},
			wantKeys: []string{"key-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &recordingHandler{respond: tt.respond}
			client := llm.NewGeminiClient(geminiConfig(tt.secondary), h, time.Second)

			text, err := client.Generate(context.Background(), testPrompt, "")
			require.NoError(t, err)
			assert.Equal(t, llm.MaintenanceMessage, text)
			assert.Equal(t, tt.wantKeys, h.keys())
		})
	}
}

func TestGeminiSecondaryExhaustedReturnsMaintenanceWithoutRetry(t *testing.T) {
	h := &recordingHandler{respond: func(req *transport.Request) (*transport.Response, error) {
		if req.APIKey == "key-1" {
			return nil, quotaErr()
		}
		if len(req.Prompt) > 0 && req.Prompt[0] == '2' {
			return nil, quotaErr()
		}
		return &transport.Response{Content: "ok"}, nil
	}}
	client := llm.NewGeminiClient(geminiConfig("key-2"), h, time.Second)

	_, err := client.Generate(context.Background(), llm.Prompt{Text: "1"}, "")
	require.NoError(t, err)

	text, err := client.Generate(context.Background(), llm.Prompt{Text: "2"}, "")
	require.NoError(t, err)
	assert.Equal(t, llm.MaintenanceMessage, text)
	assert.Equal(t, []string{"key-1", "key-2", "key-2"}, h.keys())
}

func TestGeminiErrorClassification(t *testing.T) {
	tests := []struct {
		name         string
		respond      func(*transport.Request) (*transport.Response, error)
		check        func(t *testing.T, err error)
		wantFallback bool
	}{
		{
			name: "timeout",
			respond: func(*transport.Request) (*transport.Response, error) {
				return nil, fmt.Errorf("HTTP request failed: %w", context.DeadlineExceeded)
			},
			check: func(t *testing.T, err error) {
				var apiErr *llmerrors.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.True(t, apiErr.Timeout)
			},
			wantFallback: true,
		},
		{
			name: "empty content",
			respond: func(*transport.Request) (*transport.Response, error) {
				return &transport.Response{FinishReason: transport.FinishStop}, nil
			},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, llmerrors.ErrEmptyResponse)
			},
		},
		{
			name: "safety blocked",
			respond: func(*transport.Request) (*transport.Response, error) {
				return &transport.Response{Content: "partial", FinishReason: transport.FinishContentFilter}, nil
			},
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, llmerrors.ErrContentBlocked)
			},
		},
		{
			name: "unauthorized",
			respond: func(*transport.Request) (*transport.Response, error) {
				return nil, &llmerrors.ProviderError{StatusCode: 401, Message: "API key not valid", Type: llmerrors.ErrorTypeAuth}
			},
			check: func(t *testing.T, err error) {
				var apiErr *llmerrors.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, 401, apiErr.StatusCode)
			},
		},
		{
			name: "overloaded",
			respond: func(*transport.Request) (*transport.Response, error) {
				return nil, &llmerrors.ProviderError{StatusCode: 503, Message: "The model is overloaded.", Type: llmerrors.ErrorTypeModelUnavailable}
			},
			check: func(t *testing.T, err error) {
				var unavailable *llmerrors.ModelUnavailableError
				require.ErrorAs(t, err, &unavailable)
				assert.Equal(t, configuration.DefaultGeminiModel, unavailable.Model)
			},
			wantFallback: true,
		},
		{
			name: "unclassified",
			respond: func(*transport.Request) (*transport.Response, error) {
				return nil, errors.New("tls: handshake failure")
			},
			check: func(t *testing.T, err error) {
				var agentErr *llmerrors.AgentError
				require.ErrorAs(t, err, &agentErr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := llm.NewGeminiClient(geminiConfig("key-2"), &recordingHandler{respond: tt.respond}, time.Second)
			text, err := client.Generate(context.Background(), testPrompt, "")
			require.Error(t, err)
			assert.Empty(t, text)
			tt.check(t, err)
			assert.Equal(t, tt.wantFallback, client.ShouldFallback(err))
			assert.False(t, client.UsingSecondaryKey())
		})
	}
}
