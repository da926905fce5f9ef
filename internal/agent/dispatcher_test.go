package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ada-assist/ada/internal/agent"
	"github.com/ada-assist/ada/internal/llm"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
)

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, prompt llm.Prompt) (string, string, error) {
	args := m.Called(llm.AgentFrom(ctx), prompt)
	return args.String(0), args.String(1), args.Error(2)
}

func TestInvokeSendsAgentInstructions(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", "draft", llm.Prompt{
		Instructions: agent.Instructions(agent.Draft),
		Text:         "What is alt text?",
	}).Return("Alt text describes images.", "google (gemini-2.0-flash)", nil).Once()

	d := agent.NewDispatcher(gen)
	text, err := d.Invoke(context.Background(), agent.Draft, "What is alt text?", "draft")
	require.NoError(t, err)
	assert.Equal(t, "Alt text describes images.", text)
	gen.AssertExpectations(t)
}

func TestInvokeUnknownAgent(t *testing.T) {
	gen := &mockGenerator{}
	d := agent.NewDispatcher(gen)

	text, err := d.Invoke(context.Background(), agent.ID("translator"), "hello", "")
	require.NoError(t, err)
	assert.Equal(t, "Error: agent 'translator' not found.", text)
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestWithInstructionsOverrides(t *testing.T) {
	gen := &mockGenerator{}
	gen.On("Generate", "validate", llm.Prompt{Instructions: "Reply OK.", Text: "draft"}).
		Return("OK", "google", nil).Once()

	d := agent.NewDispatcher(gen, agent.WithInstructions(agent.Validate, "Reply OK."))
	text, err := d.Invoke(context.Background(), agent.Validate, "draft", "")
	require.NoError(t, err)
	assert.Equal(t, "OK", text)
	gen.AssertExpectations(t)
}

func TestInvokeMapsFailuresToUserMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantMessage string
		wantTimeout bool
	}{
		{
			name:        "fallback exhausted",
			err:         &llmerrors.APIError{Message: "all fallback providers failed", Cause: errors.Join(llmerrors.ErrFallbackExhausted)},
			wantMessage: "All available models failed",
		},
		{
			name:        "timeout",
			err:         &llmerrors.APIError{Provider: "google", Message: "request timed out", Timeout: true},
			wantMessage: "took too long",
			wantTimeout: true,
		},
		{
			name:        "quota",
			err:         &llmerrors.QuotaExhaustedError{Provider: "fireworks", Message: "429"},
			wantMessage: "too many questions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{}
			gen.On("Generate", mock.Anything, mock.Anything).Return("", "", tt.err)

			_, err := agent.NewDispatcher(gen).Invoke(context.Background(), agent.Draft, "q", "draft")
			var apiErr *llmerrors.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Contains(t, apiErr.Message, tt.wantMessage)
			assert.Equal(t, tt.wantTimeout, apiErr.Timeout)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestInvokePassesOtherErrorsThrough(t *testing.T) {
	fatal := &llmerrors.AgentError{Provider: "google", Message: "boom"}
	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("", "", fatal)

	_, err := agent.NewDispatcher(gen).Invoke(context.Background(), agent.Simplify, "q", "")
	assert.Same(t, fatal, err)
}

func TestIDs(t *testing.T) {
	for _, id := range agent.All() {
		assert.True(t, id.Valid(), id)
		assert.NotEmpty(t, agent.Instructions(id), id)
	}
	assert.False(t, agent.ID("").Valid())
	assert.Equal(t, "test-plan", agent.TestPlan.String())
}

func TestCapabilityFunc(t *testing.T) {
	var c agent.Capability = agent.CapabilityFunc(func(_ context.Context, id agent.ID, prompt, _ string) (string, error) {
		return string(id) + ":" + prompt, nil
	})
	text, err := c.Invoke(context.Background(), agent.Persona, "x", "")
	require.NoError(t, err)
	assert.Equal(t, "persona:x", text)
}
