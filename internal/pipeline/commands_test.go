package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ada-assist/ada/internal/agent"
	"github.com/ada-assist/ada/internal/pipeline"
)

func TestSimulatePersona(t *testing.T) {
	tests := []struct {
		question    string
		wantPersona string
		wantPrompt  string
	}{
		{"/simular cega How do I log in?", "Blind", "Scenario: How do I log in?"},
		{"/simular leitor-tela test", "Blind", "Scenario: test"},
		{"/simular screen-reader checkout form", "Blind", "Scenario: checkout form"},
		{"/simular zoom-contraste reading a chart", "Low Vision", "Scenario: reading a chart"},
		{"/simular teclado date picker", "Motor Impairment", "Scenario: date picker"},
		{"/simular linguagem-simples terms of service", "Cognitive Disability", "Scenario: terms of service"},
		{"/simular dyslexia long article", "Dyslexia", "Scenario: long article"},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			agents := newScriptedAgents()
			r := pipeline.New(agents).Run(context.Background(), tt.question)
			require.False(t, r.Failed(), r.Error)

			assert.Equal(t, []string{pipeline.TitleScenario, pipeline.TitleNote}, r.Titles())
			scenario := body(t, r, pipeline.TitleScenario)
			assert.Contains(t, scenario, "**Persona:** "+tt.wantPersona)
			assert.Contains(t, scenario, "I hear 'button, button'")
			assert.NotEmpty(t, body(t, r, pipeline.TitleNote))

			assert.Equal(t, []agent.ID{agent.Persona}, agents.called())
			assert.Contains(t, agents.prompt(agent.Persona), "Persona: "+tt.wantPersona)
			assert.Contains(t, agents.prompt(agent.Persona), tt.wantPrompt)
		})
	}
}

func TestSimulateInvalidFormat(t *testing.T) {
	for _, q := range []string{"/simular", "/simular x", "/simular   cega   "} {
		t.Run(q, func(t *testing.T) {
			agents := newScriptedAgents()
			r := pipeline.New(agents).Run(context.Background(), q)
			require.True(t, r.Failed())
			assert.Contains(t, r.Error, "Invalid format")
			assert.Empty(t, agents.called())
		})
	}
}

func TestSimulateAgentFailure(t *testing.T) {
	agents := newScriptedAgents()
	agents.replies[agent.Persona] = fail(errors.New("agent crashed"))

	r := pipeline.New(agents).Run(context.Background(), "/simular cega test")
	require.True(t, r.Failed())
	assert.Contains(t, r.Error, "Error simulating persona")
}

func TestRefactor(t *testing.T) {
	agents := newScriptedAgents()
	r := pipeline.New(agents).Run(context.Background(), "/refatorar <div onclick=\"go()\">Click</div>")
	require.False(t, r.Failed(), r.Error)

	assert.Equal(t, []string{pipeline.TitleCode, pipeline.TitleExplanation, pipeline.TitleWCAGCriteria}, r.Titles())
	assert.Equal(t, "```html\n<button>Click</button>\n```", body(t, r, pipeline.TitleCode))
	assert.Equal(t, "Use a native button.", body(t, r, pipeline.TitleExplanation))
	assert.Equal(t, "- 4.1.2\n- 2.1.1", body(t, r, pipeline.TitleWCAGCriteria))
	assert.Equal(t, `<div onclick="go()">Click</div>`, agents.prompt(agent.Refactor))
}

func TestRefactorReplyShapes(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		wantTitle string
		wantBody  string
	}{
		{
			name:      "fenced json",
			reply:     "Here you go:\n```json\n{\"code\": \"test\"}\n```",
			wantTitle: pipeline.TitleCode,
			wantBody:  "```\ntest\n```",
		},
		{
			name:      "bare fence",
			reply:     "```\n{\"code\": \"<a href='#'>x</a>\", \"wcag_criteria\": \"2.4.4\"}\n```",
			wantTitle: pipeline.TitleWCAGCriteria,
			wantBody:  "2.4.4",
		},
		{
			name:      "not json",
			reply:     "This is not valid JSON",
			wantTitle: pipeline.TitleRaw,
			wantBody:  "This is not valid JSON",
		},
		{
			name:      "json array",
			reply:     `["code"]`,
			wantTitle: pipeline.TitleRaw,
			wantBody:  `["code"]`,
		},
		{
			name:      "json null",
			reply:     "null",
			wantTitle: pipeline.TitleRaw,
			wantBody:  "null",
		},
		{
			name:      "fenced null",
			reply:     "```json\nnull\n```",
			wantTitle: pipeline.TitleRaw,
			wantBody:  "```json\nnull\n```",
		},
		{
			name:      "empty object",
			reply:     "{}",
			wantTitle: pipeline.TitleRaw,
			wantBody:  "{}",
		},
		{
			name:      "object without code",
			reply:     `{"explanation": "added a label"}`,
			wantTitle: pipeline.TitleRaw,
			wantBody:  `{"explanation": "added a label"}`,
		},
		{
			name:      "json string",
			reply:     `"text"`,
			wantTitle: pipeline.TitleRaw,
			wantBody:  `"text"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agents := newScriptedAgents()
			agents.replies[agent.Refactor] = reply(tt.reply)

			r := pipeline.New(agents).Run(context.Background(), "/refatorar code")
			require.False(t, r.Failed())
			assert.Equal(t, tt.wantBody, body(t, r, tt.wantTitle))
		})
	}
}

func TestRefactorWithoutCode(t *testing.T) {
	for _, q := range []string{"/refatorar", "/refatorar   \n\t "} {
		agents := newScriptedAgents()
		r := pipeline.New(agents).Run(context.Background(), q)
		require.True(t, r.Failed())
		assert.Contains(t, r.Error, "provide code")
		assert.Empty(t, agents.called())
	}
}

func TestRefactorAgentFailure(t *testing.T) {
	agents := newScriptedAgents()
	agents.replies[agent.Refactor] = fail(errors.New("agent crashed"))

	r := pipeline.New(agents).Run(context.Background(), "/refatorar code")
	require.True(t, r.Failed())
	assert.Contains(t, r.Error, "Error refactoring code")
}

func TestCommandPrefixNeedsWordBoundary(t *testing.T) {
	agents := newScriptedAgents()
	r := pipeline.New(agents).Run(context.Background(), "/simularity of WCAG versions")
	require.False(t, r.Failed())
	assert.Equal(t, fiveSections, r.Titles())
	assert.Equal(t, agent.Draft, agents.called()[0])
}

func TestCanonicalPersona(t *testing.T) {
	assert.Equal(t, "Blind", pipeline.CanonicalPersona("CEGA"))
	assert.Equal(t, "Low Vision", pipeline.CanonicalPersona("baixa-visao"))
	assert.Equal(t, "Idosa", pipeline.CanonicalPersona("idosa"))
	assert.Equal(t, "Érica", pipeline.CanonicalPersona("érica"))
}
