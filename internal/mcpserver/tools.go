package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ada-assist/ada/internal/chat"
	llmerrors "github.com/ada-assist/ada/internal/llm/errors"
	"github.com/ada-assist/ada/internal/metrics"
)

// Asker answers questions. *chat.Service implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (chat.Answer, error)
}

// MetricsSource exposes collected metrics. *metrics.Collector implements it.
type MetricsSource interface {
	Snapshot() metrics.Snapshot
}

// AskTool handles the ask_accessibility MCP tool.
type AskTool struct {
	asker Asker
}

// NewAskTool creates an AskTool.
func NewAskTool(asker Asker) *AskTool {
	return &AskTool{asker: asker}
}

// Definition returns the MCP tool definition for ask_accessibility.
func (t *AskTool) Definition() mcp.Tool {
	return mcp.NewTool("ask_accessibility",
		mcp.WithDescription(
			"Answer a digital accessibility question (WCAG, ARIA, assistive technology) "+
				"with an introduction, essential concepts, testing suggestions and further reading. "+
				"Also accepts '/simular <persona> <scenario>' and '/refatorar <code>'.",
		),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The accessibility question or command"),
		),
	)
}

// Handle processes the ask_accessibility tool call.
func (t *AskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question := req.GetString("question", "")

	ans, err := t.asker.Ask(ctx, question)
	if err != nil {
		var valErr *llmerrors.ValidationError
		if errors.As(err, &valErr) {
			return mcp.NewToolResultError(valErr.Message), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to answer: %v", err)), nil
	}
	if ans.Result.Failed() {
		return mcp.NewToolResultError(ans.Result.Error), nil
	}

	var sb strings.Builder
	for i, sec := range ans.Result.Sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("## ")
		sb.WriteString(sec.Title)
		sb.WriteString("\n\n")
		sb.WriteString(sec.Body)
	}
	if ans.Cached {
		sb.WriteString("\n\n_(served from cache)_")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// MetricsTool handles the accessibility_metrics MCP tool.
type MetricsTool struct {
	source MetricsSource
}

// NewMetricsTool creates a MetricsTool.
func NewMetricsTool(source MetricsSource) *MetricsTool {
	return &MetricsTool{source: source}
}

// Definition returns the MCP tool definition for accessibility_metrics.
func (t *MetricsTool) Definition() mcp.Tool {
	return mcp.NewTool("accessibility_metrics",
		mcp.WithDescription("Show request, latency, fallback and cache metrics as JSON."),
	)
}

// Handle processes the accessibility_metrics tool call.
func (t *MetricsTool) Handle(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(t.source.Snapshot(), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode metrics: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
