// Package mcpserver exposes the assistant as Model Context Protocol tools.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with the assistant's tools registered.
func New(asker Asker, source MetricsSource) *server.MCPServer {
	s := server.NewMCPServer(
		"ada",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	askTool := NewAskTool(asker)
	s.AddTool(askTool.Definition(), askTool.Handle)

	metricsTool := NewMetricsTool(source)
	s.AddTool(metricsTool.Definition(), metricsTool.Handle)

	return s
}

// ServeStdio serves s over stdin and stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}
