package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all fraudwatch tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("fraudwatch", "1.0.0")
	client := NewFraudwatchClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolDetectTransaction, h.HandleDetectTransaction)
	s.AddTool(ToolListRules, h.HandleListRules)
	s.AddTool(ToolRecentTransactions, h.HandleRecentTransactions)
	s.AddTool(ToolFraudStats, h.HandleFraudStats)

	return s
}
