package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all editor tools registered.
func NewMCPServer(cfg Config, version string) *server.MCPServer {
	s := server.NewMCPServer("tariffdesk", version)
	h := NewHandlers(NewClient(cfg))

	s.AddTool(ToolOpenEditor, h.HandleOpenEditor)
	s.AddTool(ToolListTariffs, h.HandleListTariffs)
	s.AddTool(ToolAddTariff, h.HandleAddTariff)
	s.AddTool(ToolRemoveTariff, h.HandleRemoveTariff)
	s.AddTool(ToolUpdateTariff, h.HandleUpdateTariff)
	s.AddTool(ToolAddPlan, h.HandleAddPlan)
	s.AddTool(ToolRemovePlan, h.HandleRemovePlan)
	s.AddTool(ToolUpdatePlan, h.HandleUpdatePlan)
	s.AddTool(ToolExportJSON, h.HandleExportJSON)
	s.AddTool(ToolGetPublicTariff, h.HandleGetPublicTariff)

	return s
}
