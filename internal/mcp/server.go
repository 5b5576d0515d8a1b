package mcp

import (
	"context"
	"database/sql"
	"slices"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hpungsan/painvault/internal/config"
	"github.com/hpungsan/painvault/internal/ops"
)

type toolFunc func(*Handlers, context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// tool binds a definition to the Handlers method serving it. The tool name
// comes from the definition.
type tool struct {
	def  mcp.Tool
	call toolFunc
}

// tools lists every capture tool in the order they are registered.
var tools = []tool{
	{sendToolDef, (*Handlers).HandleSend},
	{statsToolDef, (*Handlers).HandleStats},
	{campaignsToolDef, (*Handlers).HandleCampaigns},
	{settingsToolDef, (*Handlers).HandleSettings},
	{testWebhookToolDef, (*Handlers).HandleTestWebhook},
	{deliveriesToolDef, (*Handlers).HandleDeliveries},
	{purgeToolDef, (*Handlers).HandlePurge},
	{exportToolDef, (*Handlers).HandleExport},
}

func (t tool) bind(h *Handlers) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return t.call(h, ctx, req)
	}
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.def.Name)
	}
	slices.Sort(names)
	return names
}

// ValidateDisabledTools returns the entries of names that are not tools.
func ValidateDisabledTools(names []string) []string {
	known := AllToolNames()
	unknown := []string{}
	for _, name := range names {
		if _, found := slices.BinarySearch(known, name); !found {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer builds the painvault MCP server, leaving out cfg.DisabledTools.
func NewServer(database *sql.DB, cfg *config.Config, pipeline *ops.Pipeline, version string) *server.MCPServer {
	s := server.NewMCPServer("painvault", version, server.WithToolCapabilities(true))
	h := NewHandlers(database, cfg, pipeline)

	for _, t := range tools {
		if slices.Contains(cfg.DisabledTools, t.def.Name) {
			continue
		}
		s.AddTool(t.def, t.bind(h))
	}
	return s
}

// Run serves the tools over stdio until stdin closes.
func Run(database *sql.DB, cfg *config.Config, pipeline *ops.Pipeline, version string) error {
	return server.ServeStdio(NewServer(database, cfg, pipeline, version))
}
