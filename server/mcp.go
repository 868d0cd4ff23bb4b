package server

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// MCPServer exposes broker introspection as MCP tools over stdio.
type MCPServer struct {
	Server *mcpserver.MCPServer
}

func NewMCPServer() *MCPServer {
	return &MCPServer{Server: mcpserver.NewMCPServer("busline", "1.0.0")}
}

func (s *MCPServer) Start() error {
	slog.Info("Started stdio MCP server")
	defer slog.Info("Shut down stdio MCP server")
	return mcpserver.ServeStdio(s.Server)
}

// AttachMCP registers the coordinator's introspection tools on the MCP
// server.
func (c *Coordinator) AttachMCP(s *MCPServer) {
	listTopics := mcp.NewTool("list_topics", mcp.WithDescription("List topics with active subscribers and their subscriber counts"))
	s.Server.AddTool(listTopics, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonToolResult(c.Broker.TopicCounts())
	})

	listClients := mcp.NewTool("list_clients", mcp.WithDescription("List clients currently known to the broker"))
	s.Server.AddTool(listClients, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		type clientElement struct {
			ID        string   `json:"id"`
			Transport string   `json:"transport"`
			Remote    string   `json:"remote"`
			Topics    []string `json:"topics"`
		}
		clients := c.Registry.List()
		res := make([]clientElement, 0, len(clients))
		for _, client := range clients {
			meta := client.Meta()
			res = append(res, clientElement{
				ID:        meta.ID,
				Transport: meta.Transport,
				Remote:    meta.Remote,
				Topics:    c.Broker.TopicsOf(client),
			})
		}
		return jsonToolResult(res)
	})
}

func jsonToolResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		}}, nil
}
