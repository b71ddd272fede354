// Package toolhost provides gateways to tool execution: an MCP client
// host and an in-process registry host.
package toolhost

import (
	"context"
	"log/slog"
	"os/exec"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPHost is a chatweave.ToolHost backed by an MCP server session.
type MCPHost struct {
	session *mcp.ClientSession
	logger  *slog.Logger
}

// Connect establishes an MCP session over the given transport.
func Connect(ctx context.Context, transport mcp.Transport, logger *slog.Logger) (*MCPHost, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "chatweave",
		Version: "0.1.0",
	}, nil)

	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, chatweave.NewConfigurationError("failed to connect to MCP server", err)
	}

	return &MCPHost{session: session, logger: logger}, nil
}

// ConnectCommand starts the given command as an MCP stdio server and
// connects to it.
func ConnectCommand(ctx context.Context, command string, args []string, logger *slog.Logger) (*MCPHost, error) {
	transport := &mcp.CommandTransport{Command: exec.Command(command, args...)}
	return Connect(ctx, transport, logger)
}

// ListTools implements chatweave.ToolHost.
func (h *MCPHost) ListTools(ctx context.Context) ([]chatweave.ToolDescriptor, error) {
	result, err := h.session.ListTools(ctx, nil)
	if err != nil {
		return nil, chatweave.NewInternalError("init", "failed to list MCP tools", err)
	}

	descriptors := make([]chatweave.ToolDescriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		descriptor := chatweave.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  tool.InputSchema,
		}
		// The annotation title doubles as the step display template.
		if tool.Annotations != nil {
			descriptor.DisplayTemplate = tool.Annotations.Title
		}
		descriptors = append(descriptors, descriptor)
	}

	return descriptors, nil
}

// CallTool implements chatweave.ToolHost.
func (h *MCPHost) CallTool(ctx context.Context, name string, args map[string]any) (*chatweave.ToolResult, error) {
	result, err := h.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		return nil, chatweave.NewToolExecutionError("executing", name, err)
	}

	out := &chatweave.ToolResult{IsError: result.IsError}
	for _, content := range result.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			out.Content = append(out.Content, chatweave.ToolContent{Type: "text", Text: text.Text})
		} else {
			// Unknown content types are carried as empty, never dropped
			// on the floor with an error.
			out.Content = append(out.Content, chatweave.ToolContent{Type: "unknown"})
		}
	}

	h.logger.Debug("called MCP tool",
		"tool", name,
		"is_error", result.IsError,
		"content_items", len(out.Content))

	return out, nil
}

// Close terminates the MCP session.
func (h *MCPHost) Close() error {
	return h.session.Close()
}
