package toolhost

import (
	"context"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type echoInput struct {
	Text string `json:"text"`
}

// connectTestServer builds an SDK server with a couple of tools and an
// MCPHost connected to it over in-memory transports.
func connectTestServer(t *testing.T) *MCPHost {
	t.Helper()

	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "0.0.1"}, nil)

	echoSchema, err := jsonschema.For[echoInput](nil)
	if err != nil {
		t.Fatalf("schema for echo: %v", err)
	}
	mcp.AddTool(server, &mcp.Tool{
		Name:        "echo",
		Description: "Echo the given text back.",
		InputSchema: echoSchema,
		Annotations: &mcp.ToolAnnotations{Title: "Echoing {text}"},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input echoInput) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: input.Text}},
		}, nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        "always_fails",
		Description: "Reports a tool-level error.",
		InputSchema: echoSchema,
	}, func(ctx context.Context, req *mcp.CallToolRequest, input echoInput) (*mcp.CallToolResult, any, error) {
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "it broke"}},
		}, nil, nil
	})

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	host, err := Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = host.Close() })

	return host
}

func TestMCPHostListTools(t *testing.T) {
	host := connectTestServer(t)

	descriptors, err := host.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(descriptors) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(descriptors))
	}

	byName := map[string]int{}
	for i, d := range descriptors {
		byName[d.Name] = i
	}
	echo := descriptors[byName["echo"]]
	if echo.Description != "Echo the given text back." {
		t.Errorf("unexpected description: %q", echo.Description)
	}
	if echo.DisplayTemplate != "Echoing {text}" {
		t.Errorf("annotation title should become the display template, got %q", echo.DisplayTemplate)
	}
	if echo.Parameters == nil {
		t.Error("expected input schema to be carried over")
	}
}

func TestMCPHostCallTool(t *testing.T) {
	host := connectTestServer(t)

	result, err := host.CallTool(context.Background(), "echo", map[string]any{"text": "hello"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.FirstText())
	}
	if result.FirstText() != "hello" {
		t.Errorf("expected echoed text, got %q", result.FirstText())
	}
}

func TestMCPHostToolReportedError(t *testing.T) {
	host := connectTestServer(t)

	result, err := host.CallTool(context.Background(), "always_fails", map[string]any{"text": "x"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool-reported error")
	}
	if result.FirstText() != "it broke" {
		t.Errorf("unexpected error text: %q", result.FirstText())
	}
}

func TestMCPHostUnknownTool(t *testing.T) {
	host := connectTestServer(t)

	_, err := host.CallTool(context.Background(), "no_such_tool", nil)
	if err == nil {
		t.Error("expected error for unknown tool")
	}
}
