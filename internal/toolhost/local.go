package toolhost

import (
	"context"
	"fmt"
	"sort"
	"sync"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
	"github.com/google/jsonschema-go/jsonschema"
)

// Handler is an in-process tool implementation. An empty return string
// maps to an empty content list, which the executor treats as "nothing
// found" for lookup tools.
type Handler func(ctx context.Context, args map[string]any) (string, error)

type localTool struct {
	descriptor chatweave.ToolDescriptor
	handler    Handler
	validator  func(map[string]any) error
}

// LocalHost is a chatweave.ToolHost serving tools registered in
// process. Used when no MCP server is configured and in tests.
type LocalHost struct {
	mutex sync.RWMutex
	tools map[string]*localTool
}

// ToolOption configures a registered tool.
type ToolOption func(*localTool)

// WithDescription sets the tool's description.
func WithDescription(description string) ToolOption {
	return func(t *localTool) {
		t.descriptor.Description = description
	}
}

// WithDisplayTemplate sets the template rendered when a step using this
// tool starts. {param} placeholders are filled from the step arguments.
func WithDisplayTemplate(template string) ToolOption {
	return func(t *localTool) {
		t.descriptor.DisplayTemplate = template
	}
}

// WithSchema sets the tool's parameter schema.
func WithSchema(schema *jsonschema.Schema) ToolOption {
	return func(t *localTool) {
		t.descriptor.Parameters = schema
	}
}

// WithValidator sets a custom argument validator for the tool.
func WithValidator(validator func(map[string]any) error) ToolOption {
	return func(t *localTool) {
		t.validator = validator
	}
}

// NewLocalHost creates an empty in-process tool host.
func NewLocalHost() *LocalHost {
	return &LocalHost{tools: make(map[string]*localTool)}
}

// Register adds a tool to the host.
func (h *LocalHost) Register(name string, handler Handler, options ...ToolOption) error {
	if name == "" {
		return chatweave.NewValidationError("init", "tool name cannot be empty", nil)
	}
	if handler == nil {
		return chatweave.NewValidationError("init", "tool handler cannot be nil", nil)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.tools[name]; exists {
		return chatweave.NewValidationError("init", fmt.Sprintf("tool '%s' already registered", name), nil)
	}

	tool := &localTool{
		descriptor: chatweave.ToolDescriptor{Name: name},
		handler:    handler,
	}
	for _, option := range options {
		option(tool)
	}

	h.tools[name] = tool
	return nil
}

// ListTools implements chatweave.ToolHost. Descriptors are returned in
// name order so prompt rendering is deterministic.
func (h *LocalHost) ListTools(ctx context.Context) ([]chatweave.ToolDescriptor, error) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	names := make([]string, 0, len(h.tools))
	for name := range h.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	descriptors := make([]chatweave.ToolDescriptor, 0, len(names))
	for _, name := range names {
		descriptors = append(descriptors, h.tools[name].descriptor)
	}
	return descriptors, nil
}

// CallTool implements chatweave.ToolHost. Handler failures surface as
// tool-reported errors, not transport errors, mirroring how an MCP
// server reports them.
func (h *LocalHost) CallTool(ctx context.Context, name string, args map[string]any) (*chatweave.ToolResult, error) {
	h.mutex.RLock()
	tool, exists := h.tools[name]
	h.mutex.RUnlock()

	if !exists {
		return nil, chatweave.NewToolNotFoundError("executing", name)
	}

	if args == nil {
		args = map[string]any{}
	}

	if tool.validator != nil {
		if err := tool.validator(args); err != nil {
			return &chatweave.ToolResult{
				IsError: true,
				Content: []chatweave.ToolContent{{Type: "text", Text: err.Error()}},
			}, nil
		}
	}

	text, err := tool.handler(ctx, args)
	if err != nil {
		return &chatweave.ToolResult{
			IsError: true,
			Content: []chatweave.ToolContent{{Type: "text", Text: err.Error()}},
		}, nil
	}

	result := &chatweave.ToolResult{}
	if text != "" {
		result.Content = []chatweave.ToolContent{{Type: "text", Text: text}}
	}
	return result, nil
}
