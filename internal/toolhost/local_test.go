package toolhost

import (
	"context"
	"errors"
	"testing"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
)

func TestLocalHostRegisterValidation(t *testing.T) {
	host := NewLocalHost()

	if err := host.Register("", func(ctx context.Context, args map[string]any) (string, error) { return "", nil }); err == nil {
		t.Error("expected error for empty tool name")
	}
	if err := host.Register("tool", nil); err == nil {
		t.Error("expected error for nil handler")
	}

	handler := func(ctx context.Context, args map[string]any) (string, error) { return "ok", nil }
	if err := host.Register("tool", handler); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := host.Register("tool", handler); err == nil {
		t.Error("expected error for duplicate registration")
	}
}

func TestLocalHostListToolsSorted(t *testing.T) {
	host := NewLocalHost()
	handler := func(ctx context.Context, args map[string]any) (string, error) { return "", nil }

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := host.Register(name, handler, WithDescription("desc "+name)); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	descriptors, err := host.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	want := []string{"alpha", "mid", "zeta"}
	for i, name := range want {
		if descriptors[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, descriptors[i].Name)
		}
	}
}

func TestLocalHostCallTool(t *testing.T) {
	host := NewLocalHost()
	err := host.Register("greet", func(ctx context.Context, args map[string]any) (string, error) {
		name, _ := args["name"].(string)
		return "hello " + name, nil
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := host.CallTool(context.Background(), "greet", map[string]any{"name": "alice"})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.FirstText() != "hello alice" {
		t.Errorf("unexpected result: %q", result.FirstText())
	}
}

func TestLocalHostUnknownToolIsTransportError(t *testing.T) {
	host := NewLocalHost()

	_, err := host.CallTool(context.Background(), "missing", nil)
	if err == nil {
		t.Fatal("expected error for unknown tool")
	}

	var cwErr *chatweave.ChatWeaveError
	if !errors.As(err, &cwErr) || cwErr.Code != chatweave.ErrCodeToolNotFound {
		t.Errorf("expected tool not found error, got %v", err)
	}
}

func TestLocalHostHandlerErrorIsToolError(t *testing.T) {
	host := NewLocalHost()
	err := host.Register("broken", func(ctx context.Context, args map[string]any) (string, error) {
		return "", errors.New("handler exploded")
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := host.CallTool(context.Background(), "broken", nil)
	if err != nil {
		t.Fatalf("handler failure must not be a transport error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool-reported error")
	}
	if result.FirstText() != "handler exploded" {
		t.Errorf("unexpected error text: %q", result.FirstText())
	}
}

func TestLocalHostEmptyResultHasNoContent(t *testing.T) {
	host := NewLocalHost()
	err := host.Register("empty", func(ctx context.Context, args map[string]any) (string, error) {
		return "", nil
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := host.CallTool(context.Background(), "empty", nil)
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError || len(result.Content) != 0 {
		t.Errorf("expected empty content list, got %+v", result)
	}
}

func TestLocalHostValidator(t *testing.T) {
	host := NewLocalHost()
	err := host.Register("strict",
		func(ctx context.Context, args map[string]any) (string, error) { return "ok", nil },
		WithValidator(func(args map[string]any) error {
			if _, ok := args["required"]; !ok {
				return errors.New("missing required argument")
			}
			return nil
		}))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	rejected, err := host.CallTool(context.Background(), "strict", map[string]any{})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !rejected.IsError {
		t.Error("expected validation failure to be a tool error")
	}

	accepted, err := host.CallTool(context.Background(), "strict", map[string]any{"required": true})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if accepted.IsError || accepted.FirstText() != "ok" {
		t.Errorf("unexpected result: %+v", accepted)
	}
}

func TestLocalHostDescriptorOptions(t *testing.T) {
	host := NewLocalHost()
	err := host.Register("described",
		func(ctx context.Context, args map[string]any) (string, error) { return "", nil },
		WithDescription("a described tool"),
		WithDisplayTemplate("Running described on {target}"))
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	descriptors, err := host.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	d := descriptors[0]
	if d.Description != "a described tool" || d.DisplayTemplate != "Running described on {target}" {
		t.Errorf("options not applied: %+v", d)
	}
}
