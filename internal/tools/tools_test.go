package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/toolhost"
)

type fakeModel struct {
	reply string
	err   error
}

func (m *fakeModel) Generate(ctx context.Context, messages []chatweave.Message) (string, error) {
	return m.reply, m.err
}

func newTestHost(t *testing.T, model chatweave.ModelClient) (*toolhost.LocalHost, *MetadataStore) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewMetadataStore(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("NewMetadataStore failed: %v", err)
	}

	host := toolhost.NewLocalHost()
	err = Register(host, Config{
		Model:    model,
		Metadata: store,
		DocsDir:  dir,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	return host, store
}

func TestRegisterListsAllTools(t *testing.T) {
	host, _ := newTestHost(t, &fakeModel{})

	descriptors, err := host.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}

	want := []string{
		"classify_file_based_on_content",
		"read_file",
		"save_file_category",
		"search_file_category",
		"summary_file_content",
	}
	if len(descriptors) != len(want) {
		t.Fatalf("expected %d tools, got %d", len(want), len(descriptors))
	}
	for i, name := range want {
		if descriptors[i].Name != name {
			t.Errorf("tool %d: expected %s, got %s", i, name, descriptors[i].Name)
		}
		if descriptors[i].Description == "" {
			t.Errorf("tool %s has no description", name)
		}
	}
}

func TestSearchFileCategoryUnclassified(t *testing.T) {
	host, _ := newTestHost(t, &fakeModel{})

	result, err := host.CallTool(context.Background(), "search_file_category", map[string]any{
		"file_name": "report.pdf",
		"username":  "alice",
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.FirstText())
	}
	want := "File 'report.pdf' has not been classified into any category yet."
	if result.FirstText() != want {
		t.Errorf("expected %q, got %q", want, result.FirstText())
	}
}

func TestSaveThenSearchFileCategory(t *testing.T) {
	host, _ := newTestHost(t, &fakeModel{})
	ctx := context.Background()

	saved, err := host.CallTool(ctx, "save_file_category", map[string]any{
		"file_name":     "report.pdf",
		"file_category": "Finance Reports",
		"username":      "alice",
	})
	if err != nil {
		t.Fatalf("save CallTool failed: %v", err)
	}
	if saved.IsError {
		t.Fatalf("save reported error: %s", saved.FirstText())
	}

	found, err := host.CallTool(ctx, "search_file_category", map[string]any{
		"file_name": "report.pdf",
		"username":  "alice",
	})
	if err != nil {
		t.Fatalf("search CallTool failed: %v", err)
	}
	want := "File 'report.pdf' is classified under 'Finance Reports' category."
	if found.FirstText() != want {
		t.Errorf("expected %q, got %q", want, found.FirstText())
	}
}

func TestCategoriesAreScopedPerUser(t *testing.T) {
	_, store := newTestHost(t, &fakeModel{})

	if err := store.SetCategory("alice", "report.pdf", "Finance Reports"); err != nil {
		t.Fatalf("SetCategory failed: %v", err)
	}

	if _, ok := store.Category("bob", "report.pdf"); ok {
		t.Error("bob should not see alice's category")
	}
	if category, ok := store.Category("alice", "report.pdf"); !ok || category != "Finance Reports" {
		t.Errorf("expected alice's category, got %q (found=%v)", category, ok)
	}
}

func TestClassifyFileContent(t *testing.T) {
	host, _ := newTestHost(t, &fakeModel{reply: "Technical Documents\n"})

	result, err := host.CallTool(context.Background(), "classify_file_based_on_content", map[string]any{
		"content": "API reference for the payment service",
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.FirstText() != "Technical Documents" {
		t.Errorf("expected trimmed category, got %q", result.FirstText())
	}
}

func TestReadFileJoinsContents(t *testing.T) {
	model := &fakeModel{}
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.txt"), []byte("beta"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := NewMetadataStore(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("NewMetadataStore failed: %v", err)
	}
	host := toolhost.NewLocalHost()
	if err := Register(host, Config{Model: model, Metadata: store, DocsDir: dir}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	result, err := host.CallTool(context.Background(), "read_file", map[string]any{
		"query":     "anything",
		"filenames": []any{"a.txt", "b.txt"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.FirstText() != "alpha\n\nbeta" {
		t.Errorf("unexpected content: %q", result.FirstText())
	}
}

func TestReadFileNothingFoundIsEmpty(t *testing.T) {
	host, _ := newTestHost(t, &fakeModel{})

	result, err := host.CallTool(context.Background(), "read_file", map[string]any{
		"query":     "anything",
		"filenames": []any{"missing.txt"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if result.IsError {
		t.Fatalf("missing file should not be a tool error: %s", result.FirstText())
	}
	if len(result.Content) != 0 {
		t.Errorf("expected empty content, got %+v", result.Content)
	}
}

func TestReadFileRejectsPathTraversal(t *testing.T) {
	host, _ := newTestHost(t, &fakeModel{})

	result, err := host.CallTool(context.Background(), "read_file", map[string]any{
		"query":     "anything",
		"filenames": []any{"../secret.txt"},
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for path traversal")
	}
}

func TestValidatorRejectsMissingArguments(t *testing.T) {
	host, _ := newTestHost(t, &fakeModel{})

	result, err := host.CallTool(context.Background(), "search_file_category", map[string]any{
		"file_name": "report.pdf",
	})
	if err != nil {
		t.Fatalf("CallTool failed: %v", err)
	}
	if !result.IsError {
		t.Error("expected tool error for missing username")
	}
}
