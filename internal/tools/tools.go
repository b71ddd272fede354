package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/toolhost"
	"github.com/google/jsonschema-go/jsonschema"
)

// Categories a file can be classified into.
var Categories = []string{
	"Company Plans",
	"Company Reports",
	"Company Policies",
	"Business Contracts",
	"Business Plans",
	"Project Plans",
	"Project Proposals",
	"Project Management Files",
	"Finance Reports",
	"Finance Plans",
	"Marketing Campaigns",
	"Sales Presentations",
	"Sales Reports",
	"Technical Documents",
	"Legal Documents",
	"Human Resources Records",
	"CVs and Resumes",
	"Meeting Notes",
	"Training Materials",
	"Customer Support Documents",
	"Product Documentation",
	"Internal Communications",
	"External Communications",
}

// Config wires the collaborators the built-in tools need.
type Config struct {
	// Model answers the classification and summarization tools.
	Model chatweave.ModelClient
	// Metadata stores per-user file categories.
	Metadata *MetadataStore
	// DocsDir is the directory read_file serves files from.
	DocsDir string
}

type searchCategoryArgs struct {
	FileName string `json:"file_name" jsonschema:"the name of the file whose category is to be retrieved"`
	Username string `json:"username" jsonschema:"the user the file belongs to"`
}

type classifyArgs struct {
	Content string `json:"content" jsonschema:"the file content to classify"`
}

type saveCategoryArgs struct {
	FileName     string `json:"file_name" jsonschema:"the name of the file whose category is to be saved"`
	FileCategory string `json:"file_category" jsonschema:"the category to save for the file"`
	Username     string `json:"username" jsonschema:"the user the file belongs to"`
}

type readFileArgs struct {
	Query     string   `json:"query" jsonschema:"the search query or context string"`
	Filenames []string `json:"filenames,omitempty" jsonschema:"optional list of file names to read"`
}

type summaryArgs struct {
	Content string `json:"content" jsonschema:"the file content to summarize"`
}

// Register adds the built-in file assistant tools to the host.
func Register(host *toolhost.LocalHost, cfg Config) error {
	if cfg.Model == nil {
		return chatweave.NewConfigurationError("tools require a model client", nil)
	}
	if cfg.Metadata == nil {
		return chatweave.NewConfigurationError("tools require a metadata store", nil)
	}

	type registration struct {
		name    string
		handler toolhost.Handler
		options []toolhost.ToolOption
	}

	registrations := []registration{
		{
			name:    "search_file_category",
			handler: searchFileCategory(cfg.Metadata),
			options: []toolhost.ToolOption{
				toolhost.WithDescription("Search the category of a user's file if the file has been classified before. This tool helps users to quickly find out which category a file belongs to."),
				toolhost.WithDisplayTemplate("Search category of file {file_name} in metadata"),
				toolhost.WithSchema(mustSchema[searchCategoryArgs]()),
				toolhost.WithValidator(requireStrings("file_name", "username")),
			},
		},
		{
			name:    "classify_file_based_on_content",
			handler: classifyFileContent(cfg.Model),
			options: []toolhost.ToolOption{
				toolhost.WithDescription("Classify a file into a specific category based on the content of the file. Available categories include: " + strings.Join(Categories, ", ") + "."),
				toolhost.WithDisplayTemplate("Analyze the content of file and classify it into a category"),
				toolhost.WithSchema(mustSchema[classifyArgs]()),
				toolhost.WithValidator(requireStrings("content")),
			},
		},
		{
			name:    "save_file_category",
			handler: saveFileCategory(cfg.Metadata),
			options: []toolhost.ToolOption{
				toolhost.WithDescription("Store category of a file to metadata storage to use in the future."),
				toolhost.WithDisplayTemplate("Save category of file {file_name} to metadata"),
				toolhost.WithSchema(mustSchema[saveCategoryArgs]()),
				toolhost.WithValidator(requireStrings("file_name", "file_category", "username")),
			},
		},
		{
			name:    "read_file",
			handler: readFile(cfg.DocsDir),
			options: []toolhost.ToolOption{
				toolhost.WithDescription("Read one or more files from storage. Query is the content being looked for. Filenames is a list of file names; for a single file pass an array of one element."),
				toolhost.WithDisplayTemplate("Reading file content"),
				toolhost.WithSchema(mustSchema[readFileArgs]()),
			},
		},
		{
			name:    "summary_file_content",
			handler: summaryFileContent(cfg.Model),
			options: []toolhost.ToolOption{
				toolhost.WithDescription("Make sure the file content was read from a file before using this tool. Summarize the content of a file into a short summary."),
				toolhost.WithDisplayTemplate("Summarizing the content of file"),
				toolhost.WithSchema(mustSchema[summaryArgs]()),
				toolhost.WithValidator(requireStrings("content")),
			},
		},
	}

	for _, r := range registrations {
		if err := host.Register(r.name, r.handler, r.options...); err != nil {
			return err
		}
	}
	return nil
}

func searchFileCategory(store *MetadataStore) toolhost.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		fileName := stringArg(args, "file_name")
		username := stringArg(args, "username")

		category, ok := store.Category(username, fileName)
		if !ok {
			return fmt.Sprintf("File '%s' has not been classified into any category yet.", fileName), nil
		}
		return fmt.Sprintf("File '%s' is classified under '%s' category.", fileName, category), nil
	}
}

func classifyFileContent(model chatweave.ModelClient) toolhost.Handler {
	system := "You are a file classification expert. Your task is to analyze the content of a file and classify it into one of the following categories: " +
		strings.Join(Categories, ", ") +
		". If the content does not fit any category, return 'Unclassified'. Only return the category name without any additional text."

	return func(ctx context.Context, args map[string]any) (string, error) {
		content := stringArg(args, "content")

		answer, err := model.Generate(ctx, []chatweave.Message{
			{Role: chatweave.RoleSystem, Content: system},
			{Role: chatweave.RoleUser, Content: content},
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(answer), nil
	}
}

func saveFileCategory(store *MetadataStore) toolhost.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		fileName := stringArg(args, "file_name")
		category := stringArg(args, "file_category")
		username := stringArg(args, "username")

		if err := store.SetCategory(username, fileName, category); err != nil {
			return "", fmt.Errorf("failed to save category: %w", err)
		}
		return fmt.Sprintf("Category '%s' has been saved for file '%s'.", category, fileName), nil
	}
}

// readFile returns the joined contents of the requested files. An empty
// result means nothing was found, which the executor treats as fatal
// for this tool.
func readFile(docsDir string) toolhost.Handler {
	return func(ctx context.Context, args map[string]any) (string, error) {
		filenames := stringSliceArg(args, "filenames")
		if len(filenames) == 0 {
			return "", nil
		}

		var contents []string
		for _, name := range filenames {
			// Reject path traversal out of the docs directory.
			if name != filepath.Base(name) {
				return "", fmt.Errorf("invalid file name '%s'", name)
			}
			data, err := os.ReadFile(filepath.Join(docsDir, name))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return "", err
			}
			contents = append(contents, string(data))
		}

		return strings.Join(contents, "\n\n"), nil
	}
}

func summaryFileContent(model chatweave.ModelClient) toolhost.Handler {
	system := "You are a file summary expert. Your task is to analyze the content of the specific file content and summarize it into a short summary. Only return the summary without any additional text."

	return func(ctx context.Context, args map[string]any) (string, error) {
		content := stringArg(args, "content")

		answer, err := model.Generate(ctx, []chatweave.Message{
			{Role: chatweave.RoleSystem, Content: system},
			{Role: chatweave.RoleUser, Content: content},
		})
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(answer), nil
	}
}

// requireStrings validates that each named argument is a non-empty
// string.
func requireStrings(names ...string) func(map[string]any) error {
	return func(args map[string]any) error {
		for _, name := range names {
			value, ok := args[name]
			if !ok {
				return fmt.Errorf("missing required argument '%s'", name)
			}
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("argument '%s' must be a string, got %T", name, value)
			}
			if s == "" {
				return fmt.Errorf("argument '%s' cannot be empty", name)
			}
		}
		return nil
	}
}

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// stringSliceArg reads a list argument; decoded JSON arrives as []any.
func stringSliceArg(args map[string]any, name string) []string {
	switch value := args[name].(type) {
	case []string:
		return value
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func mustSchema[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(err)
	}
	return schema
}
