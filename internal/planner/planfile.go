package planner

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
	"github.com/ZanzyTHEbar/chatweave-genkit/internal/executor"
	"gopkg.in/yaml.v3"
)

// PlanFile is a canned plan loaded from disk, used for model-free
// replay of a known tool sequence.
type PlanFile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []PlanFileStep `yaml:"steps"`
}

// PlanFileStep is one tool invocation in a plan file.
type PlanFileStep struct {
	Tool  string         `yaml:"tool"`
	Args  map[string]any `yaml:"args"`
	Order int            `yaml:"order"`
}

// PlanFileLoader defines an interface for loading a PlanFile from a source.
type PlanFileLoader interface {
	Load(source string) (*PlanFile, error)
	Format() string // e.g., "yaml", "json"
}

// loaderRegistry holds registered PlanFileLoaders by format name.
var loaderRegistry = make(map[string]PlanFileLoader)

// RegisterPlanFileLoader registers a new PlanFileLoader for a given format.
func RegisterPlanFileLoader(loader PlanFileLoader) {
	loaderRegistry[loader.Format()] = loader
}

// GetPlanFileLoader retrieves a loader by format name (e.g., "yaml").
func GetPlanFileLoader(format string) (PlanFileLoader, bool) {
	loader, ok := loaderRegistry[format]
	return loader, ok
}

// YAMLLoader implements PlanFileLoader for YAML files.
type YAMLLoader struct{}

func (YAMLLoader) Load(path string) (*PlanFile, error) {
	return LoadPlanFile(path)
}

func (YAMLLoader) Format() string { return "yaml" }

func init() {
	RegisterPlanFileLoader(YAMLLoader{})
}

// LoadPlanFile parses a YAML plan file.
func LoadPlanFile(path string) (*PlanFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plan file: %w", err)
	}
	defer f.Close()
	var pf PlanFile
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("failed to parse plan YAML: %w", err)
	}
	return &pf, nil
}

// Validate checks the plan file for empty tool names, duplicate orders
// and invalid expression arguments.
func (pf *PlanFile) Validate() error {
	orders := make(map[int]string, len(pf.Steps))
	for i, step := range pf.Steps {
		if strings.TrimSpace(step.Tool) == "" {
			return fmt.Errorf("step %d has no tool name", i+1)
		}
		if step.Order > 0 {
			if prev, exists := orders[step.Order]; exists {
				return fmt.Errorf("duplicate order %d (tools '%s' and '%s')", step.Order, prev, step.Tool)
			}
			orders[step.Order] = step.Tool
		}
		for name, value := range step.Args {
			if s, ok := value.(string); ok && strings.HasPrefix(s, "expr:") {
				if err := executor.ValidateExpression(strings.TrimPrefix(s, "expr:")); err != nil {
					return fmt.Errorf("invalid expression for argument '%s' of tool '%s': %w", name, step.Tool, err)
				}
			}
		}
	}
	return nil
}

// ToPlan converts a plan file to an executable plan. Steps without an
// explicit order default to their position in the file.
func (pf *PlanFile) ToPlan() *chatweave.Plan {
	steps := make([]chatweave.PlanStep, 0, len(pf.Steps))
	for i, fileStep := range pf.Steps {
		args := fileStep.Args
		if args == nil {
			args = map[string]any{}
		}
		order := fileStep.Order
		if order <= 0 {
			order = i + 1
		}
		steps = append(steps, chatweave.PlanStep{
			Name:  fileStep.Tool,
			Args:  args,
			Order: order,
		})
	}
	sort.SliceStable(steps, func(a, b int) bool { return steps[a].Order < steps[b].Order })
	return &chatweave.Plan{Kind: chatweave.PlanSteps, Steps: steps}
}

// LoadAndValidatePlan loads a plan file using the default loader (YAML),
// validates it, and returns an executable plan.
func LoadAndValidatePlan(path string) (*chatweave.Plan, error) {
	loader, ok := GetPlanFileLoader("yaml")
	if !ok {
		return nil, fmt.Errorf("no YAML plan loader registered")
	}

	planFile, err := loader.Load(path)
	if err != nil {
		return nil, err
	}
	if err := planFile.Validate(); err != nil {
		return nil, err
	}
	return planFile.ToPlan(), nil
}

// FilePlanner replays a canned plan regardless of the query. Useful for
// scripted runs and offline testing.
type FilePlanner struct {
	plan *chatweave.Plan
}

// NewFilePlanner loads and validates the plan file at path.
func NewFilePlanner(path string) (*FilePlanner, error) {
	plan, err := LoadAndValidatePlan(path)
	if err != nil {
		return nil, err
	}
	return &FilePlanner{plan: plan}, nil
}

// GeneratePlan implements chatweave.Planner.
func (p *FilePlanner) GeneratePlan(ctx context.Context, input chatweave.PlannerInput) (*chatweave.Plan, error) {
	return p.plan, nil
}
