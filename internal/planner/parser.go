// Package planner turns a user turn into a plan: prompt assembly, the
// model call, and parsing of the model's raw output.
package planner

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
)

// Parser classifies raw model output into one of the plan variants.
// Parsing is total: malformed output degrades to a direct message, it
// never fails the run.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a parser. A nil logger disables logging.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Parser{logger: logger}
}

// Parse turns raw model output into a Plan. Markdown code fences are
// stripped first; the remaining text is classified by JSON shape:
// an array becomes an ordered step list, an object with "message" a
// direct reply, an object with "error" a model-declared error. Text
// that does not decode at all is passed through as a message, because
// the model is outside this system's control.
func (p *Parser) Parse(raw string) *chatweave.Plan {
	text := stripFences(raw)

	var decoded any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return &chatweave.Plan{Kind: chatweave.PlanMessage, Message: raw}
	}

	switch v := decoded.(type) {
	case []any:
		return p.parseSteps(v)
	case map[string]any:
		if msg, ok := v["message"]; ok {
			return &chatweave.Plan{Kind: chatweave.PlanMessage, Message: stringify(msg)}
		}
		if reason, ok := v["error"]; ok {
			return &chatweave.Plan{Kind: chatweave.PlanError, Reason: stringify(reason)}
		}
		return &chatweave.Plan{Kind: chatweave.PlanError, Reason: "unparseable response"}
	default:
		return &chatweave.Plan{Kind: chatweave.PlanError, Reason: "unparseable response"}
	}
}

// parseSteps builds a step list from a decoded JSON array. Elements
// without a usable name are dropped with a warning. Missing orders
// default to the element's 1-based position. The result is sorted by
// order ascending, stable on ties.
func (p *Parser) parseSteps(elements []any) *chatweave.Plan {
	steps := make([]chatweave.PlanStep, 0, len(elements))

	for i, element := range elements {
		obj, ok := element.(map[string]any)
		if !ok {
			p.logger.Warn("dropping non-object plan element", "position", i)
			continue
		}

		name := stringField(obj, "name")
		if name == "" {
			// Older prompt variants emitted "tool" instead of "name".
			name = stringField(obj, "tool")
		}
		if name == "" {
			p.logger.Warn("dropping plan element without a tool name", "position", i)
			continue
		}

		args := mapField(obj, "arguments")
		if args == nil {
			args = mapField(obj, "params")
		}
		if args == nil {
			args = map[string]any{}
		}

		order := i + 1
		if n, ok := obj["order"].(float64); ok {
			order = int(n)
		}

		steps = append(steps, chatweave.PlanStep{Name: name, Args: args, Order: order})
	}

	if len(steps) == 0 {
		return &chatweave.Plan{Kind: chatweave.PlanError, Reason: "model returned an empty plan"}
	}

	sort.SliceStable(steps, func(a, b int) bool { return steps[a].Order < steps[b].Order })

	return &chatweave.Plan{Kind: chatweave.PlanSteps, Steps: steps}
}

// stripFences removes a Markdown code-fence wrapper if present. The
// inner payload is returned byte for byte, minus surrounding space.
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		text = text[idx+len("```json"):]
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if end := strings.Index(text, "```"); end >= 0 {
			text = text[:end]
		}
		return strings.TrimSpace(text)
	}

	return text
}

func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return s
	}
	return ""
}

func mapField(obj map[string]any, key string) map[string]any {
	if m, ok := obj[key].(map[string]any); ok {
		return m
	}
	return nil
}

func stringify(value any) string {
	if s, ok := value.(string); ok {
		return s
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(data)
}
