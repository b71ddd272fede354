package executor

import (
	"encoding/json"
	"strings"

	"github.com/Knetic/govaluate"
	chatweave "github.com/ZanzyTHEbar/chatweave-genkit"
)

// exprPrefix marks an argument value that should be evaluated as an
// expression against the stored results.
const exprPrefix = "expr:"

// ResolveArguments rewrites a step's arguments, substituting references
// to prior results with their stored values. The caller's map is never
// mutated; a new map is returned.
func ResolveArguments(args map[string]any, store *chatweave.ResultStore) map[string]any {
	resolved := make(map[string]any, len(args))
	for name, value := range args {
		resolved[name] = resolveValue(value, store)
	}
	return resolved
}

func resolveValue(value any, store *chatweave.ResultStore) any {
	switch v := value.(type) {
	case string:
		return resolveString(v, store)
	case map[string]any:
		nested := make(map[string]any, len(v))
		for k, inner := range v {
			nested[k] = resolveValue(inner, store)
		}
		return nested
	case []any:
		items := make([]any, len(v))
		for i, inner := range v {
			items[i] = resolveValue(inner, store)
		}
		return items
	default:
		return value
	}
}

func resolveString(s string, store *chatweave.ResultStore) any {
	if strings.HasPrefix(s, chatweave.ResultKeyPrefix) {
		// A missing reference resolves to null, not an error: the model
		// may reference a step that stored nothing.
		if text, ok := store.Get(s); ok {
			return text
		}
		return nil
	}

	if strings.HasPrefix(s, exprPrefix) {
		if result, err := evaluateExpression(strings.TrimPrefix(s, exprPrefix), store); err == nil {
			return result
		}
		return s
	}

	// Compatibility shim: models sometimes emit list arguments as a
	// quoted literal. Only exact "[...]" strings are coerced; anything
	// that fails to decode is left untouched.
	if looksLikeList(s) {
		var list []any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &list); err == nil {
			return list
		}
	}

	return s
}

func looksLikeList(s string) bool {
	t := strings.TrimSpace(s)
	return len(t) >= 2 && strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]")
}

// ExpressionFunctionRegistry allows registration of custom functions for
// expression evaluation.
type ExpressionFunctionRegistry struct {
	functions map[string]govaluate.ExpressionFunction
}

var globalExprFuncRegistry = &ExpressionFunctionRegistry{functions: make(map[string]govaluate.ExpressionFunction)}

// RegisterExpressionFunction registers a custom function for expressions.
func RegisterExpressionFunction(name string, fn govaluate.ExpressionFunction) {
	globalExprFuncRegistry.functions[name] = fn
}

// getWhitelistedFunctions returns only whitelisted functions for security.
func getWhitelistedFunctions() map[string]govaluate.ExpressionFunction {
	whitelist := map[string]govaluate.ExpressionFunction{}
	for k, v := range globalExprFuncRegistry.functions {
		whitelist[k] = v
	}
	return whitelist
}

// evaluateExpression evaluates an expression with the stored step
// results bound as variables (by their full "result_<tool>" keys).
func evaluateExpression(expr string, store *chatweave.ResultStore) (any, error) {
	evaluable, err := govaluate.NewEvaluableExpressionWithFunctions(expr, getWhitelistedFunctions())
	if err != nil {
		return nil, err
	}
	return evaluable.Evaluate(store.Snapshot())
}

// ValidateExpression checks if an expression is valid at plan load time.
func ValidateExpression(expr string) error {
	_, err := govaluate.NewEvaluableExpressionWithFunctions(expr, getWhitelistedFunctions())
	return err
}
