package chatweave

import "fmt"

// Error codes for specific failure types
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeToolNotFound   = "TOOL_NOT_FOUND"
	ErrCodeToolExecution  = "TOOL_EXECUTION_ERROR"
	ErrCodeEmptyContent   = "TOOL_EMPTY_CONTENT"
	ErrCodePlanGeneration = "PLAN_GENERATION_ERROR"
	ErrCodePlanExecution  = "PLAN_EXECUTION_ERROR"
	ErrCodeEmission       = "EMISSION_ERROR"
	ErrCodeConfiguration  = "CONFIGURATION_ERROR"
	ErrCodeCancelled      = "EXECUTION_CANCELLED"
	ErrCodeCache          = "CACHE_ERROR"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ChatWeaveError is a custom error type for chatweave specific errors.
type ChatWeaveError struct {
	Code    string // A machine-readable error code (e.g., ErrCodeToolNotFound)
	Message string // A human-readable message
	Stage   string // The stage where the error occurred (e.g., "planning", "executing")
	Cause   error  // The underlying error, if any
}

// Error implements the error interface.
func (e *ChatWeaveError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Stage, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Stage, e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error, allowing for error chaining.
func (e *ChatWeaveError) Unwrap() error {
	return e.Cause
}

// NewError creates a new ChatWeaveError.
func NewError(code, stage, message string, cause error) *ChatWeaveError {
	return &ChatWeaveError{
		Code:    code,
		Stage:   stage,
		Message: message,
		Cause:   cause,
	}
}

// Specific error constructors

func NewValidationError(stage, message string, cause error) *ChatWeaveError {
	return NewError(ErrCodeValidation, stage, message, cause)
}

func NewToolNotFoundError(stage, toolName string) *ChatWeaveError {
	return NewError(ErrCodeToolNotFound, stage, fmt.Sprintf("tool '%s' not found", toolName), nil)
}

func NewToolExecutionError(stage, toolName string, cause error) *ChatWeaveError {
	return NewError(ErrCodeToolExecution, stage, fmt.Sprintf("execution failed for tool '%s'", toolName), cause)
}

func NewEmptyContentError(stage, toolName string) *ChatWeaveError {
	msg := fmt.Sprintf("tool '%s' returned no content", toolName)
	return NewError(ErrCodeEmptyContent, stage, msg, nil)
}

func NewPlanGenerationError(cause error) *ChatWeaveError {
	return NewError(ErrCodePlanGeneration, "planning", "failed to generate plan", cause)
}

func NewPlanExecutionError(cause error) *ChatWeaveError {
	return NewError(ErrCodePlanExecution, "executing", "plan execution failed", cause)
}

func NewEmissionError(stage string, cause error) *ChatWeaveError {
	return NewError(ErrCodeEmission, stage, "frame emission failed", cause)
}

func NewConfigurationError(message string, cause error) *ChatWeaveError {
	return NewError(ErrCodeConfiguration, "initialization", message, cause)
}

func NewCancelledError(stage string, cause error) *ChatWeaveError {
	msg := "execution cancelled"
	if cause != nil && cause.Error() != "" && cause.Error() != "context canceled" {
		msg = fmt.Sprintf("execution cancelled: %v", cause)
	}
	return NewError(ErrCodeCancelled, stage, msg, cause)
}

func NewCacheError(stage, operation string, cause error) *ChatWeaveError {
	return NewError(ErrCodeCache, stage, fmt.Sprintf("cache operation '%s' failed", operation), cause)
}

func NewInternalError(stage, message string, cause error) *ChatWeaveError {
	return NewError(ErrCodeInternal, stage, message, cause)
}
