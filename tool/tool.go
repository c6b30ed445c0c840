// Package tool implements the capability layer agents act through: the Tool
// contract, registries that map names to tools, composition of several
// registries, and the Executor that turns every invocation outcome into an
// observation string.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/reactmesh/internal/util"
)

// Tool is a named capability an agent can invoke with free-text input.
//
// Implementations must be immutable after registration and safe for
// concurrent use: registries are shared by reference between agents.
type Tool interface {
	// Name returns the unique identifier for this tool within its registry.
	Name() string

	// Description returns a human-readable description shown to the model.
	Description() string

	// Parameters returns a JSON schema describing the accepted input shape.
	Parameters() map[string]any

	// Call executes the tool. Input is the raw tool_input text produced by the
	// action protocol; structured tools translate it with ArgumentsFromInput.
	Call(ctx context.Context, input string) (string, error)
}

// Error codes carried by ToolError.
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
	CodeRemote     = "REMOTE_ERROR"
	CodePanic      = "PANIC"
)

var (
	// ErrToolNotFound is returned (wrapped) when a name does not resolve.
	ErrToolNotFound = errors.New("tool not found")

	// ErrDuplicateTool is returned (wrapped) when a name is registered twice.
	ErrDuplicateTool = errors.New("tool already registered")
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents a failure that happened while a tool ran.
type ToolError struct {
	Tool    string `json:"tool"`    // Name of the tool that failed
	Message string `json:"message"` // Error message
	Code    string `json:"code"`    // Error code for categorization
	Err     error  `json:"-"`
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ToolError) Unwrap() error { return e.Err }

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}
