package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/reactmesh/internal/util"
)

// FunctionTool exposes a Go function taking structured arguments as a Tool.
//
// The free-text input is translated into arguments with ArgumentsFromInput,
// validated against the declared schema and handed to the function. Errors are
// normalized to *ToolError:
//
//	*ToolError (returned directly)  -> forwarded unchanged
//	translation or validation error -> *ToolError{Code: VALIDATION_ERROR}
//	other error                     -> *ToolError{Code: EXECUTION_ERROR}
//
// A FunctionTool has no mutable state after construction and is safe for
// concurrent use.
type FunctionTool struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFunctionTool constructs a FunctionTool from explicit schema and function.
//
// Example:
//
//	sumTool := NewFunctionTool(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunctionTool(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	return &FunctionTool{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionToolFromStruct derives the parameter schema from a struct using reflection.
func NewFunctionToolFromStruct(
	name, description string,
	structType any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FunctionTool {
	return NewFunctionTool(name, description, util.CreateSchema(structType), fn)
}

// Name returns the tool name.
func (t *FunctionTool) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *FunctionTool) Description() string { return t.description }

// Parameters returns the JSON schema describing expected arguments.
func (t *FunctionTool) Parameters() map[string]any { return t.parameters }

// Call translates, validates and executes.
func (t *FunctionTool) Call(ctx context.Context, input string) (string, error) {
	args, err := ArgumentsFromInput(t.parameters, input)
	if err != nil {
		return "", &ToolError{Tool: t.name, Message: err.Error(), Code: CodeValidation, Err: err}
	}

	if err := util.ValidateParameters(args, t.parameters); err != nil {
		return "", &ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Err:     err,
		}
	}

	result, err := t.fn(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return "", toolErr
		}
		return "", &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution, Err: err}
	}

	return FormatResult(result), nil
}

// TextTool wraps a function that consumes the raw tool_input string directly.
type TextTool struct {
	name        string
	description string
	fn          func(ctx context.Context, input string) (string, error)
}

// NewTextTool constructs a TextTool.
func NewTextTool(name, description string, fn func(ctx context.Context, input string) (string, error)) *TextTool {
	return &TextTool{name: name, description: description, fn: fn}
}

// Name returns the tool name.
func (t *TextTool) Name() string { return t.name }

// Description returns the description exposed to models.
func (t *TextTool) Description() string { return t.description }

// Parameters describes the single free-text input.
func (t *TextTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"input": map[string]any{"type": "string", "description": "free-text input"},
		},
		"required": []string{"input"},
	}
}

// Call executes the wrapped function.
func (t *TextTool) Call(ctx context.Context, input string) (string, error) {
	out, err := t.fn(ctx, input)
	if err != nil {
		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			return "", toolErr
		}
		return "", &ToolError{Tool: t.name, Message: err.Error(), Code: CodeExecution, Err: err}
	}
	return out, nil
}
