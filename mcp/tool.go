package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/reactmesh/internal/util"
	"github.com/hupe1980/reactmesh/tool"
)

// RemoteTool is a tool served by a remote server. Its Call translates the
// free-text tool_input into the structured arguments the server expects.
type RemoteTool struct {
	name       string
	server     string
	remoteName string
	desc       string
	schema     map[string]any
	conn       *Connection
}

// Name implements tool.Tool.
func (t *RemoteTool) Name() string { return t.name }

// Description implements tool.Tool.
func (t *RemoteTool) Description() string { return t.desc }

// Parameters implements tool.Tool.
func (t *RemoteTool) Parameters() map[string]any { return t.schema }

// Server returns the name of the server that serves the tool.
func (t *RemoteTool) Server() string { return t.server }

// RemoteName returns the tool name on the server.
func (t *RemoteTool) RemoteName() string { return t.remoteName }

// Call implements tool.Tool.
func (t *RemoteTool) Call(ctx context.Context, input string) (string, error) {
	args, err := tool.ArgumentsFromInput(t.schema, input)
	if err != nil {
		return "", &tool.ToolError{Tool: t.name, Message: err.Error(), Code: tool.CodeValidation, Err: err}
	}

	if err := util.ValidateParameters(args, t.schema); err != nil {
		return "", &tool.ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    tool.CodeValidation,
			Err:     err,
		}
	}

	out, err := t.conn.Invoke(ctx, t.remoteName, args)
	if err == nil {
		return out, nil
	}

	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return "", &tool.ToolError{Tool: t.name, Message: remoteErr.Message, Code: tool.CodeRemote, Err: err}
	}

	if errors.Is(err, ErrConnectionClosed) {
		return "", &tool.ToolError{
			Tool:    t.name,
			Message: fmt.Sprintf("server %s is not connected", t.server),
			Code:    tool.CodeRemote,
			Err:     err,
		}
	}

	return "", &tool.ToolError{Tool: t.name, Message: err.Error(), Code: tool.CodeRemote, Err: err}
}
