package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// ErrConnectionClosed is returned when invoking through a closed or failed connection.
var ErrConnectionClosed = errors.New("mcp: connection closed")

// State is the lifecycle state of a Connection.
type State string

const (
	StateConnecting State = "connecting"
	StateReady      State = "ready"
	StateClosed     State = "closed"
	StateFailed     State = "failed"
	// StateDisabled marks a configured server that was skipped.
	StateDisabled State = "disabled"
)

// Descriptor describes one tool offered by a server.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// ServerInfo is what the server reported during the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// RemoteError is a tool-level failure reported by the server (isError).
type RemoteError struct {
	Tool    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote tool %s failed: %s", e.Tool, e.Message)
}

// session is the part of *sdkmcp.ClientSession a Connection uses.
type session interface {
	ListTools(ctx context.Context, params *sdkmcp.ListToolsParams) (*sdkmcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *sdkmcp.CallToolParams) (*sdkmcp.CallToolResult, error)
	Close() error
}

// Connection is a live handle to one tool server. It is owned by the
// Registry that opened it.
type Connection struct {
	config  ServerConfig
	session session
	info    ServerInfo

	mu    sync.RWMutex
	state State
	err   error

	closeOnce sync.Once
	closeErr  error
	cancel    context.CancelFunc
}

func newConnection(cfg ServerConfig, s session, info ServerInfo) *Connection {
	return &Connection{config: cfg, session: s, info: info, state: StateReady}
}

func serverInfo(s *sdkmcp.ClientSession) ServerInfo {
	if res := s.InitializeResult(); res != nil && res.ServerInfo != nil {
		return ServerInfo{Name: res.ServerInfo.Name, Version: res.ServerInfo.Version}
	}

	return ServerInfo{}
}

// Name returns the configured server name.
func (c *Connection) Name() string { return c.config.Name }

// Config returns the server config.
func (c *Connection) Config() ServerConfig { return c.config }

// ServerInfo returns the handshake info.
func (c *Connection) ServerInfo() ServerInfo { return c.info }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state
}

// Err returns the error that failed the connection, if any.
func (c *Connection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.err
}

func (c *Connection) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateReady {
		c.state = StateFailed
		c.err = err
	}
}

func (c *Connection) ready() error {
	switch c.State() {
	case StateReady:
		return nil
	case StateFailed:
		return fmt.Errorf("%w: server %s failed: %v", ErrConnectionClosed, c.config.Name, c.Err())
	default:
		return fmt.Errorf("%w: server %s", ErrConnectionClosed, c.config.Name)
	}
}

// Discover lists the server's tools.
func (c *Connection) Discover(ctx context.Context) ([]Descriptor, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.EffectiveTimeout())
	defer cancel()

	var (
		descriptors []Descriptor
		cursor      string
	)

	for {
		params := &sdkmcp.ListToolsParams{}
		if cursor != "" {
			params.Cursor = cursor
		}

		res, err := c.session.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}

		for _, t := range res.Tools {
			if t == nil {
				continue
			}

			descriptors = append(descriptors, Descriptor{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: normalizeSchema(t.InputSchema),
			})
		}

		if res.NextCursor == "" {
			return descriptors, nil
		}

		cursor = res.NextCursor
	}
}

// normalizeSchema turns whatever the SDK decoded into a plain JSON map.
func normalizeSchema(schema any) map[string]any {
	if schema == nil {
		return map[string]any{"type": "object"}
	}

	if m, ok := schema.(map[string]any); ok {
		return m
	}

	b, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object"}
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil || m == nil {
		return map[string]any{"type": "object"}
	}

	return m
}

// Invoke calls a tool by its server-side name and returns the text content.
// A tool-level failure is returned as *RemoteError; transport failures are
// returned as-is.
func (c *Connection) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}

	if args == nil {
		args = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.EffectiveTimeout())
	defer cancel()

	res, err := c.session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return "", fmt.Errorf("call %s on %s: %w", name, c.config.Name, err)
	}

	if res == nil {
		return "", fmt.Errorf("server %s returned no result for %s", c.config.Name, name)
	}

	text := contentText(res.Content)

	if res.IsError {
		if text == "" {
			text = "tool execution failed"
		}

		return "", &RemoteError{Tool: name, Message: text}
	}

	return text, nil
}

func contentText(content []sdkmcp.Content) string {
	parts := make([]string, 0, len(content))

	for _, item := range content {
		switch c := item.(type) {
		case *sdkmcp.TextContent:
			parts = append(parts, c.Text)
		case *sdkmcp.ImageContent:
			parts = append(parts, fmt.Sprintf("[image %s, %d bytes]", c.MIMEType, len(c.Data)))
		default:
			parts = append(parts, fmt.Sprintf("[%T content omitted]", item))
		}
	}

	return strings.Join(parts, "\n")
}

// Close ends the session. For subprocess servers this closes the child's
// stdin and waits for it to exit. Only the first call has an effect; a
// failed connection keeps its failed state.
func (c *Connection) Close() error {
	c.closeOnce.Do(func() {
		start := time.Now()

		c.mu.Lock()
		if c.state != StateFailed {
			c.state = StateClosed
		}
		c.mu.Unlock()

		if c.session != nil {
			c.closeErr = c.session.Close()
		}

		if c.cancel != nil {
			c.cancel()
		}

		if c.closeErr != nil {
			c.closeErr = fmt.Errorf("close %s after %s: %w", c.config.Name, time.Since(start).Round(time.Millisecond), c.closeErr)
		}
	})

	return c.closeErr
}
