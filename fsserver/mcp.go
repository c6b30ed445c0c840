package fsserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Tool names exposed over MCP.
const (
	ListDirectoryTool = "list_directory"
	ReadFileTool      = "read_file"
	GetFileInfoTool   = "get_file_info"
)

// MCPServer builds an MCP server exposing the filesystem tools.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(
		s.opts.Name,
		s.opts.Version,
		server.WithToolCapabilities(true),
	)

	root := s.sandbox.Root()

	srv.AddTool(mcp.NewTool(ListDirectoryTool,
		mcp.WithDescription(fmt.Sprintf(
			"List files and directories in a path with their kind and size. All paths are relative to: %s", root)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Directory path to list, relative to the root or absolute within it. Use '.' for the root."),
		),
	), s.handle(ListDirectoryTool))

	srv.AddTool(mcp.NewTool(ReadFileTool,
		mcp.WithDescription(fmt.Sprintf(
			"Read the contents of a text file. All paths are relative to: %s", root)),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the file to read"),
		),
		mcp.WithNumber("max_lines",
			mcp.Description(fmt.Sprintf("Maximum number of lines to read (default: %d)", s.opts.MaxLines)),
		),
	), s.handle(ReadFileTool))

	srv.AddTool(mcp.NewTool(GetFileInfoTool,
		mcp.WithDescription("Get metadata about a file or directory: type, size and modification time."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the file or directory"),
		),
	), s.handle(GetFileInfoTool))

	return srv
}

func (s *Server) handle(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText(s.Call(ctx, name, request.GetArguments())), nil
	}
}

// ServeStdio serves the tools on standard input and output until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

// NewSSEServer returns an SSE server for the tools. baseURL is the externally
// visible address, e.g. "http://localhost:8080".
func (s *Server) NewSSEServer(baseURL string) *server.SSEServer {
	return server.NewSSEServer(s.MCPServer(), server.WithBaseURL(baseURL))
}
