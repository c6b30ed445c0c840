package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/reactmesh/fsserver"
	"github.com/hupe1980/reactmesh/tool"
)

// pipeTransports serves a fresh server from newServer over a pipe pair per
// connection. The stdio listener registers a single session per server, so
// servers cannot be shared across connections.
func pipeTransports(t *testing.T, newServer func() *mcpserver.MCPServer, dials *atomic.Int32) TransportFactory {
	t.Helper()

	return func(_ context.Context, _ ServerConfig) ([]Candidate, error) {
		if dials != nil {
			dials.Add(1)
		}

		serverReader, clientWriter := io.Pipe()
		clientReader, serverWriter := io.Pipe()

		ctx, cancel := context.WithCancel(context.Background())

		go func() {
			err := mcpserver.NewStdioServer(newServer()).Listen(ctx, serverReader, serverWriter)
			if err == nil {
				err = io.EOF
			}

			// Unblock the client if the listener stops first.
			_ = serverReader.CloseWithError(err)
			_ = serverWriter.CloseWithError(err)
		}()

		t.Cleanup(func() {
			cancel()
			_ = clientWriter.Close()
			_ = serverWriter.Close()
		})

		return []Candidate{{Name: "pipe", Transport: &sdkmcp.IOTransport{Reader: clientReader, Writer: clientWriter}}}, nil
	}
}

func newFSServer(t *testing.T) *fsserver.Server {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "readme.txt"), []byte("hello\nworld\n"), 0o644))

	s, err := fsserver.New(root)
	require.NoError(t, err)

	return s
}

func pipeConfig(name string) ServerConfig {
	return ServerConfig{Name: name, Transport: TransportSubprocess, Command: "in-process", Timeout: Seconds(5)}
}

func TestRegistry_AddServerAndInvoke(t *testing.T) {
	ctx := context.Background()
	fs := newFSServer(t)

	reg := NewRegistry("fs", func(o *Options) { o.Transports = pipeTransports(t, fs.MCPServer, nil) })
	t.Cleanup(func() { _ = reg.CloseAll() })

	require.NoError(t, reg.AddServer(ctx, pipeConfig("files")))

	assert.ElementsMatch(t, []string{
		"fs_files_list_directory",
		"fs_files_read_file",
		"fs_files_get_file_info",
	}, reg.Names())

	readFile, err := reg.Resolve("fs_files_read_file")
	require.NoError(t, err)
	assert.Equal(t, "path", tool.PrimaryField(readFile.Parameters()))

	rt, ok := readFile.(*RemoteTool)
	require.True(t, ok)
	assert.Equal(t, "files", rt.Server())
	assert.Equal(t, "read_file", rt.RemoteName())

	// Plain text binds to the required path field.
	out, err := readFile.Call(ctx, "docs/readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "Contents of readme.txt:\n\nhello\nworld", out)

	// JSON carries optional fields.
	out, err = readFile.Call(ctx, `{"path": "docs/readme.txt", "max_lines": 1}`)
	require.NoError(t, err)
	assert.Contains(t, out, "(truncated at 1 lines)")

	ex := tool.NewExecutor(reg)
	assert.Contains(t, ex.Invoke(ctx, "fs_files_list_directory", "docs"), "[file] readme.txt (12 bytes)")
	assert.Contains(t, ex.Invoke(ctx, "fs_files_read_file", "../../etc/passwd"), "access denied")

	_, err = reg.Resolve("files_read_file")
	assert.ErrorIs(t, err, tool.ErrToolNotFound)

	status := reg.Status()
	require.Len(t, status, 1)
	assert.Equal(t, StateReady, status[0].State)
	assert.Equal(t, "filesystem", status[0].ServerInfo.Name)
	assert.Len(t, status[0].Tools, 3)
}

func TestRegistry_AddServerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	fs := newFSServer(t)

	var dials atomic.Int32
	reg := NewRegistry("fs", func(o *Options) { o.Transports = pipeTransports(t, fs.MCPServer, &dials) })
	t.Cleanup(func() { _ = reg.CloseAll() })

	require.NoError(t, reg.AddServer(ctx, pipeConfig("files")))
	require.NoError(t, reg.AddServer(ctx, pipeConfig("files")))

	assert.Equal(t, int32(1), dials.Load())
	assert.Len(t, reg.Names(), 3)
	assert.Len(t, reg.Status(), 1)
}

func TestRegistry_ReconnectAfterClose(t *testing.T) {
	ctx := context.Background()
	fs := newFSServer(t)

	var dials atomic.Int32
	reg := NewRegistry("fs", func(o *Options) { o.Transports = pipeTransports(t, fs.MCPServer, &dials) })
	t.Cleanup(func() { _ = reg.CloseAll() })

	require.NoError(t, reg.AddServer(ctx, pipeConfig("files")))

	old, ok := reg.Connection("files")
	require.True(t, ok)

	require.NoError(t, reg.CloseAll())
	assert.Empty(t, reg.Names())
	assert.Equal(t, StateClosed, old.State())

	require.NoError(t, reg.AddServer(ctx, pipeConfig("files")))
	assert.Equal(t, int32(2), dials.Load())
	assert.Len(t, reg.Names(), 3)

	current, ok := reg.Connection("files")
	require.True(t, ok)
	assert.NotSame(t, old, current)
	assert.Equal(t, StateReady, current.State())
}

func TestRegistry_DiscoveryFailureIsIsolated(t *testing.T) {
	ctx := context.Background()
	fs := newFSServer(t)
	good := pipeTransports(t, fs.MCPServer, nil)

	var brokenDials atomic.Int32

	reg := NewRegistry("fs", func(o *Options) {
		o.Retries = 1
		o.RetryInterval = time.Millisecond
		o.Transports = func(ctx context.Context, cfg ServerConfig) ([]Candidate, error) {
			if cfg.Name == "broken" {
				brokenDials.Add(1)
				return []Candidate{{Name: "refused", Transport: failingTransport{err: errors.New("connection refused")}}}, nil
			}

			return good(ctx, cfg)
		}
	})
	t.Cleanup(func() { _ = reg.CloseAll() })

	err := reg.AddServers(ctx, []ServerConfig{pipeConfig("broken"), pipeConfig("files")})
	require.Error(t, err)

	var derr *DiscoveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "broken", derr.Server)
	assert.Contains(t, derr.Error(), "connection refused")
	assert.Equal(t, int32(2), brokenDials.Load())

	// The healthy server is still usable.
	assert.Len(t, reg.Names(), 3)

	status := reg.Status()
	require.Len(t, status, 2)
	assert.Equal(t, StateFailed, status[0].State)
	assert.Contains(t, status[0].Error, "connection refused")
	assert.Equal(t, StateReady, status[1].State)
}

func TestRegistry_RetryRecovers(t *testing.T) {
	ctx := context.Background()
	fs := newFSServer(t)
	good := pipeTransports(t, fs.MCPServer, nil)

	var attempts atomic.Int32

	reg := NewRegistry("", func(o *Options) {
		o.Retries = 2
		o.RetryInterval = time.Millisecond
		o.Transports = func(ctx context.Context, cfg ServerConfig) ([]Candidate, error) {
			if attempts.Add(1) == 1 {
				return []Candidate{{Name: "flaky", Transport: failingTransport{err: errors.New("not yet")}}}, nil
			}

			return good(ctx, cfg)
		}
	})
	t.Cleanup(func() { _ = reg.CloseAll() })

	require.NoError(t, reg.AddServer(ctx, pipeConfig("files")))
	assert.Equal(t, int32(2), attempts.Load())
	assert.Contains(t, reg.Names(), "files_read_file")
}

func TestRegistry_InvalidAndDisabledConfigs(t *testing.T) {
	ctx := context.Background()

	var dials atomic.Int32
	reg := NewRegistry("x", func(o *Options) {
		o.Transports = func(context.Context, ServerConfig) ([]Candidate, error) {
			dials.Add(1)
			return nil, errors.New("unexpected dial")
		}
	})

	var derr *DiscoveryError

	err := reg.AddServer(ctx, ServerConfig{Name: "web", Transport: TransportStream})
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "web", derr.Server)

	err = reg.AddServer(ctx, ServerConfig{Transport: TransportSubprocess, Command: "x"})
	require.ErrorAs(t, err, &derr)

	disabled := false
	require.NoError(t, reg.AddServer(ctx, ServerConfig{Name: "off", Transport: TransportSubprocess, Command: "x", Enabled: &disabled}))

	assert.Equal(t, int32(0), dials.Load())

	status := reg.Status()
	require.Len(t, status, 1)
	assert.Equal(t, StateDisabled, status[0].State)
	assert.NoError(t, reg.CloseAll())
}

func TestRegistry_MissingCommand(t *testing.T) {
	reg := NewRegistry("x", func(o *Options) { o.Retries = 0 })

	err := reg.AddServer(context.Background(), ServerConfig{
		Name:      "ghost",
		Transport: TransportSubprocess,
		Command:   filepath.Join(t.TempDir(), "does-not-exist"),
		Timeout:   Seconds(2),
	})

	var derr *DiscoveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "ghost", derr.Server)
	assert.Empty(t, reg.Names())
}

func TestRegistry_CloseAll(t *testing.T) {
	ctx := context.Background()
	fs := newFSServer(t)

	reg := NewRegistry("fs", func(o *Options) { o.Transports = pipeTransports(t, fs.MCPServer, nil) })
	require.NoError(t, reg.AddServer(ctx, pipeConfig("a")))
	require.NoError(t, reg.AddServer(ctx, pipeConfig("b")))
	assert.Len(t, reg.Names(), 6)

	held, err := reg.Resolve("fs_a_read_file")
	require.NoError(t, err)

	require.NoError(t, reg.CloseAll())
	require.NoError(t, reg.CloseAll())

	assert.Empty(t, reg.Names())

	for _, st := range reg.Status() {
		assert.Equal(t, StateClosed, st.State)
	}

	// A tool handle kept past close reports the closed server.
	_, err = held.Call(ctx, "docs/readme.txt")

	var terr *tool.ToolError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, tool.CodeRemote, terr.Code)
	assert.Equal(t, "server a is not connected", terr.Message)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestRegistry_RemoteToolError(t *testing.T) {
	ctx := context.Background()

	flaky := func() *mcpserver.MCPServer {
		srv := mcpserver.NewMCPServer("flaky", "1.0.0", mcpserver.WithToolCapabilities(true))
		srv.AddTool(mcpgo.NewTool("explode",
			mcpgo.WithDescription("Always fails"),
			mcpgo.WithString("reason", mcpgo.Required()),
		), func(_ context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
			reason, _ := req.GetArguments()["reason"].(string)
			return mcpgo.NewToolResultError("boom: " + reason), nil
		})

		return srv
	}

	reg := NewRegistry("t", func(o *Options) { o.Transports = pipeTransports(t, flaky, nil) })
	t.Cleanup(func() { _ = reg.CloseAll() })

	require.NoError(t, reg.AddServer(ctx, pipeConfig("srv")))

	ex := tool.NewExecutor(reg)
	assert.Equal(t, "Error executing tool 't_srv_explode': boom: testing", ex.Invoke(ctx, "t_srv_explode", "testing"))
	assert.Equal(t,
		"Error executing tool 't_srv_explode': parameter validation failed: validation error for field 'reason': required field is missing",
		ex.Invoke(ctx, "t_srv_explode", `{"other": 1}`))
}

func TestRegistry_CompositeWithPrefixes(t *testing.T) {
	ctx := context.Background()
	fs := newFSServer(t)

	research := NewRegistry("research", func(o *Options) { o.Transports = pipeTransports(t, fs.MCPServer, nil) })
	writing := NewRegistry("writing", func(o *Options) { o.Transports = pipeTransports(t, fs.MCPServer, nil) })

	t.Cleanup(func() {
		_ = research.CloseAll()
		_ = writing.CloseAll()
	})

	require.NoError(t, research.AddServer(ctx, pipeConfig("files")))
	require.NoError(t, writing.AddServer(ctx, pipeConfig("files")))

	local, err := tool.NewRegistry(tool.NewTextTool("echo", "Echoes input", func(_ context.Context, in string) (string, error) {
		return in, nil
	}))
	require.NoError(t, err)

	composite := tool.NewComposite([]tool.Resolver{local, research, writing})

	assert.Len(t, composite.Names(), 7)
	assert.Empty(t, composite.Collisions())

	for _, name := range research.Names() {
		got, err := composite.Resolve(name)
		require.NoError(t, err)
		assert.Same(t, got, mustResolve(t, research, name))
	}

	for _, name := range writing.Names() {
		got, err := composite.Resolve(name)
		require.NoError(t, err)
		assert.Same(t, got, mustResolve(t, writing, name))
	}
}

func mustResolve(t *testing.T, r tool.Resolver, name string) tool.Tool {
	t.Helper()

	got, err := r.Resolve(name)
	require.NoError(t, err)

	return got
}

func TestRegistry_StreamTransport(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fs := newFSServer(t)

	port := getFreePort(t)
	addr := fmt.Sprintf("localhost:%d", port)

	sse := fs.NewSSEServer("http://" + addr)

	go func() {
		if err := sse.Start(addr); err != nil {
			t.Logf("SSE server error: %v", err)
		}
	}()

	waitForServer(t, addr, 5*time.Second)

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = sse.Shutdown(shutdownCtx)
	}()

	reg := NewRegistry("web")
	defer func() { _ = reg.CloseAll() }()

	require.NoError(t, reg.AddServer(ctx, ServerConfig{
		Name:      "files",
		Transport: TransportStream,
		URL:       fmt.Sprintf("http://%s/sse", addr),
		Timeout:   Seconds(5),
	}))

	ex := tool.NewExecutor(reg)
	assert.Contains(t, ex.Invoke(ctx, "web_files_get_file_info", "docs"), "Type: directory")

	// Concurrent calls share the session.
	done := make(chan string, 4)
	for i := 0; i < 4; i++ {
		go func() { done <- ex.Invoke(ctx, "web_files_read_file", "docs/readme.txt") }()
	}

	for i := 0; i < 4; i++ {
		assert.Contains(t, <-done, "hello")
	}
}

type failingTransport struct {
	err error
}

func (f failingTransport) Connect(context.Context) (sdkmcp.Connection, error) {
	return nil, f.err
}

// getFreePort returns an available TCP port.
func getFreePort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port
}

// waitForServer waits until the server is accepting connections.
func waitForServer(t *testing.T, addr string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}
