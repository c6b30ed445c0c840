package fsserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hupe1980/reactmesh/logging"
)

// DefaultMaxLines caps read_file when the caller gives no max_lines.
const DefaultMaxLines = 100

// Options configures a Server.
type Options struct {
	// Name and Version are reported during the MCP handshake.
	Name    string
	Version string

	// MaxLines is the read_file default cap.
	MaxLines int

	Logger logging.Logger
}

// Server implements the filesystem operations over a Sandbox.
type Server struct {
	sandbox *Sandbox
	opts    Options
}

// New creates a server confined to root.
func New(root string, optFns ...func(o *Options)) (*Server, error) {
	opts := Options{
		Name:     "filesystem",
		Version:  "1.0.0",
		MaxLines: DefaultMaxLines,
		Logger:   logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}

	sandbox, err := NewSandbox(root)
	if err != nil {
		return nil, err
	}

	return &Server{sandbox: sandbox, opts: opts}, nil
}

// Root returns the canonical sandbox root.
func (s *Server) Root() string { return s.sandbox.Root() }

func (s *Server) resolve(op, path string) (string, string, bool) {
	resolved, err := s.sandbox.Resolve(path)
	if err == nil {
		return resolved, "", true
	}

	if errors.Is(err, ErrAccessDenied) {
		s.opts.Logger.Warn("fsserver.access_denied", "op", op, "path", path)
		return "", "Error: access denied: path outside allowed directory: " + path, false
	}

	return "", fmt.Sprintf("Error: cannot resolve %s: %v", path, err), false
}

// ListDirectory lists the entries of path, sorted by name.
func (s *Server) ListDirectory(path string) string {
	if strings.TrimSpace(path) == "" {
		path = "."
	}

	dir, msg, ok := s.resolve("list_directory", path)
	if !ok {
		return msg
	}

	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		return "Directory not found: " + path
	}

	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	if !info.IsDir() {
		return "Not a directory: " + path
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	if len(entries) == 0 {
		return fmt.Sprintf("Directory %s is empty", dir)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	lines := make([]string, 0, len(entries))

	for _, e := range entries {
		full := filepath.Join(dir, e.Name())

		fi, escapes, err := s.entryInfo(full, e)

		switch {
		case escapes:
			lines = append(lines, fmt.Sprintf("  [link] %s", e.Name()))
		case err != nil:
			lines = append(lines, fmt.Sprintf("  [file] %s", e.Name()))
		case fi.IsDir():
			lines = append(lines, fmt.Sprintf("  [dir] %s", e.Name()))
		default:
			lines = append(lines, fmt.Sprintf("  [file] %s (%d bytes)", e.Name(), fi.Size()))
		}
	}

	return fmt.Sprintf("Contents of %s:\n%s", dir, strings.Join(lines, "\n"))
}

// entryInfo follows links whose target stays inside the root, as a reader of
// the listing would. A link leaving the root is reported as escaping and
// described by Lstat only, so nothing about its target is revealed.
func (s *Server) entryInfo(full string, e os.DirEntry) (os.FileInfo, bool, error) {
	if e.Type()&os.ModeSymlink != 0 {
		if _, err := s.sandbox.Resolve(full); errors.Is(err, ErrAccessDenied) {
			fi, err := e.Info()
			return fi, true, err
		}
	}

	fi, err := os.Stat(full)
	if err != nil {
		fi, err = e.Info()
	}

	return fi, false, err
}

// ReadFile returns up to maxLines lines of a UTF-8 text file. A non-positive
// maxLines uses the server default. When the cap is hit a truncation marker
// is appended.
func (s *Server) ReadFile(path string, maxLines int) string {
	if strings.TrimSpace(path) == "" {
		return "Error: path is required"
	}

	if maxLines <= 0 {
		maxLines = s.opts.MaxLines
	}

	file, msg, ok := s.resolve("read_file", path)
	if !ok {
		return msg
	}

	info, err := os.Stat(file)
	if errors.Is(err, os.ErrNotExist) {
		return "File not found: " + path
	}

	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	if !info.Mode().IsRegular() {
		return "Not a file: " + path
	}

	f, err := os.Open(file)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)

	var (
		lines     []string
		truncated bool
	)

	for {
		line, err := reader.ReadString('\n')
		if line != "" {
			if len(lines) >= maxLines {
				truncated = true
				break
			}

			if !utf8.ValidString(line) {
				return fmt.Sprintf("Error: %s is not a text file", path)
			}

			lines = append(lines, strings.TrimRight(line, " \t\r\n"))
		}

		if err != nil {
			break
		}
	}

	content := strings.Join(lines, "\n")
	if truncated {
		content += fmt.Sprintf("\n\n... (truncated at %d lines)", maxLines)
	}

	s.opts.Logger.Debug("fsserver.read_file", "path", file, "lines", len(lines), "truncated", truncated)

	return fmt.Sprintf("Contents of %s:\n\n%s", filepath.Base(file), content)
}

// GetFileInfo reports kind, size and modification time of path.
func (s *Server) GetFileInfo(path string) string {
	if strings.TrimSpace(path) == "" {
		return "Error: path is required"
	}

	target, msg, ok := s.resolve("get_file_info", path)
	if !ok {
		return msg
	}

	info, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return "Path not found: " + path
	}

	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}

	kind := "file"
	if info.IsDir() {
		kind = "directory"
	}

	return strings.Join([]string{
		"Path: " + target,
		"Type: " + kind,
		fmt.Sprintf("Size: %d bytes", info.Size()),
		"Modified: " + info.ModTime().Format(time.RFC3339),
	}, "\n")
}

// Call dispatches a tool by name. Unknown names and panics are reported as text.
func (s *Server) Call(_ context.Context, name string, args map[string]any) (result string) {
	defer func() {
		if r := recover(); r != nil {
			s.opts.Logger.Error("fsserver.panic", "tool", name, "panic", fmt.Sprint(r))
			result = fmt.Sprintf("Error: %v", r)
		}
	}()

	path, _ := args["path"].(string)

	switch name {
	case ListDirectoryTool:
		return s.ListDirectory(path)
	case ReadFileTool:
		return s.ReadFile(path, intArg(args["max_lines"]))
	case GetFileInfoTool:
		return s.GetFileInfo(path)
	default:
		return "Unknown tool: " + name
	}
}

func intArg(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		var i int
		if _, err := fmt.Sscanf(strings.TrimSpace(n), "%d", &i); err == nil {
			return i
		}
	}

	return 0
}
