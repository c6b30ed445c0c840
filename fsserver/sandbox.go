package fsserver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrAccessDenied is returned when a path resolves outside the sandbox root.
var ErrAccessDenied = errors.New("access denied: path outside allowed directory")

// Sandbox confines paths to a canonical root directory.
type Sandbox struct {
	root string
}

// NewSandbox canonicalizes root and checks that it is a directory.
func NewSandbox(root string) (*Sandbox, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("sandbox root must not be empty")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox root %s is not a directory", canonical)
	}

	return &Sandbox{root: canonical}, nil
}

// Root returns the canonical root directory.
func (s *Sandbox) Root() string { return s.root }

// Resolve returns the canonical absolute form of path. Relative paths are
// joined to the root; the empty path is the root. Symlinks are followed on
// the longest existing prefix, so a path that does not exist yet still
// resolves through linked parents. ErrAccessDenied is returned (wrapped)
// when the result is not the root or a descendant of it.
func (s *Sandbox) Resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = "."
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}

	resolved, err := canonicalize(filepath.Clean(path))
	if err != nil {
		return "", err
	}

	if !s.contains(resolved) {
		return "", fmt.Errorf("%w: %s", ErrAccessDenied, path)
	}

	return resolved, nil
}

func (s *Sandbox) contains(path string) bool {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// canonicalize evaluates symlinks on the nearest existing ancestor of path
// and re-appends the missing tail.
func canonicalize(path string) (string, error) {
	var tail []string

	current := path

	for {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			for i := len(tail) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, tail[i])
			}

			return resolved, nil
		}

		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}

		parent := filepath.Dir(current)
		if parent == current {
			return path, nil
		}

		tail = append(tail, filepath.Base(current))
		current = parent
	}
}
