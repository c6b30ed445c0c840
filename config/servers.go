package config

import (
	"errors"
	"fmt"

	"github.com/hupe1980/reactmesh/mcp"
)

// ServersFile is the on-disk shape of a server list.
type ServersFile struct {
	Servers []mcp.ServerConfig `json:"servers" yaml:"servers"`
}

// LoadServers reads a server list. A missing transport is inferred from the
// fields present: a command means subprocess, a url means stream. Every
// enabled entry is validated and all problems are reported together.
func LoadServers(path string) ([]mcp.ServerConfig, error) {
	var f ServersFile
	if err := readFile(path, &f); err != nil {
		return nil, err
	}

	var errs []error

	seen := make(map[string]bool, len(f.Servers))

	for i := range f.Servers {
		cfg := &f.Servers[i]

		if cfg.Transport == "" {
			switch {
			case cfg.Command != "":
				cfg.Transport = mcp.TransportSubprocess
			case cfg.URL != "":
				cfg.Transport = mcp.TransportStream
			}
		}

		if seen[cfg.Name] {
			errs = append(errs, fmt.Errorf("servers[%d]: duplicate server name %q", i, cfg.Name))
			continue
		}

		seen[cfg.Name] = true

		if !cfg.IsEnabled() {
			continue
		}

		if err := cfg.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("servers[%d]: %w", i, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return f.Servers, nil
}

// SaveServers writes a server list.
func SaveServers(path string, servers []mcp.ServerConfig) error {
	return writeFile(path, ServersFile{Servers: servers})
}
