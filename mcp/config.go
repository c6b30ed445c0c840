package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout applies to connect, discovery and each invocation when a
// config sets none.
const DefaultTimeout = 30 * time.Second

// TransportKind selects how a server is reached.
type TransportKind string

const (
	// TransportSubprocess spawns a child process and talks over its stdio.
	TransportSubprocess TransportKind = "subprocess"
	// TransportStream opens a long-lived HTTP event stream.
	TransportStream TransportKind = "stream"
)

// ServerConfig describes one remote tool server.
type ServerConfig struct {
	Name      string            `json:"name" yaml:"name"`
	Transport TransportKind     `json:"transport" yaml:"transport"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Dir       string            `json:"dir,omitempty" yaml:"dir,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Timeout   Duration          `json:"timeout,omitzero" yaml:"timeout,omitempty"`

	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the server should be connected.
func (c ServerConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// EffectiveTimeout returns the configured timeout or DefaultTimeout.
func (c ServerConfig) EffectiveTimeout() time.Duration {
	if c.Timeout.Duration > 0 {
		return c.Timeout.Duration
	}

	return DefaultTimeout
}

// Validate checks that the transport parameters are present.
func (c ServerConfig) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("server name is required")
	}

	switch c.Transport {
	case TransportSubprocess:
		if strings.TrimSpace(c.Command) == "" {
			return fmt.Errorf("server %s: subprocess transport requires a command", c.Name)
		}
	case TransportStream:
		if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
			return fmt.Errorf("server %s: stream transport requires an http(s) url, got %q", c.Name, c.URL)
		}
	default:
		return fmt.Errorf("server %s: unknown transport %q", c.Name, c.Transport)
	}

	return nil
}

// Duration is a time.Duration written as "30s" in config files. Plain
// numbers are read as seconds.
type Duration struct {
	time.Duration
}

// Seconds returns a Duration of n seconds.
func Seconds(n int) Duration { return Duration{time.Duration(n) * time.Second} }

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	return d.set(v)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var v any
	if err := node.Decode(&v); err != nil {
		return err
	}

	return d.set(v)
}

func (d *Duration) set(v any) error {
	switch t := v.(type) {
	case nil:
		d.Duration = 0
	case float64:
		d.Duration = time.Duration(t * float64(time.Second))
	case int:
		d.Duration = time.Duration(t) * time.Second
	case string:
		parsed, err := time.ParseDuration(strings.TrimSpace(t))
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", t, err)
		}

		d.Duration = parsed
	default:
		return fmt.Errorf("invalid duration %v", v)
	}

	return nil
}
