package tool

import (
	"fmt"
	"sync"
)

// Resolver is the read side of a registry: name lookup plus enumeration.
// Registry, Composite and remote registries all implement it.
type Resolver interface {
	// Resolve returns the tool registered under name or an error wrapping ErrToolNotFound.
	Resolve(name string) (Tool, error)

	// Tools returns a snapshot of all tools keyed by name.
	Tools() map[string]Tool

	// Names returns tool names in registration (priority) order.
	Names() []string
}

// Registry maps names to in-process tools and keeps registration order.
//
// Registration is expected to happen during setup; lookups are safe for
// concurrent use afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry pre-populated with tools. It fails on the
// first empty or duplicate name.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. It fails if the name is empty or already present.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool: cannot register nil tool")
	}

	name := t.Name()
	if name == "" {
		return fmt.Errorf("tool: cannot register tool with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.tools == nil {
		r.tools = make(map[string]Tool)
	}

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, name)
	}

	r.tools[name] = t
	r.order = append(r.order, name)

	return nil
}

// Resolve looks a tool up by exact name.
func (r *Registry) Resolve(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	return t, nil
}

// Tools returns a snapshot of all registered tools.
func (r *Registry) Tools() map[string]Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Tool, len(r.tools))
	for k, v := range r.tools {
		out[k] = v
	}

	return out
}

// Names returns names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Ordered returns the registered tools in registration order.
func Ordered(r Resolver) []Tool {
	names := r.Names()
	tools := r.Tools()

	out := make([]Tool, 0, len(names))
	for _, n := range names {
		if t, ok := tools[n]; ok {
			out = append(out, t)
		}
	}

	return out
}
