package tool

import (
	"errors"
	"fmt"

	"github.com/hupe1980/reactmesh/logging"
)

// CompositeOptions configures a Composite.
type CompositeOptions struct {
	Logger logging.Logger
}

// Composite merges several resolvers behind one Resolver.
//
// Members are consulted in the order given. Remote registries qualify their
// names with a caller-chosen tag so members are normally disjoint; when a name
// still appears in more than one member the earliest member wins, both for
// Resolve and for Tools/Names. Collisions reports such names.
type Composite struct {
	members []Resolver
	opts    CompositeOptions
}

// NewComposite creates a composite over members in priority order.
func NewComposite(members []Resolver, optFns ...func(o *CompositeOptions)) *Composite {
	opts := CompositeOptions{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	c := &Composite{
		members: append([]Resolver(nil), members...),
		opts:    opts,
	}

	for _, name := range c.Collisions() {
		opts.Logger.Warn("tool.composite.collision", "tool", name)
	}

	return c
}

// Resolve returns the tool from the first member that knows name.
func (c *Composite) Resolve(name string) (Tool, error) {
	for _, m := range c.members {
		t, err := m.Resolve(name)
		if err == nil {
			return t, nil
		}

		if !errors.Is(err, ErrToolNotFound) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
}

// Tools merges all members; earlier members shadow later ones.
func (c *Composite) Tools() map[string]Tool {
	out := make(map[string]Tool)

	for _, m := range c.members {
		for name, t := range m.Tools() {
			if _, taken := out[name]; !taken {
				out[name] = t
			}
		}
	}

	return out
}

// Names lists member names in priority order without duplicates.
func (c *Composite) Names() []string {
	seen := make(map[string]struct{})

	var out []string

	for _, m := range c.members {
		for _, name := range m.Names() {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}

	return out
}

// Collisions returns names exposed by more than one member, in priority order.
func (c *Composite) Collisions() []string {
	count := make(map[string]int)

	var order []string

	for _, m := range c.members {
		for _, name := range m.Names() {
			if count[name] == 0 {
				order = append(order, name)
			}
			count[name]++
		}
	}

	var out []string

	for _, name := range order {
		if count[name] > 1 {
			out = append(out, name)
		}
	}

	return out
}
