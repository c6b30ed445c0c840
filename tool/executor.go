package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/reactmesh/logging"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	Logger logging.Logger

	// ListAvailable appends the known tool names to unknown-tool observations.
	ListAvailable bool

	// Timeout bounds a single invocation. Zero means no executor-level limit.
	Timeout time.Duration
}

// Executor resolves tools and invokes them. It never fails: every outcome,
// including unknown names, tool errors and panics, comes back as observation text.
type Executor struct {
	resolver Resolver
	opts     ExecutorOptions
}

// NewExecutor creates an executor over resolver.
func NewExecutor(resolver Resolver, optFns ...func(o *ExecutorOptions)) *Executor {
	opts := ExecutorOptions{
		Logger:        logging.NoOpLogger{},
		ListAvailable: true,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{resolver: resolver, opts: opts}
}

// Resolver returns the resolver the executor dispatches against.
func (e *Executor) Resolver() Resolver {
	if e == nil {
		return nil
	}
	return e.resolver
}

type toolCallLogger interface {
	LogToolCall(tool string, dur time.Duration, success bool, err error)
}

// Invoke runs the named tool with input and returns the observation.
func (e *Executor) Invoke(ctx context.Context, name, input string) (observation string) {
	name = strings.TrimSpace(name)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := &ToolError{Tool: name, Message: fmt.Sprintf("panic: %v", r), Code: CodePanic}
			e.logResult(name, start, err)
			observation = fmt.Sprintf("Error executing tool '%s': %s", name, err.Message)
		}
	}()

	if e == nil || e.resolver == nil {
		return fmt.Sprintf("Error: tool '%s' not found. No tools are available.", name)
	}

	t, err := e.resolver.Resolve(name)
	if err != nil {
		e.opts.Logger.Warn("tool.call.not_found", "tool", name)
		return e.unknownTool(name, err)
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	e.opts.Logger.Debug("tool.call.start", "tool", name)

	out, err := t.Call(ctx, input)
	e.logResult(name, start, err)

	if err != nil {
		msg := err.Error()

		var toolErr *ToolError
		if errors.As(err, &toolErr) {
			msg = toolErr.Message
		}

		return fmt.Sprintf("Error executing tool '%s': %s", name, msg)
	}

	if strings.TrimSpace(out) == "" {
		return fmt.Sprintf("Tool '%s' returned no output.", name)
	}

	return out
}

func (e *Executor) unknownTool(name string, err error) string {
	if !errors.Is(err, ErrToolNotFound) {
		return fmt.Sprintf("Error: could not resolve tool '%s': %v", name, err)
	}

	if !e.opts.ListAvailable {
		return fmt.Sprintf("Error: tool '%s' not found.", name)
	}

	names := e.resolver.Names()
	if len(names) == 0 {
		return fmt.Sprintf("Error: tool '%s' not found. No tools are available.", name)
	}

	return fmt.Sprintf("Error: tool '%s' not found. Available tools: %s", name, strings.Join(names, ", "))
}

func (e *Executor) logResult(name string, start time.Time, err error) {
	if l, ok := e.opts.Logger.(toolCallLogger); ok {
		l.LogToolCall(name, time.Since(start), err == nil, err)
		return
	}

	if err != nil {
		e.opts.Logger.Warn("tool.call.failed", "tool", name, "error", err.Error())
		return
	}

	e.opts.Logger.Debug("tool.call.end", "tool", name, "duration", time.Since(start))
}
