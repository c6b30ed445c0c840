// Package logging provides a minimal logging interface and adapters for reactmesh.
//
// The Logger interface defines the structured logging methods (Debug, Info, Warn, Error)
// that registries, executors, agents and teams use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - MeshLogger with domain helpers for tool calls, model calls and agent steps
//   - NoOpLogger for silent operation (testing, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	a := agent.New(llm, planner, executor, func(o *agent.Options) { o.Logger = logger })
package logging
