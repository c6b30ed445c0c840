// Package mcp connects to remote tool servers over the Model Context Protocol
// and exposes their tools through the tool.Resolver contract.
//
// Two transports are supported:
//   - subprocess: spawns the configured command and speaks JSON-RPC over its
//     stdin/stdout; closing the connection terminates the process and waits
//     for it to exit
//   - stream: opens an SSE event stream to the configured URL, falling back
//     to the streamable HTTP transport
//
// A Registry owns every Connection it opens. Remote tools are exposed as
// "<prefix>_<server>_<tool>", so several registries can be merged with
// tool.NewComposite without collisions. AddServer is idempotent by server
// name; failures are reported as *DiscoveryError and leave other servers
// usable. CloseAll closes every connection exactly once and joins the errors.
//
// Sessions multiplex requests by JSON-RPC id, so one Connection may serve
// concurrent invocations from several agents.
package mcp
