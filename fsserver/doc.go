// Package fsserver is a tool server exposing read-only filesystem operations
// confined to one root directory.
//
// Every path argument is canonicalized (symlinks followed, relative paths
// joined to the root) before any filesystem call. A path that resolves
// outside the root is refused with an access-denied message and no I/O is
// performed on it.
//
// Tools:
//   - list_directory{path}: entries with kind and, for files, size
//   - read_file{path, max_lines?}: text content capped at max_lines
//   - get_file_info{path}: kind, size and modification time
//
// All operations return text, including failures. Server.MCPServer exposes
// them over MCP; cmd/fsserver serves them on stdio or SSE.
package fsserver
