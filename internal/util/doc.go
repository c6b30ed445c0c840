// Package util holds small internal helpers (JSON schema handling, identifiers)
// shared by the tool, mcp and agent packages.
package util
