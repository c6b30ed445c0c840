// Package config reads and writes configuration files: tool server lists
// for the mcp registry and exported agent definitions.
//
// Files ending in .json are JSON; everything else is read as YAML. Decoding
// is strict, so unknown keys are reported instead of silently ignored.
package config
