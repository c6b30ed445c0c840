// Command fsserver serves read-only filesystem tools confined to one
// directory over MCP, on stdio (default) or SSE.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
