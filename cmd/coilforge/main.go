// Command coilforge drives the inductor design toolchain: dataset
// generation, evolutionary optimization, and study export.
package main

import (
	"fmt"
	"os"
)

// Build-time variables injected via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
