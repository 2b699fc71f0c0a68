// Command ecoroute serves the trip planner and crop-disease detector over
// MCP (stdio and streamable HTTP) and a small REST API, and runs one-shot
// plans and detections from the command line.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
