// ABOUTME: Main entry point for the anlog CLI
// ABOUTME: Sets up the Cobra root command and executes

package main

import (
	"fmt"
	"os"

	"github.com/ngan-ptn/anlog/cmd/anlog/commands"
)

// Version is set by goreleaser at build time.
var version = "dev"

func main() {
	commands.SetVersion(version)

	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
