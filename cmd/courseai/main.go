// Command courseai is the entry point for the course materials assistant.
// It provides a CLI interface (via Cobra) and an HTTP server exposing the
// query API.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/courseai-go/cmd/courseai/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
