// Command dsla is the entry point for the Domain-Specific LLM Adapter
// service. It provides a CLI interface (via Cobra) and an HTTP server
// exposing the adaptation, retrieval, and memory APIs.
package main

import (
	"fmt"
	"os"

	"github.com/dsla-ai/dsla/cmd/dsla/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
