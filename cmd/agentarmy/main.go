// Package main is the entry point for the agentarmy CLI.
package main

import (
	"os"

	"github.com/levysystems/agentarmy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
