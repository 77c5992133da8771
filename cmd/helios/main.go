package main

import (
	"os"

	"github.com/wonny/helios/cmd/helios/commands"
)

// main is the entry point for the Helios CLI
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
