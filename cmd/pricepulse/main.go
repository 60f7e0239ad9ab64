package main

import (
	"os"

	"github.com/hwahn/pricepulse/cmd/pricepulse/commands"
)

// main is the entry point for the pricepulse CLI.
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
