// Package main is the entry point for the fastmigrate CLI.
package main

import (
	"os"

	"github.com/satishbabariya/fastmigrate/cmd/fastmigrate/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
