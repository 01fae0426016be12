// Package main is the entry point for the forgecast CLI application.
// It initializes all subcommands and executes the root command.
package main

import (
	"github.com/forgecast/forgecast/cmd"
	_ "github.com/forgecast/forgecast/cmd/fingerprint"
	_ "github.com/forgecast/forgecast/cmd/replay"
)

// main is the entry point of the application.
// It executes the root command which handles all CLI interactions.
func main() {
	cmd.Execute()
}
