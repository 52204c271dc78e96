// Package main is the entry point for the dmerk CLI application.
// It initializes all subcommands and executes the root command.
package main

import (
	"github.com/krishraghuram/dmerk/cmd"
	_ "github.com/krishraghuram/dmerk/cmd/calc"
	_ "github.com/krishraghuram/dmerk/cmd/compare"
	_ "github.com/krishraghuram/dmerk/cmd/diff"
	_ "github.com/krishraghuram/dmerk/cmd/generate"
	_ "github.com/krishraghuram/dmerk/cmd/hash"
)

// main is the entry point of the application.
// It executes the root command which handles all CLI interactions.
func main() {
	cmd.Execute()
}
