package main

import (
	"os"

	"github.com/woxQAQ/memory-registry/cmd/registryctl/commands"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := commands.NewRootCommand()
	commands.SetVersionInfo(root, version, commit, date)

	// Errors are printed by the printer package
	if err := commands.Execute(root); err != nil {
		os.Exit(1)
	}
}
