package main

import (
	"fmt"
	"os"

	"github.com/RaduCristea123/OBIWAN/internal/cli/cmd"
)

// Set at build time via -ldflags.
var (
	version   string
	gitCommit string
	buildDate string
)

func main() {
	cmd.SetVersionInfo(version, gitCommit, buildDate)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
