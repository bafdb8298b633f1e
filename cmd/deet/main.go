package main

import (
	"os"

	"github.com/go-deet/deet/cmd/deet/cmds"
	"github.com/go-deet/deet/pkg/version"
)

// Build is the git sha of this binaries build.
var Build string

func main() {
	if Build != "" {
		version.DeetVersion.Build = Build
	}
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}
