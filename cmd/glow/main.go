// Package main is the single-binary entrypoint for Glow.
package main

import (
	"github.com/glow-labs/glow/internal/cli"
	"github.com/glow-labs/glow/internal/daemon"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	daemon.Version = version
	cli.Execute(version)
}
