// Package cli implements the Glow command-line interface using Cobra.
// Each subcommand maps to a service operation (serve, record, reveal, ...).
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Flags live on each command so a fresh
// tree starts from defaults.
func NewRootCmd(version string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "glow",
		Short: "Glow: meditation rewards and progression",
		Long: `Glow computes session rewards, streaks, levels and glow-card loot
for a meditation app, and serves them over HTTP.

Progression is stored in SQLite under $GLOW_HOME by default.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $GLOW_HOME/config.toml)")

	cfg := func() string { return configPath }
	root.AddCommand(
		newServeCmd(cfg),
		newPreviewCmd(cfg),
		newSimulateCmd(cfg),
		newEnrollCmd(cfg),
		newRecordCmd(cfg),
		newRevealCmd(cfg),
		newStatusCmd(cfg),
		newLedgerCmd(cfg),
		newSaversCmd(cfg),
		newTokenCmd(cfg),
	)
	return root
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
