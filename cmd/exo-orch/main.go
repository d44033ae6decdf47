package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags "-X main.version=v1.2.3"
var version = "dev"

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:     "exo-orch",
		Short:   "Exo Orchestrator - Autonomous plan execution manager",
		Version: version,
		Long: `Exo Orchestrator executes approved plan files against a git repository.
It validates each plan, guards the task with a lease, applies the actions
on a dedicated branch and commits the result, rolling the working tree
back whenever an action fails.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
