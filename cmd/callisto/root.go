package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "callisto",
	Short: "Callisto - encrypted failure telemetry for outgoing requests",
	Long: `Callisto instruments outgoing network requests made by a host
application, turning failures into durable, encrypted telemetry
delivered to a remote collector, resilient to offline periods and
process restarts.

This binary operates on an installation's on-device state:
  - Inspect the durable retry queue
  - Sweep aged attachment blobs and stale replay copies
  - Recover encrypted packages with the installation key`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "callisto.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
