// Package main is the entry point for the statsboard CLI.
//
// Statsboard can be run either as a library (SDK) or as a standalone binary
// with YAML configuration. This CLI provides the standalone binary approach.
//
// Usage:
//
//	statsboard serve -c config.yaml    # Start the dashboard
//	statsboard validate -c config.yaml # Validate configuration
//	statsboard render -c config.yaml   # Fetch every panel once and print it
//	statsboard history --db FILE       # Show recorded panel updates
//	statsboard version                 # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only displays help; functionality lives in subcommands.
var rootCmd = &cobra.Command{
	Use:   "statsboard",
	Short: "A polling dashboard for telemetry backend statistics",
	Long: `Statsboard polls the statistics and audit endpoints of a telemetry
backend and shows each response as a panel in a web UI, updated live over
Server-Sent Events or WebSocket.

Quick start:
  1. Create a config file (statsboard.yaml)
  2. Run: statsboard serve -c statsboard.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  backend:
    base_url: http://localhost:8000
    audit_url: http://localhost:8110`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// cobra already printed the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this statsboard binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "statsboard %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
