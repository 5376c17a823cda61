package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statsboard/config"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a Statsboard configuration file without starting the server.

This command parses the YAML, applies environment overrides, expands
environment variables, validates all fields and builds every panel.
It's useful for CI/CD pipelines or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  statsboard validate -c config.yaml
  statsboard validate --config /etc/statsboard/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// building catches template execution errors that parsing cannot
	panels, err := config.BuildPanels(cfg)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	direct := len(cfg.Panels)
	fromGrids := 0
	for _, g := range cfg.Grids {
		size := 1
		for _, vals := range g.Dimensions {
			size *= len(vals)
		}
		fromGrids += size
	}
	backend := len(panels) - direct - fromGrids

	ordering := cfg.Ordering
	if ordering == "" {
		ordering = "resolution"
	}
	historyPath := cfg.History.Path
	if historyPath == "" {
		historyPath = "disabled"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:     %d\n", cfg.Port)
	fmt.Fprintf(out, "  Ordering: %s\n", ordering)
	fmt.Fprintf(out, "  History:  %s\n", historyPath)
	fmt.Fprintf(out, "  Panels:   %d backend + %d direct + %d from grids = %d total\n",
		backend, direct, fromGrids, len(panels))

	return nil
}
