package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statsboard"
	"github.com/jpalmerr/statsboard/config"
)

// renderCmd fetches every panel once and prints its view.
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Fetch every panel once and print the views",
	Long: `Issue one request per configured panel and print each panel's view
as text, in layout order. No server is started and nothing is recorded.

Example:
  statsboard render -c config.yaml
  statsboard render -c config.yaml --timeout 5s --fail`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	renderCmd.Flags().Duration("timeout", 10*time.Second, "overall time limit for all requests")
	renderCmd.Flags().Bool("fail", false, "exit non-zero when any panel failed")
	_ = renderCmd.MarkFlagRequired("config")
}

func runRender(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	failOnError, _ := cmd.Flags().GetBool("fail")

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := newLogger(os.Stderr, cfg.Log)

	board, err := buildBoard(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	out := cmd.OutOrStdout()
	failed := 0
	for i, u := range board.RenderOnce(ctx) {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "== %s ==\n", u.PanelName)
		fmt.Fprintln(out, u.View.Text())
		if u.State.Kind == statsboard.StateFailed {
			failed++
		}
	}

	if failOnError && failed > 0 {
		return fmt.Errorf("%d panel(s) failed", failed)
	}
	return nil
}
