package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/statsboard/internal/history"
)

// historyCmd lists recorded panel updates.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded panel updates",
	Long: `List the most recent panel updates recorded by "statsboard serve" when
history.path is set, newest first.

Example:
  statsboard history --db ./data/history.db
  statsboard history --db ./data/history.db --panel AppStats --limit 5`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("db", "", "path to the history database (required)")
	historyCmd.Flags().String("panel", "", "only show updates of this panel")
	historyCmd.Flags().Int("limit", 20, "maximum number of updates to show")
	_ = historyCmd.MarkFlagRequired("db")
}

func runHistory(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("db")
	panel, _ := cmd.Flags().GetString("panel")
	limit, _ := cmd.Flags().GetInt("limit")

	if limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", limit)
	}
	// Open creates missing files, which would hide a typo in --db
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("history database %q not found", path)
		}
		return fmt.Errorf("failed to stat history database: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelWarn}))
	rec, err := history.Open(logger, path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer rec.Close()

	entries, err := rec.Recent(cmd.Context(), panel, limit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No updates recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RESOLVED\tPANEL\tGEN\tSTATE\tSTATUS\tLATENCY\tDETAIL")
	for _, e := range entries {
		status := "-"
		if e.StatusCode != 0 {
			status = fmt.Sprintf("%d", e.StatusCode)
		}
		detail := e.URL
		if e.Error != "" {
			detail = e.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			e.ResolvedAt.Local().Format(time.DateTime),
			e.Panel,
			e.Generation,
			e.Kind,
			status,
			(time.Duration(e.LatencyMs) * time.Millisecond).String(),
			detail,
		)
	}
	return tw.Flush()
}
