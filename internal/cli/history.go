package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lisaapatel/partnerscan/internal/config"
	"github.com/lisaapatel/partnerscan/internal/history"
	"github.com/lisaapatel/partnerscan/internal/report"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded scan runs",
		Long: `List runs recorded with "scan --history", newest first.

  partnerscan history --db scans.db --last 5
  partnerscan history show 20260101_1a2b3c4d --db scans.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(opts, cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), last)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			fmt.Fprintf(out, "%-18s %-28s %6s %9s %11s %7s\n", "RUN", "SCANNED AT", "PAGES", "FINDINGS", "SUPPRESSED", "ERRORS")
			for _, r := range runs {
				fmt.Fprintf(out, "%-18s %-28s %6d %9d %11d %7d\n",
					r.ID, report.FormatTime(r.ScannedAt), r.Pages, r.Findings, r.Suppressed, r.FetchErrors)
			}
			return nil
		},
	}
	cmd.PersistentFlags().String("db", "", "History database (default: history_db from config)")
	cmd.Flags().IntVar(&last, "last", 10, "Number of runs to show")

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the findings of one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(opts, cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			rows, err := store.RunFindings(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintf(out, "Run %s has no findings.\n", args[0])
				return nil
			}
			url := ""
			for _, f := range rows {
				if f.URL != url {
					url = f.URL
					colorCyan.Fprintf(out, "%s (%d)\n", url, f.HTTPStatus)
				}
				fmt.Fprintf(out, "  [%s] %s: %q\n", f.Severity, f.RuleID, f.MatchText)
				if f.Snippet != "" {
					fmt.Fprintf(out, "      %s\n", strings.TrimSpace(f.Snippet))
				}
			}
			return nil
		},
	})
	return cmd
}

func openHistory(opts *rootOptions, cmd *cobra.Command) (*history.Store, error) {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return openHistoryAt(cfg)
}

func openHistoryAt(cfg *config.Config) (*history.Store, error) {
	if cfg.HistoryDB == "" {
		return nil, errors.New("no history database configured (use --db or history_db)")
	}
	return history.Open(cfg.HistoryDB)
}
