package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lisaapatel/partnerscan/internal/scan"
	"github.com/lisaapatel/partnerscan/internal/watch"
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	sf := &scanFlags{}
	var runNow, noPolicyWatch bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-scan on a schedule and whenever the policy changes",
		Long: `Run scans until interrupted: on a cron schedule, and after every edit to the
policy file or a rule pack. Runs never overlap; triggers that arrive during a
run collapse into one follow-up run.

  partnerscan watch --schedule "0 6 * * *" --history scans.db
  partnerscan watch --schedule "@every 12h" --run-now`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			sc, err := scanConfig(cfg, sf)
			if err != nil {
				return err
			}

			wc := watch.Config{
				Schedule:   cfg.Schedule,
				RunOnStart: runNow,
			}
			if !noPolicyWatch {
				wc.PolicyPath = cfg.Policy
				wc.PacksDir = cfg.PacksDir
			}

			out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
			log := opts.logger
			run := func(ctx context.Context, reason string) error {
				scanner := scan.New(sc, log, scan.WithProgress(progressPrinter(errOut)))
				summary, err := scanner.Run(ctx)
				if errors.Is(err, scan.ErrNoURLs) {
					log.Warn("no URLs to scan", zap.String("urls", sc.URLsPath))
					return nil
				}
				if err != nil {
					return err
				}
				colorCyan.Fprintf(out, "── scan (%s) ──\n", reason)
				printScanSummary(out, summary)
				return nil
			}

			w, err := watch.New(wc, run, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return w.Run(ctx)
		},
	}
	addScanFlags(cmd, sf)
	cmd.Flags().String("schedule", "", `Cron schedule, e.g. "0 6 * * *" or "@every 24h"`)
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Scan once immediately on start")
	cmd.Flags().BoolVar(&noPolicyWatch, "no-policy-watch", false, "Do not re-scan when the policy or packs change")
	return cmd
}
