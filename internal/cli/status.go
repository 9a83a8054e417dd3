package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lisaapatel/partnerscan/internal/config"
	"github.com/lisaapatel/partnerscan/internal/normalize"
	"github.com/lisaapatel/partnerscan/internal/policy"
	"github.com/lisaapatel/partnerscan/internal/report"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, inputs, rule packs and the last recorded run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			printStatus(cmd, cfg)
			return nil
		},
	}
}

func printStatus(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out, "  partnerscan Status")
	fmt.Fprintln(out, "═══════════════════════════════════════════════════════")
	fmt.Fprintln(out)

	configFile := cfg.ConfigFile
	if configFile == "" {
		configFile = "(none, using defaults and environment)"
	}
	fmt.Fprintf(out, "  Version:   %s\n", Version)
	fmt.Fprintf(out, "  Config:    %s\n", configFile)
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Inputs ────────────────────────────────────────────")
	checkPolicyFile(out, cfg.Policy)
	checkURLList(out, cfg.URLs)

	dir := cfg.PacksDir
	if dir == "" {
		dir = policy.DefaultPacksDir(cfg.Policy)
	}
	_, infos, err := policy.LoadPacks(dir, policy.DefaultPolicy(), nil)
	if err == nil && len(infos) > 0 {
		enabled := 0
		for _, info := range infos {
			if info.Enabled && info.Err == nil {
				enabled++
			}
		}
		fmt.Fprintf(out, "  ✓ Rule packs: %d installed, %d enabled (%s)\n", len(infos), enabled, dir)
	} else {
		fmt.Fprintf(out, "  ·  No rule packs in %s\n", dir)
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "─── Outputs ───────────────────────────────────────────")
	fmt.Fprintf(out, "  Reports:   %s, %s\n", cfg.ReportCSV, cfg.ReportHTML)
	fmt.Fprintf(out, "  Evidence:  %s/\n", cfg.EvidenceDir)
	checkHistory(cmd, out, cfg)
	if cfg.ScanLog != "" {
		if info, err := os.Stat(cfg.ScanLog); err == nil {
			fmt.Fprintf(out, "  ✓ Scan log: %s (%d bytes)\n", cfg.ScanLog, info.Size())
		} else {
			fmt.Fprintf(out, "  ·  Scan log: %s (not written yet)\n", cfg.ScanLog)
		}
	}
	fmt.Fprintln(out)
}

func checkPolicyFile(out io.Writer, path string) {
	if _, err := os.Stat(path); err != nil {
		colorRed.Fprintf(out, "  ✗ Policy: %s not found\n", path)
		return
	}
	p, rep, err := policy.Load(path)
	if err != nil {
		colorRed.Fprintf(out, "  ✗ Policy: %v\n", err)
		return
	}
	fmt.Fprintf(out, "  ✓ Policy: %s (%d rules, %d suppressions)\n", path, len(p.Rules), len(p.Suppressions))
	if len(rep.Issues) > 0 {
		colorYellow.Fprintf(out, "    %d issue(s); run \"partnerscan policy check\"\n", len(rep.Issues))
	}
}

func checkURLList(out io.Writer, path string) {
	urls, err := normalize.LoadURLs(path)
	if err != nil {
		colorRed.Fprintf(out, "  ✗ URLs: %s not found\n", path)
		return
	}
	fmt.Fprintf(out, "  ✓ URLs: %s (%d)\n", path, len(urls))
}

func checkHistory(cmd *cobra.Command, out io.Writer, cfg *config.Config) {
	if cfg.HistoryDB == "" {
		fmt.Fprintln(out, "  ·  History: disabled")
		return
	}
	store, err := openHistoryAt(cfg)
	if err != nil {
		colorRed.Fprintf(out, "  ✗ History: %v\n", err)
		return
	}
	defer store.Close()

	runs, err := store.RecentRuns(cmd.Context(), 1)
	if err != nil || len(runs) == 0 {
		fmt.Fprintf(out, "  ·  History: %s (no runs)\n", cfg.HistoryDB)
		return
	}
	r := runs[0]
	fmt.Fprintf(out, "  ✓ History: %s, last run %s at %s (%d findings)\n",
		cfg.HistoryDB, r.ID, report.FormatTime(r.ScannedAt), r.Findings)
}
