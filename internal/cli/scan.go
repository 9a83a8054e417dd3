package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lisaapatel/partnerscan/internal/config"
	"github.com/lisaapatel/partnerscan/internal/report"
	"github.com/lisaapatel/partnerscan/internal/scan"
)

var (
	colorRed    = color.New(color.FgRed, color.Bold)
	colorGreen  = color.New(color.FgGreen)
	colorYellow = color.New(color.FgYellow, color.Bold)
	colorCyan   = color.New(color.FgCyan)
)

// scanFlags are the flags shared by scan and watch that are not config
// keys.
type scanFlags struct {
	render     string
	noEvidence bool
}

func addScanFlags(cmd *cobra.Command, sf *scanFlags) {
	f := cmd.Flags()
	f.String("urls", "", "File with one URL per line (default: urls.txt)")
	f.String("packs-dir", "", "Rule pack directory (default: policies.d next to the policy)")
	f.String("evidence-dir", "", "Evidence output directory (default: evidence)")
	f.String("csv", "", "CSV report path (default: report.csv)")
	f.String("html", "", "HTML report path (default: report.html)")
	f.String("history", "", "SQLite database to record the run in")
	f.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	f.String("scan-log", "", "Append one JSON line per page to this file")
	f.String("user-agent", "", "User-Agent header for fetches")
	f.Duration("timeout", 0, "Per-page fetch timeout (default: 25s)")
	f.Duration("rate-limit", 0, "Minimum pause between fetches (default: 500ms)")
	f.String("chrome-path", "", "Chrome executable for --render js")
	f.StringVar(&sf.render, "render", "", `Render pages before extraction ("js" uses headless Chrome)`)
	f.BoolVar(&sf.noEvidence, "no-evidence", false, "Skip writing evidence files")
}

func (sf *scanFlags) renderJS() (bool, error) {
	switch strings.ToLower(sf.render) {
	case "":
		return false, nil
	case "js":
		return true, nil
	default:
		return false, fmt.Errorf("unsupported --render mode %q (only \"js\")", sf.render)
	}
}

// scanConfig turns operational config into a scan configuration.
func scanConfig(cfg *config.Config, sf *scanFlags) (scan.Config, error) {
	renderJS, err := sf.renderJS()
	if err != nil {
		return scan.Config{}, err
	}
	return scan.Config{
		URLsPath:     cfg.URLs,
		PolicyPath:   cfg.Policy,
		PacksDir:     cfg.PacksDir,
		EvidenceDir:  cfg.EvidenceDir,
		NoEvidence:   sf.noEvidence,
		RenderJS:     renderJS,
		ChromePath:   cfg.ChromePath,
		CSVPath:      cfg.ReportCSV,
		HTMLPath:     cfg.ReportHTML,
		UserAgent:    cfg.UserAgent,
		FetchTimeout: cfg.FetchTimeout,
		RateLimit:    cfg.RateLimit,
		ScanLogPath:  cfg.ScanLog,
		HistoryPath:  cfg.HistoryDB,
		MetricsFile:  cfg.MetricsFile,
	}, nil
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	sf := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan partner pages and write reports and evidence",
		Long: `Fetch every URL in the URL list, evaluate the main page text against the
policy and write CSV and HTML reports plus per-page evidence.

  partnerscan scan --urls urls.txt --policy policy.yml
  partnerscan scan --render js --history scans.db`,
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

			scanner := scan.New(sc, opts.logger, scan.WithProgress(progressPrinter(cmd.ErrOrStderr())))
			summary, err := scanner.Run(cmd.Context())
			if errors.Is(err, scan.ErrNoURLs) {
				fmt.Fprintln(cmd.ErrOrStderr(), "No URLs to scan.")
				return nil
			}
			if err != nil {
				return err
			}

			printScanSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	addScanFlags(cmd, sf)
	return cmd
}

// progressPrinter reports each page as it completes.
func progressPrinter(w io.Writer) scan.ProgressFunc {
	return func(index, total int, page report.Page) {
		prefix := fmt.Sprintf("[%d/%d] %s", index, total, page.URL)
		switch {
		case page.Error != "":
			colorRed.Fprintf(w, "%s  fetch failed: %s\n", prefix, page.Error)
		case len(page.Findings) > 0:
			colorYellow.Fprintf(w, "%s  %d finding(s)\n", prefix, len(page.Findings))
		default:
			colorGreen.Fprintf(w, "%s  no findings\n", prefix)
		}
	}
}

func printScanSummary(w io.Writer, s *scan.Summary) {
	fmt.Fprintf(w, "Run ID: %s\n", s.Run.ID)

	var reports []string
	if s.CSVPath != "" {
		reports = append(reports, s.CSVPath)
	}
	if s.HTMLPath != "" {
		reports = append(reports, s.HTMLPath)
	}
	if len(reports) > 0 {
		fmt.Fprintf(w, "Report: %s\n", strings.Join(reports, ", "))
	}
	if s.EvidenceDir != "" {
		fmt.Fprintf(w, "Evidence: %s/\n", strings.TrimSuffix(s.EvidenceDir, "/"))
	}
	if s.FetchErrors > 0 {
		colorRed.Fprintf(w, "Fetch errors: %d\n", s.FetchErrors)
	}
	if len(s.Issues) > 0 {
		colorYellow.Fprintf(w, "Policy issues: %d (run \"partnerscan policy check\")\n", len(s.Issues))
	}
	fmt.Fprintf(w, "Total findings: %d\n", s.Run.TotalFindings())
}
