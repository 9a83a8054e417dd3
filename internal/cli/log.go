package cli

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lisaapatel/partnerscan/internal/logger"
)

type logOptions struct {
	runID   string
	flagged bool
	failed  bool
	last    int
	summary bool
}

func newLogCmd(opts *rootOptions) *cobra.Command {
	lo := &logOptions{}
	cmd := &cobra.Command{
		Use:   "log",
		Short: "View and filter the per-page scan log",
		Long: `View the JSONL scan log written with "scan --scan-log".

Examples:
  partnerscan log --scan-log scan.jsonl              # Show all entries
  partnerscan log --last 20                          # Show last 20 entries
  partnerscan log --flagged                          # Pages with findings
  partnerscan log --errors                           # Pages that failed to fetch
  partnerscan log --summary                          # Summary statistics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.ScanLog == "" {
				return errors.New("no scan log configured (use --scan-log or scan_log)")
			}

			events, err := readScanLog(cfg.ScanLog)
			if err != nil {
				return fmt.Errorf("failed to read scan log: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No scan log entries found.")
				return nil
			}

			filtered := lo.filter(events)
			if lo.last > 0 && lo.last < len(filtered) {
				filtered = filtered[len(filtered)-lo.last:]
			}

			if lo.summary {
				printLogSummary(out, events)
				return nil
			}
			printEvents(out, filtered)
			return nil
		},
	}
	cmd.Flags().String("scan-log", "", "Scan log file (default: scan_log from config)")
	cmd.Flags().StringVar(&lo.runID, "run", "", "Only show entries of this run")
	cmd.Flags().BoolVar(&lo.flagged, "flagged", false, "Only show pages with findings")
	cmd.Flags().BoolVar(&lo.failed, "errors", false, "Only show pages that failed to fetch")
	cmd.Flags().IntVar(&lo.last, "last", 0, "Show last N entries")
	cmd.Flags().BoolVar(&lo.summary, "summary", false, "Show summary statistics")
	return cmd
}

func readScanLog(path string) ([]logger.PageEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []logger.PageEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var event logger.PageEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			continue // skip malformed lines
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}

func (lo *logOptions) filter(events []logger.PageEvent) []logger.PageEvent {
	if lo.runID == "" && !lo.flagged && !lo.failed {
		return events
	}

	var filtered []logger.PageEvent
	for _, e := range events {
		if lo.runID != "" && e.RunID != lo.runID {
			continue
		}
		if lo.flagged && e.Findings == 0 {
			continue
		}
		if lo.failed && e.Error == "" {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func printEvents(out io.Writer, events []logger.PageEvent) {
	for _, e := range events {
		ts := formatTimestamp(e.Timestamp)
		switch {
		case e.Error != "":
			colorRed.Fprintf(out, "✗ %s %s\n", ts, e.URL)
			fmt.Fprintf(out, "     Error: %s\n", e.Error)
		case e.Findings > 0:
			colorYellow.Fprintf(out, "! %s %s [%d finding(s)]\n", ts, e.URL, e.Findings)
			fmt.Fprintf(out, "     Rules: %s\n", strings.Join(e.RuleIDs, ", "))
		default:
			fmt.Fprintf(out, "✓ %s %s\n", ts, e.URL)
		}
		if e.Suppressed > 0 {
			fmt.Fprintf(out, "     Suppressed: %d\n", e.Suppressed)
		}
		fmt.Fprintf(out, "     Run: %s  Status: %d  Took: %dms\n", e.RunID, e.HTTPStatus, e.DurationMS)
		fmt.Fprintln(out)
	}
}

func printLogSummary(out io.Writer, all []logger.PageEvent) {
	runs := map[string]bool{}
	flagged, errorCount, findings := 0, 0, 0
	rules := map[string]int{}

	for _, e := range all {
		runs[e.RunID] = true
		findings += e.Findings
		if e.Findings > 0 {
			flagged++
		}
		if e.Error != "" {
			errorCount++
		}
		for _, id := range e.RuleIDs {
			rules[id]++
		}
	}

	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintln(out, "  Scan Log Summary")
	fmt.Fprintln(out, "═══════════════════════════════════════════")
	fmt.Fprintf(out, "  Runs:            %d\n", len(runs))
	fmt.Fprintf(out, "  Pages scanned:   %d\n", len(all))
	fmt.Fprintf(out, "  Pages flagged:   %d\n", flagged)
	fmt.Fprintf(out, "  Findings:        %d\n", findings)
	fmt.Fprintf(out, "  Fetch errors:    %d\n", errorCount)
	fmt.Fprintln(out, "═══════════════════════════════════════════")

	fmt.Fprintf(out, "  First entry:     %s\n", formatTimestamp(all[0].Timestamp))
	fmt.Fprintf(out, "  Last entry:      %s\n", formatTimestamp(all[len(all)-1].Timestamp))

	if len(rules) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "  Pages per rule:")
		for _, id := range sortedKeys(rules) {
			fmt.Fprintf(out, "    %-28s %d\n", id, rules[id])
		}
	}
	fmt.Fprintln(out)
}

func formatTimestamp(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
