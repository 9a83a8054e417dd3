package cli

import (
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/lisaapatel/partnerscan/internal/config"
	"github.com/lisaapatel/partnerscan/internal/logging"
)

// rootOptions holds the persistent flags and the logger built from them.
type rootOptions struct {
	configFile string
	policyPath string
	debug      bool
	logJSON    bool
	logger     *zap.Logger
}

// flagKeys maps command-line flags onto operational config keys.
var flagKeys = map[string]string{
	"policy":       "policy",
	"urls":         "urls",
	"packs-dir":    "packs_dir",
	"evidence-dir": "evidence_dir",
	"csv":          "report_csv",
	"html":         "report_html",
	"user-agent":   "user_agent",
	"timeout":      "fetch_timeout",
	"rate-limit":   "rate_limit",
	"history":      "history_db",
	"db":           "history_db",
	"scan-log":     "scan_log",
	"metrics-file": "metrics_file",
	"chrome-path":  "chrome_path",
	"schedule":     "schedule",
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "partnerscan",
		Short: "Partner portrayal scanner - find risky claims about your company on partner pages",
		Long: `partnerscan fetches a list of partner web pages, extracts their main text and
evaluates it against a rule policy (policy.yml): bank-status claims, guaranteed
approval language, rate misstatements and similar. Findings are written as CSV
and HTML reports with per-page evidence.

Reviewers mark false positives in a CSV; "partnerscan mark" turns the marks into
policy suppressions so the next scan skips them.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = logging.InitLogger(opts.debug, opts.logJSON)
			if !term.IsTerminal(int(os.Stderr.Fd())) {
				color.NoColor = true
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "Operational config file (default: ./partnerscan.yaml if present)")
	cmd.PersistentFlags().StringVar(&opts.policyPath, "policy", "", "Path to policy YAML file (default: policy.yml)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Write logs as JSON")

	cmd.AddCommand(
		newScanCmd(opts),
		newMarkCmd(opts),
		newPolicyCmd(opts),
		newPackCmd(opts),
		newWatchCmd(opts),
		newHistoryCmd(opts),
		newLogCmd(opts),
		newStatusCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig merges the config file, PARTNERSCAN_* variables and the flags
// given on the command line. Only flags the user set are bound.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := config.NewViper()
	for flag, key := range flagKeys {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return nil, err
		}
	}
	return config.Load(v, o.configFile)
}

func Execute() error {
	return newRootCmd().Execute()
}
