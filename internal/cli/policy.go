package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lisaapatel/partnerscan/internal/policy"
	"github.com/lisaapatel/partnerscan/internal/scan"
)

type policyCheckOptions struct {
	text     string
	textFile string
	pageURL  string
	strict   bool
}

func newPolicyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the rule policy",
	}
	cmd.AddCommand(newPolicyCheckCmd(opts))
	return cmd
}

func newPolicyCheckCmd(opts *rootOptions) *cobra.Command {
	po := &policyCheckOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the policy, list its rules and optionally evaluate sample text",
		Long: `Load the policy and its packs, report rule issues and list the compiled
rules. With --text or --text-file the sample is evaluated as page text.

  partnerscan policy check
  partnerscan policy check --text "Upgrade Bank offers guaranteed approval"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if _, err := os.Stat(cfg.Policy); err != nil {
				return &scan.NoInputError{What: "policy file", Path: cfg.Policy}
			}

			engine, packs, err := scan.LoadEngine(cfg.Policy, cfg.PacksDir, opts.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Policy: %s\n", cfg.Policy)
			printPacks(out, packs)
			printRules(out, engine)

			issues := engine.Issues()
			if len(issues) > 0 {
				fmt.Fprintln(out)
				colorYellow.Fprintf(out, "Issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %v\n", issue)
				}
			}

			text := po.text
			if po.textFile != "" {
				data, err := os.ReadFile(po.textFile)
				if err != nil {
					return fmt.Errorf("failed to read sample text: %w", err)
				}
				text = string(data)
			}
			if text != "" {
				fmt.Fprintln(out)
				fmt.Fprint(out, engine.EvaluatePage(text, po.pageURL).Explain())
			}

			if po.strict && len(issues) > 0 {
				return fmt.Errorf("policy has %d issue(s)", len(issues))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&po.text, "text", "", "Sample page text to evaluate")
	cmd.Flags().StringVar(&po.textFile, "text-file", "", "File holding sample page text to evaluate")
	cmd.Flags().StringVar(&po.pageURL, "url", "", "Page URL used when applying suppressions to the sample")
	cmd.Flags().BoolVar(&po.strict, "strict", false, "Exit non-zero when the policy has issues")
	cmd.Flags().String("packs-dir", "", "Rule pack directory (default: policies.d next to the policy)")
	return cmd
}

func printRules(out io.Writer, engine *policy.Engine) {
	rules := engine.Registry().Rules()
	fmt.Fprintf(out, "Rules (%d):\n", len(rules))
	fmt.Fprintln(out, strings.Repeat("─", 60))
	for _, r := range rules {
		m := r.Meta()
		fmt.Fprintf(out, "  %-28s %-16s %-6s %s\n", m.ID, r.Kind(), m.Severity, m.Taxonomy)
	}
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "Suppressions: %d\n", len(engine.Policy().Suppressions))
}

func printPacks(out io.Writer, packs []policy.PackInfo) {
	if len(packs) == 0 {
		return
	}
	fmt.Fprintf(out, "Packs (%d):\n", len(packs))
	for _, p := range packs {
		switch {
		case p.Err != nil:
			colorRed.Fprintf(out, "  ✗ %s: %v\n", p.Name, p.Err)
		case p.Enabled:
			fmt.Fprintf(out, "  ✓ %s (%d rules)\n", p.Name, p.RuleCount)
		default:
			fmt.Fprintf(out, "  - %s (disabled)\n", p.Name)
		}
	}
}
