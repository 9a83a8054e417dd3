package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lisaapatel/partnerscan/internal/approval"
	"github.com/lisaapatel/partnerscan/internal/marks"
	"github.com/lisaapatel/partnerscan/internal/policy"
	"github.com/lisaapatel/partnerscan/internal/scan"
)

// DefaultMarksFile is where reviewers record false positives.
const DefaultMarksFile = "false_positive_marks.csv"

var errNoMarks = errors.New("no valid rows in marks file (need at least rule_id)")

type markOptions struct {
	marksPath    string
	appendPolicy bool
	printOnly    bool
	yes          bool
}

func newMarkCmd(opts *rootOptions) *cobra.Command {
	mo := &markOptions{}
	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Turn false-positive marks into policy suppressions",
		Long: `Read reviewer marks (CSV with columns url, rule_id, snippet_contains,
match_contains, url_contains, reason) and either print them as a suppressions
block or merge them into the policy file. Entries already in the policy are
not added again.

  partnerscan mark --print
  partnerscan mark --marks marks.csv --append-policy`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			return runMark(cmd, mo, cfg.Policy)
		},
	}
	cmd.Flags().StringVar(&mo.marksPath, "marks", DefaultMarksFile, "CSV of false-positive marks")
	cmd.Flags().BoolVar(&mo.appendPolicy, "append-policy", false, "Merge suppressions into the policy file")
	cmd.Flags().BoolVar(&mo.printOnly, "print", false, "Only print the YAML block to paste into the policy")
	cmd.Flags().BoolVarP(&mo.yes, "yes", "y", false, "Do not ask before writing the policy")
	return cmd
}

func runMark(cmd *cobra.Command, mo *markOptions, policyPath string) error {
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	if _, err := os.Stat(mo.marksPath); err != nil {
		fmt.Fprintf(errOut, "Create a CSV with columns: %s", marks.Template())
		return &scan.NoInputError{What: "marks file", Path: mo.marksPath}
	}

	entries, err := marks.Load(mo.marksPath)
	if err != nil {
		return fmt.Errorf("failed to read marks: %w", err)
	}
	if len(entries) == 0 {
		return errNoMarks
	}

	if mo.printOnly {
		block, err := policy.SuppressionsYAML(entries)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "# Add this to %s under suppressions:\n", policyPath)
		fmt.Fprint(out, string(block))
		return nil
	}

	if !mo.appendPolicy {
		fmt.Fprintf(errOut, "Use --append-policy to update %s, or --print to print YAML block.\n", policyPath)
		return nil
	}

	if _, err := os.Stat(policyPath); err != nil {
		return &scan.NoInputError{What: "policy file", Path: policyPath}
	}

	if !mo.yes {
		details := make([]string, 0, len(entries))
		for _, s := range entries {
			details = append(details, describeSuppression(s))
		}
		res := approval.Confirm(approval.Prompt{
			Action:  fmt.Sprintf("Merge %d suppression(s) into", len(entries)),
			Target:  policyPath,
			Details: details,
		})
		if !res.Approved {
			fmt.Fprintln(errOut, "Aborted; policy not changed.")
			return nil
		}
	}

	added, err := policy.AppendSuppressionsFile(policyPath, entries)
	if err != nil {
		return fmt.Errorf("failed to update policy: %w", err)
	}
	if added == 0 {
		fmt.Fprintf(out, "No new suppressions; %s already has all %d.\n", policyPath, len(entries))
		return nil
	}
	fmt.Fprintf(out, "Appended %d suppression(s) to %s. Re-run scan to apply.\n", added, policyPath)
	return nil
}

func describeSuppression(s policy.Suppression) string {
	parts := []string{s.RuleID}
	if s.URLContains != "" {
		parts = append(parts, "url_contains="+s.URLContains)
	}
	if s.SnippetContains != "" {
		parts = append(parts, "snippet_contains="+s.SnippetContains)
	}
	if s.MatchContains != "" {
		parts = append(parts, "match_contains="+s.MatchContains)
	}
	return strings.Join(parts, " ")
}
