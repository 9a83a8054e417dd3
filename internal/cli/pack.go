package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lisaapatel/partnerscan/internal/policy"
)

func newPackCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Manage rule packs",
		Long: `Manage partnerscan rule packs.

Rule packs are extra policy files adding rules, qualifier phrases, company
name variants and suppressions. They live in policies.d/ next to the policy
(or --packs-dir) and are merged with the base policy on every scan. Files
prefixed with "_" are disabled.

Examples:
  partnerscan pack list                 # List installed packs
  partnerscan pack enable rates         # Enable a pack
  partnerscan pack disable rates        # Disable a pack
  partnerscan pack show rates           # Show pack contents`,
	}
	cmd.PersistentFlags().String("packs-dir", "", "Rule pack directory (default: policies.d next to the policy)")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List installed rule packs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := packsDir(opts, cmd)
			if err != nil {
				return err
			}
			return packList(cmd, dir)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "enable <pack-name>",
		Short: "Enable a disabled rule pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return packSetEnabled(opts, cmd, args[0], true)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "disable <pack-name>",
		Short: "Disable a rule pack (prefix with underscore)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return packSetEnabled(opts, cmd, args[0], false)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <pack-name>",
		Short: "Show a rule pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := packsDir(opts, cmd)
			if err != nil {
				return err
			}
			path, _, err := policy.PackPath(dir, args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})
	return cmd
}

func packsDir(opts *rootOptions, cmd *cobra.Command) (string, error) {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.PacksDir != "" {
		return cfg.PacksDir, nil
	}
	return policy.DefaultPacksDir(cfg.Policy), nil
}

func packList(cmd *cobra.Command, dir string) error {
	out := cmd.OutOrStdout()

	_, infos, err := policy.LoadPacks(dir, policy.DefaultPolicy(), nil)
	if err != nil {
		return fmt.Errorf("failed to load packs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintln(out, "No rule packs installed.")
		fmt.Fprintf(out, "\nTo install packs, copy YAML files to: %s\n", dir)
		return nil
	}

	fmt.Fprintln(out, "Installed Rule Packs:")
	fmt.Fprintln(out, strings.Repeat("─", 60))
	for _, info := range infos {
		status := colorGreen.Sprint("✓")
		if !info.Enabled {
			status = colorRed.Sprint("✗")
		}
		fmt.Fprintf(out, "  %s  %-25s %s\n", status, info.Name, info.Description)
		if info.Err != nil {
			colorRed.Fprintf(out, "       error: %v\n", info.Err)
			continue
		}
		if info.Version != "" {
			fmt.Fprintf(out, "       v%s by %s  (%d rules)\n", info.Version, info.Author, info.RuleCount)
		}
	}
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "\nPacks directory: %s\n", dir)
	return nil
}

func packSetEnabled(opts *rootOptions, cmd *cobra.Command, name string, enabled bool) error {
	dir, err := packsDir(opts, cmd)
	if err != nil {
		return err
	}

	_, wasEnabled, err := policy.PackPath(dir, name)
	if err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	if wasEnabled == enabled {
		fmt.Fprintf(cmd.OutOrStdout(), "Pack '%s' is already %s.\n", name, state)
		return nil
	}

	if _, err := policy.SetPackEnabled(dir, name, enabled); err != nil {
		return fmt.Errorf("failed to update pack: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pack '%s' %s.\n", name, state)
	return nil
}
