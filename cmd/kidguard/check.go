package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/entrhq/kidguard/pkg/config"
	"github.com/entrhq/kidguard/pkg/policy"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration",
	Long: `Load the configuration file, report hard errors and warnings, and
summarize the effective policy.`,
	RunE: checkCommand,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func checkCommand(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if !config.Exists(configPath) {
		fmt.Fprintf(out, "No configuration at %s; checking built-in defaults.\n\n", configPath)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(out, "✗ %v\n", err)
		return fmt.Errorf("configuration is invalid")
	}

	printSummary(out, cfg)

	warnings := cfg.Warnings()
	if len(warnings) == 0 {
		fmt.Fprintln(out, "\n✓ Configuration is valid")
		return nil
	}
	fmt.Fprintf(out, "\n✓ Configuration is valid with %d warning(s):\n", len(warnings))
	for _, w := range warnings {
		fmt.Fprintf(out, "  ⚠ %s\n", w)
	}
	return nil
}

func printSummary(out io.Writer, cfg *config.Config) {
	pol := cfg.Policy()

	fmt.Fprintf(out, "Mode:          %s (fail %s)\n", pol.Mode, pol.FailMode)
	fmt.Fprintf(out, "Action:        %s\n", pol.ResponseAction)
	if target, ok := cfg.RedirectTarget(); ok {
		fmt.Fprintf(out, "Safe channel:  %s\n", target.URL())
	}
	fmt.Fprintf(out, "Child age:     under %d\n", pol.MaxChildAge)
	fmt.Fprintf(out, "Interval:      %s\n", cfg.CheckInterval())

	if pol.Mode == policy.ModeKeywordFilter {
		fmt.Fprintf(out, "Blocklist:     %d keyword(s), %d channel(s)\n", len(pol.BlockedKeywords), len(pol.BlockedChannels))
	} else {
		kinds := policy.EnabledKinds(pol.Rules)
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		if len(names) == 0 {
			names = []string{"none"}
		}
		fmt.Fprintf(out, "Custom rules:  %s\n", strings.Join(names, ", "))
	}

	var family []string
	for _, m := range cfg.Family {
		role := "adult"
		if m.Child(pol.MaxChildAge) {
			role = "child"
		}
		family = append(family, fmt.Sprintf("%s (%d, %s)", m.Name, m.Age, role))
	}
	if len(family) > 0 {
		fmt.Fprintf(out, "Family:        %s\n", strings.Join(family, ", "))
	}

	fmt.Fprintf(out, "Capture:       %s\n", cfg.Capture.Method)
	fmt.Fprintf(out, "Intervention:  %s\n", cfg.Intervention.Method)
	if cfg.Notifications.Enabled {
		fmt.Fprintf(out, "Notifications: console=%t telegram=%t block_only=%t\n",
			cfg.Notifications.Console, cfg.Notifications.Telegram.Enabled, cfg.Notifications.BlockOnly)
	} else {
		fmt.Fprintln(out, "Notifications: disabled")
	}
}
