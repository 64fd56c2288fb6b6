package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Softorize/mikiclaw/internal/security"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate the security policy without running anything",
		Long: "Checks a tool name or a shell command against the active policy and\n" +
			"prints the verdict. Exits 1 when the policy denies, so it can gate\n" +
			"scripts and CI steps.",
	}
	cmd.AddCommand(newCheckToolCmd())
	cmd.AddCommand(newCheckCommandCmd())
	return cmd
}

func newCheckToolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tool NAME",
		Short: "Check whether a tool may be called",
		Example: `  mikiclaw check tool bash
  mikiclaw check tool web_search --profile minimal`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := initConfig()
			pol := security.NewPolicy(cfg.Security)
			reportVerdict(pol, "tool "+args[0], pol.IsToolAllowed(args[0]))
		},
	}
}

func newCheckCommandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "command CMD",
		Short: "Check whether a shell command may run",
		Example: `  mikiclaw check command 'rm -rf /'
  mikiclaw check command 'git push' --policy allowlist-only`,
		Args: cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := initConfig()
			pol := security.NewPolicy(cfg.Security)
			cmdline := strings.Join(args, " ")
			reportVerdict(pol, fmt.Sprintf("command %q", cmdline), pol.IsCommandAllowed(cmdline))
		},
	}
}

// reportVerdict prints the decision and exits non-zero on deny.
func reportVerdict(pol *security.Policy, subject string, v security.Verdict) {
	fmt.Printf("policy: profile=%s tier=%s\n", pol.Profile, pol.Tier)
	if v.Allowed {
		if v.Reason != "" {
			fmt.Printf("allow: %s (%s)\n", subject, v.Reason)
		} else {
			fmt.Printf("allow: %s\n", subject)
		}
		return
	}
	fmt.Printf("deny: %s\n  reason: %s\n", subject, v.Reason)
	os.Exit(1)
}
