package main

import (
	"github.com/spf13/cobra"

	"scout/internal/version"
)

var (
	// repoFlag is the target repository root
	repoFlag string
	// policyFlag overrides the governance policy source
	policyFlag string
	// tokenFlag presents a permit token to the governance gate
	tokenFlag string
	// strictFlag escalates budget truncation, low confidence and blocked
	// optional writes into non-zero exits
	strictFlag bool
	// logLevelFlag and logFormatFlag configure diagnostics on stderr
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "scout",
	Short: "Scout - governed repository discovery",
	Long: `Scout discovers what a repository is and what it can do: module layout,
languages, HTTP endpoints and resources. Every command passes a governance
gate first, treats the target as strictly read-only, and reports results as
machine lines on stdout.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("scout version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", ".", "Target repository root")
	rootCmd.PersistentFlags().StringVar(&policyFlag, "policy", "",
		"Policy source path (default: $SCOUT_POLICY, then policy.* in the state dir)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Permit token for the governance gate")
	rootCmd.PersistentFlags().BoolVar(&strictFlag, "strict", false,
		"Fail on budget truncation, low confidence and blocked optional writes")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "human", "Log format (json, human)")
}
