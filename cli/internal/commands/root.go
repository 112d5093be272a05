// Package commands defines the claudelytics command tree.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/claudelytics/cli/internal/config"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/logger"
)

const version = "0.3.0"

// Global flags
var (
	flagPath        string
	flagSince       string
	flagUntil       string
	flagModel       string
	flagJSON        bool
	flagSort        string
	flagOrder       string
	flagCompact     bool
	flagBreakdown   bool
	flagVerbose     bool
	flagPricingFile string
	flagWorkers     int
)

// cfg is the loaded configuration, set before any command runs
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "claudelytics",
	Short: "Usage and cost analytics for Claude Code",
	Long: `claudelytics reads the JSONL usage logs Claude Code writes under ~/.claude/projects
and reports token usage and cost by day, month, session and billing block, with
burn rates, projections and budget alerts.

Running claudelytics without a command shows the default report (daily unless
default_command is set in ~/.claudelytics.yaml).`,
	Example: `  claudelytics                        Show daily usage
  claudelytics daily --since 20250101
  claudelytics session --sort cost --order asc
  claudelytics monthly --json
  claudelytics session-blocks
  claudelytics analytics
  claudelytics export --out ./reports
  claudelytics watch session`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	RunE:              runDefault,
}

// Execute runs the command tree and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if apperr.KindOf(err) == apperr.KindDirectoryNotFound {
			fmt.Fprintln(os.Stderr, "Use --path or set claude_path to point at your Claude data directory.")
		}
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagPath, "path", "", "Claude data directory (default ~/.claude)")
	pf.StringVar(&flagSince, "since", "", "Start date filter (YYYYMMDD)")
	pf.StringVar(&flagUntil, "until", "", "End date filter (YYYYMMDD)")
	pf.StringVar(&flagModel, "model", "", "Only count models matching a family, alias or substring")
	pf.BoolVar(&flagJSON, "json", false, "Output as JSON")
	pf.StringVar(&flagSort, "sort", "", "Sort by date, cost, tokens, efficiency or project")
	pf.StringVar(&flagOrder, "order", "", "Sort order: asc or desc")
	pf.BoolVarP(&flagCompact, "compact", "c", false, "Force compact table output")
	pf.BoolVar(&flagBreakdown, "breakdown", false, "List the models used under each table")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "Log debug details to stderr")
	pf.StringVar(&flagPricingFile, "pricing-file", "", "YAML file with pricing overrides")
	pf.IntVar(&flagWorkers, "workers", 0, "Parallel parser workers (0 uses one per CPU)")
}

func setup(cmd *cobra.Command, args []string) error {
	logger.SetVerbose(flagVerbose)
	if skipsConfig(cmd) {
		return nil
	}
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// skipsConfig reports whether cmd manages the config file itself, so a broken
// file can still be inspected and fixed
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == configCmd || c == versionCmd {
			return true
		}
	}
	return false
}

func runDefault(cmd *cobra.Command, args []string) error {
	name := cfg.DefaultCommand
	if name == "" {
		name = "daily"
	}
	build, ok := reportBuilders[name]
	if !ok {
		return apperr.Newf(apperr.KindConfig, "default command", "%q is not a report (valid: %s)", name, reportNames())
	}
	return runReport(cmd, build)
}
