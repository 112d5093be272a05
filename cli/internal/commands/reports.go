package commands

import (
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/claudelytics/cli/internal/output"
	"github.com/zhaobenny/claudelytics/internal/engine"
	"github.com/zhaobenny/claudelytics/internal/report"
)

var dailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "Show usage by day (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, renderDaily)
	},
}

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sessions"},
	Short:   "Show usage by session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, renderSessions)
	},
}

var monthlyCmd = &cobra.Command{
	Use:   "monthly",
	Short: "Show usage by month",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, renderMonthly)
	},
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Show usage by 5-hour billing block",
	Long: `Show usage in the fixed 5-hour billing blocks every UTC day is divided into:
00-05, 05-10, 10-15, 15-20 and 20-01.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, renderBillingBlocks)
	},
}

var sessionBlocksCmd = &cobra.Command{
	Use:   "session-blocks",
	Short: "Show usage by configurable N-hour block with live burn rate",
	Long: `Show usage in N-hour blocks aligned to UTC midnight (block_hours, default 8).
Blocks containing the current time are active and report a burn rate and,
when token_limit or cost_limit is configured, the hours until the limit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, renderSessionBlocks)
	},
}

func init() {
	rootCmd.AddCommand(dailyCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(monthlyCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(sessionBlocksCmd)
}

func renderDaily(w io.Writer, res *engine.Result, _ time.Time) error {
	opts, err := sortOptions()
	if err != nil {
		return err
	}
	r := report.Daily(res.Daily.Buckets(), opts)
	return emit(w, r,
		func() { output.PrintDaily(w, r, tableOptions()) },
		func() error { return output.WriteDailyCSV(w, r) })
}

func renderSessions(w io.Writer, res *engine.Result, _ time.Time) error {
	opts, err := sortOptions()
	if err != nil {
		return err
	}
	r := report.Sessions(res.Sessions.Buckets(), opts)
	return emit(w, r,
		func() { output.PrintSessions(w, r, tableOptions()) },
		func() error { return output.WriteSessionCSV(w, r) })
}

func renderMonthly(w io.Writer, res *engine.Result, _ time.Time) error {
	opts, err := sortOptions()
	if err != nil {
		return err
	}
	r := report.Monthly(res.Daily.Buckets(), opts)
	return emit(w, r, func() { output.PrintMonthly(w, r, tableOptions()) }, nil)
}

func renderBillingBlocks(w io.Writer, res *engine.Result, _ time.Time) error {
	r := report.BillingBlocks(res.Billing.Blocks())
	return emit(w, r, func() { output.PrintBillingBlocks(w, r, tableOptions()) }, nil)
}

func renderSessionBlocks(w io.Writer, res *engine.Result, now time.Time) error {
	r := report.SessionBlocks(res.Blocks.Snapshot(now), res.Blocks.Config(), now)
	return emit(w, r, func() { output.PrintSessionBlocks(w, r, tableOptions()) }, nil)
}
