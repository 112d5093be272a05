package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/claudelytics/cli/internal/output"
	"github.com/zhaobenny/claudelytics/cli/internal/watch"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/parser"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [report]",
	Short: "Re-run a report whenever the usage logs change",
	Long: `Show a report, then show it again each time Claude Code writes to its logs.
The report is one of daily (default), session, monthly, blocks, session-blocks
or analytics. Re-runs wait for the logs to settle and happen at most once per
watch_interval. Press Ctrl-C to stop.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before re-running")
}

func runWatch(cmd *cobra.Command, args []string) error {
	name := "daily"
	if len(args) == 1 {
		name = args[0]
	}
	build, ok := reportBuilders[name]
	if !ok {
		return apperr.Newf(apperr.KindConfig, "watch", "unknown report %q (valid: %s)", name, reportNames())
	}

	root, err := claudeRoot()
	if err != nil {
		return err
	}
	projectsDir, err := parser.FindProjectsDir(root)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := cmd.OutOrStdout()
	clearScreen := output.IsTerminal() && !flagJSON
	return watch.Watch(ctx, watch.Options{
		Dir:      projectsDir,
		Debounce: watchDebounce,
		Interval: cfg.WatchInterval,
		Run: func(ctx context.Context) error {
			if clearScreen {
				fmt.Fprint(w, "\033[H\033[2J")
			}
			if err := runReport(cmd, build); err != nil {
				return err
			}
			if !flagJSON {
				fmt.Fprintf(w, "Updated %s. Watching %s (Ctrl-C to stop)\n", time.Now().Format("15:04:05"), projectsDir)
			}
			return nil
		},
	})
}
