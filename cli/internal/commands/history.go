package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/claudelytics/cli/internal/output"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/store"
)

var (
	historyPeriod string
	historyLimit  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show usage snapshots saved by the refresh service",
	Long: `Show the daily or monthly snapshots kept in the local store, newest first.
Snapshots are written by 'claudelytics service refresh' and the installed
refresh service.`,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyPeriod, "period", store.PeriodDay, "Snapshot period: daily or monthly")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 30, "Maximum rows (0 for all)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyPeriod != store.PeriodDay && historyPeriod != store.PeriodMonth {
		return apperr.Newf(apperr.KindConfig, "history", "period must be %s or %s", store.PeriodDay, store.PeriodMonth)
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	rows, err := db.GetSummaries(historyPeriod, historyLimit)
	if err != nil {
		return apperr.New(apperr.KindIO, "read snapshots", err)
	}

	w := cmd.OutOrStdout()
	return emit(w, rows, func() {
		if len(rows) == 0 {
			fmt.Fprintln(w, "No snapshots yet. Run 'claudelytics service refresh' first.")
			return
		}
		output.PrintHistory(w, rows, tableOptions())
	}, nil)
}
