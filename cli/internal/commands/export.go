package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/claudelytics/cli/internal/output"
	"github.com/zhaobenny/claudelytics/internal/report"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write daily, session and summary CSV files",
	Long: `Write daily.csv, sessions.csv and summary.csv into a directory. The directory
defaults to export_dir from ~/.claudelytics.yaml, or the current directory.`,
	Example: `  claudelytics export --out ./reports --since 20250101`,
	RunE:    runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportDir, "out", "o", "", "Output directory")
}

func runExport(cmd *cobra.Command, args []string) error {
	dir := exportDir
	if dir == "" {
		dir = cfg.ExportDir
	}
	if dir == "" {
		dir = "."
	}

	opts, err := sortOptions()
	if err != nil {
		return err
	}
	res, err := loadUsage(time.Now().UTC())
	if err != nil {
		return err
	}

	daily := report.Daily(res.Daily.Buckets(), opts)
	sessions := report.Sessions(res.Sessions.Buckets(), opts)
	paths, err := output.ExportCSV(dir, daily, sessions)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	for _, p := range paths {
		fmt.Fprintf(w, "Wrote %s\n", p)
	}
	return nil
}
