package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/claudelytics/cli/internal/output"
	"github.com/zhaobenny/claudelytics/internal/analytics"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/engine"
)

var (
	analyticsCostThreshold  float64
	analyticsHistoryDays    int
	analyticsProjectionDays int
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Show burn rates, budget projections, alerts and session patterns",
	Long: `Show realtime analytics: burn rates over the last hour, 3 hours and 24 hours,
budget projections against the limits under budget in ~/.claudelytics.yaml,
efficiency trends, alerts, cost and token projections and session patterns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReport(cmd, renderAnalytics)
	},
}

func init() {
	rootCmd.AddCommand(analyticsCmd)

	analyticsCmd.Flags().Float64Var(&analyticsCostThreshold, "cost-threshold", analytics.DefaultCostThreshold, "Flag sessions costing more than this (USD)")
	analyticsCmd.Flags().IntVar(&analyticsHistoryDays, "history-days", 30, "Days of history the projections learn from")
	analyticsCmd.Flags().IntVar(&analyticsProjectionDays, "projection-days", 30, "Days to project ahead")
}

func renderAnalytics(w io.Writer, res *engine.Result, now time.Time) error {
	if analyticsHistoryDays < 1 || analyticsProjectionDays < 0 {
		return apperr.Newf(apperr.KindConfig, "analytics", "history-days must be at least 1 and projection-days not negative")
	}

	days := res.Daily.Buckets()
	sessions := res.Sessions.Buckets()

	proj := analytics.DefaultProjectionConfig()
	proj.HistoryDays = analyticsHistoryDays
	proj.ProjectionDays = analyticsProjectionDays
	proj.CostLimit = cfg.Budget.MonthlyLimit
	proj.TokenLimit = cfg.TokenLimit

	r := output.AnalyticsReport{
		Realtime: analytics.Realtime(analytics.Input{
			Daily:    days,
			Sessions: sessions,
			Timeline: res.Timeline.Points(),
		}, cfg.Budget, now),
		CostProjection:  analytics.ProjectCost(days, now, proj),
		TokenProjection: analytics.ProjectTokens(days, now, proj),
		Patterns:        analytics.AnalyzeSessions(sessions, now, analyticsCostThreshold),
	}

	return emit(w, r, func() {
		if !res.HasData() {
			fmt.Fprintln(w, "No usage data found.")
			return
		}
		output.PrintAnalytics(w, r)
	}, nil)
}
