package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/zhaobenny/claudelytics/internal/analytics"
)

// AnalyticsReport bundles everything the analytics command shows
type AnalyticsReport struct {
	Realtime        analytics.RealtimeReport  `json:"realtime"`
	CostProjection  analytics.CostProjection  `json:"cost_projection"`
	TokenProjection analytics.TokenProjection `json:"token_projection"`
	Patterns        analytics.SessionPatterns `json:"session_patterns"`
}

var (
	accent = lipgloss.Color("#cc785c")
	subtle = lipgloss.Color("245")

	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(accent).MarginTop(1)
	labelStyle   = lipgloss.NewStyle().Foreground(subtle).Width(30)
	valueStyle   = lipgloss.NewStyle().Bold(true)
	noteStyle    = lipgloss.NewStyle().Foreground(subtle).Italic(true)

	severityStyles = map[analytics.AlertSeverity]lipgloss.Style{
		analytics.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("#4285f4")),
		analytics.SeverityWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#e5a50a")),
		analytics.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("#e01b24")).Bold(true),
	}

	trendArrows = map[analytics.TrendDirection]string{
		analytics.TrendIncreasing: "↑",
		analytics.TrendDecreasing: "↓",
		analytics.TrendStable:     "→",
	}
)

type section struct {
	title string
	lines []string
}

func (s *section) add(label, format string, args ...any) {
	s.lines = append(s.lines, lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render(label), valueStyle.Render(fmt.Sprintf(format, args...))))
}

func (s *section) note(text string) {
	s.lines = append(s.lines, noteStyle.Render(text))
}

func (s section) render() string {
	return headingStyle.Render(s.title) + "\n" + strings.Join(s.lines, "\n")
}

func optionalDays(d *float64) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f days", *d)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func trend(m analytics.TrendMetric) string {
	return fmt.Sprintf("%.2f %s (%+.1f%%)", m.CurrentValue, trendArrows[m.Direction], m.ChangePercentage)
}

func burnLine(s *section, label string, b analytics.BurnRate) {
	s.add(label, "%s tokens/h, %s/h", FormatNumber(int64(b.TokensPerHour)), FormatCost(b.CostPerHour))
}

func budgetLine(s *section, label string, p analytics.BudgetProjection) {
	if p.BudgetLimit == nil {
		s.add(label, "%s (no limit)", FormatCost(p.EstimatedCost))
		return
	}
	verdict := "within budget"
	if p.WillExceed {
		verdict = "over budget"
	}
	s.add(label, "%s of %s, %s, %s", FormatCost(p.EstimatedCost), FormatCost(*p.BudgetLimit), percent(p.UtilizationPercentage), verdict)
}

// RenderRealtime renders burn rates, budgets, session metrics, trends and
// alerts
func RenderRealtime(r analytics.RealtimeReport) string {
	rates := section{title: "Burn rate"}
	burnLine(&rates, "Current hour", r.BurnRates.CurrentHour)
	burnLine(&rates, "Last 3 hours", r.BurnRates.Last3Hours)
	burnLine(&rates, "Last 24 hours", r.BurnRates.Last24Hours)
	rates.add("Per minute", "%.1f tokens, %s", r.BurnRates.TokensPerMinute, FormatCost(r.BurnRates.CostPerMinute))
	if peak := r.BurnRates.PeakBurnRate; !peak.OccurredAt.IsZero() {
		rates.add("Peak", "%s/h at %s", FormatCost(peak.CostPerHour), peak.OccurredAt.UTC().Format("2006-01-02 15:00"))
	}
	rates.add("Projected today", "%s tokens, %s", FormatNumber(r.BurnRates.Last24Hours.ProjectedDailyTokens), FormatCost(r.BurnRates.Last24Hours.ProjectedDailyCost))
	if r.BurnRates.Last24Hours.Approximate {
		rates.note("Rates estimated from daily totals")
	}

	budgets := section{title: "Budget"}
	bp := r.BudgetProjections
	budgetLine(&budgets, "Daily", bp.Daily)
	budgetLine(&budgets, "Monthly", bp.Monthly)
	budgetLine(&budgets, "Yearly", bp.Yearly)
	budgets.add("Until daily limit", "%s", formatHours(bp.TimeToLimits.HoursToDailyLimit))
	budgets.add("Until monthly limit", "%s", optionalDays(bp.TimeToLimits.DaysToMonthlyLimit))
	budgets.add("Until yearly limit", "%s", optionalDays(bp.TimeToLimits.DaysToYearlyLimit))

	sessions := section{title: "Sessions"}
	sm := r.SessionMetrics
	sessions.add("Active", "%d", sm.ActiveSessionCount)
	sessions.add("Average per session", "%s tokens, %s", FormatNumber(int64(sm.AvgTokensPerSession)), FormatCost(sm.AvgCostPerSession))
	sessions.add("Average duration", "%.0f min", sm.AvgSessionDurationSecs/60)
	if sm.CurrentSessionBurnRate != nil {
		burnLine(&sessions, "Current session", *sm.CurrentSessionBurnRate)
	}
	if len(sm.PeakUsageHours) > 0 {
		hours := make([]string, len(sm.PeakUsageHours))
		for i, h := range sm.PeakUsageHours {
			hours[i] = fmt.Sprintf("%02d:00", h)
		}
		sessions.add("Peak hours", "%s", strings.Join(hours, ", "))
	}
	sessions.add("Efficiency score", "%.1f/100", sm.EfficiencyScore)

	trends := section{title: "Efficiency trends (today vs yesterday)"}
	et := r.EfficiencyTrends
	trends.add("Tokens per dollar", "%s", trend(et.TokensPerDollarTrend))
	trends.add("Response time", "%s", trend(et.ResponseTimeTrend))
	trends.add("Cache efficiency", "%s", trend(et.CacheEfficiencyTrend))
	trends.add("7-day cost efficiency", "%.1f/100", et.CostEfficiencyScore)

	parts := []string{rates.render(), budgets.render(), sessions.render(), trends.render()}
	if len(r.Alerts) > 0 {
		alerts := section{title: "Alerts"}
		for _, a := range r.Alerts {
			style := severityStyles[a.Severity]
			line := style.Render(fmt.Sprintf("[%s] %s", strings.ToUpper(string(a.Severity)), a.Message))
			if a.RecommendedAction != "" {
				line += "\n    " + noteStyle.Render(a.RecommendedAction)
			}
			alerts.lines = append(alerts.lines, line)
		}
		parts = append(parts, alerts.render())
	}
	return strings.Join(parts, "\n")
}

// RenderProjections renders the cost and token projections
func RenderProjections(c analytics.CostProjection, t analytics.TokenProjection) string {
	cost := section{title: "Cost projection"}
	cost.add("Daily average", "%s", FormatCost(c.DailyAverageCost))
	cost.add("Weekly average", "%s", FormatCost(c.WeeklyAverageCost))
	cost.add("Monthly average", "%s", FormatCost(c.MonthlyAverageCost))
	cost.add("Trend", "%s %s (%+.1f%%/day)", c.Trend, trendArrows[c.Trend], c.GrowthRate)
	cost.add("Next 30 days", "%s", FormatCost(c.EstimatedMonthlyCost))
	if c.DaysUntilLimit != nil {
		cost.add("Limit reached", "in %d days (%s)", *c.DaysUntilLimit, c.LimitDate)
	}

	tokens := section{title: "Token projection"}
	tokens.add("Daily average", "%s", FormatNumber(int64(t.DailyAverageTokens)))
	tokens.add("Weekly average", "%s", FormatNumber(int64(t.WeeklyAverageTokens)))
	tokens.add("Monthly average", "%s", FormatNumber(int64(t.MonthlyAverageTokens)))
	tokens.add("Trend", "%s %s (%+.1f%%/day)", t.Trend, trendArrows[t.Trend], t.GrowthRate)
	if t.DaysUntilTokenLimit != nil {
		tokens.add("Limit reached", "in %d days (%s)", *t.DaysUntilTokenLimit, t.TokenLimitDate)
	}
	return cost.render() + "\n" + tokens.render()
}

// RenderPatterns renders the session pattern analysis
func RenderPatterns(p analytics.SessionPatterns) string {
	tod := section{title: "Time of day"}
	tod.add("Peak hour", "%02d:00", p.TimeOfDay.PeakHour)
	tod.add("Quietest hour", "%02d:00", p.TimeOfDay.OffPeakHour)
	tod.add("Business hours", "%s tokens, %s", FormatNumber(p.TimeOfDay.BusinessHoursUsage.TotalTokens()), FormatCost(p.TimeOfDay.BusinessHoursUsage.TotalCost))
	tod.add("After hours", "%s tokens, %s", FormatNumber(p.TimeOfDay.AfterHoursUsage.TotalTokens()), FormatCost(p.TimeOfDay.AfterHoursUsage.TotalCost))

	dow := section{title: "Day of week"}
	dow.add("Most active", "%s", p.DayOfWeek.MostActiveDay)
	dow.add("Least active", "%s", p.DayOfWeek.LeastActiveDay)
	dow.add("Weekend/weekday ratio", "%.2f", p.DayOfWeek.WeekendVsWeekdayRatio)

	dur := section{title: "Durations"}
	d := p.Durations
	dur.add("Average", "%s", d.AvgSessionDuration.Round(time.Second))
	dur.add("Longest", "%s (%.0f min)", d.Longest.Path, d.Longest.DurationSecs/60)
	dur.add("Shortest", "%s (%.0f min)", d.Shortest.Path, d.Shortest.DurationSecs/60)
	dd := d.Distribution
	dur.add("Distribution", "<5m %d, 5-30m %d, 30-60m %d, 1-3h %d, >3h %d", dd.Under5Min, dd.Min5To30, dd.Min30To60, dd.Hour1To3, dd.Over3Hours)

	freq := section{title: "Frequency"}
	f := p.Frequency
	freq.add("Sessions per day", "%.2f", f.SessionsPerDay)
	freq.add("Sessions per week", "%.2f", f.SessionsPerWeek)
	freq.add("Days with usage", "%d", f.DaysWithUsage)
	freq.add("Streak", "%d current, %d longest", f.CurrentStreak, f.LongestStreak)

	eff := section{title: "Cost efficiency"}
	ce := p.CostEfficiency
	eff.add("Most expensive", "%s (%s)", ce.MostExpensive.Path, FormatCost(ce.MostExpensive.Cost))
	eff.add("Most efficient", "%s", ce.MostEfficient.Path)
	eff.add("Least efficient", "%s", ce.LeastEfficient.Path)
	eff.add("Above "+FormatCost(ce.CostThreshold), "%d sessions", len(ce.SessionsAboveThreshold))

	return strings.Join([]string{tod.render(), dow.render(), dur.render(), freq.render(), eff.render()}, "\n")
}

// PrintAnalytics writes the full analytics view
func PrintAnalytics(w io.Writer, r AnalyticsReport) {
	fmt.Fprintln(w, RenderRealtime(r.Realtime))
	fmt.Fprintln(w, RenderProjections(r.CostProjection, r.TokenProjection))
	fmt.Fprintln(w, RenderPatterns(r.Patterns))
	fmt.Fprintln(w)
}
