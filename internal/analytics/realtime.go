package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/model"
)

const (
	highBurnCostPerHour = 10.0
	spikeTrendPct       = 100.0
	lowEfficiencyScore  = 50.0

	// tokens per dollar that scores 100
	excellentTokensPerDollar = 100_000.0

	activeSessionWindow = time.Hour
	peakHourCount       = 3
)

// BudgetConfig holds optional spend limits and the utilization ratio at
// which a budget alert fires
type BudgetConfig struct {
	DailyLimit     *float64 `json:"daily_limit,omitempty" yaml:"daily_limit,omitempty"`
	MonthlyLimit   *float64 `json:"monthly_limit,omitempty" yaml:"monthly_limit,omitempty"`
	YearlyLimit    *float64 `json:"yearly_limit,omitempty" yaml:"yearly_limit,omitempty"`
	AlertThreshold float64  `json:"alert_threshold" yaml:"alert_threshold"`
}

// DefaultBudgetConfig has no limits and alerts at 80% utilization
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{AlertThreshold: 0.8}
}

// Input is everything the realtime report reads
type Input struct {
	Daily    []aggregator.DailyBucket   // Ascending by date
	Sessions []aggregator.SessionBucket // Any order
	Timeline []aggregator.TimePoint     // Ascending; nil falls back to spreading Daily
}

// PeakBurnRate is the busiest clock hour observed
type PeakBurnRate struct {
	TokensPerHour float64   `json:"tokens_per_hour"`
	CostPerHour   float64   `json:"cost_per_hour"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// BurnRateAnalysis holds burn rates over several look-back windows
type BurnRateAnalysis struct {
	CurrentHour     BurnRate     `json:"current_hour"`
	Last3Hours      BurnRate     `json:"last_3_hours"`
	Last24Hours     BurnRate     `json:"last_24_hours"`
	TokensPerMinute float64      `json:"tokens_per_minute"`
	CostPerMinute   float64      `json:"cost_per_minute"`
	PeakBurnRate    PeakBurnRate `json:"peak_burn_rate"`
}

// BudgetProjection compares an estimate against an optional limit
type BudgetProjection struct {
	EstimatedCost         float64  `json:"estimated_cost"`
	BudgetLimit           *float64 `json:"budget_limit,omitempty"`
	UtilizationPercentage float64  `json:"utilization_percentage"`
	WillExceed            bool     `json:"will_exceed"`
	Margin                float64  `json:"margin"`
}

// TimeToLimits estimates when each configured limit is reached
type TimeToLimits struct {
	HoursToDailyLimit  *float64 `json:"hours_to_daily_limit,omitempty"`
	DaysToMonthlyLimit *float64 `json:"days_to_monthly_limit,omitempty"`
	DaysToYearlyLimit  *float64 `json:"days_to_yearly_limit,omitempty"`
}

// BudgetProjections holds projections for each horizon
type BudgetProjections struct {
	Daily        BudgetProjection `json:"daily_projection"`
	Monthly      BudgetProjection `json:"monthly_projection"`
	Yearly       BudgetProjection `json:"yearly_projection"`
	TimeToLimits TimeToLimits     `json:"time_to_limits"`
}

// SessionMetrics summarizes recent session activity
type SessionMetrics struct {
	ActiveSessionCount     int       `json:"active_session_count"`
	AvgTokensPerSession    float64   `json:"avg_tokens_per_session"`
	AvgCostPerSession      float64   `json:"avg_cost_per_session"`
	AvgSessionDurationSecs float64   `json:"avg_session_duration_secs"`
	CurrentSessionBurnRate *BurnRate `json:"current_session_burn_rate,omitempty"`
	PeakUsageHours         []int     `json:"peak_usage_hours"`
	EfficiencyScore        float64   `json:"efficiency_score"`
}

// TrendMetric compares a value with its previous observation
type TrendMetric struct {
	CurrentValue     float64        `json:"current_value"`
	PreviousValue    float64        `json:"previous_value"`
	ChangePercentage float64        `json:"change_percentage"`
	Direction        TrendDirection `json:"direction"`
}

// NewTrendMetric computes the relative change from previous to current;
// the change is zero without a positive previous value
func NewTrendMetric(current, previous float64) TrendMetric {
	var change float64
	if previous > 0 {
		change = (current - previous) / previous * 100
	}
	return TrendMetric{
		CurrentValue:     current,
		PreviousValue:    previous,
		ChangePercentage: change,
		Direction:        directionOf(change),
	}
}

// EfficiencyTrends compares today's efficiency with yesterday's
type EfficiencyTrends struct {
	TokensPerDollarTrend TrendMetric `json:"tokens_per_dollar_trend"`
	ResponseTimeTrend    TrendMetric `json:"response_time_trend"`
	CacheEfficiencyTrend TrendMetric `json:"cache_efficiency_trend"`
	CostEfficiencyScore  float64     `json:"cost_efficiency_score"`
}

// AlertType classifies an alert
type AlertType string

const (
	AlertBudgetThreshold   AlertType = "budget_threshold"
	AlertHighBurnRate      AlertType = "high_burn_rate"
	AlertUnusualSpike      AlertType = "unusual_spike"
	AlertInefficientUsage  AlertType = "inefficient_usage"
	AlertProjectionWarning AlertType = "projection_warning"
)

// AlertSeverity ranks an alert
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is a notice about budget or usage behaviour
type Alert struct {
	Type              AlertType     `json:"alert_type"`
	Severity          AlertSeverity `json:"severity"`
	Message           string        `json:"message"`
	Timestamp         time.Time     `json:"timestamp"`
	RecommendedAction string        `json:"recommended_action,omitempty"`
}

// RealtimeReport is the combined realtime analytics view
type RealtimeReport struct {
	BurnRates         BurnRateAnalysis  `json:"burn_rates"`
	BudgetProjections BudgetProjections `json:"budget_projections"`
	SessionMetrics    SessionMetrics    `json:"session_metrics"`
	Alerts            []Alert           `json:"alerts"`
	EfficiencyTrends  EfficiencyTrends  `json:"efficiency_trends"`
}

// Realtime builds the realtime report as of now. Missing data yields a
// zero report rather than an error.
func Realtime(in Input, budget BudgetConfig, now time.Time) RealtimeReport {
	now = now.UTC()
	points, approximate := in.Timeline, false
	if len(points) == 0 && len(in.Daily) > 0 {
		points, approximate = SpreadDaily(in.Daily), true
	}

	rates := burnRates(points, in.Sessions, now)
	if approximate {
		rates.CurrentHour.Approximate = true
		rates.Last3Hours.Approximate = true
		rates.Last24Hours.Approximate = true
	}

	budgets := budgetProjections(in.Daily, rates, budget, now)
	trends := efficiencyTrends(in.Daily, now)

	return RealtimeReport{
		BurnRates:         rates,
		BudgetProjections: budgets,
		SessionMetrics:    sessionMetrics(in.Sessions, now),
		Alerts:            Alerts(rates, budgets, trends, budget, now),
		EfficiencyTrends:  trends,
	}
}

func burnRates(points []aggregator.TimePoint, sessions []aggregator.SessionBucket, now time.Time) BurnRateAnalysis {
	var a BurnRateAnalysis
	a.CurrentHour, _ = BurnRateOver(points, now, time.Hour)
	a.Last3Hours, _ = BurnRateOver(points, now, 3*time.Hour)
	a.Last24Hours, _ = BurnRateOver(points, now, 24*time.Hour)
	a.TokensPerMinute = a.CurrentHour.TokensPerHour / 60
	a.CostPerMinute = a.CurrentHour.CostPerHour / 60
	a.PeakBurnRate = peakBurnRate(sessions, now)
	return a
}

// peakBurnRate groups sessions by the clock hour of their last activity and
// returns the hour with the highest cost; ties go to the earlier hour
func peakBurnRate(sessions []aggregator.SessionBucket, now time.Time) PeakBurnRate {
	type hourly struct {
		tokens int64
		cost   float64
	}
	byHour := make(map[time.Time]*hourly)
	for _, s := range sessions {
		h := s.LastActivity.UTC().Truncate(time.Hour)
		e, ok := byHour[h]
		if !ok {
			e = &hourly{}
			byHour[h] = e
		}
		e.tokens += s.Usage.TotalTokens()
		e.cost += s.Usage.TotalCost
	}
	if len(byHour) == 0 {
		return PeakBurnRate{OccurredAt: now}
	}

	hours := lo.Keys(byHour)
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })
	best := hours[0]
	for _, h := range hours[1:] {
		if byHour[h].cost > byHour[best].cost {
			best = h
		}
	}
	return PeakBurnRate{
		TokensPerHour: float64(byHour[best].tokens),
		CostPerHour:   byHour[best].cost,
		OccurredAt:    best,
	}
}

// NewBudgetProjection compares an estimate with an optional limit
func NewBudgetProjection(estimated float64, limit *float64) BudgetProjection {
	p := BudgetProjection{EstimatedCost: estimated, BudgetLimit: limit}
	if limit != nil && *limit > 0 {
		p.UtilizationPercentage = estimated / *limit * 100
		p.WillExceed = estimated > *limit
		p.Margin = *limit - estimated
	}
	return p
}

func budgetProjections(days []aggregator.DailyBucket, rates BurnRateAnalysis, budget BudgetConfig, now time.Time) BudgetProjections {
	daily := rates.Last24Hours.ProjectedDailyCost
	monthly := rates.Last24Hours.ProjectedMonthlyCost

	today := now.Format(aggregator.DateLayout)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format(aggregator.DateLayout)
	yearStart := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, time.UTC).Format(aggregator.DateLayout)

	var todaySpend, monthSpend, yearSpend float64
	for _, d := range days {
		if d.Date > today {
			continue
		}
		if d.Date == today {
			todaySpend += d.Usage.TotalCost
		}
		if d.Date >= monthStart {
			monthSpend += d.Usage.TotalCost
		}
		if d.Date >= yearStart {
			yearSpend += d.Usage.TotalCost
		}
	}

	var ttl TimeToLimits
	if budget.DailyLimit != nil {
		ttl.HoursToDailyLimit = RemainingAtRate(*budget.DailyLimit, todaySpend, rates.CurrentHour.CostPerHour)
	}
	if budget.MonthlyLimit != nil {
		ttl.DaysToMonthlyLimit = RemainingAtRate(*budget.MonthlyLimit, monthSpend, daily)
	}
	if budget.YearlyLimit != nil {
		ttl.DaysToYearlyLimit = RemainingAtRate(*budget.YearlyLimit, yearSpend, daily)
	}

	return BudgetProjections{
		Daily:        NewBudgetProjection(daily, budget.DailyLimit),
		Monthly:      NewBudgetProjection(monthly, budget.MonthlyLimit),
		Yearly:       NewBudgetProjection(monthly*12, budget.YearlyLimit),
		TimeToLimits: ttl,
	}
}

// RemainingAtRate returns how many rate periods remain until spent reaches
// limit. It is zero when the limit is already reached and nil when the rate
// is not positive.
func RemainingAtRate(limit, spent, rate float64) *float64 {
	if spent >= limit {
		zero := 0.0
		return &zero
	}
	if rate <= 0 {
		return nil
	}
	v := (limit - spent) / rate
	return &v
}

// EfficiencyScore maps tokens per dollar onto 0..100
func EfficiencyScore(tokens int64, cost float64) float64 {
	if cost <= 0 {
		return 0
	}
	return min(100, float64(tokens)/cost/excellentTokensPerDollar*100)
}

func sessionMetrics(sessions []aggregator.SessionBucket, now time.Time) SessionMetrics {
	m := SessionMetrics{PeakUsageHours: []int{}}
	if len(sessions) == 0 {
		return m
	}

	cutoff := now.Add(-activeSessionWindow)
	active := lo.Filter(sessions, func(s aggregator.SessionBucket, _ int) bool {
		return s.LastActivity.After(cutoff)
	})
	m.ActiveSessionCount = len(active)

	tokens := lo.SumBy(sessions, func(s aggregator.SessionBucket) int64 { return s.Usage.TotalTokens() })
	cost := lo.SumBy(sessions, func(s aggregator.SessionBucket) float64 { return s.Usage.TotalCost })
	n := float64(len(sessions))
	m.AvgTokensPerSession = float64(tokens) / n
	m.AvgCostPerSession = cost / n
	m.AvgSessionDurationSecs = analyzeDurations(sessions).AvgSessionDuration.Seconds()
	m.EfficiencyScore = EfficiencyScore(tokens, cost)

	if len(active) > 0 {
		current := active[0]
		for _, s := range active[1:] {
			if s.LastActivity.After(current.LastActivity) {
				current = s
			}
		}
		br := SessionBurnRate(current.FirstActivity, now, current.Usage.TotalTokens(), current.Usage.TotalCost)
		m.CurrentSessionBurnRate = &br
	}

	hourly := analyzeTimeOfDay(sessions).Hourly
	sort.SliceStable(hourly, func(i, j int) bool {
		return hourly[i].Usage.TotalTokens() > hourly[j].Usage.TotalTokens()
	})
	for _, h := range hourly[:min(len(hourly), peakHourCount)] {
		m.PeakUsageHours = append(m.PeakUsageHours, h.Hour)
	}
	return m
}

func efficiencyTrends(days []aggregator.DailyBucket, now time.Time) EfficiencyTrends {
	byDate := lo.SliceToMap(days, func(d aggregator.DailyBucket) (string, model.TokenUsage) {
		return d.Date, d.Usage
	})
	today := utcDay(now)
	cur := today.Format(aggregator.DateLayout)
	prev := today.AddDate(0, 0, -1).Format(aggregator.DateLayout)
	weekAgo := today.AddDate(0, 0, -7).Format(aggregator.DateLayout)

	metric := func(f func(model.TokenUsage) float64) TrendMetric {
		var c, p float64
		if u, ok := byDate[cur]; ok {
			c = f(u)
		}
		if u, ok := byDate[prev]; ok {
			p = f(u)
		}
		return NewTrendMetric(c, p)
	}

	var week model.TokenUsage
	for _, d := range days {
		if d.Date >= weekAgo && d.Date <= cur {
			week.Add(d.Usage)
		}
	}

	return EfficiencyTrends{
		TokensPerDollarTrend: metric(model.TokenUsage.TokensPerDollar),
		ResponseTimeTrend:    metric(responseTime),
		CacheEfficiencyTrend: metric(model.TokenUsage.CacheEfficiency),
		CostEfficiencyScore:  EfficiencyScore(week.TotalTokens(), week.TotalCost),
	}
}

// responseTime is an inverse output/input index; long answers score low
func responseTime(u model.TokenUsage) float64 {
	r := u.OutputInputRatio()
	if r <= 0 {
		return 100
	}
	return 100 / r
}

// Alerts evaluates the alert rules in a fixed order. A cost efficiency score
// below 50 raises an Info alert, except for a score of exactly 0: the score
// is 0 only when the last seven days had no spend, and no data is not
// inefficient usage.
func Alerts(rates BurnRateAnalysis, budgets BudgetProjections, trends EfficiencyTrends, budget BudgetConfig, now time.Time) []Alert {
	alerts := []Alert{}

	if budget.DailyLimit != nil {
		utilization := budgets.Daily.UtilizationPercentage / 100
		if utilization >= budget.AlertThreshold {
			severity := SeverityWarning
			if utilization >= 1 {
				severity = SeverityCritical
			}
			alerts = append(alerts, Alert{
				Type:     AlertBudgetThreshold,
				Severity: severity,
				Message: fmt.Sprintf("Daily budget utilization at %.1f%% ($%.2f of $%.2f)",
					utilization*100, budgets.Daily.EstimatedCost, *budget.DailyLimit),
				Timestamp:         now,
				RecommendedAction: "Consider reducing usage or adjusting daily budget",
			})
		}
	}

	if rates.CurrentHour.CostPerHour > highBurnCostPerHour {
		alerts = append(alerts, Alert{
			Type:     AlertHighBurnRate,
			Severity: SeverityWarning,
			Message: fmt.Sprintf("High burn rate detected: $%.2f/hour (%d tokens/hour)",
				rates.CurrentHour.CostPerHour, int64(rates.CurrentHour.TokensPerHour)),
			Timestamp:         now,
			RecommendedAction: "Review current session activity for optimization opportunities",
		})
	}

	if rates.CurrentHour.TrendPercentage > spikeTrendPct {
		alerts = append(alerts, Alert{
			Type:              AlertUnusualSpike,
			Severity:          SeverityWarning,
			Message:           fmt.Sprintf("Usage spike detected: %.1f%% increase in burn rate", rates.CurrentHour.TrendPercentage),
			Timestamp:         now,
			RecommendedAction: "Check for runaway processes or inefficient queries",
		})
	}

	if trends.CostEfficiencyScore > 0 && trends.CostEfficiencyScore < lowEfficiencyScore {
		alerts = append(alerts, Alert{
			Type:              AlertInefficientUsage,
			Severity:          SeverityInfo,
			Message:           fmt.Sprintf("Low efficiency score: %.1f/100. Consider optimizing token usage", trends.CostEfficiencyScore),
			Timestamp:         now,
			RecommendedAction: "Review prompts for conciseness and leverage caching",
		})
	}

	if budgets.Monthly.WillExceed {
		alerts = append(alerts, Alert{
			Type:              AlertProjectionWarning,
			Severity:          SeverityWarning,
			Message:           fmt.Sprintf("Monthly budget projection exceeds limit by $%.2f", -budgets.Monthly.Margin),
			Timestamp:         now,
			RecommendedAction: "Adjust usage patterns to stay within monthly budget",
		})
	}

	return alerts
}
