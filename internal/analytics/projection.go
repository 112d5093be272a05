package analytics

import (
	"math"
	"time"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
)

// TrendDirection classifies a growth rate or change percentage
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// trendThreshold is the percentage beyond which a change is not stable
const trendThreshold = 5.0

func directionOf(pct float64) TrendDirection {
	switch {
	case pct > trendThreshold:
		return TrendIncreasing
	case pct < -trendThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// ProjectionConfig controls the history window and forward horizon
type ProjectionConfig struct {
	HistoryDays    int
	ProjectionDays int
	CostLimit      *float64 // Monthly cost limit
	TokenLimit     *int64
}

// DefaultProjectionConfig uses 30 days of history and projects 30 days ahead
func DefaultProjectionConfig() ProjectionConfig {
	return ProjectionConfig{HistoryDays: 30, ProjectionDays: 30}
}

// DailyProjection is the forecast for one future day
type DailyProjection struct {
	Date       string  `json:"date"`
	Value      float64 `json:"value"`
	LowerBound float64 `json:"lower_bound"`
	UpperBound float64 `json:"upper_bound"`
	Confidence float64 `json:"confidence"`
}

// CostProjection forecasts spend from recent daily totals
type CostProjection struct {
	DailyAverageCost     float64           `json:"daily_average_cost"`
	WeeklyAverageCost    float64           `json:"weekly_average_cost"`
	MonthlyAverageCost   float64           `json:"monthly_average_cost"`
	Trend                TrendDirection    `json:"trend"`
	GrowthRate           float64           `json:"growth_rate"`
	EstimatedMonthlyCost float64           `json:"estimated_monthly_cost"`
	DaysUntilLimit       *int              `json:"days_until_limit,omitempty"`
	LimitDate            string            `json:"limit_date,omitempty"`
	Projections          []DailyProjection `json:"projections"`
}

// TokenProjection forecasts token volume from recent daily totals
type TokenProjection struct {
	DailyAverageTokens   float64        `json:"daily_average_tokens"`
	WeeklyAverageTokens  float64        `json:"weekly_average_tokens"`
	MonthlyAverageTokens float64        `json:"monthly_average_tokens"`
	Trend                TrendDirection `json:"trend"`
	GrowthRate           float64        `json:"growth_rate"`
	DaysUntilTokenLimit  *int           `json:"days_until_token_limit,omitempty"`
	TokenLimitDate       string         `json:"token_limit_date,omitempty"`
}

// history returns the buckets dated within the last historyDays of now,
// in ascending date order
func history(days []aggregator.DailyBucket, now time.Time, historyDays int) []aggregator.DailyBucket {
	if historyDays <= 0 {
		historyDays = DefaultProjectionConfig().HistoryDays
	}
	today := utcDay(now)
	cutoff := today.AddDate(0, 0, -historyDays).Format(aggregator.DateLayout)
	end := today.Format(aggregator.DateLayout)

	var out []aggregator.DailyBucket
	for _, d := range days {
		if d.Date >= cutoff && d.Date <= end {
			out = append(out, d)
		}
	}
	return out
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// averages returns the mean, the weekly figure and the monthly figure of a
// series in ascending date order
func averages(values []float64) (daily, weekly, monthly float64) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	daily = mean(values)
	weekly = daily * 7
	if len(values) >= 7 {
		weekly = sum(values[len(values)-7:])
	}
	monthly = daily * 30
	if len(values) >= 30 {
		monthly = sum(values[len(values)-30:])
	}
	return daily, weekly, monthly
}

// LinearTrend fits an ordinary least squares line through (index, value) and
// returns the slope as a percentage of the mean. Fewer than three points are
// stable with zero growth.
func LinearTrend(values []float64) (TrendDirection, float64) {
	n := len(values)
	if n < 3 {
		return TrendStable, 0
	}
	var sx, sy, sxy, sxx float64
	for i, v := range values {
		x := float64(i)
		sx += x
		sy += v
		sxy += x * v
		sxx += x * x
	}
	fn := float64(n)
	denom := fn*sxx - sx*sx
	if denom == 0 {
		return TrendStable, 0
	}
	slope := (fn*sxy - sx*sy) / denom
	m := sy / fn
	if m == 0 {
		return TrendStable, 0
	}
	growth := slope / m * 100
	return directionOf(growth), growth
}

// ProjectCost forecasts daily spend for cfg.ProjectionDays after now. Each
// projected day compounds the growth rate from the last observed cost, with
// confidence 1/(1+0.03i) and a 95% band of 1.96 sample standard deviations
// scaled by sqrt(i).
//
// Projection dates count from the UTC day of now, not from the last day with
// data: projection i is dated now+i days even when the history ends earlier,
// and days without data between the two are not filled in.
func ProjectCost(days []aggregator.DailyBucket, now time.Time, cfg ProjectionConfig) CostProjection {
	hist := history(days, now, cfg.HistoryDays)
	values := make([]float64, len(hist))
	for i, d := range hist {
		values[i] = d.Usage.TotalCost
	}

	var p CostProjection
	p.DailyAverageCost, p.WeeklyAverageCost, p.MonthlyAverageCost = averages(values)
	p.Trend, p.GrowthRate = LinearTrend(values)
	p.Projections = []DailyProjection{}
	if len(values) == 0 {
		p.Trend = TrendStable
		return p
	}

	horizon := cfg.ProjectionDays
	if horizon <= 0 {
		horizon = DefaultProjectionConfig().ProjectionDays
	}
	last := values[len(values)-1]
	sd := stddev(values)
	today := utcDay(now)
	for i := 1; i <= horizon; i++ {
		fi := float64(i)
		v := last * math.Pow(1+p.GrowthRate/100, fi)
		band := 1.96 * sd * math.Sqrt(fi)
		p.Projections = append(p.Projections, DailyProjection{
			Date:       today.AddDate(0, 0, i).Format(aggregator.DateLayout),
			Value:      v,
			LowerBound: math.Max(0, v-band),
			UpperBound: v + band,
			Confidence: 1 / (1 + 0.03*fi),
		})
	}

	for _, dp := range p.Projections[:min(len(p.Projections), 30)] {
		p.EstimatedMonthlyCost += dp.Value
	}

	if cfg.CostLimit != nil {
		p.DaysUntilLimit, p.LimitDate = costLimitETA(hist, today, *cfg.CostLimit, p.DailyAverageCost, p.GrowthRate)
	}
	return p
}

// costLimitETA divides what is left of the monthly limit after this
// month's spend by the growth-adjusted daily average
func costLimitETA(hist []aggregator.DailyBucket, today time.Time, limit, avg, growth float64) (*int, string) {
	var spent float64
	for _, d := range monthToDate(hist, today) {
		spent += d.Usage.TotalCost
	}
	remaining := limit - spent
	if remaining <= 0 {
		zero := 0
		return &zero, today.Format(aggregator.DateLayout)
	}
	rate := avg * (1 + growth/100)
	if rate <= 0 {
		return nil, ""
	}
	days := int(math.Ceil(remaining / rate))
	return &days, today.AddDate(0, 0, days).Format(aggregator.DateLayout)
}

// ProjectTokens applies the cost projection's window and regression to token
// totals. Days to the token limit count from month-to-date tokens and round
// down.
func ProjectTokens(days []aggregator.DailyBucket, now time.Time, cfg ProjectionConfig) TokenProjection {
	hist := history(days, now, cfg.HistoryDays)
	values := make([]float64, len(hist))
	for i, d := range hist {
		values[i] = float64(d.Usage.TotalTokens())
	}

	var p TokenProjection
	p.DailyAverageTokens, p.WeeklyAverageTokens, p.MonthlyAverageTokens = averages(values)
	p.Trend, p.GrowthRate = LinearTrend(values)

	if cfg.TokenLimit == nil || len(values) == 0 {
		return p
	}
	today := utcDay(now)
	var spent int64
	for _, d := range monthToDate(hist, today) {
		spent += d.Usage.TotalTokens()
	}
	remaining := float64(*cfg.TokenLimit - spent)
	if remaining <= 0 {
		zero := 0
		p.DaysUntilTokenLimit = &zero
		p.TokenLimitDate = today.Format(aggregator.DateLayout)
		return p
	}
	rate := p.DailyAverageTokens * (1 + p.GrowthRate/100)
	if rate <= 0 {
		return p
	}
	d := int(math.Floor(remaining / rate))
	p.DaysUntilTokenLimit = &d
	p.TokenLimitDate = today.AddDate(0, 0, d).Format(aggregator.DateLayout)
	return p
}

func monthToDate(hist []aggregator.DailyBucket, today time.Time) []aggregator.DailyBucket {
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).Format(aggregator.DateLayout)
	var out []aggregator.DailyBucket
	for _, d := range hist {
		if d.Date >= monthStart {
			out = append(out, d)
		}
	}
	return out
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}

// stddev is the sample standard deviation; zero for fewer than two values
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var ss float64
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
