// Package analytics derives burn rates, projections, budget alerts and usage
// patterns from aggregated usage. Every function takes now explicitly and
// never re-reads files.
package analytics

import (
	"time"

	"github.com/samber/lo"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
)

const (
	hoursPerDay  = 24
	daysPerMonth = 30

	// minElapsedHours is the shortest span a session burn rate is reported for
	minElapsedHours = 0.1

	// working hours used when spreading a daily total over a day
	spreadFirstHour = 9
	spreadHours     = 9
)

// BurnRate is usage per hour extrapolated to a day and a month
type BurnRate struct {
	TokensPerHour          float64  `json:"tokens_per_hour"`
	CostPerHour            float64  `json:"cost_per_hour"`
	ProjectedDailyTokens   int64    `json:"projected_daily_tokens"`
	ProjectedDailyCost     float64  `json:"projected_daily_cost"`
	ProjectedMonthlyTokens int64    `json:"projected_monthly_tokens"`
	ProjectedMonthlyCost   float64  `json:"projected_monthly_cost"`
	TrendPercentage        float64  `json:"trend_percentage"`
	HoursUntilBudgetLimit  *float64 `json:"hours_until_budget_limit,omitempty"`
	// Approximate is set when the rate was computed from daily totals spread
	// uniformly over 09:00-17:59 UTC instead of event times
	Approximate bool `json:"approximate,omitempty"`
}

func newBurnRate(tokensPerHour, costPerHour float64) BurnRate {
	return BurnRate{
		TokensPerHour:          tokensPerHour,
		CostPerHour:            costPerHour,
		ProjectedDailyTokens:   int64(tokensPerHour * hoursPerDay),
		ProjectedDailyCost:     costPerHour * hoursPerDay,
		ProjectedMonthlyTokens: int64(tokensPerHour * hoursPerDay * daysPerMonth),
		ProjectedMonthlyCost:   costPerHour * hoursPerDay * daysPerMonth,
	}
}

// BurnRateOver computes the burn rate over the window ending at now.
// Points in [now-window, now] count. The trend compares the token totals of
// the two halves of the window; it is zero when the first half is empty.
// ok is false when no point falls in the window.
func BurnRateOver(points []aggregator.TimePoint, now time.Time, window time.Duration) (BurnRate, bool) {
	if window <= 0 {
		return BurnRate{}, false
	}
	start := now.Add(-window)
	in := lo.Filter(points, func(p aggregator.TimePoint, _ int) bool {
		return !p.Time.Before(start) && !p.Time.After(now)
	})
	if len(in) == 0 {
		return BurnRate{}, false
	}

	hours := window.Hours()
	tokens := lo.SumBy(in, func(p aggregator.TimePoint) int64 { return p.Tokens })
	cost := lo.SumBy(in, func(p aggregator.TimePoint) float64 { return p.Cost })

	br := newBurnRate(float64(tokens)/hours, cost/hours)
	br.TrendPercentage = halfTrend(in, start.Add(window/2))
	return br, true
}

// halfTrend splits points at the time midpoint of the window, with points at
// mid counting toward the second half, and returns the percentage change of
// the second half's tokens over the first's. Windows of any length are split.
func halfTrend(points []aggregator.TimePoint, mid time.Time) float64 {
	var first, second int64
	for _, p := range points {
		if p.Time.Before(mid) {
			first += p.Tokens
		} else {
			second += p.Tokens
		}
	}
	if first == 0 {
		return 0
	}
	return float64(second-first) / float64(first) * 100
}

// SpreadDaily synthesizes hourly points from daily totals by dividing each
// day evenly over nine working hours starting 09:00 UTC. This is an
// approximation for callers without event times.
func SpreadDaily(days []aggregator.DailyBucket) []aggregator.TimePoint {
	var out []aggregator.TimePoint
	for _, d := range days {
		date, err := time.Parse(aggregator.DateLayout, d.Date)
		if err != nil {
			continue
		}
		tokens := d.Usage.TotalTokens() / spreadHours
		cost := d.Usage.TotalCost / spreadHours
		for h := 0; h < spreadHours; h++ {
			out = append(out, aggregator.TimePoint{
				Time:   date.Add(time.Duration(spreadFirstHour+h) * time.Hour),
				Tokens: tokens,
				Cost:   cost,
			})
		}
	}
	return out
}

// SessionBurnRate is the average rate since start. Sessions younger than six
// minutes report zero rates.
func SessionBurnRate(start, now time.Time, tokens int64, cost float64) BurnRate {
	elapsed := now.Sub(start).Hours()
	if elapsed < minElapsedHours {
		return BurnRate{}
	}
	return newBurnRate(float64(tokens)/elapsed, cost/elapsed)
}

// BlockBurnRate computes the burn rate of an active session block, with
// HoursUntilBudgetLimit set from the configured limits. It returns nil for
// inactive blocks and blocks active for less than six minutes.
func BlockBurnRate(b aggregator.SessionBlock, cfg aggregator.BlockConfig, now time.Time) *BurnRate {
	if !b.IsActive || now.Sub(b.Start).Hours() <= minElapsedHours {
		return nil
	}
	br := SessionBurnRate(b.Start, now, b.Usage.TotalTokens(), b.Usage.TotalCost)
	br.HoursUntilBudgetLimit = TimeToLimit(br.TokensPerHour, br.CostPerHour,
		b.Usage.TotalTokens(), b.Usage.TotalCost, cfg.TokenLimit, cfg.CostLimit)
	return &br
}

// TimeToLimit returns the hours until the first of the token or cost limits
// is reached at the given rates, or nil when no limit applies or a limit is
// already reached.
func TimeToLimit(tokensPerHour, costPerHour float64, tokens int64, cost float64, tokenLimit *int64, costLimit *float64) *float64 {
	var best *float64
	consider := func(hours float64) {
		if best == nil || hours < *best {
			best = &hours
		}
	}
	if tokenLimit != nil && tokensPerHour > 0 {
		remaining := max(*tokenLimit-tokens, 0)
		consider(float64(remaining) / tokensPerHour)
	}
	if costLimit != nil && costPerHour > 0 {
		consider((*costLimit - cost) / costPerHour)
	}
	if best == nil || *best <= 0 {
		return nil
	}
	return best
}
