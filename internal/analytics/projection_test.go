package analytics

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/model"
)

// march builds consecutive days from 2024-03-01 with the given costs and
// 1000 input tokens per day
func march(costs ...float64) []aggregator.DailyBucket {
	out := make([]aggregator.DailyBucket, len(costs))
	for i, c := range costs {
		out[i] = aggregator.DailyBucket{
			Date:  fmt.Sprintf("2024-03-%02d", i+1),
			Usage: model.TokenUsage{InputTokens: 1000, TotalCost: c},
		}
	}
	return out
}

func TestLinearTrend(t *testing.T) {
	tests := []struct {
		name      string
		values    []float64
		direction TrendDirection
		growth    float64
	}{
		{"too few points", []float64{1, 5}, TrendStable, 0},
		{"flat", []float64{2, 2, 2, 2}, TrendStable, 0},
		{"rising", []float64{1, 2, 3}, TrendIncreasing, 50},
		{"falling", []float64{3, 2, 1}, TrendDecreasing, -50},
		{"all zero", []float64{0, 0, 0}, TrendStable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir, growth := LinearTrend(tt.values)
			assert.Equal(t, tt.direction, dir)
			assert.InDelta(t, tt.growth, growth, 1e-9)
		})
	}
}

func TestStddevIsSample(t *testing.T) {
	assert.InDelta(t, 1.0, stddev([]float64{1, 2, 3}), 1e-12)
	assert.Zero(t, stddev([]float64{4}))
}

func TestProjectCostFlat(t *testing.T) {
	days := march(2, 2, 2, 2, 2, 2, 2, 2, 2, 2)
	cfg := DefaultProjectionConfig()
	cfg.CostLimit = ptr(30.0)

	p := ProjectCost(days, at("2024-03-10T12:00:00Z"), cfg)

	assert.InDelta(t, 2, p.DailyAverageCost, 1e-12)
	assert.InDelta(t, 14, p.WeeklyAverageCost, 1e-12)
	assert.InDelta(t, 60, p.MonthlyAverageCost, 1e-12)
	assert.Equal(t, TrendStable, p.Trend)
	require.Len(t, p.Projections, 30)
	assert.Equal(t, "2024-03-11", p.Projections[0].Date)
	assert.InDelta(t, 2, p.Projections[0].Value, 1e-12)
	assert.InDelta(t, 2, p.Projections[0].LowerBound, 1e-12)
	assert.InDelta(t, 1/1.03, p.Projections[0].Confidence, 1e-12)
	assert.InDelta(t, 60, p.EstimatedMonthlyCost, 1e-9)

	// 20 spent this month, 10 left at 2 a day.
	require.NotNil(t, p.DaysUntilLimit)
	assert.Equal(t, 5, *p.DaysUntilLimit)
	assert.Equal(t, "2024-03-15", p.LimitDate)
}

func TestProjectCostGrowthAndBounds(t *testing.T) {
	p := ProjectCost(march(1, 2, 3), at("2024-03-03T00:00:00Z"), DefaultProjectionConfig())

	assert.Equal(t, TrendIncreasing, p.Trend)
	assert.InDelta(t, 50, p.GrowthRate, 1e-9)
	first := p.Projections[0]
	assert.InDelta(t, 4.5, first.Value, 1e-9)
	assert.InDelta(t, 4.5-1.96, first.LowerBound, 1e-9)
	assert.InDelta(t, 4.5+1.96, first.UpperBound, 1e-9)
	for _, dp := range p.Projections {
		assert.GreaterOrEqual(t, dp.LowerBound, 0.0)
	}
}

func TestProjectCostDatesStartAfterNow(t *testing.T) {
	// History ends on the 5th, five days before now
	p := ProjectCost(march(2, 2, 2, 2, 2), at("2024-03-10T18:00:00Z"), DefaultProjectionConfig())

	require.Len(t, p.Projections, 30)
	assert.Equal(t, "2024-03-11", p.Projections[0].Date)
	assert.Equal(t, "2024-04-09", p.Projections[29].Date)
	assert.InDelta(t, 2, p.Projections[0].Value, 1e-12)
}

func TestProjectCostLimitAlreadyReached(t *testing.T) {
	cfg := DefaultProjectionConfig()
	cfg.CostLimit = ptr(10.0)
	p := ProjectCost(march(5, 6), at("2024-03-02T09:00:00Z"), cfg)

	require.NotNil(t, p.DaysUntilLimit)
	assert.Equal(t, 0, *p.DaysUntilLimit)
	assert.Equal(t, "2024-03-02", p.LimitDate)
}

func TestProjectCostEmptyAndWindow(t *testing.T) {
	p := ProjectCost(nil, at("2024-03-10T00:00:00Z"), DefaultProjectionConfig())
	assert.Zero(t, p.DailyAverageCost)
	assert.Empty(t, p.Projections)
	assert.Equal(t, TrendStable, p.Trend)
	assert.Nil(t, p.DaysUntilLimit)

	// Days older than the history window do not count.
	old := []aggregator.DailyBucket{{Date: "2024-01-01", Usage: model.TokenUsage{InputTokens: 1, TotalCost: 100}}}
	p = ProjectCost(append(old, march(2)...), at("2024-03-01T00:00:00Z"), DefaultProjectionConfig())
	assert.InDelta(t, 2, p.DailyAverageCost, 1e-12)
}

func TestProjectTokens(t *testing.T) {
	days := march(1, 1, 1, 1, 1, 1, 1, 1, 1, 1)
	now := at("2024-03-10T12:00:00Z")

	tests := []struct {
		name  string
		limit int64
		days  int
		date  string
	}{
		{"exact", 15000, 5, "2024-03-15"},
		{"rounds down", 15500, 5, "2024-03-15"},
		{"reached", 9000, 0, "2024-03-10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultProjectionConfig()
			cfg.TokenLimit = ptr(tt.limit)
			p := ProjectTokens(days, now, cfg)

			assert.InDelta(t, 1000, p.DailyAverageTokens, 1e-9)
			assert.InDelta(t, 7000, p.WeeklyAverageTokens, 1e-9)
			assert.Equal(t, TrendStable, p.Trend)
			require.NotNil(t, p.DaysUntilTokenLimit)
			assert.Equal(t, tt.days, *p.DaysUntilTokenLimit)
			assert.Equal(t, tt.date, p.TokenLimitDate)
		})
	}

	p := ProjectTokens(days, now, DefaultProjectionConfig())
	assert.Nil(t, p.DaysUntilTokenLimit)
}
