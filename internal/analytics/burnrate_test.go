package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/model"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func point(ts string, tokens int64, cost float64) aggregator.TimePoint {
	return aggregator.TimePoint{Time: at(ts), Tokens: tokens, Cost: cost}
}

func ptr[T any](v T) *T {
	return &v
}

func TestBurnRateOverTrend(t *testing.T) {
	now := at("2024-03-10T12:00:00Z")

	tests := []struct {
		name   string
		points []aggregator.TimePoint
		trend  float64
		tph    float64
	}{
		{
			name:   "second half doubles",
			points: []aggregator.TimePoint{point("2024-03-10T09:00:00Z", 100, 1), point("2024-03-10T11:00:00Z", 200, 2)},
			trend:  100,
			tph:    75,
		},
		{
			name:   "empty first half",
			points: []aggregator.TimePoint{point("2024-03-10T11:00:00Z", 200, 2)},
			trend:  0,
			tph:    50,
		},
		{
			name:   "all points in first half",
			points: []aggregator.TimePoint{point("2024-03-10T08:30:00Z", 100, 1), point("2024-03-10T09:30:00Z", 300, 3)},
			trend:  -100,
			tph:    100,
		},
		{
			// The split is at the window's time midpoint, not the middle point
			name:   "several points all in second half",
			points: []aggregator.TimePoint{point("2024-03-10T10:15:00Z", 100, 1), point("2024-03-10T11:45:00Z", 300, 3)},
			trend:  0,
			tph:    100,
		},
		{
			name:   "midpoint belongs to second half",
			points: []aggregator.TimePoint{point("2024-03-10T09:00:00Z", 100, 1), point("2024-03-10T10:00:00Z", 300, 3)},
			trend:  200,
			tph:    100,
		},
		{
			name:   "older points ignored",
			points: []aggregator.TimePoint{point("2024-03-10T07:59:00Z", 1000, 9), point("2024-03-10T10:30:00Z", 400, 4)},
			trend:  0,
			tph:    100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br, ok := BurnRateOver(tt.points, now, 4*time.Hour)
			require.True(t, ok)
			assert.InDelta(t, tt.trend, br.TrendPercentage, 1e-9)
			assert.InDelta(t, tt.tph, br.TokensPerHour, 1e-9)
			assert.Equal(t, int64(tt.tph*24), br.ProjectedDailyTokens)
			assert.Equal(t, int64(tt.tph*24*30), br.ProjectedMonthlyTokens)
			assert.InDelta(t, br.CostPerHour*720, br.ProjectedMonthlyCost, 1e-9)
		})
	}
}

func TestBurnRateOverShortWindowStillSplits(t *testing.T) {
	now := at("2024-03-10T12:00:00Z")
	points := []aggregator.TimePoint{point("2024-03-10T11:10:00Z", 100, 1), point("2024-03-10T11:40:00Z", 300, 3)}

	br, ok := BurnRateOver(points, now, time.Hour)
	require.True(t, ok)
	assert.InDelta(t, 200, br.TrendPercentage, 1e-9)
	assert.InDelta(t, 400, br.TokensPerHour, 1e-9)
}

func TestBurnRateOverEmptyWindow(t *testing.T) {
	now := at("2024-03-10T12:00:00Z")
	_, ok := BurnRateOver([]aggregator.TimePoint{point("2024-03-09T12:00:00Z", 10, 1)}, now, time.Hour)
	assert.False(t, ok)

	_, ok = BurnRateOver(nil, now, time.Hour)
	assert.False(t, ok)
}

func TestSpreadDaily(t *testing.T) {
	days := []aggregator.DailyBucket{
		{Date: "2024-03-10", Usage: model.TokenUsage{InputTokens: 900, TotalCost: 0.9}},
	}
	points := SpreadDaily(days)
	require.Len(t, points, 9)
	assert.Equal(t, at("2024-03-10T09:00:00Z"), points[0].Time)
	assert.Equal(t, at("2024-03-10T17:00:00Z"), points[8].Time)
	for _, p := range points {
		assert.Equal(t, int64(100), p.Tokens)
		assert.InDelta(t, 0.1, p.Cost, 1e-12)
	}
}

func TestSessionBurnRate(t *testing.T) {
	start := at("2024-03-10T10:00:00Z")

	br := SessionBurnRate(start, start.Add(2*time.Hour), 1000, 4)
	assert.InDelta(t, 500, br.TokensPerHour, 1e-9)
	assert.InDelta(t, 2, br.CostPerHour, 1e-9)

	young := SessionBurnRate(start, start.Add(5*time.Minute), 1000, 4)
	assert.Equal(t, BurnRate{}, young)
}

func TestBlockBurnRate(t *testing.T) {
	now := at("2024-03-10T10:00:00Z")
	block := aggregator.SessionBlock{
		Date:     "2024-03-10",
		Index:    1,
		Start:    at("2024-03-10T08:00:00Z"),
		End:      at("2024-03-10T16:00:00Z"),
		Usage:    model.TokenUsage{InputTokens: 2000, TotalCost: 4},
		IsActive: true,
	}
	cfg := aggregator.BlockConfig{Hours: 8, TokenLimit: ptr(int64(10000)), CostLimit: ptr(10.0)}

	br := BlockBurnRate(block, cfg, now)
	require.NotNil(t, br)
	assert.InDelta(t, 1000, br.TokensPerHour, 1e-9)
	require.NotNil(t, br.HoursUntilBudgetLimit)
	assert.InDelta(t, 3, *br.HoursUntilBudgetLimit, 1e-9)

	block.IsActive = false
	assert.Nil(t, BlockBurnRate(block, cfg, now))
}

func TestTimeToLimit(t *testing.T) {
	tests := []struct {
		name       string
		tokens     int64
		cost       float64
		tokenLimit *int64
		costLimit  *float64
		want       *float64
	}{
		{"no limits", 100, 1, nil, nil, nil},
		{"token limit", 100, 1, ptr(int64(1100)), nil, ptr(10.0)},
		{"cost limit sooner", 100, 1, ptr(int64(1100)), ptr(3.0), ptr(4.0)},
		{"already reached", 2000, 1, ptr(int64(1000)), nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TimeToLimit(100, 0.5, tt.tokens, tt.cost, tt.tokenLimit, tt.costLimit)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}
