package report

import (
	"time"

	"github.com/samber/lo"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/analytics"
	"github.com/zhaobenny/claudelytics/internal/model"
)

const (
	timestampLayout = "2006-01-02 15:04:05 UTC"

	// RecentBlockDays is the look-back for counting recent session blocks
	RecentBlockDays = 30
)

// BillingBlockSummary is one non-empty 5-hour block
type BillingBlockSummary struct {
	Date      string `json:"date"`
	TimeRange string `json:"time_range"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Usage
	SessionCount int `json:"session_count"`
}

// BillingBlockReport summarizes the fixed 5-hour grid
type BillingBlockReport struct {
	Blocks          []BillingBlockSummary `json:"blocks"`
	TotalUsage      Usage                 `json:"total_usage"`
	PeakBlock       *BillingBlockSummary  `json:"peak_block,omitempty"`
	AveragePerBlock Usage                 `json:"average_per_block"`
	UsageByTime     map[string]Usage      `json:"usage_by_time"`
}

func billingSummary(b aggregator.BillingBlock) BillingBlockSummary {
	return BillingBlockSummary{
		Date:         b.Date,
		TimeRange:    hourRange(b.Start.Hour(), b.End.Hour()),
		StartTime:    b.Start.UTC().Format(timestampLayout),
		EndTime:      b.End.UTC().Format(timestampLayout),
		Usage:        UsageOf(b.Usage),
		SessionCount: b.SessionCount(),
	}
}

// BillingBlocks builds the billing block report from every block in time
// order. Only blocks with usage are listed or averaged; the peak is the block
// with the most tokens, the earliest on ties.
func BillingBlocks(blocks []aggregator.BillingBlock) BillingBlockReport {
	used := lo.Filter(blocks, func(b aggregator.BillingBlock, _ int) bool { return !b.IsEmpty() })

	r := BillingBlockReport{
		Blocks:      lo.Map(used, func(b aggregator.BillingBlock, _ int) BillingBlockSummary { return billingSummary(b) }),
		UsageByTime: make(map[string]Usage),
	}

	var total model.TokenUsage
	byTime := make(map[string]*model.TokenUsage)
	for _, b := range blocks {
		total.Add(b.Usage)
		label := hourRange(b.Start.Hour(), b.End.Hour())
		u, ok := byTime[label]
		if !ok {
			u = &model.TokenUsage{}
			byTime[label] = u
		}
		u.Add(b.Usage)
	}
	for label, u := range byTime {
		r.UsageByTime[label] = UsageOf(*u)
	}
	r.TotalUsage = UsageOf(total)

	if len(r.Blocks) == 0 {
		return r
	}
	peak := 0
	for i, b := range r.Blocks {
		if b.TotalTokens > r.Blocks[peak].TotalTokens {
			peak = i
		}
	}
	p := r.Blocks[peak]
	r.PeakBlock = &p

	n := int64(len(r.Blocks))
	r.AveragePerBlock = UsageOf(model.TokenUsage{
		InputTokens:         total.InputTokens / n,
		OutputTokens:        total.OutputTokens / n,
		CacheCreationTokens: total.CacheCreationTokens / n,
		CacheReadTokens:     total.CacheReadTokens / n,
		TotalCost:           total.TotalCost / float64(n),
	})
	return r
}

// SessionBlockSummary is one N-hour block
type SessionBlockSummary struct {
	Date      string    `json:"date"`
	Index     int       `json:"block_index"`
	TimeRange string    `json:"time_range"`
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	Usage
	SessionCount int                 `json:"session_count"`
	IsActive     bool                `json:"is_active"`
	BurnRate     *analytics.BurnRate `json:"burn_rate,omitempty"`
}

// SessionBlockReport summarizes configurable N-hour blocks as of a given
// instant
type SessionBlockReport struct {
	Config          aggregator.BlockConfig `json:"config"`
	TotalBlocks     int                    `json:"total_blocks"`
	ActiveBlocks    int                    `json:"active_blocks"`
	RecentBlocks    int                    `json:"recent_blocks"`
	TotalUsage      Usage                  `json:"total_usage"`
	ActiveUsage     Usage                  `json:"active_usage"`
	CurrentBurnRate *analytics.BurnRate    `json:"current_burn_rate,omitempty"`
	Blocks          []SessionBlockSummary  `json:"blocks"`
}

// SessionBlocks builds the session block report. Blocks must come from
// SessionBlocks.Snapshot(now) so IsActive matches now. Active blocks get a
// burn rate; recent blocks started within the last 30 days.
func SessionBlocks(blocks []aggregator.SessionBlock, cfg aggregator.BlockConfig, now time.Time) SessionBlockReport {
	r := SessionBlockReport{
		Config:      cfg,
		TotalBlocks: len(blocks),
		Blocks:      make([]SessionBlockSummary, 0, len(blocks)),
	}
	cutoff := now.AddDate(0, 0, -RecentBlockDays)

	var total, active model.TokenUsage
	for _, b := range blocks {
		total.Add(b.Usage)
		s := SessionBlockSummary{
			Date:         b.Date,
			Index:        b.Index,
			TimeRange:    hourRange(b.Start.Hour(), b.End.Hour()),
			Start:        b.Start,
			End:          b.End,
			Usage:        UsageOf(b.Usage),
			SessionCount: b.SessionCount(),
			IsActive:     b.IsActive,
		}
		if b.Start.After(cutoff) {
			r.RecentBlocks++
		}
		if b.IsActive {
			r.ActiveBlocks++
			active.Add(b.Usage)
			s.BurnRate = analytics.BlockBurnRate(b, cfg, now)
			if r.CurrentBurnRate == nil {
				r.CurrentBurnRate = s.BurnRate
			}
		}
		r.Blocks = append(r.Blocks, s)
	}
	r.TotalUsage = UsageOf(total)
	r.ActiveUsage = UsageOf(active)
	return r
}
