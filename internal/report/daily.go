package report

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/model"
)

// DailyUsage is one row of the daily report
type DailyUsage struct {
	Date string `json:"date"`
	Usage
	Models []string `json:"models_used,omitempty"`
}

// DailyReport lists usage per UTC date
type DailyReport struct {
	Daily  []DailyUsage `json:"daily"`
	Totals Usage        `json:"totals"`
}

// Daily builds the daily report, newest date first unless opts says otherwise.
// The project field has no meaning per date and sorts by date.
func Daily(days []aggregator.DailyBucket, opts SortOptions) DailyReport {
	rows := lo.Map(days, func(d aggregator.DailyBucket, _ int) DailyUsage {
		return DailyUsage{Date: d.Date, Usage: UsageOf(d.Usage), Models: d.Models()}
	})

	field := opts.field(SortDate)
	slices.SortStableFunc(rows, func(a, b DailyUsage) int {
		c, ok := compareUsage(a.Usage, b.Usage, field)
		if !ok || c == 0 {
			c = cmp.Compare(a.Date, b.Date)
		}
		return opts.apply(c)
	})

	return DailyReport{
		Daily:  rows,
		Totals: sumUsage(rows, func(r DailyUsage) Usage { return r.Usage }),
	}
}

// MonthlyUsage is one row of the monthly report
type MonthlyUsage struct {
	Month string `json:"month"` // YYYY-MM
	Usage
	DaysActive   int     `json:"days_active"`
	AvgDailyCost float64 `json:"avg_daily_cost"`
}

// MonthlyReport lists usage per calendar month
type MonthlyReport struct {
	Monthly []MonthlyUsage `json:"monthly"`
	Totals  Usage          `json:"totals"`
}

// Monthly rolls daily buckets up by month, newest month first unless opts
// says otherwise. Days active counts dates with usage.
func Monthly(days []aggregator.DailyBucket, opts SortOptions) MonthlyReport {
	byMonth := lo.GroupBy(days, func(d aggregator.DailyBucket) string { return d.Date[:7] })

	rows := make([]MonthlyUsage, 0, len(byMonth))
	for month, ds := range byMonth {
		var u model.TokenUsage
		for _, d := range ds {
			u.Add(d.Usage)
		}
		rows = append(rows, MonthlyUsage{
			Month:        month,
			Usage:        UsageOf(u),
			DaysActive:   len(ds),
			AvgDailyCost: u.TotalCost / float64(len(ds)),
		})
	}

	field := opts.field(SortDate)
	slices.SortStableFunc(rows, func(a, b MonthlyUsage) int {
		c, ok := compareUsage(a.Usage, b.Usage, field)
		if !ok || c == 0 {
			c = cmp.Compare(a.Month, b.Month)
		}
		return opts.apply(c)
	})

	return MonthlyReport{
		Monthly: rows,
		Totals:  sumUsage(rows, func(r MonthlyUsage) Usage { return r.Usage }),
	}
}
