// Package report turns aggregates into the serializable reports consumed by
// the table, JSON and CSV presenters.
package report

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/model"
)

// SortField selects the column a report is ordered by
type SortField string

const (
	SortDefault    SortField = ""
	SortDate       SortField = "date"
	SortCost       SortField = "cost"
	SortTokens     SortField = "tokens"
	SortEfficiency SortField = "efficiency"
	SortProject    SortField = "project"
)

// SortOrder is ascending or descending
type SortOrder string

const (
	OrderDefault SortOrder = ""
	OrderAsc     SortOrder = "asc"
	OrderDesc    SortOrder = "desc"
)

// SortOptions orders a report; zero values use the report's default
type SortOptions struct {
	Field SortField
	Order SortOrder
}

// ParseSortField validates a --sort value
func ParseSortField(s string) (SortField, error) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortDefault, SortDate, SortCost, SortTokens, SortEfficiency, SortProject:
		return f, nil
	}
	return SortDefault, apperr.Newf(apperr.KindConfig, "parse sort field",
		"unknown sort field %q (want date, cost, tokens, efficiency or project)", s)
}

// ParseSortOrder validates an --order value
func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case OrderDefault, OrderAsc, OrderDesc:
		return o, nil
	}
	return OrderDefault, apperr.Newf(apperr.KindConfig, "parse sort order", "unknown sort order %q (want asc or desc)", s)
}

func (o SortOptions) field(def SortField) SortField {
	if o.Field == SortDefault {
		return def
	}
	return o.Field
}

// apply flips an ascending comparison for descending order
func (o SortOptions) apply(c int) int {
	if o.Order == OrderAsc {
		return c
	}
	return -c
}

// Usage is the flattened token and cost columns shared by every report row
type Usage struct {
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	TotalTokens         int64   `json:"total_tokens"`
	TotalCost           float64 `json:"total_cost"`
}

// UsageOf copies a TokenUsage into report columns
func UsageOf(u model.TokenUsage) Usage {
	return Usage{
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens,
		TotalTokens:         u.TotalTokens(),
		TotalCost:           u.TotalCost,
	}
}

// TokenUsage converts report columns back to a TokenUsage
func (u Usage) TokenUsage() model.TokenUsage {
	return model.TokenUsage{
		InputTokens:         u.InputTokens,
		OutputTokens:        u.OutputTokens,
		CacheCreationTokens: u.CacheCreationTokens,
		CacheReadTokens:     u.CacheReadTokens,
		TotalCost:           u.TotalCost,
	}
}

// Efficiency is tokens per dollar, or 0 without cost
func (u Usage) Efficiency() float64 {
	return u.TokenUsage().TokensPerDollar()
}

// compareUsage orders rows by a numeric field; ok is false for fields that
// are not numeric
func compareUsage(a, b Usage, f SortField) (int, bool) {
	switch f {
	case SortCost:
		return cmp.Compare(a.TotalCost, b.TotalCost), true
	case SortTokens:
		return cmp.Compare(a.TotalTokens, b.TotalTokens), true
	case SortEfficiency:
		return cmp.Compare(a.Efficiency(), b.Efficiency()), true
	}
	return 0, false
}

func sumUsage[T any](rows []T, get func(T) Usage) Usage {
	var total model.TokenUsage
	for _, r := range rows {
		total.Add(get(r).TokenUsage())
	}
	return UsageOf(total)
}

// hourRange renders a block interval as HH:00-HH:00
func hourRange(startHour, endHour int) string {
	return fmt.Sprintf("%02d:00-%02d:00", startHour, endHour)
}
