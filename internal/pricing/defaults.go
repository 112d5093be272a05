package pricing

import "github.com/zhaobenny/claudelytics/internal/model"

// TableVersion identifies the embedded rates; cached tables from another
// version are ignored.
const TableVersion = "2025-11-01"

// DefaultTableName labels resolutions served by the embedded table
const DefaultTableName = "default"

// embeddedRates returns the built-in rates in dollars per million tokens.
// Cache creation is 1.25x input and cache read 0.1x input.
func embeddedRates() map[string]model.ModelPricing {
	opus45 := model.PerMillion(5, 25, 6.25, 0.5)
	opus := model.PerMillion(15, 75, 18.75, 1.5)
	sonnet := model.PerMillion(3, 15, 3.75, 0.3)
	haiku45 := model.PerMillion(1, 5, 1.25, 0.1)
	haiku35 := model.PerMillion(0.8, 4, 1.0, 0.08)
	haiku3 := model.PerMillion(0.25, 1.25, 0.3, 0.03)

	return map[string]model.ModelPricing{
		// Opus 4.5
		"claude-opus-4-5-20251101": opus45,
		"claude-opus-4-5":          opus45,
		// Opus 4.1
		"claude-opus-4-1-20250805": opus,
		"claude-opus-4-1":          opus,
		// Opus 4
		"claude-opus-4-20250514": opus,
		"claude-4-opus-20250514": opus,
		// Sonnet 4.5
		"claude-sonnet-4-5-20250929": sonnet,
		"claude-sonnet-4-5":          sonnet,
		// Sonnet 4
		"claude-sonnet-4-20250514": sonnet,
		"claude-4-sonnet-20250514": sonnet,
		// Sonnet 3.7 / 3.5
		"claude-3-7-sonnet-20250219": sonnet,
		"claude-3-5-sonnet-20241022": sonnet,
		"claude-3-5-sonnet-20240620": sonnet,
		// Haiku
		"claude-haiku-4-5-20251001": haiku45,
		"claude-haiku-4-5":          haiku45,
		"claude-3-5-haiku-20241022": haiku35,
		"claude-3-haiku-20240307":   haiku3,
		// Opus 3
		"claude-3-opus-20240229": opus,
	}
}

// DefaultTable returns a fresh copy of the embedded pricing table
func DefaultTable() *Table {
	return NewTable(DefaultTableName, embeddedRates(), nil)
}
