package model

import "time"

// TokenUsage contains token counts and the dollar cost attributed to them
type TokenUsage struct {
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	TotalCost           float64 `json:"total_cost"`
}

// TotalTokens returns the sum of the four token counts
func (u TokenUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens + u.CacheCreationTokens + u.CacheReadTokens
}

// Add sums other into u componentwise
func (u *TokenUsage) Add(other TokenUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
	u.TotalCost += other.TotalCost
}

// IsZero reports whether no tokens were recorded
func (u TokenUsage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 &&
		u.CacheCreationTokens == 0 && u.CacheReadTokens == 0
}

// TokensPerDollar returns total tokens divided by cost, or 0 when cost is 0
func (u TokenUsage) TokensPerDollar() float64 {
	if u.TotalCost <= 0 {
		return 0
	}
	return float64(u.TotalTokens()) / u.TotalCost
}

// OutputInputRatio returns output tokens per input token, or 0 without input
func (u TokenUsage) OutputInputRatio() float64 {
	if u.InputTokens == 0 {
		return 0
	}
	return float64(u.OutputTokens) / float64(u.InputTokens)
}

// CacheEfficiency returns the percentage of prompt tokens served from cache
func (u TokenUsage) CacheEfficiency() float64 {
	prompt := u.InputTokens + u.CacheCreationTokens + u.CacheReadTokens
	if prompt == 0 {
		return 0
	}
	return float64(u.CacheReadTokens) / float64(prompt) * 100
}

// UsageEvent is a single validated usage entry from a Claude Code JSONL file
type UsageEvent struct {
	Timestamp time.Time
	SessionID string // Derived from the file path below projects/
	Model     string
	Usage     TokenUsage // TotalCost is always 0 here
	Cost      *float64   // Wire cost or priced cost; nil when neither is known
}

// UsageWithCost returns the event's usage with TotalCost filled from Cost
func (e UsageEvent) UsageWithCost() TokenUsage {
	u := e.Usage
	u.TotalCost = 0
	if e.Cost != nil && *e.Cost > 0 {
		u.TotalCost = *e.Cost
	}
	return u
}

// ModelPricing contains pricing info for a model (per token, not per million).
// A nil rate contributes nothing to cost.
type ModelPricing struct {
	InputCostPerToken         *float64 `json:"input_cost_per_token,omitempty"`
	OutputCostPerToken        *float64 `json:"output_cost_per_token,omitempty"`
	CacheCreationCostPerToken *float64 `json:"cache_creation_cost_per_token,omitempty"`
	CacheReadCostPerToken     *float64 `json:"cache_read_cost_per_token,omitempty"`
}

// PerMillion builds a ModelPricing from dollar-per-million-token rates
func PerMillion(input, output, cacheCreation, cacheRead float64) ModelPricing {
	return ModelPricing{
		InputCostPerToken:         rate(input / 1e6),
		OutputCostPerToken:        rate(output / 1e6),
		CacheCreationCostPerToken: rate(cacheCreation / 1e6),
		CacheReadCostPerToken:     rate(cacheRead / 1e6),
	}
}

func rate(v float64) *float64 {
	return &v
}
