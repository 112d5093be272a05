package aggregator

import "github.com/zhaobenny/claudelytics/internal/model"

// Set bundles the accumulators fed from one event stream
type Set struct {
	Daily    *Daily
	Sessions *Sessions
	Timeline *Timeline
	Billing  *BillingBlocks
	Blocks   *SessionBlocks
	Events   int
}

// NewSet creates empty accumulators
func NewSet(cfg BlockConfig) *Set {
	return &Set{
		Daily:    NewDaily(),
		Sessions: NewSessions(),
		Timeline: NewTimeline(),
		Billing:  NewBillingBlocks(),
		Blocks:   NewSessionBlocks(cfg),
	}
}

// Add feeds one event to every accumulator
func (s *Set) Add(e model.UsageEvent) {
	s.Daily.Add(e)
	s.Sessions.Add(e)
	s.Timeline.Add(e)
	s.Billing.Add(e)
	s.Blocks.Add(e)
	s.Events++
}

// Merge folds other into s
func (s *Set) Merge(other *Set) {
	s.Daily.Merge(other.Daily)
	s.Sessions.Merge(other.Sessions)
	s.Timeline.Merge(other.Timeline)
	s.Billing.Merge(other.Billing)
	s.Blocks.Merge(other.Blocks)
	s.Events += other.Events
}
