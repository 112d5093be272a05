package aggregator

import (
	"sort"
	"time"

	"github.com/zhaobenny/claudelytics/internal/model"
)

// TimePoint is the usage recorded in one minute
type TimePoint struct {
	Time   time.Time
	Tokens int64
	Cost   float64
}

// Timeline keeps per-minute totals so burn rates can use event times
// instead of spreading daily totals over assumed working hours
type Timeline struct {
	minutes map[int64]*TimePoint
}

// NewTimeline creates an empty timeline
func NewTimeline() *Timeline {
	return &Timeline{minutes: make(map[int64]*TimePoint)}
}

// Add absorbs one event
func (t *Timeline) Add(e model.UsageEvent) {
	u := e.UsageWithCost()
	t.add(e.Timestamp.UTC().Truncate(time.Minute), u.TotalTokens(), u.TotalCost)
}

func (t *Timeline) add(minute time.Time, tokens int64, cost float64) {
	key := minute.Unix()
	p, ok := t.minutes[key]
	if !ok {
		p = &TimePoint{Time: minute}
		t.minutes[key] = p
	}
	p.Tokens += tokens
	p.Cost += cost
}

// Merge folds other into t
func (t *Timeline) Merge(other *Timeline) {
	for _, p := range other.minutes {
		t.add(p.Time, p.Tokens, p.Cost)
	}
}

// Len returns the number of minutes with usage
func (t *Timeline) Len() int {
	return len(t.minutes)
}

// Points returns all minutes in time order
func (t *Timeline) Points() []TimePoint {
	out := make([]TimePoint, 0, len(t.minutes))
	for _, p := range t.minutes {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
