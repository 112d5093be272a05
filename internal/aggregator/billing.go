package aggregator

import (
	"sort"
	"time"

	"github.com/zhaobenny/claudelytics/internal/model"
)

const (
	// BillingBlockHours is the length of a billing block
	BillingBlockHours = 5
	// BlocksPerDay is the number of billing blocks in a UTC day
	BlocksPerDay = 5
)

// BillingBlock is one fixed 5-hour window of a UTC day
type BillingBlock struct {
	Date     string // YYYY-MM-DD
	Index    int    // 0..4
	Start    time.Time
	End      time.Time
	Usage    model.TokenUsage
	Events   int
	sessions map[string]struct{}
}

// SessionCount returns the number of distinct sessions with usage in the block
func (b BillingBlock) SessionCount() int {
	return len(b.sessions)
}

// IsEmpty reports whether no event landed in the block
func (b BillingBlock) IsEmpty() bool {
	return b.Events == 0
}

// Contains reports whether ts falls in [Start, End)
func (b BillingBlock) Contains(ts time.Time) bool {
	return !ts.Before(b.Start) && ts.Before(b.End)
}

// BillingBlockStart normalizes a timestamp to the start of its 5-hour block
func BillingBlockStart(ts time.Time) time.Time {
	ts = ts.UTC()
	hour := (ts.Hour() / BillingBlockHours) * BillingBlockHours
	return time.Date(ts.Year(), ts.Month(), ts.Day(), hour, 0, 0, 0, time.UTC)
}

// BillingBlocks aggregates usage into the fixed 5-hour grid. Every date with
// any event gets all five blocks.
type BillingBlocks struct {
	days map[string]*[BlocksPerDay]BillingBlock
}

// NewBillingBlocks creates an empty billing block aggregator
func NewBillingBlocks() *BillingBlocks {
	return &BillingBlocks{days: make(map[string]*[BlocksPerDay]BillingBlock)}
}

func (m *BillingBlocks) day(ts time.Time) *[BlocksPerDay]BillingBlock {
	ts = ts.UTC()
	date := ts.Format(DateLayout)
	d, ok := m.days[date]
	if ok {
		return d
	}
	d = new([BlocksPerDay]BillingBlock)
	midnight := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	for i := range d {
		start := midnight.Add(time.Duration(i*BillingBlockHours) * time.Hour)
		d[i] = BillingBlock{
			Date:     date,
			Index:    i,
			Start:    start,
			End:      start.Add(BillingBlockHours * time.Hour),
			sessions: make(map[string]struct{}),
		}
	}
	m.days[date] = d
	return d
}

// Add absorbs one event into the unique block containing its timestamp
func (m *BillingBlocks) Add(e model.UsageEvent) {
	ts := e.Timestamp.UTC()
	b := &m.day(ts)[ts.Hour()/BillingBlockHours]
	b.Usage.Add(e.UsageWithCost())
	b.Events++
	if e.SessionID != "" {
		b.sessions[e.SessionID] = struct{}{}
	}
}

// Merge folds other into m
func (m *BillingBlocks) Merge(other *BillingBlocks) {
	for _, od := range other.days {
		d := m.day(od[0].Start)
		for i := range od {
			d[i].Usage.Add(od[i].Usage)
			d[i].Events += od[i].Events
			for s := range od[i].sessions {
				d[i].sessions[s] = struct{}{}
			}
		}
	}
}

// Day returns the five blocks of a YYYY-MM-DD date
func (m *BillingBlocks) Day(date string) []BillingBlock {
	d, ok := m.days[date]
	if !ok {
		return nil
	}
	out := make([]BillingBlock, BlocksPerDay)
	copy(out, d[:])
	return out
}

// Blocks returns every block of every date in time order
func (m *BillingBlocks) Blocks() []BillingBlock {
	dates := make([]string, 0, len(m.days))
	for date := range m.days {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	out := make([]BillingBlock, 0, len(dates)*BlocksPerDay)
	for _, date := range dates {
		out = append(out, m.days[date][:]...)
	}
	return out
}
