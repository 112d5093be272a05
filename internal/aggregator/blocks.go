package aggregator

import (
	"fmt"
	"sort"
	"time"

	"github.com/zhaobenny/claudelytics/internal/model"
)

// DefaultBlockHours is the default session block length
const DefaultBlockHours = 8

// BlockConfig configures N-hour session blocks
type BlockConfig struct {
	Hours      int      `json:"block_hours"`
	TokenLimit *int64   `json:"token_limit,omitempty"`
	CostLimit  *float64 `json:"cost_limit,omitempty"`
}

// DefaultBlockConfig returns 8-hour blocks without limits
func DefaultBlockConfig() BlockConfig {
	return BlockConfig{Hours: DefaultBlockHours}
}

// Validate checks the block length
func (c BlockConfig) Validate() error {
	if c.Hours < 1 || c.Hours > 24 {
		return fmt.Errorf("block hours must be between 1 and 24, got %d", c.Hours)
	}
	if c.TokenLimit != nil && *c.TokenLimit < 0 {
		return fmt.Errorf("token limit must not be negative")
	}
	if c.CostLimit != nil && *c.CostLimit < 0 {
		return fmt.Errorf("cost limit must not be negative")
	}
	return nil
}

// SessionBlock is one N-hour window of a UTC day
type SessionBlock struct {
	Date     string
	Index    int
	Start    time.Time
	End      time.Time // Clamped to the next UTC midnight
	Usage    model.TokenUsage
	Events   int
	IsActive bool
	sessions map[string]struct{}
}

// SessionCount returns the number of distinct sessions with usage in the block
func (b SessionBlock) SessionCount() int {
	return len(b.sessions)
}

// SessionBlocks aggregates usage into N-hour blocks created on first use
type SessionBlocks struct {
	cfg    BlockConfig
	blocks map[int64]*SessionBlock // keyed by start unix time
}

// NewSessionBlocks creates an empty session block aggregator
func NewSessionBlocks(cfg BlockConfig) *SessionBlocks {
	if cfg.Hours <= 0 {
		cfg.Hours = DefaultBlockHours
	}
	return &SessionBlocks{cfg: cfg, blocks: make(map[int64]*SessionBlock)}
}

// Config returns the block configuration
func (m *SessionBlocks) Config() BlockConfig {
	return m.cfg
}

// BlockStart normalizes a timestamp to the start of its N-hour block
func (m *SessionBlocks) BlockStart(ts time.Time) time.Time {
	ts = ts.UTC()
	hour := (ts.Hour() / m.cfg.Hours) * m.cfg.Hours
	return time.Date(ts.Year(), ts.Month(), ts.Day(), hour, 0, 0, 0, time.UTC)
}

func (m *SessionBlocks) block(start time.Time) *SessionBlock {
	key := start.Unix()
	b, ok := m.blocks[key]
	if ok {
		return b
	}
	end := start.Add(time.Duration(m.cfg.Hours) * time.Hour)
	midnight := time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, time.UTC)
	if end.After(midnight) {
		end = midnight
	}
	b = &SessionBlock{
		Date:     start.Format(DateLayout),
		Index:    start.Hour() / m.cfg.Hours,
		Start:    start,
		End:      end,
		sessions: make(map[string]struct{}),
	}
	m.blocks[key] = b
	return b
}

// Add absorbs one event
func (m *SessionBlocks) Add(e model.UsageEvent) {
	b := m.block(m.BlockStart(e.Timestamp))
	b.Usage.Add(e.UsageWithCost())
	b.Events++
	if e.SessionID != "" {
		b.sessions[e.SessionID] = struct{}{}
	}
}

// Merge folds other into m; both must use the same block length
func (m *SessionBlocks) Merge(other *SessionBlocks) {
	for _, ob := range other.blocks {
		b := m.block(ob.Start)
		b.Usage.Add(ob.Usage)
		b.Events += ob.Events
		for s := range ob.sessions {
			b.sessions[s] = struct{}{}
		}
	}
}

// Len returns the number of blocks with usage
func (m *SessionBlocks) Len() int {
	return len(m.blocks)
}

// Snapshot returns copies of all blocks in time order with IsActive set
// for the block whose interval contains now
func (m *SessionBlocks) Snapshot(now time.Time) []SessionBlock {
	out := make([]SessionBlock, 0, len(m.blocks))
	for _, b := range m.blocks {
		c := *b
		c.IsActive = !now.Before(c.Start) && now.Before(c.End)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
