package aggregator

import (
	"sort"
	"time"

	"github.com/zhaobenny/claudelytics/internal/model"
)

// UnknownSession keys events from files directly below projects/
const UnknownSession = "unknown"

// SessionBucket is the usage of one session
type SessionBucket struct {
	ID            string
	Usage         model.TokenUsage
	FirstActivity time.Time
	LastActivity  time.Time
	Events        int
	models        modelSet
}

// Models returns the models used in this session
func (b SessionBucket) Models() []string {
	return b.models.sorted()
}

// Duration is the time between the first and last event
func (b SessionBucket) Duration() time.Duration {
	return b.LastActivity.Sub(b.FirstActivity)
}

// Sessions aggregates usage by session id
type Sessions struct {
	buckets map[string]*SessionBucket
}

// NewSessions creates an empty session aggregator
func NewSessions() *Sessions {
	return &Sessions{buckets: make(map[string]*SessionBucket)}
}

// Add absorbs one event
func (s *Sessions) Add(e model.UsageEvent) {
	key := e.SessionID
	if key == "" {
		key = UnknownSession
	}
	b := s.bucket(key, e.Timestamp)
	b.Usage.Add(e.UsageWithCost())
	b.Events++
	b.models.add(e.Model)
	b.observe(e.Timestamp, e.Timestamp)
}

func (s *Sessions) bucket(id string, ts time.Time) *SessionBucket {
	b, ok := s.buckets[id]
	if !ok {
		b = &SessionBucket{ID: id, FirstActivity: ts, LastActivity: ts, models: make(modelSet)}
		s.buckets[id] = b
	}
	return b
}

func (b *SessionBucket) observe(first, last time.Time) {
	if first.Before(b.FirstActivity) {
		b.FirstActivity = first
	}
	if last.After(b.LastActivity) {
		b.LastActivity = last
	}
}

// Merge folds other into s
func (s *Sessions) Merge(other *Sessions) {
	for id, ob := range other.buckets {
		b := s.bucket(id, ob.FirstActivity)
		b.Usage.Add(ob.Usage)
		b.Events += ob.Events
		b.models.merge(ob.models)
		b.observe(ob.FirstActivity, ob.LastActivity)
	}
}

// Get returns the bucket for a session id
func (s *Sessions) Get(id string) (SessionBucket, bool) {
	b, ok := s.buckets[id]
	if !ok {
		return SessionBucket{}, false
	}
	return *b, true
}

// Len returns the number of sessions
func (s *Sessions) Len() int {
	return len(s.buckets)
}

// Buckets returns all sessions ordered by id
func (s *Sessions) Buckets() []SessionBucket {
	out := make([]SessionBucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
