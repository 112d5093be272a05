// Package aggregator holds the independent accumulators fed from the event
// stream. Each accumulator is owned by one goroutine while it is filled and
// combined with Merge afterwards; none of them lock.
package aggregator

import (
	"sort"

	"github.com/zhaobenny/claudelytics/internal/model"
)

// DateLayout is the key format of daily buckets
const DateLayout = "2006-01-02"

type modelSet map[string]struct{}

func (s modelSet) add(name string) {
	if name != "" {
		s[name] = struct{}{}
	}
}

func (s modelSet) merge(other modelSet) {
	for m := range other {
		s[m] = struct{}{}
	}
}

func (s modelSet) sorted() []string {
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// DailyBucket is the usage of one UTC calendar date
type DailyBucket struct {
	Date   string // YYYY-MM-DD
	Usage  model.TokenUsage
	Events int
	models modelSet
}

// Models returns the models seen on this date
func (b DailyBucket) Models() []string {
	return b.models.sorted()
}

// Daily aggregates usage by UTC date
type Daily struct {
	buckets map[string]*DailyBucket
}

// NewDaily creates an empty daily aggregator
func NewDaily() *Daily {
	return &Daily{buckets: make(map[string]*DailyBucket)}
}

// Add absorbs one event
func (d *Daily) Add(e model.UsageEvent) {
	b := d.bucket(e.Timestamp.UTC().Format(DateLayout))
	b.Usage.Add(e.UsageWithCost())
	b.Events++
	b.models.add(e.Model)
}

func (d *Daily) bucket(date string) *DailyBucket {
	b, ok := d.buckets[date]
	if !ok {
		b = &DailyBucket{Date: date, models: make(modelSet)}
		d.buckets[date] = b
	}
	return b
}

// Merge folds other into d
func (d *Daily) Merge(other *Daily) {
	for date, ob := range other.buckets {
		b := d.bucket(date)
		b.Usage.Add(ob.Usage)
		b.Events += ob.Events
		b.models.merge(ob.models)
	}
}

// Get returns the bucket for a YYYY-MM-DD date
func (d *Daily) Get(date string) (DailyBucket, bool) {
	b, ok := d.buckets[date]
	if !ok {
		return DailyBucket{}, false
	}
	return *b, true
}

// Len returns the number of dates with usage
func (d *Daily) Len() int {
	return len(d.buckets)
}

// Buckets returns all dates, oldest first
func (d *Daily) Buckets() []DailyBucket {
	out := make([]DailyBucket, 0, len(d.buckets))
	for _, b := range d.buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}
