package parser

import (
	"time"

	"github.com/zhaobenny/claudelytics/internal/apperr"
)

const (
	filterLayout = "20060102"
	dateLayout   = "2006-01-02"
)

// DateFilter keeps events whose UTC date lies in an inclusive range.
// The zero value accepts everything.
type DateFilter struct {
	since string // YYYY-MM-DD, empty when open
	until string
}

// ParseDate parses a strict YYYYMMDD string
func ParseDate(s string) (time.Time, error) {
	if len(s) != len(filterLayout) {
		return time.Time{}, apperr.Newf(apperr.KindDateParse, "parse date", "%q is not YYYYMMDD", s)
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return time.Time{}, apperr.Newf(apperr.KindDateParse, "parse date", "%q is not YYYYMMDD", s)
		}
	}
	t, err := time.Parse(filterLayout, s)
	if err != nil {
		return time.Time{}, apperr.New(apperr.KindDateParse, "parse date", err)
	}
	return t, nil
}

// ParseDateFilter builds a filter from optional YYYYMMDD bounds
func ParseDateFilter(since, until string) (DateFilter, error) {
	var f DateFilter
	if since != "" {
		t, err := ParseDate(since)
		if err != nil {
			return DateFilter{}, err
		}
		f.since = t.Format(dateLayout)
	}
	if until != "" {
		t, err := ParseDate(until)
		if err != nil {
			return DateFilter{}, err
		}
		f.until = t.Format(dateLayout)
	}
	if f.since != "" && f.until != "" && f.since > f.until {
		return DateFilter{}, apperr.Newf(apperr.KindConfig, "date filter", "since %s is after until %s", since, until)
	}
	return f, nil
}

// IsZero reports whether the filter has no bounds
func (f DateFilter) IsZero() bool {
	return f.since == "" && f.until == ""
}

// Contains reports whether the UTC date of ts is within the range
func (f DateFilter) Contains(ts time.Time) bool {
	return f.ContainsDate(ts.UTC().Format(dateLayout))
}

// ContainsDate reports whether a YYYY-MM-DD date is within the range
func (f DateFilter) ContainsDate(date string) bool {
	if f.since != "" && date < f.since {
		return false
	}
	if f.until != "" && date > f.until {
		return false
	}
	return true
}

// String renders the bounds for display
func (f DateFilter) String() string {
	if f.IsZero() {
		return "all time"
	}
	since, until := f.since, f.until
	if since == "" {
		since = "..."
	}
	if until == "" {
		until = "..."
	}
	return since + " to " + until
}
