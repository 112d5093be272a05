package report

import (
	"cmp"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/parser"
)

// SessionUsage is one row of the session report
type SessionUsage struct {
	ProjectPath string `json:"project_path"`
	SessionID   string `json:"session_id"`
	Usage
	LastActivity string    `json:"last_activity"` // YYYY-MM-DD
	LastSeen     time.Time `json:"last_seen"`
	Models       []string  `json:"models_used,omitempty"`
}

// Key is the session key the row was built from
func (s SessionUsage) Key() string {
	if s.ProjectPath == "" {
		return s.SessionID
	}
	return s.ProjectPath + "/" + s.SessionID
}

// SessionReport lists usage per session
type SessionReport struct {
	Sessions []SessionUsage `json:"sessions"`
	Totals   Usage          `json:"totals"`
}

// Sessions builds the session report, most expensive first unless opts says
// otherwise
func Sessions(sessions []aggregator.SessionBucket, opts SortOptions) SessionReport {
	rows := lo.Map(sessions, func(s aggregator.SessionBucket, _ int) SessionUsage {
		project, id := parser.SplitSessionID(s.ID)
		return SessionUsage{
			ProjectPath:  project,
			SessionID:    id,
			Usage:        UsageOf(s.Usage),
			LastActivity: s.LastActivity.UTC().Format(aggregator.DateLayout),
			LastSeen:     s.LastActivity.UTC(),
			Models:       s.Models(),
		}
	})

	field := opts.field(SortCost)
	slices.SortStableFunc(rows, func(a, b SessionUsage) int {
		var c int
		switch field {
		case SortDate:
			c = a.LastSeen.Compare(b.LastSeen)
		case SortProject:
			c = cmp.Or(cmp.Compare(a.ProjectPath, b.ProjectPath), cmp.Compare(a.SessionID, b.SessionID))
		default:
			c, _ = compareUsage(a.Usage, b.Usage, field)
		}
		if c == 0 {
			c = cmp.Compare(a.Key(), b.Key())
		}
		return opts.apply(c)
	})

	return SessionReport{
		Sessions: rows,
		Totals:   sumUsage(rows, func(r SessionUsage) Usage { return r.Usage }),
	}
}
