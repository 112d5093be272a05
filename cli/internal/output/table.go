package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/model"
	"github.com/zhaobenny/claudelytics/internal/report"
	"github.com/zhaobenny/claudelytics/internal/store"
)

const maxKeyWidth = 44

// TableOptions controls table display behavior
type TableOptions struct {
	ForceCompact bool
	Breakdown    bool   // List the models used under the table
	DateFormat   string // Layout for day keys; empty keeps YYYY-MM-DD
}

func (o TableOptions) compact() bool {
	return o.ForceCompact || terminalWidth() < compactThreshold
}

func (o TableOptions) date(day string) string {
	if o.DateFormat == "" || o.DateFormat == aggregator.DateLayout {
		return day
	}
	t, err := time.Parse(aggregator.DateLayout, day)
	if err != nil {
		return day
	}
	return t.Format(o.DateFormat)
}

// Row is one keyed line of a usage table
type Row struct {
	Key    string
	Usage  report.Usage
	Models []string
}

// Table is a titled list of usage rows with a total line
type Table struct {
	Title string
	Rows  []Row
	Total report.Usage
	Notes []string // Printed under the table
}

type column struct {
	header string
	width  int
	value  func(report.Usage) string
}

var (
	inputColumn  = column{"Input", 12, func(u report.Usage) string { return FormatNumber(u.InputTokens) }}
	outputColumn = column{"Output", 12, func(u report.Usage) string { return FormatNumber(u.OutputTokens) }}
	costColumn   = column{"Cost", 10, func(u report.Usage) string { return FormatCost(u.TotalCost) }}

	fullColumns = []column{
		inputColumn,
		outputColumn,
		{"Cache Create", 14, func(u report.Usage) string { return FormatNumber(u.CacheCreationTokens) }},
		{"Cache Read", 14, func(u report.Usage) string { return FormatNumber(u.CacheReadTokens) }},
		{"Total", 14, func(u report.Usage) string { return FormatNumber(u.TotalTokens) }},
		costColumn,
	}
	compactColumns = []column{inputColumn, outputColumn, costColumn}
)

// Print writes the table
func (t Table) Print(w io.Writer, opts TableOptions) {
	if len(t.Rows) == 0 {
		fmt.Fprintln(w, "No usage data found.")
		return
	}

	compact := opts.compact()
	columns := fullColumns
	if compact {
		columns = compactColumns
	}

	keyWidth := len(t.Title)
	for _, r := range t.Rows {
		keyWidth = max(keyWidth, len(r.Key))
	}
	keyWidth = max(keyWidth, 10)
	if compact {
		keyWidth = min(keyWidth, 12)
	} else {
		keyWidth = min(keyWidth, maxKeyWidth)
	}

	ruleWidth := keyWidth
	for _, c := range columns {
		ruleWidth += 2 + c.width
	}
	rule := strings.Repeat("─", ruleWidth)

	line := func(key string, cells func(column) string) {
		fmt.Fprintf(w, "%-*s", keyWidth, truncate(key, keyWidth))
		for _, c := range columns {
			fmt.Fprintf(w, "  %*s", c.width, cells(c))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w)
	line(t.Title, func(c column) string { return c.header })
	fmt.Fprintln(w, rule)
	for _, r := range t.Rows {
		line(r.Key, func(c column) string { return c.value(r.Usage) })
	}
	if len(t.Rows) > 1 {
		fmt.Fprintln(w, rule)
		line("Total", func(c column) string { return c.value(t.Total) })
	}
	fmt.Fprintln(w)

	for _, n := range t.Notes {
		fmt.Fprintln(w, n)
	}
	if compact {
		fmt.Fprintln(w, "(Compact mode - expand terminal for full view)")
	}

	if opts.Breakdown {
		printModels(w, t.Rows)
	}
}

func printModels(w io.Writer, rows []Row) {
	seen := make(map[string]bool)
	for _, r := range rows {
		for _, m := range r.Models {
			seen[shortenModelName(m)] = true
		}
	}
	if len(seen) == 0 {
		return
	}
	models := make([]string, 0, len(seen))
	for m := range seen {
		models = append(models, m)
	}
	sort.Strings(models)

	fmt.Fprintln(w, "Models used:")
	for _, m := range models {
		fmt.Fprintf(w, "  - %s\n", m)
	}
	fmt.Fprintln(w)
}

// PrintDaily prints the daily report
func PrintDaily(w io.Writer, r report.DailyReport, opts TableOptions) {
	t := Table{Title: "Date", Total: r.Totals}
	for _, d := range r.Daily {
		t.Rows = append(t.Rows, Row{Key: opts.date(d.Date), Usage: d.Usage, Models: d.Models})
	}
	t.Print(w, opts)
}

// PrintMonthly prints the monthly report
func PrintMonthly(w io.Writer, r report.MonthlyReport, opts TableOptions) {
	t := Table{Title: "Month", Total: r.Totals}
	for _, m := range r.Monthly {
		t.Rows = append(t.Rows, Row{Key: m.Month, Usage: m.Usage})
		t.Notes = append(t.Notes, fmt.Sprintf("%s: %d active days, %s per day", m.Month, m.DaysActive, FormatCost(m.AvgDailyCost)))
	}
	t.Print(w, opts)
}

// PrintSessions prints the session report
func PrintSessions(w io.Writer, r report.SessionReport, opts TableOptions) {
	t := Table{Title: "Session", Total: r.Totals}
	for _, s := range r.Sessions {
		key := shortenSessionID(s.SessionID)
		if s.ProjectPath != "" && !opts.compact() {
			key = s.ProjectPath + "/" + key
		}
		t.Rows = append(t.Rows, Row{Key: key, Usage: s.Usage, Models: s.Models})
	}
	t.Print(w, opts)
}

// PrintBillingBlocks prints the 5-hour billing block report
func PrintBillingBlocks(w io.Writer, r report.BillingBlockReport, opts TableOptions) {
	t := Table{Title: "Block", Total: r.TotalUsage}
	for _, b := range r.Blocks {
		t.Rows = append(t.Rows, Row{Key: opts.date(b.Date) + " " + b.TimeRange, Usage: b.Usage})
	}
	if p := r.PeakBlock; p != nil {
		t.Notes = append(t.Notes,
			fmt.Sprintf("Peak block: %s %s (%s tokens, %s, %d sessions)",
				opts.date(p.Date), p.TimeRange, FormatNumber(p.TotalTokens), FormatCost(p.TotalCost), p.SessionCount),
			fmt.Sprintf("Average per block: %s tokens, %s",
				FormatNumber(r.AveragePerBlock.TotalTokens), FormatCost(r.AveragePerBlock.TotalCost)),
		)
	}
	t.Print(w, opts)
}

// PrintSessionBlocks prints the N-hour session block report; active blocks
// are marked with *
func PrintSessionBlocks(w io.Writer, r report.SessionBlockReport, opts TableOptions) {
	t := Table{Title: "Block", Total: r.TotalUsage}
	for _, b := range r.Blocks {
		key := opts.date(b.Date) + " " + b.TimeRange
		if b.IsActive {
			key += " *"
		}
		t.Rows = append(t.Rows, Row{Key: key, Usage: b.Usage})
	}
	t.Notes = append(t.Notes, fmt.Sprintf("%d-hour blocks: %d total, %d active, %d in the last %d days",
		r.Config.Hours, r.TotalBlocks, r.ActiveBlocks, r.RecentBlocks, report.RecentBlockDays))
	if br := r.CurrentBurnRate; br != nil {
		t.Notes = append(t.Notes, fmt.Sprintf("Current burn rate: %s tokens/hour, %s/hour, limit in %s",
			FormatNumber(int64(br.TokensPerHour)), FormatCost(br.CostPerHour), formatHours(br.HoursUntilBudgetLimit)))
	}
	t.Print(w, opts)
}

// PrintHistory prints stored usage snapshots
func PrintHistory(w io.Writer, rows []store.Summary, opts TableOptions) {
	t := Table{Title: "Period"}
	var total model.TokenUsage
	for _, s := range rows {
		key := s.PeriodKey
		if s.PeriodType == store.PeriodDay {
			key = opts.date(key)
		}
		t.Rows = append(t.Rows, Row{Key: key, Usage: report.UsageOf(s.Usage)})
		total.Add(s.Usage)
	}
	t.Total = report.UsageOf(total)
	if len(rows) > 0 {
		t.Notes = append(t.Notes, "Last updated "+rows[0].UpdatedAt.UTC().Format(time.RFC3339))
	}
	t.Print(w, opts)
}
