package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/report"
)

// Export file names
const (
	DailyCSV    = "daily.csv"
	SessionsCSV = "sessions.csv"
	SummaryCSV  = "summary.csv"
)

var tokenHeaders = []string{"Input Tokens", "Output Tokens", "Cache Creation Tokens", "Cache Read Tokens", "Total Tokens", "Cost USD"}

// WriteJSON writes v as indented JSON
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func costCell(c float64) string {
	return strconv.FormatFloat(c, 'f', 6, 64)
}

func tokenCells(u report.Usage) []string {
	return []string{
		strconv.FormatInt(u.InputTokens, 10),
		strconv.FormatInt(u.OutputTokens, 10),
		strconv.FormatInt(u.CacheCreationTokens, 10),
		strconv.FormatInt(u.CacheReadTokens, 10),
		strconv.FormatInt(u.TotalTokens, 10),
		costCell(u.TotalCost),
	}
}

func writeAll(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	return nil
}

// WriteDailyCSV writes one row per day
func WriteDailyCSV(w io.Writer, r report.DailyReport) error {
	records := [][]string{append([]string{"Date"}, tokenHeaders...)}
	for _, d := range r.Daily {
		records = append(records, append([]string{d.Date}, tokenCells(d.Usage)...))
	}
	return writeAll(w, records)
}

// WriteSessionCSV writes one row per session
func WriteSessionCSV(w io.Writer, r report.SessionReport) error {
	records := [][]string{append([]string{"Session Path", "Last Activity"}, tokenHeaders...)}
	for _, s := range r.Sessions {
		records = append(records, append([]string{s.ProjectPath + "/" + s.SessionID, s.LastActivity}, tokenCells(s.Usage)...))
	}
	return writeAll(w, records)
}

// WriteSummaryCSV writes Metric,Value rows for the whole data set
func WriteSummaryCSV(w io.Writer, daily report.DailyReport, sessions report.SessionReport) error {
	t := daily.Totals
	return writeAll(w, [][]string{
		{"Metric", "Value"},
		{"Total Days", strconv.Itoa(len(daily.Daily))},
		{"Total Input Tokens", strconv.FormatInt(t.InputTokens, 10)},
		{"Total Output Tokens", strconv.FormatInt(t.OutputTokens, 10)},
		{"Total Cache Creation Tokens", strconv.FormatInt(t.CacheCreationTokens, 10)},
		{"Total Cache Read Tokens", strconv.FormatInt(t.CacheReadTokens, 10)},
		{"Total Cost (USD)", costCell(t.TotalCost)},
		{"Total Sessions", strconv.Itoa(len(sessions.Sessions))},
	})
}

// ExportCSV writes daily.csv, sessions.csv and summary.csv into dir and
// returns the paths written
func ExportCSV(dir string, daily report.DailyReport, sessions report.SessionReport) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.WithPath(apperr.KindIO, "create export directory", dir, err)
	}

	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{DailyCSV, func(w io.Writer) error { return WriteDailyCSV(w, daily) }},
		{SessionsCSV, func(w io.Writer) error { return WriteSessionCSV(w, sessions) }},
		{SummaryCSV, func(w io.Writer) error { return WriteSummaryCSV(w, daily, sessions) }},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writeFile(path, f.write); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return apperr.WithPath(apperr.KindIO, "create export", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return apperr.WithPath(apperr.KindIO, "write export", path, err)
	}
	if err := file.Close(); err != nil {
		return apperr.WithPath(apperr.KindIO, "close export", path, err)
	}
	return nil
}
