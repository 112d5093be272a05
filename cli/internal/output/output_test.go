package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/claudelytics/internal/analytics"
	"github.com/zhaobenny/claudelytics/internal/model"
	"github.com/zhaobenny/claudelytics/internal/report"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-45000, "-45,000"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatNumber(tt.input))
	}
}

func TestFormatCost(t *testing.T) {
	assert.Equal(t, "$0.00", FormatCost(0))
	assert.Equal(t, "$12.35", FormatCost(12.345678))
}

func TestShortenModelName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"claude-sonnet-4-5-20250929", "sonnet-4-5"},
		{"claude-opus-4-20250514", "opus-4"},
		{"claude-opus-4-5", "opus-4-5"},
		{"anthropic/claude-opus-4.5", "opus-4.5"},
		{"gpt-4o", "gpt-4o"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, shortenModelName(tt.input))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg..", truncate("abcdefghijkl", 9))
}

func sampleDaily() report.DailyReport {
	days := []report.DailyUsage{
		{Date: "2024-02-02", Usage: report.UsageOf(model.TokenUsage{InputTokens: 1500, OutputTokens: 500, TotalCost: 1.25}), Models: []string{"claude-sonnet-4-20250514"}},
		{Date: "2024-02-01", Usage: report.UsageOf(model.TokenUsage{InputTokens: 100, OutputTokens: 20, CacheReadTokens: 30, TotalCost: 0.5}), Models: []string{"claude-opus-4-20250514"}},
	}
	return report.DailyReport{
		Daily:  days,
		Totals: report.UsageOf(model.TokenUsage{InputTokens: 1600, OutputTokens: 520, CacheReadTokens: 30, TotalCost: 1.75}),
	}
}

func sampleSessions() report.SessionReport {
	return report.SessionReport{
		Sessions: []report.SessionUsage{{
			ProjectPath:  "-home-me-app",
			SessionID:    "0f3c2a9e-1111-2222-3333-444455556666",
			Usage:        report.UsageOf(model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalCost: 0.125}),
			LastActivity: "2024-02-02",
		}},
		Totals: report.UsageOf(model.TokenUsage{InputTokens: 10, OutputTokens: 5, TotalCost: 0.125}),
	}
}

func TestPrintDailyFull(t *testing.T) {
	t.Setenv("COLUMNS", "200")
	var buf bytes.Buffer
	PrintDaily(&buf, sampleDaily(), TableOptions{Breakdown: true})
	out := buf.String()

	assert.Contains(t, out, "Cache Create")
	assert.Contains(t, out, "2024-02-02")
	assert.Contains(t, out, "1,500")
	assert.Contains(t, out, "Total")
	assert.Contains(t, out, "$1.75")
	assert.Contains(t, out, "Models used:\n  - opus-4\n  - sonnet-4\n")
	assert.NotContains(t, out, "Compact mode")
}

func TestPrintDailyCompact(t *testing.T) {
	var buf bytes.Buffer
	PrintDaily(&buf, sampleDaily(), TableOptions{ForceCompact: true, DateFormat: "02/01/2006"})
	out := buf.String()

	assert.NotContains(t, out, "Cache Create")
	assert.Contains(t, out, "02/02/2024")
	assert.Contains(t, out, "Compact mode")
	assert.NotContains(t, out, "Models used")
}

func TestPrintEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintDaily(&buf, report.DailyReport{}, TableOptions{})
	assert.Equal(t, "No usage data found.\n", buf.String())
}

func TestPrintSessions(t *testing.T) {
	t.Setenv("COLUMNS", "200")
	var buf bytes.Buffer
	PrintSessions(&buf, sampleSessions(), TableOptions{})
	assert.Contains(t, buf.String(), "-home-me-app/0f3c2a9e")
	// A single row has no total line
	assert.NotContains(t, buf.String(), "\nTotal")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleDaily()))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	daily := decoded["daily"].([]any)
	first := daily[0].(map[string]any)
	assert.Equal(t, "2024-02-02", first["date"])
	assert.Equal(t, float64(2000), first["total_tokens"])
	assert.Contains(t, decoded, "totals")
}

func TestDailyCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDailyCSV(&buf, sampleDaily()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Input Tokens,Output Tokens,Cache Creation Tokens,Cache Read Tokens,Total Tokens,Cost USD", lines[0])
	assert.Equal(t, "2024-02-02,1500,500,0,0,2000,1.250000", lines[1])
	assert.Equal(t, "2024-02-01,100,20,0,30,150,0.500000", lines[2])
}

func TestSessionCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSessionCSV(&buf, sampleSessions()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Session Path,Last Activity,Input Tokens"))
	assert.Equal(t, "-home-me-app/0f3c2a9e-1111-2222-3333-444455556666,2024-02-02,10,5,0,0,15,0.125000", lines[1])
}

func TestExportCSV(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	paths, err := ExportCSV(dir, sampleDaily(), sampleSessions())
	require.NoError(t, err)
	require.Len(t, paths, 3)

	summary, err := os.ReadFile(filepath.Join(dir, SummaryCSV))
	require.NoError(t, err)
	assert.Equal(t, strings.Join([]string{
		"Metric,Value",
		"Total Days,2",
		"Total Input Tokens,1600",
		"Total Output Tokens,520",
		"Total Cache Creation Tokens,0",
		"Total Cache Read Tokens,30",
		"Total Cost (USD),1.750000",
		"Total Sessions,1",
	}, "\n")+"\n", string(summary))

	for _, p := range paths {
		assert.FileExists(t, p)
	}
}

func TestRenderRealtime(t *testing.T) {
	limit := 10.0
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := analytics.RealtimeReport{
		BudgetProjections: analytics.BudgetProjections{
			Daily: analytics.NewBudgetProjection(12, &limit),
		},
		Alerts: []analytics.Alert{{
			Type:              analytics.AlertBudgetThreshold,
			Severity:          analytics.SeverityCritical,
			Message:           "Daily budget utilization at 120.0% ($12.00 of $10.00)",
			Timestamp:         now,
			RecommendedAction: "Slow down",
		}},
	}

	out := RenderRealtime(r)
	assert.Contains(t, out, "Burn rate")
	assert.Contains(t, out, "$12.00 of $10.00")
	assert.Contains(t, out, "over budget")
	assert.Contains(t, out, "[CRITICAL] Daily budget utilization at 120.0% ($12.00 of $10.00)")
	assert.Contains(t, out, "Slow down")
}

func TestRenderProjections(t *testing.T) {
	days := 4
	out := RenderProjections(
		analytics.CostProjection{DailyAverageCost: 2.5, Trend: analytics.TrendIncreasing, GrowthRate: 12, DaysUntilLimit: &days, LimitDate: "2024-03-05"},
		analytics.TokenProjection{DailyAverageTokens: 12000, Trend: analytics.TrendStable},
	)
	assert.Contains(t, out, "$2.50")
	assert.Contains(t, out, "increasing ↑ (+12.0%/day)")
	assert.Contains(t, out, "in 4 days (2024-03-05)")
	assert.Contains(t, out, "12,000")
}
