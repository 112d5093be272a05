package engine

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/parser"
	"github.com/zhaobenny/claudelytics/internal/pricing"
)

const (
	lineA = `{"timestamp":"2024-01-01T02:30:00Z","message":{"usage":{"input_tokens":100,"output_tokens":200},"model":"claude-3-5-haiku-20241022"}}`
	lineB = `{"timestamp":"2024-01-01T07:45:00Z","message":{"usage":{"input_tokens":150,"output_tokens":250},"model":"claude-3-5-haiku-20241022"}}`
)

func writeLog(t *testing.T, root, rel string, lines ...string) string {
	t.Helper()
	path := filepath.Join(root, "projects", rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

func TestRunSingleFile(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/x.jsonl", lineA, lineB)

	res, err := Run(Options{Root: root})
	require.NoError(t, err)
	require.True(t, res.HasData())

	day, ok := res.Daily.Get("2024-01-01")
	require.True(t, ok)
	assert.Equal(t, int64(250), day.Usage.InputTokens)
	assert.Equal(t, int64(450), day.Usage.OutputTokens)
	assert.Equal(t, int64(700), day.Usage.TotalTokens())
	assert.InDelta(t, 0.002, day.Usage.TotalCost, 1e-12)

	blocks := res.Billing.Day("2024-01-01")
	require.Len(t, blocks, 5)
	assert.Equal(t, int64(300), blocks[0].Usage.TotalTokens())
	assert.Equal(t, int64(400), blocks[1].Usage.TotalTokens())
	for _, b := range blocks[2:] {
		assert.Zero(t, b.Usage.TotalTokens())
	}

	s, ok := res.Sessions.Get("p/s")
	require.True(t, ok)
	assert.Equal(t, "2024-01-01", s.LastActivity.Format("2006-01-02"))
	assert.Empty(t, res.Diagnostics)
	assert.Empty(t, res.UnpricedModels)
}

func TestRunMalformedLine(t *testing.T) {
	root := t.TempDir()
	path := writeLog(t, root, "p/s/x.jsonl", lineA, "{not json}", lineB)

	res, err := Run(Options{Root: root})
	require.NoError(t, err)

	day, _ := res.Daily.Get("2024-01-01")
	assert.Equal(t, int64(700), day.Usage.TotalTokens())
	assert.InDelta(t, 0.002, day.Usage.TotalCost, 1e-12)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, path, res.Diagnostics[0].File)
	assert.Equal(t, 2, res.Diagnostics[0].Line)
}

func TestRunDateFilter(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/x.jsonl", lineA,
		`{"timestamp":"2024-01-02T00:00:00Z","message":{"usage":{"input_tokens":5,"output_tokens":5},"model":"claude-3-5-haiku-20241022"}}`)

	f, err := parser.ParseDateFilter("20240101", "20240101")
	require.NoError(t, err)
	res, err := Run(Options{Root: root, Filter: f})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Daily.Len())
	_, ok := res.Daily.Get("2024-01-02")
	assert.False(t, ok)
	assert.Equal(t, 1, res.FilteredEvents)
}

func TestRunModelFilter(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/x.jsonl", lineA,
		`{"timestamp":"2024-01-01T03:00:00Z","message":{"usage":{"input_tokens":5},"model":"claude-opus-4-20250514"}}`)

	res, err := Run(Options{Root: root, ModelFilter: "opus"})
	require.NoError(t, err)
	day, _ := res.Daily.Get("2024-01-01")
	assert.Equal(t, int64(5), day.Usage.TotalTokens())
}

func TestRunWireCostWins(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/x.jsonl",
		`{"timestamp":"2024-01-01T01:00:00Z","costUSD":1.5,"message":{"usage":{"input_tokens":10},"model":"claude-3-5-haiku-20241022"}}`,
		`{"timestamp":"2024-01-01T01:30:00Z","message":{"usage":{"input_tokens":10},"model":"mystery-model"}}`)

	res, err := Run(Options{Root: root})
	require.NoError(t, err)
	day, _ := res.Daily.Get("2024-01-01")
	assert.InDelta(t, 1.5, day.Usage.TotalCost, 1e-12)
	assert.Equal(t, int64(20), day.Usage.TotalTokens())
	assert.Equal(t, map[string]int{"mystery-model": 1}, res.UnpricedModels)
}

func TestRunOverridePricing(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/x.jsonl", lineA, lineB)

	override, err := pricing.ParseOverride([]byte("models:\n  claude-3-5-haiku-20241022:\n    input: 1\n    output: 1\n"))
	require.NoError(t, err)

	res, err := Run(Options{Root: root, Pricer: pricing.NewPricer(override, pricing.DefaultTable())})
	require.NoError(t, err)
	day, _ := res.Daily.Get("2024-01-01")
	assert.InDelta(t, 700.0/1e6, day.Usage.TotalCost, 1e-12)
}

func TestRunEnvironmentErrors(t *testing.T) {
	root := t.TempDir()
	_, err := Run(Options{Root: root})
	assert.ErrorIs(t, err, apperr.ErrDirectoryNotFound)

	_, err = Run(Options{Root: filepath.Join(root, "missing")})
	assert.ErrorIs(t, err, apperr.ErrDirectoryNotFound)
}

func TestRunConfigErrors(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/x.jsonl", lineA)

	_, err := Run(Options{Root: root, Workers: -1})
	assert.ErrorIs(t, err, apperr.ErrConfig)
	_, err = Run(Options{Root: root, Workers: MaxWorkers + 1})
	assert.ErrorIs(t, err, apperr.ErrConfig)
	_, err = Run(Options{Root: root, Blocks: aggregator.BlockConfig{Hours: 30}})
	assert.ErrorIs(t, err, apperr.ErrConfig)
}

func TestRunEmptyProjects(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "projects", "p"), 0755))

	res, err := Run(Options{Root: root})
	require.NoError(t, err)
	assert.False(t, res.HasData())
	assert.Zero(t, res.Daily.Len())
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "no JSONL files")
}

func TestRunBlankFile(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/blank.jsonl", "", "", "")

	res, err := Run(Options{Root: root})
	require.NoError(t, err)
	assert.False(t, res.HasData())
	assert.Empty(t, res.Diagnostics)
	assert.Empty(t, res.Warnings)
}

func TestRunUnreadableFileIsSkipped(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/a/ok.jsonl", lineA)
	// A single line longer than the scanner limit fails the whole file.
	writeLog(t, root, "p/b/huge.jsonl", lineB, `{"pad":"`+strings.Repeat("x", 17*1024*1024)+`"}`)

	res, err := Run(Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedFiles)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "huge.jsonl")

	day, _ := res.Daily.Get("2024-01-01")
	assert.Equal(t, int64(300), day.Usage.TotalTokens())
	_, ok := res.Sessions.Get("p/b")
	assert.False(t, ok)
}

func TestRunWorkerCountDoesNotChangeTotals(t *testing.T) {
	root := t.TempDir()
	r := rand.New(rand.NewSource(3))
	for f := 0; f < 12; f++ {
		var lines []string
		for i := 0; i < 40; i++ {
			lines = append(lines, fmt.Sprintf(
				`{"timestamp":"2024-02-%02dT%02d:%02d:00Z","message":{"usage":{"input_tokens":%d,"output_tokens":%d,"cache_read_input_tokens":%d},"model":"claude-sonnet-4-20250514"}}`,
				r.Intn(28)+1, r.Intn(24), r.Intn(60), r.Intn(900)+1, r.Intn(900), r.Intn(5000)))
		}
		writeLog(t, root, fmt.Sprintf("proj%d/sess%d/log.jsonl", f%3, f), lines...)
	}

	base, err := Run(Options{Root: root, Workers: 1})
	require.NoError(t, err)

	for _, workers := range []int{2, 5, 16} {
		res, err := Run(Options{Root: root, Workers: workers})
		require.NoError(t, err)
		require.Equal(t, base.Daily.Len(), res.Daily.Len())
		for _, d := range base.Daily.Buckets() {
			g, _ := res.Daily.Get(d.Date)
			assert.Equal(t, d.Usage, g.Usage, d.Date)
		}
		for _, s := range base.Sessions.Buckets() {
			g, _ := res.Sessions.Get(s.ID)
			assert.Equal(t, s.Usage, g.Usage, s.ID)
			assert.Equal(t, s.LastActivity, g.LastActivity)
		}
	}
}
