package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kardianos/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/engine"
	"github.com/zhaobenny/claudelytics/internal/parser"
	"github.com/zhaobenny/claudelytics/internal/pricing"
	"github.com/zhaobenny/claudelytics/internal/store"
)

const (
	lineA = `{"timestamp":"2024-01-01T02:30:00Z","message":{"usage":{"input_tokens":100,"output_tokens":200},"model":"claude-3-5-haiku-20241022"}}`
	lineB = `{"timestamp":"2024-01-02T07:45:00Z","message":{"usage":{"input_tokens":150,"output_tokens":250},"model":"claude-3-5-haiku-20241022"}}`
)

func writeLog(t *testing.T, root, rel string, lines ...string) string {
	t.Helper()
	path := filepath.Join(root, "projects", rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func newRefresher(t *testing.T, root string) *Refresher {
	t.Helper()
	db, err := store.OpenMigrated(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Refresher{
		Options: engine.Options{Root: root, Workers: 2},
		DB:      db,
		Now:     func() time.Time { return time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC) },
	}
}

func TestRefreshWritesSnapshots(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/x.jsonl", lineA, lineB)
	r := newRefresher(t, root)

	out, err := r.Refresh()
	require.NoError(t, err)
	assert.False(t, out.Skipped)
	assert.Equal(t, 1, out.Files)
	assert.Equal(t, 2, out.Events)
	// Two days and one month
	assert.Equal(t, 3, out.Rows)

	days, err := r.DB.GetSummaries(store.PeriodDay, 0)
	require.NoError(t, err)
	require.Len(t, days, 2)
	assert.Equal(t, "2024-01-02", days[0].PeriodKey)
	assert.Equal(t, int64(400), days[0].Usage.TotalTokens())

	months, err := r.DB.GetSummaries(store.PeriodMonth, 0)
	require.NoError(t, err)
	require.Len(t, months, 1)
	assert.Equal(t, int64(700), months[0].Usage.TotalTokens())

	last, err := r.DB.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, out.Fingerprint, last.Fingerprint)
}

func TestRefreshSkipsUnchangedLogs(t *testing.T) {
	root := t.TempDir()
	path := writeLog(t, root, "p/s/x.jsonl", lineA)
	r := newRefresher(t, root)

	first, err := r.Refresh()
	require.NoError(t, err)
	require.False(t, first.Skipped)

	second, err := r.Refresh()
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	require.NoError(t, os.WriteFile(path, []byte(lineA+"\n"+lineB+"\n"), 0o644))
	// Make sure the modification time moves even on coarse clocks
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	third, err := r.Refresh()
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Equal(t, 2, third.Events)
}

func TestRefreshRerunsWhenOptionsChange(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/x.jsonl", lineA, lineB)
	r := newRefresher(t, root)

	since, err := parser.ParseDateFilter("20240102", "")
	require.NoError(t, err)
	r.Options.Filter = since
	first, err := r.Refresh()
	require.NoError(t, err)
	require.False(t, first.Skipped)

	days, err := r.DB.GetSummaries(store.PeriodDay, 0)
	require.NoError(t, err)
	require.Len(t, days, 1)

	// Same files, wider filter
	r.Options.Filter = parser.DateFilter{}
	second, err := r.Refresh()
	require.NoError(t, err)
	assert.False(t, second.Skipped)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)

	days, err = r.DB.GetSummaries(store.PeriodDay, 0)
	require.NoError(t, err)
	assert.Len(t, days, 2)

	tests := []struct {
		name   string
		change func(*testing.T, *Refresher)
	}{
		{"model filter", func(_ *testing.T, r *Refresher) { r.Options.ModelFilter = "haiku" }},
		{"block hours", func(_ *testing.T, r *Refresher) { r.Options.Blocks.Hours = 6 }},
		{"pricing", func(t *testing.T, r *Refresher) {
			override, err := pricing.ParseOverride([]byte("models:\n  claude-3-5-haiku-20241022:\n    input: 2\n    output: 8\n"))
			require.NoError(t, err)
			r.Options.Pricer = pricing.NewPricer(override, pricing.DefaultTable())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Refresh()
			require.NoError(t, err)
			tt.change(t, r)
			out, err := r.Refresh()
			require.NoError(t, err)
			assert.False(t, out.Skipped)
		})
	}
}

func TestRefreshDropsDeletedDays(t *testing.T) {
	root := t.TempDir()
	old := writeLog(t, root, "p/s/a.jsonl", lineA)
	writeLog(t, root, "p/s/b.jsonl", lineB)
	r := newRefresher(t, root)

	_, err := r.Refresh()
	require.NoError(t, err)
	days, err := r.DB.GetSummaries(store.PeriodDay, 0)
	require.NoError(t, err)
	require.Len(t, days, 2)

	require.NoError(t, os.Remove(old))
	out, err := r.Refresh()
	require.NoError(t, err)
	require.False(t, out.Skipped)

	days, err = r.DB.GetSummaries(store.PeriodDay, 0)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2024-01-02", days[0].PeriodKey)

	months, err := r.DB.GetSummaries(store.PeriodMonth, 0)
	require.NoError(t, err)
	require.Len(t, months, 1)
	assert.Equal(t, int64(400), months[0].Usage.TotalTokens())
}

func TestRefreshMissingRoot(t *testing.T) {
	r := newRefresher(t, filepath.Join(t.TempDir(), "absent"))
	_, err := r.Refresh()
	assert.ErrorIs(t, err, apperr.ErrDirectoryNotFound)
}

func TestConfig(t *testing.T) {
	cfg := Config(30 * time.Minute)
	assert.Equal(t, Name, cfg.Name)
	assert.Equal(t, []string{"service", "run", "--interval=30m0s"}, cfg.Arguments)
}

func TestStatusText(t *testing.T) {
	assert.Equal(t, "running", StatusText(service.StatusRunning, nil))
	assert.Equal(t, "stopped", StatusText(service.StatusStopped, nil))
	assert.Equal(t, "unknown", StatusText(service.StatusUnknown, nil))
	assert.Contains(t, StatusText(service.StatusUnknown, errors.New("boom")), "boom")
}

func TestProgramStartStop(t *testing.T) {
	root := t.TempDir()
	writeLog(t, root, "p/s/x.jsonl", lineA)
	r := newRefresher(t, root)
	p := NewProgram(r, time.Hour)

	require.NoError(t, p.Start(nil))
	require.Eventually(t, func() bool {
		last, err := r.DB.LastRun()
		return err == nil && last != nil
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, p.Stop(nil))
}
