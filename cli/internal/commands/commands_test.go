package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/claudelytics/cli/internal/config"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/store"
)

const (
	lineA = `{"timestamp":"2024-01-01T02:30:00Z","sessionId":"s1","message":{"usage":{"input_tokens":100,"output_tokens":200},"model":"claude-3-5-haiku-20241022"}}`
	lineB = `{"timestamp":"2024-01-02T07:45:00Z","sessionId":"s1","message":{"usage":{"input_tokens":150,"output_tokens":250},"model":"claude-3-5-haiku-20241022"}}`
)

// resetFlags restores every flag variable, since cobra keeps parsed values
// between executions
func resetFlags() {
	flagPath, flagSince, flagUntil, flagModel = "", "", "", ""
	flagSort, flagOrder, flagPricingFile = "", "", ""
	flagJSON, flagCompact, flagBreakdown, flagVerbose = false, false, false, false
	flagWorkers = 0
	exportDir = ""
	historyPeriod, historyLimit = store.PeriodDay, 30
	cfg = nil
}

func newHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvStore, filepath.Join(home, "usage.db"))
	return home
}

func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, "projects", "-home-me-app", "s1.jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(lineA+"\n"+lineB+"\n"), 0644))
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestDailyJSON(t *testing.T) {
	newHome(t)
	root := newRoot(t)

	out, err := execute(t, "daily", "--path", root, "--json", "--order", "asc")
	require.NoError(t, err)

	var got struct {
		Daily []struct {
			Date        string `json:"date"`
			TotalTokens int64  `json:"total_tokens"`
		} `json:"daily"`
		Totals struct {
			TotalTokens int64 `json:"total_tokens"`
		} `json:"totals"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got.Daily, 2)
	assert.Equal(t, "2024-01-01", got.Daily[0].Date)
	assert.Equal(t, int64(300), got.Daily[0].TotalTokens)
	assert.Equal(t, int64(700), got.Totals.TotalTokens)
}

func TestDefaultCommandFromConfig(t *testing.T) {
	home := newHome(t)
	root := newRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, config.FileName), []byte("default_command: monthly\n"), 0600))

	out, err := execute(t, "--path", root, "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"month": "2024-01"`)
}

func TestUnknownDefaultCommand(t *testing.T) {
	home := newHome(t)
	root := newRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, config.FileName), []byte("default_command: bogus\n"), 0600))

	_, err := execute(t, "--path", root)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestMissingRoot(t *testing.T) {
	newHome(t)

	_, err := execute(t, "daily", "--path", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, apperr.KindDirectoryNotFound, apperr.KindOf(err))
}

func TestVersion(t *testing.T) {
	newHome(t)

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "claudelytics version "+version+"\n", out)
}

func TestConfigSet(t *testing.T) {
	home := newHome(t)
	path := filepath.Join(home, config.FileName)

	_, err := execute(t, "config", "set", "block_hours", "6")
	require.NoError(t, err)

	c, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 6, c.BlockHours)

	_, err = execute(t, "config", "set", "block_hours", "30")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))

	out, err := execute(t, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestRefreshThenHistory(t *testing.T) {
	newHome(t)
	root := newRoot(t)

	out, err := execute(t, "service", "refresh", "--path", root)
	require.NoError(t, err)
	assert.Contains(t, out, "Refreshed 3 snapshot rows")

	out, err = execute(t, "service", "refresh", "--path", root)
	require.NoError(t, err)
	assert.Contains(t, out, "unchanged")

	out, err = execute(t, "history", "--period", "monthly")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01")

	_, err = execute(t, "history", "--period", "weekly")
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))
}

func TestExport(t *testing.T) {
	newHome(t)
	root := newRoot(t)
	dir := t.TempDir()

	out, err := execute(t, "export", "--path", root, "--out", dir)
	require.NoError(t, err)
	for _, name := range []string{"daily.csv", "sessions.csv", "summary.csv"} {
		assert.Contains(t, out, filepath.Join(dir, name))
		assert.FileExists(t, filepath.Join(dir, name))
	}
}

func TestPricingShow(t *testing.T) {
	newHome(t)

	out, err := execute(t, "pricing", "show", "claude-3-5-haiku-20241022")
	require.NoError(t, err)
	assert.Contains(t, out, "exact match")

	_, err = execute(t, "pricing", "show", "gpt-4")
	require.Error(t, err)
	assert.Equal(t, apperr.KindPricingNotFound, apperr.KindOf(err))
}

func TestEmitCSVOnlyWhereSupported(t *testing.T) {
	resetFlags()
	cfg = config.Default()
	cfg.DefaultOutput = config.OutputCSV

	var buf bytes.Buffer
	err := emit(&buf, struct{}{}, func() {}, nil)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConfig, apperr.KindOf(err))

	called := false
	require.NoError(t, emit(&buf, struct{}{}, func() {}, func() error { called = true; return nil }))
	assert.True(t, called)
}

func TestSortOptions(t *testing.T) {
	tests := []struct {
		sort, order string
		wantErr     bool
	}{
		{"", "", false},
		{"cost", "asc", false},
		{"bogus", "", true},
		{"date", "sideways", true},
	}
	for _, tt := range tests {
		t.Run(tt.sort+"/"+tt.order, func(t *testing.T) {
			resetFlags()
			flagSort, flagOrder = tt.sort, tt.order
			_, err := sortOptions()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSkipsConfig(t *testing.T) {
	assert.True(t, skipsConfig(configSetCmd))
	assert.True(t, skipsConfig(versionCmd))
	assert.False(t, skipsConfig(dailyCmd))
	assert.False(t, skipsConfig(rootCmd))
}

func TestReportNames(t *testing.T) {
	names := strings.Split(reportNames(), ", ")
	assert.Equal(t, []string{"analytics", "blocks", "daily", "monthly", "session", "session-blocks"}, names)
}
