package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/model"
	"github.com/zhaobenny/claudelytics/internal/pricing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMigrated(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func day(date string, in, out int64, cost float64) aggregator.DailyBucket {
	return aggregator.DailyBucket{
		Date:  date,
		Usage: model.TokenUsage{InputTokens: in, OutputTokens: out, TotalCost: cost},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())
}

func TestUpsertSummaries(t *testing.T) {
	db := openTestDB(t)
	at := time.Date(2024, 2, 3, 12, 0, 0, 0, time.UTC)

	n, err := db.UpsertSummaries([]aggregator.DailyBucket{
		day("2024-01-31", 100, 50, 1.5),
		day("2024-02-01", 10, 5, 0.25),
		day("2024-02-02", 20, 5, 0.5),
	}, at)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	days, err := db.GetSummaries(PeriodDay, 0)
	require.NoError(t, err)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-02-02", days[0].PeriodKey)
	assert.Equal(t, int64(25), days[0].Usage.TotalTokens())
	assert.True(t, days[0].UpdatedAt.Equal(at))

	months, err := db.GetSummaries(PeriodMonth, 0)
	require.NoError(t, err)
	require.Len(t, months, 2)
	feb := months[0]
	assert.Equal(t, "2024-02", feb.PeriodKey)
	assert.Equal(t, int64(30), feb.Usage.InputTokens)
	assert.InDelta(t, 0.75, feb.Usage.TotalCost, 1e-9)
	assert.True(t, feb.PeriodStart.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, feb.PeriodEnd.Equal(time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)))

	// A second refresh replaces the rows instead of adding to them
	_, err = db.UpsertSummaries([]aggregator.DailyBucket{day("2024-02-02", 40, 10, 1.0)}, at.Add(time.Hour))
	require.NoError(t, err)

	limited, err := db.GetSummaries(PeriodDay, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, int64(50), limited[0].Usage.TotalTokens())
	assert.InDelta(t, 1.0, limited[0].Usage.TotalCost, 1e-9)
}

func TestReplaceSummariesDropsVanishedPeriods(t *testing.T) {
	db := openTestDB(t)
	at := time.Date(2024, 2, 3, 12, 0, 0, 0, time.UTC)

	_, err := db.UpsertSummaries([]aggregator.DailyBucket{
		day("2024-01-31", 100, 50, 1.5),
		day("2024-02-01", 10, 5, 0.25),
	}, at)
	require.NoError(t, err)

	n, err := db.ReplaceSummaries([]aggregator.DailyBucket{day("2024-02-01", 10, 5, 0.25)}, at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	days, err := db.GetSummaries(PeriodDay, 0)
	require.NoError(t, err)
	require.Len(t, days, 1)
	assert.Equal(t, "2024-02-01", days[0].PeriodKey)

	months, err := db.GetSummaries(PeriodMonth, 0)
	require.NoError(t, err)
	require.Len(t, months, 1)
	assert.Equal(t, "2024-02", months[0].PeriodKey)

	// Upsert never deletes
	_, err = db.UpsertSummaries(nil, at)
	require.NoError(t, err)
	days, err = db.GetSummaries(PeriodDay, 0)
	require.NoError(t, err)
	assert.Len(t, days, 1)

	_, err = db.ReplaceSummaries(nil, at)
	require.NoError(t, err)
	days, err = db.GetSummaries(PeriodDay, 0)
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestUpsertSummariesRejectsBadDate(t *testing.T) {
	db := openTestDB(t)
	_, err := db.UpsertSummaries([]aggregator.DailyBucket{day("02/01/2024", 1, 1, 0)}, time.Now())
	assert.Error(t, err)
}

func TestRuns(t *testing.T) {
	db := openTestDB(t)

	last, err := db.LastRun()
	require.NoError(t, err)
	assert.Nil(t, last)

	ranAt := time.Date(2024, 2, 3, 12, 0, 0, 0, time.UTC)
	_, err = db.RecordRun(Run{RanAt: ranAt, Fingerprint: "aaa", Files: 2, Events: 10, Cost: 1.25})
	require.NoError(t, err)
	_, err = db.RecordRun(Run{RanAt: ranAt.Add(time.Minute), Fingerprint: "bbb", Files: 3, Events: 12, Cost: 1.5})
	require.NoError(t, err)

	last, err = db.LastRun()
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "bbb", last.Fingerprint)
	assert.Equal(t, 3, last.Files)
	assert.True(t, last.RanAt.Equal(ranAt.Add(time.Minute)))
}

func TestPricingCache(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2024, 2, 3, 12, 0, 0, 0, time.UTC)

	table, err := db.LoadPricing(now)
	require.NoError(t, err)
	assert.Nil(t, table)

	rates := map[string]model.ModelPricing{
		"claude-test-1": model.PerMillion(1, 2, 3, 4),
	}
	require.NoError(t, db.SavePricing(pricing.TableVersion, rates, now))

	table, err = db.LoadPricing(now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, table)
	assert.Equal(t, CacheTableName, table.Name())
	p, ok := table.Lookup("claude-test-1")
	require.True(t, ok)
	assert.InDelta(t, 2e-6, *p.OutputCostPerToken, 1e-15)

	status, err := db.PricingStatus(now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, status.Present)
	assert.True(t, status.Valid)
	assert.Equal(t, 1, status.Models)

	expired, err := db.LoadPricing(now.Add(PricingCacheTTL))
	require.NoError(t, err)
	assert.Nil(t, expired)

	require.NoError(t, db.SavePricing("1999-01-01", rates, now))
	stale, err := db.LoadPricing(now)
	require.NoError(t, err)
	assert.Nil(t, stale)

	require.NoError(t, db.ClearPricing())
	status, err = db.PricingStatus(now)
	require.NoError(t, err)
	assert.False(t, status.Present)
}
