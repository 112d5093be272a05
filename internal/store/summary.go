package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/model"
)

// Period types stored in usage_summary
const (
	PeriodDay   = "daily"
	PeriodMonth = "monthly"
)

// Summary is the stored usage of one day or month
type Summary struct {
	PeriodType  string
	PeriodKey   string // YYYY-MM-DD or YYYY-MM
	PeriodStart time.Time
	PeriodEnd   time.Time
	Usage       model.TokenUsage
	UpdatedAt   time.Time
}

// Run records one refresh of the snapshot tables
type Run struct {
	ID          int64
	RanAt       time.Time
	Fingerprint string
	Files       int
	Events      int
	Cost        float64
}

// summaries rolls daily buckets up into day and month rows
func summaries(days []aggregator.DailyBucket, at time.Time) ([]Summary, error) {
	months := make(map[string]*Summary)
	out := make([]Summary, 0, len(days))
	for _, d := range days {
		start, err := time.Parse(aggregator.DateLayout, d.Date)
		if err != nil {
			return nil, fmt.Errorf("bad day key %q: %w", d.Date, err)
		}
		out = append(out, Summary{
			PeriodType:  PeriodDay,
			PeriodKey:   d.Date,
			PeriodStart: start,
			PeriodEnd:   start.Add(24*time.Hour - time.Second),
			Usage:       d.Usage,
			UpdatedAt:   at,
		})

		key := start.Format("2006-01")
		m, ok := months[key]
		if !ok {
			monthStart := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
			m = &Summary{
				PeriodType:  PeriodMonth,
				PeriodKey:   key,
				PeriodStart: monthStart,
				PeriodEnd:   monthStart.AddDate(0, 1, 0).Add(-time.Second),
				UpdatedAt:   at,
			}
			months[key] = m
		}
		m.Usage.Add(d.Usage)
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, *months[k])
	}
	return out, nil
}

// UpsertSummaries writes day and month rows for the given buckets in one
// transaction. Existing rows for the same periods are replaced.
func (db *DB) UpsertSummaries(days []aggregator.DailyBucket, at time.Time) (int, error) {
	return db.writeSummaries(days, at, false)
}

// ReplaceSummaries makes the stored rows match the given buckets exactly:
// periods missing from days are deleted and the rest are upserted. Use it
// only when days covers the full unfiltered history.
func (db *DB) ReplaceSummaries(days []aggregator.DailyBucket, at time.Time) (int, error) {
	return db.writeSummaries(days, at, true)
}

func (db *DB) writeSummaries(days []aggregator.DailyBucket, at time.Time, prune bool) (int, error) {
	rows, err := summaries(days, at.UTC())
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 && !prune {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if prune {
		// Rows are rewritten below, so clearing first leaves only current periods
		if _, err := tx.Exec(`DELETE FROM usage_summary`); err != nil {
			return 0, err
		}
	}

	// Upsert statement
	stmt, err := tx.Prepare(`
		INSERT INTO usage_summary
		(period_type, period_key, period_start, period_end, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(period_type, period_key) DO UPDATE SET
			input_tokens = excluded.input_tokens,
			output_tokens = excluded.output_tokens,
			cache_creation_tokens = excluded.cache_creation_tokens,
			cache_read_tokens = excluded.cache_read_tokens,
			cost = excluded.cost,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, s := range rows {
		u := s.Usage
		if _, err := stmt.Exec(s.PeriodType, s.PeriodKey, s.PeriodStart, s.PeriodEnd,
			u.InputTokens, u.OutputTokens, u.CacheCreationTokens, u.CacheReadTokens, u.TotalCost, s.UpdatedAt); err != nil {
			return 0, err
		}
	}

	return len(rows), tx.Commit()
}

// GetSummaries returns the newest rows of a period type, newest first.
// A limit of zero or less returns every row.
func (db *DB) GetSummaries(periodType string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT period_type, period_key, period_start, period_end,
		       input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens, cost, updated_at
		FROM usage_summary
		WHERE period_type = ?
		ORDER BY period_key DESC
		LIMIT ?
	`, periodType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Summary
	for rows.Next() {
		var s Summary
		u := &s.Usage
		if err := rows.Scan(&s.PeriodType, &s.PeriodKey, &s.PeriodStart, &s.PeriodEnd,
			&u.InputTokens, &u.OutputTokens, &u.CacheCreationTokens, &u.CacheReadTokens, &u.TotalCost, &s.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// RecordRun stores a refresh run
func (db *DB) RecordRun(r Run) (int64, error) {
	res, err := db.Exec(
		`INSERT INTO refresh_runs (ran_at, fingerprint, files, events, cost) VALUES (?, ?, ?, ?, ?)`,
		r.RanAt.UTC(), r.Fingerprint, r.Files, r.Events, r.Cost,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LastRun returns the most recent refresh run, or nil if none was recorded
func (db *DB) LastRun() (*Run, error) {
	r := &Run{}
	err := db.QueryRow(
		`SELECT id, ran_at, fingerprint, files, events, cost FROM refresh_runs ORDER BY id DESC LIMIT 1`,
	).Scan(&r.ID, &r.RanAt, &r.Fingerprint, &r.Files, &r.Events, &r.Cost)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
