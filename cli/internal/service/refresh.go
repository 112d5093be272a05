// Package service runs periodic usage refreshes in the background and keeps
// the snapshot tables of the store current.
package service

import (
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/zhaobenny/claudelytics/internal/engine"
	"github.com/zhaobenny/claudelytics/internal/logger"
	"github.com/zhaobenny/claudelytics/internal/parser"
	"github.com/zhaobenny/claudelytics/internal/pricing"
	"github.com/zhaobenny/claudelytics/internal/store"
)

// Refresher parses the usage logs and writes day and month snapshots
type Refresher struct {
	Options engine.Options
	DB      *store.DB
	Now     func() time.Time // Defaults to time.Now
}

// Outcome describes one refresh
type Outcome struct {
	Skipped     bool   // The files and options were unchanged since the last run
	Fingerprint string // Digest of the log files and the options that shape the snapshots
	Files       int
	Events      int
	Rows        int
	Cost        float64
}

func (r *Refresher) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// pricingDigester is implemented by pricers that can describe their rates
type pricingDigester interface {
	Digest() string
}

// runKey combines the file fingerprint with every option that changes what
// the snapshots contain, so a refresh with a different filter or pricing
// is never skipped
func (r *Refresher) runKey(files string) string {
	pricer := "default:" + pricing.TableVersion
	if d, ok := r.Options.Pricer.(pricingDigester); ok {
		pricer = d.Digest()
	}
	b := r.Options.Blocks
	tokenLimit, costLimit := "-", "-"
	if b.TokenLimit != nil {
		tokenLimit = fmt.Sprint(*b.TokenLimit)
	}
	if b.CostLimit != nil {
		costLimit = fmt.Sprint(*b.CostLimit)
	}

	h, _ := blake2b.New256(nil)
	fmt.Fprintf(h, "files\x00%s\n", files)
	fmt.Fprintf(h, "filter\x00%s\n", r.Options.Filter)
	fmt.Fprintf(h, "model\x00%s\n", r.Options.ModelFilter)
	fmt.Fprintf(h, "blocks\x00%d\x00%s\x00%s\n", b.Hours, tokenLimit, costLimit)
	fmt.Fprintf(h, "pricing\x00%s\n", pricer)
	return hex.EncodeToString(h.Sum(nil))
}

// fullRange reports whether the run sees every event, so stored periods
// missing from it no longer have usage
func (r *Refresher) fullRange() bool {
	return r.Options.Filter.IsZero() && r.Options.ModelFilter == ""
}

// Refresh runs the engine unless the log files and options are unchanged
// since the last recorded run, then writes the snapshots and records the run.
// An unfiltered run also drops periods whose usage has disappeared.
func (r *Refresher) Refresh() (Outcome, error) {
	projectsDir, err := parser.FindProjectsDir(r.Options.Root)
	if err != nil {
		return Outcome{}, err
	}
	files, err := parser.FindUsageFiles(projectsDir)
	if err != nil {
		return Outcome{}, err
	}
	filesDigest, err := parser.Fingerprint(files)
	if err != nil {
		return Outcome{}, err
	}
	fingerprint := r.runKey(filesDigest)

	last, err := r.DB.LastRun()
	if err != nil {
		return Outcome{}, err
	}
	if last != nil && last.Fingerprint == fingerprint {
		logger.Debug("usage logs and options unchanged, skipping refresh", "files", len(files))
		return Outcome{Skipped: true, Fingerprint: fingerprint, Files: len(files)}, nil
	}

	res, err := engine.Run(r.Options)
	if err != nil {
		return Outcome{}, err
	}

	at := r.now()
	write := r.DB.UpsertSummaries
	if r.fullRange() {
		write = r.DB.ReplaceSummaries
	}
	rows, err := write(res.Daily.Buckets(), at)
	if err != nil {
		return Outcome{}, err
	}

	var cost float64
	for _, d := range res.Daily.Buckets() {
		cost += d.Usage.TotalCost
	}
	out := Outcome{
		Fingerprint: fingerprint,
		Files:       len(res.Files),
		Events:      res.Events,
		Rows:        rows,
		Cost:        cost,
	}
	if _, err := r.DB.RecordRun(store.Run{
		RanAt:       at,
		Fingerprint: fingerprint,
		Files:       out.Files,
		Events:      out.Events,
		Cost:        cost,
	}); err != nil {
		return Outcome{}, err
	}
	return out, nil
}
