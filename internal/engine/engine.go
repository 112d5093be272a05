// Package engine discovers and parses usage logs in parallel and merges the
// per-file results into one set of aggregates.
package engine

import (
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/zhaobenny/claudelytics/internal/aggregator"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/logger"
	"github.com/zhaobenny/claudelytics/internal/model"
	"github.com/zhaobenny/claudelytics/internal/parser"
	"github.com/zhaobenny/claudelytics/internal/pricing"
)

// MaxWorkers bounds the parallel worker count
const MaxWorkers = 256

// CostModel prices usage for a model id; ok is false for unknown models
type CostModel interface {
	Cost(modelName string, usage model.TokenUsage) (float64, bool)
}

// Options configures a run
type Options struct {
	Root        string // Directory containing projects/
	Filter      parser.DateFilter
	ModelFilter string
	Pricer      CostModel // Defaults to the embedded table
	Blocks      aggregator.BlockConfig
	Workers     int // 0 uses one worker per CPU
}

// Result holds the merged aggregates and everything that went wrong on the way
type Result struct {
	*aggregator.Set
	ProjectsDir    string
	Files          []string
	FailedFiles    int
	InvalidRecords int
	FilteredEvents int
	UnpricedModels map[string]int // Events without wire cost whose model could not be priced
	Diagnostics    []parser.Diagnostic
	Warnings       []string
}

type fileResult struct {
	set      *aggregator.Set
	stats    parser.FileStats
	filtered int
	unpriced map[string]int
	err      error
}

func (o Options) validate() (Options, error) {
	if o.Workers < 0 || o.Workers > MaxWorkers {
		return o, apperr.Newf(apperr.KindConfig, "engine options", "worker count %d outside 0..%d", o.Workers, MaxWorkers)
	}
	if o.Workers == 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Blocks.Hours == 0 {
		o.Blocks.Hours = aggregator.DefaultBlockHours
	}
	if err := o.Blocks.Validate(); err != nil {
		return o, apperr.New(apperr.KindConfig, "engine options", err)
	}
	if o.Pricer == nil {
		o.Pricer = pricing.Default()
	}
	return o, nil
}

// Run discovers every JSONL file under opts.Root/projects, parses them in
// parallel and merges the results. Configuration and environment problems are
// returned before any file is read; per-file and per-record problems are
// reported in the result.
func Run(opts Options) (*Result, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}

	projectsDir, err := parser.FindProjectsDir(opts.Root)
	if err != nil {
		return nil, err
	}
	files, err := parser.FindUsageFiles(projectsDir)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Set:            aggregator.NewSet(opts.Blocks),
		ProjectsDir:    projectsDir,
		Files:          files,
		UnpricedModels: make(map[string]int),
	}
	if len(files) == 0 {
		msg := fmt.Sprintf("no JSONL files found under %s", projectsDir)
		logger.Warn(msg)
		res.Warnings = append(res.Warnings, msg)
		return res, nil
	}

	results := make([]fileResult, len(files))
	var g errgroup.Group
	g.SetLimit(opts.Workers)
	for i, path := range files {
		g.Go(func() error {
			results[i] = processFile(projectsDir, path, opts)
			return nil
		})
	}
	_ = g.Wait()

	// Single-threaded reduce in file order.
	for i, fr := range results {
		res.Diagnostics = append(res.Diagnostics, fr.stats.Diagnostics...)
		if fr.err != nil {
			res.FailedFiles++
			msg := fmt.Sprintf("skipped %s: %v", files[i], fr.err)
			logger.Warn("skipping file", "file", files[i], "error", fr.err)
			res.Warnings = append(res.Warnings, msg)
			continue
		}
		res.Set.Merge(fr.set)
		res.InvalidRecords += fr.stats.Invalid
		res.FilteredEvents += fr.filtered
		for m, n := range fr.unpriced {
			res.UnpricedModels[m] += n
		}
	}

	for _, d := range res.Diagnostics {
		logger.Debug("malformed line", "file", d.File, "line", d.Line, "message", d.Message)
	}
	if len(res.UnpricedModels) > 0 {
		logger.Debug("events without pricing", "models", sortedKeys(res.UnpricedModels))
	}
	return res, nil
}

func processFile(projectsDir, path string, opts Options) fileResult {
	fr := fileResult{
		set:      aggregator.NewSet(opts.Blocks),
		unpriced: make(map[string]int),
	}
	sessionID := parser.SessionIDFromPath(projectsDir, path)

	fr.stats, fr.err = parser.ParseFile(path, sessionID, func(e model.UsageEvent) {
		if !opts.Filter.Contains(e.Timestamp) {
			fr.filtered++
			return
		}
		if opts.ModelFilter != "" && !pricing.MatchesFilter(e.Model, opts.ModelFilter) {
			fr.filtered++
			return
		}
		if e.Cost == nil {
			if cost, ok := opts.Pricer.Cost(e.Model, e.Usage); ok {
				e.Cost = &cost
			} else {
				name := e.Model
				if name == "" {
					name = "(none)"
				}
				fr.unpriced[name]++
			}
		}
		fr.set.Add(e)
	})
	return fr
}

// HasData reports whether any event was aggregated
func (r *Result) HasData() bool {
	return r.Events > 0
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
