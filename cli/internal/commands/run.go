package commands

import (
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/claudelytics/cli/internal/config"
	"github.com/zhaobenny/claudelytics/cli/internal/output"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/engine"
	"github.com/zhaobenny/claudelytics/internal/logger"
	"github.com/zhaobenny/claudelytics/internal/parser"
	"github.com/zhaobenny/claudelytics/internal/pricing"
	"github.com/zhaobenny/claudelytics/internal/report"
	"github.com/zhaobenny/claudelytics/internal/store"
)

// reportFunc renders one report from a finished engine run
type reportFunc func(w io.Writer, res *engine.Result, now time.Time) error

// reportBuilders maps report command names to their renderers
var reportBuilders = map[string]reportFunc{
	"daily":          renderDaily,
	"session":        renderSessions,
	"monthly":        renderMonthly,
	"blocks":         renderBillingBlocks,
	"session-blocks": renderSessionBlocks,
	"analytics":      renderAnalytics,
}

func reportNames() string {
	names := make([]string, 0, len(reportBuilders))
	for n := range reportBuilders {
		names = append(names, n)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// claudeRoot resolves the data directory: flag, then config/env, then ~/.claude
func claudeRoot() (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if cfg.ClaudePath != "" {
		return cfg.ClaudePath, nil
	}
	root, err := parser.DefaultRoot()
	if err != nil {
		return "", apperr.New(apperr.KindDirectoryNotFound, "locate claude directory", err)
	}
	return root, nil
}

func storePath() string {
	if cfg.StorePath != "" {
		return cfg.StorePath
	}
	return store.DefaultPath()
}

// cachedPricing returns the cached pricing table when the store exists and
// holds a valid entry. Any problem with the cache is logged and ignored.
func cachedPricing(now time.Time) *pricing.Table {
	path := storePath()
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	db, err := store.OpenMigrated(path)
	if err != nil {
		logger.Debug("pricing cache unavailable", "path", path, "error", err)
		return nil
	}
	defer db.Close()
	table, err := db.LoadPricing(now)
	if err != nil {
		logger.Debug("pricing cache unreadable", "path", path, "error", err)
		return nil
	}
	return table
}

// buildPricer resolves models against the override file, then the cache,
// then the built-in table
func buildPricer(now time.Time) (*pricing.Pricer, error) {
	var override *pricing.Table
	path := flagPricingFile
	if path == "" {
		path = cfg.PricingFile
	}
	if path != "" {
		t, err := pricing.LoadOverride(path)
		if err != nil {
			return nil, err
		}
		override = t
	}
	return pricing.NewPricer(override, cachedPricing(now), pricing.DefaultTable()), nil
}

// engineOptions assembles a run from flags and configuration
func engineOptions(now time.Time) (engine.Options, error) {
	root, err := claudeRoot()
	if err != nil {
		return engine.Options{}, err
	}
	filter, err := parser.ParseDateFilter(flagSince, flagUntil)
	if err != nil {
		return engine.Options{}, err
	}
	pricer, err := buildPricer(now)
	if err != nil {
		return engine.Options{}, err
	}
	workers := flagWorkers
	if workers == 0 {
		workers = cfg.Workers
	}
	return engine.Options{
		Root:        root,
		Filter:      filter,
		ModelFilter: flagModel,
		Pricer:      pricer,
		Blocks:      cfg.BlockConfig(),
		Workers:     workers,
	}, nil
}

// loadUsage runs the engine and logs what it had to skip
func loadUsage(now time.Time) (*engine.Result, error) {
	opts, err := engineOptions(now)
	if err != nil {
		return nil, err
	}
	res, err := engine.Run(opts)
	if err != nil {
		return nil, err
	}
	if n := len(res.Diagnostics); n > 0 {
		logger.Warn("skipped malformed lines", "count", n, "hint", "use --verbose for details")
	}
	if len(res.UnpricedModels) > 0 {
		models := make([]string, 0, len(res.UnpricedModels))
		for m := range res.UnpricedModels {
			models = append(models, m)
		}
		sort.Strings(models)
		logger.Warn("no pricing for models, cost counted as zero", "models", models)
	}
	return res, nil
}

func runReport(cmd *cobra.Command, build reportFunc) error {
	now := time.Now().UTC()
	res, err := loadUsage(now)
	if err != nil {
		return err
	}
	return build(cmd.OutOrStdout(), res, now)
}

func sortOptions() (report.SortOptions, error) {
	field, err := report.ParseSortField(flagSort)
	if err != nil {
		return report.SortOptions{}, err
	}
	order, err := report.ParseSortOrder(flagOrder)
	if err != nil {
		return report.SortOptions{}, err
	}
	return report.SortOptions{Field: field, Order: order}, nil
}

func tableOptions() output.TableOptions {
	return output.TableOptions{
		ForceCompact: flagCompact,
		Breakdown:    flagBreakdown,
		DateFormat:   cfg.DateFormat,
	}
}

// outputFormat is table, json or csv; --json wins over the configured default
func outputFormat() string {
	if flagJSON {
		return config.OutputJSON
	}
	return cfg.DefaultOutput
}

var errNoCSV = errors.New("csv output is only available for the daily and session reports; use export for files")

// emit writes v as JSON when requested, otherwise calls table. csv, when
// non-nil, handles the csv format.
func emit(w io.Writer, v any, table func(), csv func() error) error {
	switch outputFormat() {
	case config.OutputJSON:
		return output.WriteJSON(w, v)
	case config.OutputCSV:
		if csv == nil {
			return apperr.New(apperr.KindConfig, "output", errNoCSV)
		}
		return csv()
	default:
		table()
		return nil
	}
}
