package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhaobenny/claudelytics/cli/internal/output"
	"github.com/zhaobenny/claudelytics/internal/apperr"
	"github.com/zhaobenny/claudelytics/internal/model"
	"github.com/zhaobenny/claudelytics/internal/pricing"
	"github.com/zhaobenny/claudelytics/internal/store"
)

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Inspect model pricing and the offline pricing cache",
}

var pricingShowCmd = &cobra.Command{
	Use:   "show [model]",
	Short: "Show the rates used for a model, or for every known model",
	Example: `  claudelytics pricing show
  claudelytics pricing show sonnet-4
  claudelytics pricing show claude-3-5-haiku-20241022`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPricingShow,
}

var pricingCacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the offline pricing cache",
}

var pricingCacheUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Store the current rates (built-in plus overrides) in the cache",
	RunE:  runPricingCacheUpdate,
}

var pricingCacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the state of the pricing cache",
	RunE:  runPricingCacheShow,
}

var pricingCacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached rates",
	RunE:  runPricingCacheClear,
}

func init() {
	rootCmd.AddCommand(pricingCmd)
	pricingCmd.AddCommand(pricingShowCmd)
	pricingCmd.AddCommand(pricingCacheCmd)
	pricingCacheCmd.AddCommand(pricingCacheUpdateCmd)
	pricingCacheCmd.AddCommand(pricingCacheShowCmd)
	pricingCacheCmd.AddCommand(pricingCacheClearCmd)
}

// modelRates is the JSON form of one model's rates in dollars per million tokens
type modelRates struct {
	Model         string  `json:"model"`
	Table         string  `json:"table,omitempty"`
	Stage         string  `json:"stage,omitempty"`
	Input         float64 `json:"input_per_million"`
	Output        float64 `json:"output_per_million"`
	CacheCreation float64 `json:"cache_creation_per_million"`
	CacheRead     float64 `json:"cache_read_per_million"`
}

func perMillion(rate *float64) float64 {
	if rate == nil {
		return 0
	}
	return *rate * 1e6
}

func ratesOf(name string, p model.ModelPricing) modelRates {
	return modelRates{
		Model:         name,
		Input:         perMillion(p.InputCostPerToken),
		Output:        perMillion(p.OutputCostPerToken),
		CacheCreation: perMillion(p.CacheCreationCostPerToken),
		CacheRead:     perMillion(p.CacheReadCostPerToken),
	}
}

func printRates(w io.Writer, r modelRates) {
	fmt.Fprintf(w, "%-34s  $%8.2f  $%8.2f  $%8.2f  $%8.2f\n", r.Model, r.Input, r.Output, r.CacheCreation, r.CacheRead)
}

func runPricingShow(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	pricer, err := buildPricer(time.Now().UTC())
	if err != nil {
		return err
	}

	if len(args) == 1 {
		res, ok := pricer.Resolve(args[0])
		if !ok {
			return apperr.Newf(apperr.KindPricingNotFound, "pricing show", "no pricing for model %q", args[0])
		}
		r := ratesOf(res.Model, res.Pricing)
		r.Table, r.Stage = res.Table, res.Stage.String()
		if flagJSON {
			return output.WriteJSON(w, r)
		}
		fmt.Fprintf(w, "%s resolves to %s (%s match, %s table)\n\n", args[0], res.Model, r.Stage, r.Table)
		fmt.Fprintf(w, "%-34s  %9s  %9s  %9s  %9s\n", "Model (USD per 1M tokens)", "Input", "Output", "Cache W", "Cache R")
		printRates(w, r)
		return nil
	}

	// Every model, with the highest priority table winning
	seen := make(map[string]bool)
	var all []modelRates
	for _, t := range pricer.Tables() {
		for _, name := range t.Models() {
			if seen[name] {
				continue
			}
			seen[name] = true
			p, _ := t.Lookup(name)
			r := ratesOf(name, p)
			r.Table = t.Name()
			all = append(all, r)
		}
	}
	if flagJSON {
		return output.WriteJSON(w, all)
	}
	fmt.Fprintf(w, "%-34s  %9s  %9s  %9s  %9s\n", "Model (USD per 1M tokens)", "Input", "Output", "Cache W", "Cache R")
	for _, r := range all {
		printRates(w, r)
	}
	return nil
}

func openStore() (*store.DB, error) {
	return store.OpenMigrated(storePath())
}

func runPricingCacheUpdate(cmd *cobra.Command, args []string) error {
	rates := pricing.DefaultTable().Entries()
	path := flagPricingFile
	if path == "" {
		path = cfg.PricingFile
	}
	if path != "" {
		override, err := pricing.LoadOverride(path)
		if err != nil {
			return err
		}
		for name, p := range override.Entries() {
			rates[name] = p
		}
	}

	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.SavePricing(pricing.TableVersion, rates, time.Now().UTC()); err != nil {
		return apperr.New(apperr.KindIO, "save pricing cache", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cached rates for %d models (version %s).\n", len(rates), pricing.TableVersion)
	return nil
}

func runPricingCacheShow(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := db.PricingStatus(time.Now().UTC())
	if err != nil {
		return apperr.New(apperr.KindIO, "read pricing cache", err)
	}

	w := cmd.OutOrStdout()
	if flagJSON {
		return output.WriteJSON(w, status)
	}
	if !status.Present {
		fmt.Fprintln(w, "Pricing cache is empty. Run 'claudelytics pricing cache update' to fill it.")
		return nil
	}
	state := "valid"
	if !status.Valid {
		state = "stale, ignored"
	}
	fmt.Fprintf(w, "Models:  %d\n", status.Models)
	fmt.Fprintf(w, "Version: %s (built-in %s)\n", status.Version, pricing.TableVersion)
	fmt.Fprintf(w, "Saved:   %s\n", status.SavedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "State:   %s\n", state)
	return nil
}

func runPricingCacheClear(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.ClearPricing(); err != nil {
		return apperr.New(apperr.KindIO, "clear pricing cache", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Pricing cache cleared.")
	return nil
}
