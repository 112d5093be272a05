package pricing

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/zhaobenny/claudelytics/internal/model"
)

// Stage names the resolution step that matched a model
type Stage int

const (
	StageNone Stage = iota
	StageExact
	StageAlias
	StageFamily
	StagePartial
)

func (s Stage) String() string {
	switch s {
	case StageExact:
		return "exact"
	case StageAlias:
		return "alias"
	case StageFamily:
		return "family"
	case StagePartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Table is a named set of model rates with optional extra aliases
type Table struct {
	name    string
	prices  map[string]model.ModelPricing
	aliases map[string]string // lowercased alias -> key
	keys    []string          // sorted, for deterministic partial matching
}

// NewTable builds a table; aliases map short names onto keys of prices
func NewTable(name string, prices map[string]model.ModelPricing, aliases map[string]string) *Table {
	t := &Table{
		name:    name,
		prices:  make(map[string]model.ModelPricing, len(prices)),
		aliases: make(map[string]string, len(aliases)),
	}
	for k, p := range prices {
		t.prices[k] = p
		t.keys = append(t.keys, k)
	}
	sort.Strings(t.keys)
	for a, k := range aliases {
		t.aliases[strings.ToLower(a)] = k
	}
	return t
}

// Name returns the table's label
func (t *Table) Name() string {
	return t.name
}

// Len returns the number of priced models
func (t *Table) Len() int {
	return len(t.prices)
}

// Models returns the priced model ids in sorted order
func (t *Table) Models() []string {
	out := make([]string, len(t.keys))
	copy(out, t.keys)
	return out
}

// Lookup returns the rates stored under an exact key
func (t *Table) Lookup(key string) (model.ModelPricing, bool) {
	p, ok := t.prices[key]
	return p, ok
}

// Entries returns a copy of the table's rates
func (t *Table) Entries() map[string]model.ModelPricing {
	out := make(map[string]model.ModelPricing, len(t.prices))
	for k, p := range t.prices {
		out[k] = p
	}
	return out
}

func (t *Table) alias(name string) (string, bool) {
	lower := strings.ToLower(name)
	if k, ok := t.aliases[lower]; ok {
		if _, priced := t.prices[k]; priced {
			return k, true
		}
	}
	if k, ok := registryAliases[lower]; ok {
		if _, priced := t.prices[k]; priced {
			return k, true
		}
	}
	normalized := normalizeModelName(name)
	for _, k := range t.keys {
		if normalizeModelName(k) == normalized {
			return k, true
		}
	}
	return "", false
}

func (t *Table) family(name string) (string, bool) {
	f := Family(name)
	if f == "" {
		return "", false
	}
	k := familyCanonical[f]
	if _, ok := t.prices[k]; ok {
		return k, true
	}
	return "", false
}

func (t *Table) partial(name string) (string, bool) {
	lower := strings.ToLower(name)
	for _, k := range t.keys {
		lk := strings.ToLower(k)
		if strings.Contains(lk, lower) || strings.Contains(lower, lk) {
			return k, true
		}
	}
	return "", false
}

// Resolution is the outcome of pricing a model id
type Resolution struct {
	Model   string // Key of the matched entry
	Table   string // Name of the table that served it
	Stage   Stage
	Pricing model.ModelPricing
}

// Pricer resolves model ids against tables in priority order. Each stage is
// tried against every table before moving to the next stage, so an override
// for a model wins over the default for that model while other models are
// still priced by the defaults.
type Pricer struct {
	tables []*Table
}

// NewPricer creates a pricer; tables are given highest priority first and
// nil tables are skipped
func NewPricer(tables ...*Table) *Pricer {
	p := &Pricer{}
	for _, t := range tables {
		if t != nil {
			p.tables = append(p.tables, t)
		}
	}
	return p
}

// Default returns a pricer backed only by the embedded table
func Default() *Pricer {
	return NewPricer(DefaultTable())
}

// Tables returns the tables consulted, highest priority first
func (p *Pricer) Tables() []*Table {
	return p.tables
}

// Digest hashes every table's name, aliases and rates in priority order.
// Two pricers with equal digests price every model the same way.
func (p *Pricer) Digest() string {
	h, _ := blake2b.New256(nil)
	for _, t := range p.tables {
		fmt.Fprintf(h, "table\x00%s\n", t.name)
		for _, k := range t.keys {
			r := t.prices[k]
			fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s\n", k,
				rateKey(r.InputCostPerToken), rateKey(r.OutputCostPerToken),
				rateKey(r.CacheCreationCostPerToken), rateKey(r.CacheReadCostPerToken))
		}
		aliases := make([]string, 0, len(t.aliases))
		for a := range t.aliases {
			aliases = append(aliases, a)
		}
		sort.Strings(aliases)
		for _, a := range aliases {
			fmt.Fprintf(h, "alias\x00%s\x00%s\n", a, t.aliases[a])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func rateKey(rate *float64) string {
	if rate == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *rate)
}

// Resolve finds the rates for a model id
func (p *Pricer) Resolve(modelName string) (Resolution, bool) {
	name := strings.TrimSpace(modelName)
	if name == "" {
		return Resolution{}, false
	}

	for _, t := range p.tables {
		if pr, ok := t.prices[name]; ok {
			return Resolution{Model: name, Table: t.name, Stage: StageExact, Pricing: pr}, true
		}
	}

	stages := []struct {
		stage Stage
		match func(*Table, string) (string, bool)
	}{
		{StageAlias, (*Table).alias},
		{StageFamily, (*Table).family},
		{StagePartial, (*Table).partial},
	}
	for _, s := range stages {
		for _, t := range p.tables {
			if k, ok := s.match(t, name); ok {
				return Resolution{Model: k, Table: t.name, Stage: s.stage, Pricing: t.prices[k]}, true
			}
		}
	}

	return Resolution{}, false
}

// Cost prices usage for a model id; ok is false for unknown models
func (p *Pricer) Cost(modelName string, usage model.TokenUsage) (float64, bool) {
	res, ok := p.Resolve(modelName)
	if !ok {
		return 0, false
	}
	return CalculateCost(usage, res.Pricing), true
}

// CalculateCost calculates the cost for a usage record
func CalculateCost(usage model.TokenUsage, pricing model.ModelPricing) float64 {
	cost := float64(usage.InputTokens) * value(pricing.InputCostPerToken)
	cost += float64(usage.OutputTokens) * value(pricing.OutputCostPerToken)
	cost += float64(usage.CacheCreationTokens) * value(pricing.CacheCreationCostPerToken)
	cost += float64(usage.CacheReadTokens) * value(pricing.CacheReadCostPerToken)
	return cost
}

func value(rate *float64) float64 {
	if rate == nil {
		return 0
	}
	return *rate
}
