package pricing

import (
	"sort"
	"strings"
)

// ModelInfo describes a known model and the short names it goes by
type ModelInfo struct {
	Name    string
	Family  string
	Version string
	Aliases []string
}

var registry = []ModelInfo{
	{Name: "claude-opus-4-5-20251101", Family: "opus", Version: "4.5", Aliases: []string{"opus-4.5", "opus4.5"}},
	{Name: "claude-opus-4-1-20250805", Family: "opus", Version: "4.1", Aliases: []string{"opus-4.1", "opus4.1"}},
	{Name: "claude-opus-4-20250514", Family: "opus", Version: "4.0", Aliases: []string{"opus-4", "opus4"}},
	{Name: "claude-3-opus-20240229", Family: "opus", Version: "3.0", Aliases: []string{"opus-3", "opus3"}},
	{Name: "claude-sonnet-4-5-20250929", Family: "sonnet", Version: "4.5", Aliases: []string{"sonnet-4.5", "sonnet4.5"}},
	{Name: "claude-sonnet-4-20250514", Family: "sonnet", Version: "4.0", Aliases: []string{"sonnet-4", "sonnet4"}},
	{Name: "claude-3-7-sonnet-20250219", Family: "sonnet", Version: "3.7", Aliases: []string{"sonnet-3.7", "sonnet3.7"}},
	{Name: "claude-3-5-sonnet-20241022", Family: "sonnet", Version: "3.5", Aliases: []string{"sonnet-3.5", "sonnet3.5"}},
	{Name: "claude-haiku-4-5-20251001", Family: "haiku", Version: "4.5", Aliases: []string{"haiku-4.5", "haiku4.5"}},
	{Name: "claude-3-5-haiku-20241022", Family: "haiku", Version: "3.5", Aliases: []string{"haiku-3.5", "haiku3.5"}},
	{Name: "claude-3-haiku-20240307", Family: "haiku", Version: "3.0", Aliases: []string{"haiku-3", "haiku3"}},
}

// familyCanonical is the model a bare family name is priced as
var familyCanonical = map[string]string{
	"opus":   "claude-opus-4-20250514",
	"sonnet": "claude-sonnet-4-20250514",
	"haiku":  "claude-3-5-haiku-20241022",
}

var registryAliases = func() map[string]string {
	m := make(map[string]string)
	for _, info := range registry {
		for _, a := range info.Aliases {
			m[a] = info.Name
		}
	}
	return m
}()

// KnownModels returns the registered models sorted by name
func KnownModels() []ModelInfo {
	out := make([]ModelInfo, len(registry))
	copy(out, registry)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResolveAlias maps a short name such as "sonnet4" to its canonical id
func ResolveAlias(name string) (string, bool) {
	canonical, ok := registryAliases[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}

// Family returns opus, sonnet or haiku for a model id, or "" when unknown
func Family(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "opus"):
		return "opus"
	case strings.Contains(lower, "sonnet"):
		return "sonnet"
	case strings.Contains(lower, "haiku"):
		return "haiku"
	}
	return ""
}

// MatchesFilter reports whether a model id satisfies a --model filter.
// A family name matches every model of the family, an alias matches its
// canonical id, anything else matches by case-insensitive substring.
func MatchesFilter(modelName, filter string) bool {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return true
	}
	if _, ok := familyCanonical[filter]; ok {
		return Family(modelName) == filter
	}
	if canonical, ok := registryAliases[filter]; ok {
		return strings.EqualFold(modelName, canonical)
	}
	return strings.Contains(strings.ToLower(modelName), filter)
}

// normalizeModelName normalizes model names for matching
func normalizeModelName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "-", "")
	name = strings.ReplaceAll(name, "_", "")
	name = strings.ReplaceAll(name, ".", "")
	return name
}
